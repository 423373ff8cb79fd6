// Package elevenlabs implements tts.Provider against the ElevenLabs HTTP API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"whatify/pkg/config"
	"whatify/pkg/model"
	"whatify/pkg/request"
	"whatify/pkg/tts"
)

// Provider implements tts.Provider for ElevenLabs.
type Provider struct {
	client  *request.Client
	apiKey  string
	baseURL string
	modelID string
}

type synthRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type voicesResponse struct {
	Voices []struct {
		VoiceID string            `json:"voice_id"`
		Name    string            `json:"name"`
		Labels  map[string]string `json:"labels"`
	} `json:"voices"`
}

// NewProvider creates an ElevenLabs provider backed by the queued client.
func NewProvider(client *request.Client, cfg *config.ElevenLabsConfig) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	modelID := cfg.Model
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	return &Provider{
		client:  client,
		apiKey:  cfg.Key,
		baseURL: baseURL,
		modelID: modelID,
	}
}

// Name identifies the provider.
func (p *Provider) Name() string { return "elevenlabs" }

// Synthesize generates mp3 audio for the text.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (model.AudioHandle, error) {
	if p.apiKey == "" {
		return model.AudioHandle{}, tts.NewFatalError(401, "elevenlabs api key missing")
	}
	if voice == "" {
		return model.AudioHandle{}, fmt.Errorf("voice ID is required")
	}

	payload, err := json.Marshal(synthRequest{Text: text, ModelID: p.modelID})
	if err != nil {
		return model.AudioHandle{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/text-to-speech/%s", p.baseURL, url.PathEscape(voice))
	started := time.Now()
	body, err := p.client.PostWithHeaders(ctx, u, payload, map[string]string{
		"Content-Type": "application/json",
		"Accept":       "audio/mpeg",
		"xi-api-key":   p.apiKey,
	})
	if err != nil {
		return model.AudioHandle{}, classify(err)
	}

	if len(body) < tts.MinAudioSize {
		return model.AudioHandle{}, tts.NewFatalError(0, fmt.Sprintf("synthesis returned %d bytes, likely failed", len(body)))
	}

	slog.Debug("ElevenLabs: Synthesized", "chars", len(text), "bytes", len(body), "duration", time.Since(started))

	return model.AudioHandle{
		URL:    "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(body),
		Format: "mp3",
		Data:   body,
		Voice:  voice,
	}, nil
}

// classify maps transport errors to fatal errors so the engine falls back
// to local synthesis instead of retrying forever.
func classify(err error) error {
	var se *request.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case 401, 403, 422:
			return tts.NewFatalError(se.Code, se.Error())
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// Retries exhausted or network down: let the caller fall back
	return tts.NewFatalError(0, err.Error())
}

// Voices fetches the account's voice list.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	body, err := p.client.GetWithHeaders(ctx, p.baseURL+"/v1/voices", map[string]string{
		"xi-api-key": p.apiKey,
	})
	if err != nil {
		return nil, err
	}

	var resp voicesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse voices: %w", err)
	}

	voices := make([]tts.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voice := tts.Voice{ID: v.VoiceID, Name: v.Name}
		for k, lv := range v.Labels {
			if k == "language" || k == "locale" {
				voice.Locale = lv
				continue
			}
			voice.Labels = append(voice.Labels, lv)
		}
		voices = append(voices, voice)
	}
	return voices, nil
}
