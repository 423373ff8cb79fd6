// Package localsynth is the offline fallback synthesizer. It never touches
// the network; playback of its handles is paced by the estimated duration.
package localsynth

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"whatify/pkg/model"
	"whatify/pkg/tts"
)

// wordsPerMinute approximates a deliberate narrator's pace.
const wordsPerMinute = 150

// Provider implements tts.Provider with deterministic local synthesis.
type Provider struct {
	locale string
	voices []tts.Voice
}

// NewProvider creates a local synthesizer preferring voices for the locale.
func NewProvider(locale string) *Provider {
	return &Provider{
		locale: locale,
		voices: []tts.Voice{
			{ID: "local-en-us-m1", Name: "Atlas", Locale: "en-US", Labels: []string{"male", "deep"}},
			{ID: "local-en-us-f1", Name: "Iris", Locale: "en-US", Labels: []string{"female"}},
			{ID: "local-en-gb-m1", Name: "Brook", Locale: "en-GB", Labels: []string{"male"}},
			{ID: "local-de-de-f1", Name: "Greta", Locale: "de-DE", Labels: []string{"female"}},
		},
	}
}

// Name identifies the provider.
func (p *Provider) Name() string { return "localsynth" }

// Synthesize returns a synthetic handle. There is no audio payload; the
// handle's duration tells the player how long the utterance takes.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (model.AudioHandle, error) {
	if err := ctx.Err(); err != nil {
		return model.AudioHandle{}, err
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) == 0 {
		return model.AudioHandle{}, fmt.Errorf("empty text")
	}

	selected := p.pickVoice(voice)

	return model.AudioHandle{
		URL:      "synth:" + selected.ID,
		Format:   "synth",
		Synth:    true,
		Voice:    selected.ID,
		Duration: estimateDuration(text),
	}, nil
}

// pickVoice resolves the requested voice, falling back by preference:
// exact ID, then any male-labeled voice, then any voice in the locale,
// then the first voice.
func (p *Provider) pickVoice(requested string) tts.Voice {
	for _, v := range p.voices {
		if v.ID == requested {
			return v
		}
	}

	for _, v := range p.voices {
		if v.HasLabel("male") {
			return v
		}
	}
	for _, v := range p.voices {
		if strings.EqualFold(v.Locale, p.locale) {
			return v
		}
	}
	return p.voices[0]
}

func estimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	d := time.Duration(words) * time.Minute / wordsPerMinute
	if d < 300*time.Millisecond {
		d = 300 * time.Millisecond
	}
	return d
}

// Voices returns the built-in voice inventory.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return p.voices, nil
}
