// Package gemini implements llm.Generator on Google Gemini.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"whatify/pkg/config"
	"whatify/pkg/llm"
	"whatify/pkg/model"
	"whatify/pkg/tracker"
)

// Client implements llm.Generator for Google Gemini.
type Client struct {
	mu          sync.RWMutex
	genaiClient *genai.Client
	modelName   string
	tracker     *tracker.Tracker
}

// NewClient creates a Gemini client from config.
func NewClient(cfg config.LLMConfig, t *tracker.Tracker) (*Client, error) {
	c := &Client{tracker: t}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure updates the client with new settings.
func (c *Client) Configure(cfg config.LLMConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.modelName = cfg.Model
	if c.modelName == "" {
		c.modelName = "gemini-2.5-flash"
	}

	if cfg.Key == "" {
		c.genaiClient = nil
		return nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Key,
	})
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	c.genaiClient = client
	return nil
}

func (c *Client) client() (*genai.Client, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.genaiClient == nil {
		return nil, "", fmt.Errorf("gemini client not configured")
	}
	return c.genaiClient, c.modelName, nil
}

// Stream generates the scenario as line-delimited chunks, emitting each as
// soon as a complete line has streamed in.
func (c *Client) Stream(ctx context.Context, prompt string, emit func(model.StreamChunk) error) error {
	client, modelName, err := c.client()
	if err != nil {
		return err
	}

	started := time.Now()
	var buf strings.Builder
	var emitted int

	flushLines := func(final bool) error {
		text := buf.String()
		for {
			idx := strings.IndexByte(text, '\n')
			var line string
			if idx >= 0 {
				line, text = text[:idx], text[idx+1:]
			} else if final {
				line, text = text, ""
			} else {
				break
			}

			chunk, ok := parseChunkLine(line)
			if ok {
				if err := emit(chunk); err != nil {
					return err
				}
				emitted++
			}
			if final && text == "" {
				break
			}
		}
		buf.Reset()
		buf.WriteString(text)
		return nil
	}

	for resp, err := range client.Models.GenerateContentStream(ctx, modelName, genai.Text(llm.StreamPrompt(prompt)), nil) {
		if err != nil {
			if c.tracker != nil {
				c.tracker.TrackAPIFailure("gemini")
			}
			return fmt.Errorf("stream error: %w", err)
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					buf.WriteString(part.Text)
				}
			}
		}
		if err := flushLines(false); err != nil {
			return err
		}
	}
	if err := flushLines(true); err != nil {
		return err
	}

	if c.tracker != nil {
		c.tracker.TrackAPISuccess("gemini")
	}
	slog.Debug("Gemini: Stream finished", "chunks", emitted, "duration", time.Since(started))
	return nil
}

// parseChunkLine decodes one streamed line. Unparsable lines (markdown
// fences, partial garbage) are skipped rather than failing the stream.
func parseChunkLine(line string) (model.StreamChunk, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "```") {
		return model.StreamChunk{}, false
	}

	var chunk model.StreamChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		slog.Debug("Gemini: Dropping unparsable stream line", "line", truncate(line, 120), "error", err)
		return model.StreamChunk{}, false
	}
	if chunk.Type == "" {
		return model.StreamChunk{}, false
	}
	return chunk, true
}

// Generate returns the whole scenario in one response.
func (c *Client) Generate(ctx context.Context, prompt string) (*model.Scenario, error) {
	client, modelName, err := c.client()
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	resp, err := client.Models.GenerateContent(ctx, modelName, genai.Text(llm.ScenarioPrompt(prompt)), cfg)
	if err != nil {
		if c.tracker != nil {
			c.tracker.TrackAPIFailure("gemini")
		}
		return nil, fmt.Errorf("generate error: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		if c.tracker != nil {
			c.tracker.TrackAPIFailure("gemini")
		}
		return nil, err
	}

	var scenario model.Scenario
	if err := json.Unmarshal([]byte(cleanJSONBlock(text)), &scenario); err != nil {
		if c.tracker != nil {
			c.tracker.TrackAPIFailure("gemini")
		}
		return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
	}
	scenario.Prompt = prompt

	if c.tracker != nil {
		c.tracker.TrackAPISuccess("gemini")
	}
	return &scenario, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
