// Package history consumes a remote scenario generation endpoint. The
// stream route may frame chunks as SSE ("data: <json>", terminated by
// [DONE]) or as line-delimited JSON; both are tolerated.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"whatify/pkg/model"
	"whatify/pkg/request"
)

// Client implements llm.Generator over HTTP.
type Client struct {
	baseURL string
	// Streaming reads the response incrementally, so it bypasses the queued
	// request client, which buffers whole bodies.
	httpClient *http.Client
	rc         *request.Client
}

// NewClient creates a client for the generation server at baseURL.
func NewClient(baseURL string, rc *request.Client, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		rc:         rc,
	}
}

// Stream opens the streaming generation route and emits chunks as they
// arrive.
func (c *Client) Stream(ctx context.Context, prompt string, emit func(model.StreamChunk) error) error {
	u := fmt.Sprintf("%s/api/rewrite-history-stream?prompt=%s", c.baseURL, url.QueryEscape(prompt))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream, application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream request failed: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, terminal, ok := ParseStreamLine(scanner.Text())
		if terminal {
			return nil
		}
		if !ok {
			continue
		}

		var chunk model.StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Debug("History: Dropping unparsable stream line", "error", err)
			continue
		}
		if chunk.Type == "" {
			continue
		}
		if err := emit(chunk); err != nil {
			return err
		}
		if chunk.Type == model.ChunkDone {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

// ParseStreamLine normalizes one line of either framing. It returns the
// JSON payload, whether the line is the SSE terminator, and whether a
// payload is present.
func ParseStreamLine(line string) (payload string, terminal, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false, false
	}

	if rest, found := strings.CutPrefix(line, "data:"); found {
		line = strings.TrimSpace(rest)
	}
	if line == "[DONE]" {
		return "", true, false
	}
	if !strings.HasPrefix(line, "{") {
		// SSE field lines like "event:" or "id:" carry no chunk
		return "", false, false
	}
	return line, false, true
}

// Generate calls the non-streaming fallback route.
func (c *Client) Generate(ctx context.Context, prompt string) (*model.Scenario, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}

	respBody, err := c.rc.Post(ctx, c.baseURL+"/api/rewrite-history", body, "application/json")
	if err != nil {
		return nil, fmt.Errorf("fallback request failed: %w", err)
	}

	var scenario model.Scenario
	if err := json.Unmarshal(respBody, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	scenario.Prompt = prompt
	return &scenario, nil
}
