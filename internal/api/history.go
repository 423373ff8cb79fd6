package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"whatify/pkg/llm"
	"whatify/pkg/model"
)

// noDeadline clears a connection deadline when passed to SetWriteDeadline.
var noDeadline time.Time

// HistoryHandler serves scenario generation directly over HTTP, without
// touching local playback. This is the same wire contract the remote
// generation client consumes, so Whatify instances can chain.
type HistoryHandler struct {
	gen llm.Generator
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(gen llm.Generator) *HistoryHandler {
	return &HistoryHandler{gen: gen}
}

// HandleStream handles GET /api/rewrite-history-stream?prompt=...
// Chunks are framed as SSE when the client asks for text/event-stream,
// otherwise as newline-delimited JSON.
func (h *HistoryHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	prompt := strings.TrimSpace(r.URL.Query().Get("prompt"))
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sse := strings.Contains(r.Header.Get("Accept"), "text/event-stream")
	if sse {
		w.Header().Set("Content-Type", "text/event-stream")
	} else {
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// A generation routinely outlives the server's write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(noDeadline); err != nil {
		slog.Debug("History: Cannot clear write deadline", "error", err)
	}

	slog.Info("History: Stream started", "prompt", prompt, "sse", sse)

	writeChunk := func(chunk model.StreamChunk) error {
		data, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if sse {
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return err
			}
		} else {
			if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
				return err
			}
		}
		flusher.Flush()
		return nil
	}

	err := h.gen.Stream(r.Context(), prompt, writeChunk)
	if err != nil && !isClientGone(r.Context(), err) {
		slog.Error("History: Stream failed", "error", err)
		// Best effort: the status line is already sent, so surface the
		// failure as an error chunk.
		_ = writeChunk(model.StreamChunk{Type: model.ChunkError, Message: err.Error()})
	}

	if sse {
		if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err == nil {
			flusher.Flush()
		}
	}
}

// HandleGenerate handles POST /api/rewrite-history, the non-streaming form.
func (h *HistoryHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	scenario, err := h.gen.Generate(r.Context(), prompt)
	if err != nil {
		slog.Error("History: Generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "generation failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(scenario); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func isClientGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil && err != nil
}
