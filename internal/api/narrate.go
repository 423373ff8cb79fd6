package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"whatify/pkg/tts"
)

const (
	narrateMinLength = 10
	narrateMaxLength = 5000

	// Per-IP request budget for the narrate endpoint.
	narrateRateLimit  = 5
	narrateRateWindow = time.Minute
)

// NarrateHandler synthesizes standalone narration clips on demand.
type NarrateHandler struct {
	provider tts.Provider
	voice    string

	mu      sync.Mutex
	history map[string][]time.Time
}

// NewNarrateHandler creates a new NarrateHandler.
func NewNarrateHandler(provider tts.Provider, voice string) *NarrateHandler {
	return &NarrateHandler{
		provider: provider,
		voice:    voice,
		history:  make(map[string][]time.Time),
	}
}

// NarrateRequest is the body of POST /api/narrate.
type NarrateRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// NarrateResponse carries the playable clip.
type NarrateResponse struct {
	AudioURL string `json:"audioUrl"`
	Format   string `json:"format,omitempty"`
}

// HandleNarrate handles POST /api/narrate.
func (h *NarrateHandler) HandleNarrate(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.allow(ip) {
		slog.Warn("Narrate: Rate limit exceeded", "ip", ip)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		return
	}

	var req NarrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if len(text) < narrateMinLength {
		writeError(w, http.StatusBadRequest, "text must be at least 10 characters")
		return
	}
	if len(text) > narrateMaxLength {
		writeError(w, http.StatusBadRequest, "text must be at most 5000 characters")
		return
	}

	voice := req.Voice
	if voice == "" {
		voice = h.voice
	}

	handle, err := h.provider.Synthesize(r.Context(), text, voice)
	if err != nil {
		slog.Error("Narrate: Synthesis failed", "error", err, "provider", h.provider.Name())
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(NarrateResponse{
		AudioURL: handle.URL,
		Format:   handle.Format,
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// allow records one request for the IP and reports whether it fits the
// sliding window.
func (h *NarrateHandler) allow(ip string) bool {
	now := time.Now()
	cutoff := now.Add(-narrateRateWindow)

	h.mu.Lock()
	defer h.mu.Unlock()

	recent := h.history[ip][:0]
	for _, t := range h.history[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= narrateRateLimit {
		h.history[ip] = recent
		return false
	}
	h.history[ip] = append(recent, now)
	return true
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
