package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"whatify/pkg/genbus"
	"whatify/pkg/model"
)

// PlaybackService is the playback surface the API drives.
type PlaybackService interface {
	Play()
	Pause()
	Next()
	Prev()
	Restart()
	ToggleMute()
	Snapshot() model.PlaybackSnapshot
}

// GenerationService starts and tears down generations.
type GenerationService interface {
	Start(prompt string) error
	Reset()
}

// PlaybackHandler handles playback intents and generation requests.
type PlaybackHandler struct {
	machine PlaybackService
	bus     GenerationService
}

// NewPlaybackHandler creates a new PlaybackHandler.
func NewPlaybackHandler(machine PlaybackService, bus GenerationService) *PlaybackHandler {
	return &PlaybackHandler{machine: machine, bus: bus}
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// HandleIntent handles POST /api/playback/{intent}.
func (h *PlaybackHandler) HandleIntent(w http.ResponseWriter, r *http.Request) {
	intent := r.PathValue("intent")

	switch intent {
	case "play":
		h.machine.Play()
	case "pause":
		h.machine.Pause()
	case "next":
		h.machine.Next()
	case "prev":
		h.machine.Prev()
	case "restart":
		h.machine.Restart()
	case "toggle-mute":
		h.machine.ToggleMute()
	default:
		http.Error(w, "unknown intent", http.StatusBadRequest)
		return
	}

	slog.Debug("Playback: Intent applied", "intent", intent)
	h.writeSnapshot(w)
}

// HandleStatus handles GET /api/playback/status.
func (h *PlaybackHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeSnapshot(w)
}

// HandleGenerate handles POST /api/generate. It kicks off a generation and
// returns immediately; progress is observable on the event stream.
func (h *PlaybackHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.bus.Start(req.Prompt); err != nil {
		if errors.Is(err, genbus.ErrEmptyPrompt) {
			http.Error(w, "prompt is required", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "generating"}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// HandleReset handles POST /api/reset: stop narration and return to the
// empty state.
func (h *PlaybackHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.bus.Reset()
	h.writeSnapshot(w)
}

func (h *PlaybackHandler) writeSnapshot(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.machine.Snapshot()); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
