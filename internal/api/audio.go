package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"whatify/pkg/audio"
)

// AudioHandler handles audio control endpoints.
type AudioHandler struct {
	audio audio.Service
}

// NewAudioHandler creates a new AudioHandler.
func NewAudioHandler(audioMgr audio.Service) *AudioHandler {
	return &AudioHandler{audio: audioMgr}
}

// AudioVolumeRequest represents a volume change request.
type AudioVolumeRequest struct {
	Volume float64 `json:"volume"`
}

// AudioStatusResponse represents the audio status.
type AudioStatusResponse struct {
	IsPlaying bool    `json:"is_playing"`
	IsPaused  bool    `json:"is_paused"`
	Volume    float64 `json:"volume"`
}

// HandleVolume handles POST /api/audio/volume
func (h *AudioHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req AudioVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.audio.SetVolume(req.Volume)
	slog.Debug("Audio: Volume set", "volume", req.Volume)

	h.HandleStatus(w, r)
}

// HandleStatus handles GET /api/audio/status
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(AudioStatusResponse{
		IsPlaying: h.audio.IsPlaying(),
		IsPaused:  h.audio.IsPaused(),
		Volume:    h.audio.Volume(),
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
