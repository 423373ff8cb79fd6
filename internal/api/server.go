package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"whatify/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, playbackH *PlaybackHandler, narrateH *NarrateHandler, historyH *HistoryHandler, scenariosH *ScenariosHandler, stats *StatsHandler, audioH *AudioHandler, hub *Hub, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 3. Stats Endpoint
	mux.Handle("GET /api/stats", stats)

	// 4. Generation Endpoints
	mux.HandleFunc("POST /api/generate", playbackH.HandleGenerate)
	mux.HandleFunc("POST /api/reset", playbackH.HandleReset)
	mux.HandleFunc("GET /api/rewrite-history-stream", historyH.HandleStream)
	mux.HandleFunc("POST /api/rewrite-history", historyH.HandleGenerate)

	// 5. Playback Endpoints
	mux.HandleFunc("POST /api/playback/{intent}", playbackH.HandleIntent)
	mux.HandleFunc("GET /api/playback/status", playbackH.HandleStatus)

	// 6. Narration Endpoint
	mux.HandleFunc("POST /api/narrate", narrateH.HandleNarrate)

	// 7. Scenario Archive Endpoint
	mux.HandleFunc("GET /api/scenarios/recent", scenariosH.HandleRecent)

	// 8. Audio Endpoints
	if audioH != nil {
		mux.HandleFunc("POST /api/audio/volume", audioH.HandleVolume)
		mux.HandleFunc("GET /api/audio/status", audioH.HandleStatus)
	}

	// 9. Map Event Stream
	if hub != nil {
		mux.HandleFunc("GET /api/events", hub.HandleEvents)
	}

	// 10. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
