package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"whatify/pkg/store"
)

// ScenariosHandler serves the scenario archive.
type ScenariosHandler struct {
	store store.ScenarioStore
}

// NewScenariosHandler creates a new ScenariosHandler.
func NewScenariosHandler(st store.ScenarioStore) *ScenariosHandler {
	return &ScenariosHandler{store: st}
}

// HandleRecent handles GET /api/scenarios/recent?limit=N
func (h *ScenariosHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	scenarios, err := h.store.RecentScenarios(r.Context(), limit)
	if err != nil {
		slog.Error("Scenarios: Query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load scenarios")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"scenarios": scenarios,
		"count":     len(scenarios),
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
