package handlers

import (
	"net/http"

	"github.com/ETAnderson/celltrack/internal/tracking"
)

// SummaryHandler serves GET /api/summary?site=&phase=.
type SummaryHandler struct {
	Service *tracking.Service
}

func (h SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q, ok := requireQuery(w, r, "site", "phase")
	if !ok {
		return
	}

	groups, err := h.Service.Summary(r.Context(), q["site"], q["phase"])
	if err != nil {
		writeError(w, "summary_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"site":   q["site"],
		"phase":  q["phase"],
		"groups": groups,
	})
}
