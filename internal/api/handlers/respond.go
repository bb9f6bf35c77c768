package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ETAnderson/celltrack/internal/state"
	"github.com/ETAnderson/celltrack/internal/tracking"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps service errors onto the {"error","message"} body.
func writeError(w http.ResponseWriter, code string, err error) {
	var verr *tracking.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "validation_failed",
			"message": err.Error(),
			"issues":  verr.Issues,
		})
	case errors.Is(err, state.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":   "not_found",
			"message": err.Error(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   code,
			"message": err.Error(),
		})
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "read_failed", "message": err.Error()})
		return nil, false
	}
	return body, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_json", "message": err.Error()})
		return false
	}
	return true
}

func requireQuery(w http.ResponseWriter, r *http.Request, names ...string) (map[string]string, bool) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		v := r.URL.Query().Get(n)
		if v == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "missing_parameter",
				"message": fmt.Sprintf("query parameter %q is required", n),
			})
			return nil, false
		}
		out[n] = v
	}
	return out, true
}
