package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ETAnderson/celltrack/internal/api/actorctx"
	"github.com/ETAnderson/celltrack/internal/domain"
	"github.com/ETAnderson/celltrack/internal/state"
	"github.com/ETAnderson/celltrack/internal/tracking"
)

// BySiteHandler serves GET /api/test-cases/by-site?site=&phase=.
type BySiteHandler struct {
	Service *tracking.Service
}

func (h BySiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q, ok := requireQuery(w, r, "site", "phase")
	if !ok {
		return
	}

	recs, err := h.Service.RecordsBySite(r.Context(), q["site"], q["phase"])
	if err != nil {
		writeError(w, "records_by_site_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": recs})
}

// StatusResponse is the body of every status write.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// TestStatusHandler serves PATCH /api/test-status/{uniqueTestId}. The body
// is a bare JSON string (the new status) or an object of fields.
type TestStatusHandler struct {
	Service *tracking.Service
}

func (h TestStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	upd, err := ParseStatusBody(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Message: err.Error()})
		return
	}

	_, err = h.Service.UpdateStatus(r.Context(), r.PathValue("uniqueTestId"), upd, actorctx.Actor(r.Context()))
	writeStatusResult(w, err)
}

// TestNoteHandler serves PUT /api/test-status/{uniqueTestId}/note with
// body {"note": "..."}.
type TestNoteHandler struct {
	Service *tracking.Service
}

func (h TestNoteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note *string `json:"note"`
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Note == nil {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Message: `body must be {"note": "..."}`})
		return
	}

	_, err := h.Service.UpdateNote(r.Context(), r.PathValue("uniqueTestId"), *req.Note, actorctx.Actor(r.Context()))
	writeStatusResult(w, err)
}

// ParseStatusBody accepts `"PASS"` or `{"status":"PASS","note":"..."}`.
func ParseStatusBody(body []byte) (domain.FieldUpdate, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}

	if body[0] == '"' {
		var status string
		if err := json.Unmarshal(body, &status); err != nil {
			return nil, err
		}
		return domain.FieldUpdate{domain.FieldStatus: status}, nil
	}

	var fields map[string]string
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, errors.New("body must be a status string or an object of string fields")
	}

	upd := make(domain.FieldUpdate, len(fields))
	for k, v := range fields {
		upd[domain.Field(k)] = v
	}
	return upd, nil
}

func writeStatusResult(w http.ResponseWriter, err error) {
	var verr *tracking.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, StatusResponse{Success: true})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, StatusResponse{Message: err.Error()})
	case errors.Is(err, state.ErrNotFound):
		writeJSON(w, http.StatusNotFound, StatusResponse{Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, StatusResponse{Message: err.Error()})
	}
}
