package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ETAnderson/celltrack/internal/api/actorctx"
	"github.com/ETAnderson/celltrack/internal/domain"
	"github.com/ETAnderson/celltrack/internal/state"
	"github.com/ETAnderson/celltrack/internal/tracking"
)

type testServer struct {
	mux   *http.ServeMux
	store *state.MemoryStore
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	store := state.NewMemoryStore()
	mux := http.NewServeMux()
	Register(mux, tracking.NewService(store, nil))

	ts := testServer{mux: mux, store: store}
	ts.mustDo(t, http.MethodPost, "/api/sites", `{"name":"Reno","phases":["EVT"]}`, http.StatusCreated)
	ts.mustDo(t, http.MethodPost, "/api/cell-types", `{"name":"Robot"}`, http.StatusCreated)
	ts.mustDo(t, http.MethodPost, "/api/sites/Reno/cells", `{"cellType":"Robot","cell":"R1"}`, http.StatusCreated)
	ts.mustDo(t, http.MethodPost, "/api/test-cases", `{"testId":"T-1","cellType":"Robot","scope":"Safety","cells":"All"}`, http.StatusCreated)
	ts.mustDo(t, http.MethodPost, "/api/test-cases", `{"testId":"VT-1","cellType":"Robot","scope":"Throughput","cells":"System"}`, http.StatusCreated)
	return ts
}

func (ts testServer) do(method string, path string, body string) *httptest.ResponseRecorder {
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	req = req.WithContext(actorctx.WithActor(req.Context(), "jo"))
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func (ts testServer) mustDo(t *testing.T, method string, path string, body string, want int) *httptest.ResponseRecorder {
	t.Helper()
	rec := ts.do(method, path, body)
	if rec.Code != want {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, want, rec.Code, rec.Body.String())
	}
	return rec
}

func (ts testServer) records(t *testing.T) []domain.TestCaseRecord {
	t.Helper()
	rec := ts.mustDo(t, http.MethodGet, "/api/test-cases/by-site?site=Reno&phase=EVT", "", http.StatusOK)

	var resp struct {
		Items []domain.TestCaseRecord `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return resp.Items
}

func TestBySite_ReturnsExpandedRecords(t *testing.T) {
	ts := newTestServer(t)

	items := ts.records(t)
	if len(items) != 2 {
		t.Fatalf("expected 2 records, got %d", len(items))
	}
	if items[0].TestID != "T-1" || items[0].Cell != "R1" {
		t.Fatalf("unexpected first record: %+v", items[0])
	}
	if items[1].Kind != domain.KindVolume || items[1].Cell != domain.SystemCell {
		t.Fatalf("unexpected system record: %+v", items[1])
	}
}

func TestBySite_RequiresParams(t *testing.T) {
	ts := newTestServer(t)
	ts.mustDo(t, http.MethodGet, "/api/test-cases/by-site?site=Reno", "", http.StatusBadRequest)
	ts.mustDo(t, http.MethodGet, "/api/test-cases/by-site?site=Nowhere&phase=EVT", "", http.StatusNotFound)
}

func TestPatchStatus_BareStringAndObject(t *testing.T) {
	ts := newTestServer(t)
	items := ts.records(t)
	id := items[1].UniqueTestID

	rec := ts.mustDo(t, http.MethodPatch, "/api/test-status/"+id, `"pass"`, http.StatusOK)
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || !resp.Success {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}

	ts.mustDo(t, http.MethodPatch, "/api/test-status/"+id, `{"volume":"120","date":"2026-05-01"}`, http.StatusOK)

	row, ok, _ := ts.store.GetStatus(t.Context(), id)
	if !ok {
		t.Fatalf("status row missing")
	}
	if row.Status != domain.StatusPass || row.Volume != "120" || row.Date != "2026-05-01" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.UpdatedBy != "jo" {
		t.Fatalf("expected edit attributed to jo, got %q", row.UpdatedBy)
	}
}

func TestPatchStatus_Failures(t *testing.T) {
	ts := newTestServer(t)
	id := ts.records(t)[0].UniqueTestID

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad status", "/api/test-status/" + id, `"DONE"`, http.StatusUnprocessableEntity},
		{"aux on regular", "/api/test-status/" + id, `{"volume":"1"}`, http.StatusUnprocessableEntity},
		{"not json", "/api/test-status/" + id, `PASS`, http.StatusBadRequest},
		{"non-string field", "/api/test-status/" + id, `{"status":1}`, http.StatusBadRequest},
		{"unknown id", "/api/test-status/nope", `"PASS"`, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.mustDo(t, http.MethodPatch, tc.path, tc.body, tc.want)

			var resp StatusResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if resp.Success || resp.Message == "" {
				t.Fatalf("expected failure with message, got %+v", resp)
			}
		})
	}
}

func TestPutNote(t *testing.T) {
	ts := newTestServer(t)
	id := ts.records(t)[0].UniqueTestID

	ts.mustDo(t, http.MethodPut, "/api/test-status/"+id+"/note", `{"note":"fixture loose"}`, http.StatusOK)
	ts.mustDo(t, http.MethodPut, "/api/test-status/"+id+"/note", `{}`, http.StatusBadRequest)

	row, _, _ := ts.store.GetStatus(t.Context(), id)
	if row.Note != "fixture loose" {
		t.Fatalf("unexpected note %q", row.Note)
	}
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t)
	id := ts.records(t)[0].UniqueTestID
	ts.mustDo(t, http.MethodPatch, "/api/test-status/"+id, `"FAIL"`, http.StatusOK)

	rec := ts.mustDo(t, http.MethodGet, "/api/summary?site=Reno&phase=EVT", "", http.StatusOK)

	var resp struct {
		Groups []struct {
			CellType string `json:"cellType"`
			Failed   int    `json:"failedCount"`
			NotRun   int    `json:"notRunCount"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Groups) != 1 || resp.Groups[0].Failed != 1 || resp.Groups[0].NotRun != 1 {
		t.Fatalf("unexpected summary: %s", rec.Body.String())
	}
}

func TestCatalogRoutes(t *testing.T) {
	ts := newTestServer(t)

	ts.mustDo(t, http.MethodPost, "/api/test-cases", `{"testId":"X-1","cellType":"Lathe"}`, http.StatusUnprocessableEntity)
	ts.mustDo(t, http.MethodPost, "/api/sites", `{`, http.StatusBadRequest)

	rec := ts.mustDo(t, http.MethodGet, "/api/sites/Reno/cells", "", http.StatusOK)
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"cell":"R1"`)) {
		t.Fatalf("expected R1 in cells: %s", rec.Body.String())
	}

	ts.mustDo(t, http.MethodDelete, "/api/sites/Reno/cells/Robot/R1", "", http.StatusNoContent)
	ts.mustDo(t, http.MethodDelete, "/api/sites/Reno/cells/Robot/R1", "", http.StatusNotFound)
	ts.mustDo(t, http.MethodDelete, "/api/test-cases/VT-1", "", http.StatusNoContent)
	ts.mustDo(t, http.MethodDelete, "/api/cell-types/Robot", "", http.StatusNoContent)
	ts.mustDo(t, http.MethodDelete, "/api/sites/Reno", "", http.StatusNoContent)
	ts.mustDo(t, http.MethodGet, "/api/sites/Nowhere/cells", "", http.StatusNotFound)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.mustDo(t, http.MethodGet, "/healthz", "", http.StatusOK)
	if rec.Body.String() != "ok\n" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestParseStatusBody(t *testing.T) {
	upd, err := ParseStatusBody([]byte(` "BLOCKED" `))
	if err != nil || upd[domain.FieldStatus] != "BLOCKED" || len(upd) != 1 {
		t.Fatalf("unexpected: %v %v", upd, err)
	}

	upd, err = ParseStatusBody([]byte(`{"status":"PASS","note":"ok"}`))
	if err != nil || upd[domain.FieldNote] != "ok" || len(upd) != 2 {
		t.Fatalf("unexpected: %v %v", upd, err)
	}

	if _, err := ParseStatusBody(nil); err == nil {
		t.Fatalf("expected error for empty body")
	}
}
