package handlers

import (
	"net/http"

	"github.com/ETAnderson/celltrack/internal/tracking"
)

// Register mounts every API route on mux.
func Register(mux *http.ServeMux, svc *tracking.Service) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	sites := SitesHandler{Service: svc}
	mux.Handle("GET /api/sites", sites)
	mux.Handle("POST /api/sites", sites)
	mux.Handle("DELETE /api/sites/{site}", sites)

	cells := SiteCellsHandler{Service: svc}
	mux.Handle("GET /api/sites/{site}/cells", cells)
	mux.Handle("POST /api/sites/{site}/cells", cells)
	mux.Handle("DELETE /api/sites/{site}/cells/{cellType}/{cell}", cells)

	cellTypes := CellTypesHandler{Service: svc}
	mux.Handle("GET /api/cell-types", cellTypes)
	mux.Handle("POST /api/cell-types", cellTypes)
	mux.Handle("DELETE /api/cell-types/{name}", cellTypes)

	testCases := TestCasesHandler{Service: svc}
	mux.Handle("GET /api/test-cases", testCases)
	mux.Handle("POST /api/test-cases", testCases)
	mux.Handle("DELETE /api/test-cases/{testId}", testCases)
	mux.Handle("GET /api/test-cases/by-site", BySiteHandler{Service: svc})

	mux.Handle("PATCH /api/test-status/{uniqueTestId}", TestStatusHandler{Service: svc})
	mux.Handle("PUT /api/test-status/{uniqueTestId}/note", TestNoteHandler{Service: svc})

	mux.Handle("GET /api/summary", SummaryHandler{Service: svc})
}
