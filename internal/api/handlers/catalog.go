package handlers

import (
	"net/http"

	"github.com/ETAnderson/celltrack/internal/domain"
	"github.com/ETAnderson/celltrack/internal/tracking"
)

// SitesHandler serves /api/sites and /api/sites/{site}.
type SitesHandler struct {
	Service *tracking.Service
}

func (h SitesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := h.Service.ListSites(r.Context())
		if err != nil {
			writeError(w, "list_sites_failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case http.MethodPost:
		var site domain.Site
		if !decodeBody(w, r, &site) {
			return
		}
		if err := h.Service.PutSite(r.Context(), site); err != nil {
			writeError(w, "put_site_failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, site)

	case http.MethodDelete:
		if err := h.Service.DeleteSite(r.Context(), r.PathValue("site")); err != nil {
			writeError(w, "delete_site_failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SiteCellsHandler serves /api/sites/{site}/cells[/{cellType}/{cell}].
type SiteCellsHandler struct {
	Service *tracking.Service
}

func (h SiteCellsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	site := r.PathValue("site")

	switch r.Method {
	case http.MethodGet:
		items, err := h.Service.ListSiteCells(r.Context(), site)
		if err != nil {
			writeError(w, "list_cells_failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case http.MethodPost:
		var sc domain.SiteCell
		if !decodeBody(w, r, &sc) {
			return
		}
		sc.Site = site
		if err := h.Service.AddSiteCell(r.Context(), sc); err != nil {
			writeError(w, "add_cell_failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, sc)

	case http.MethodDelete:
		sc := domain.SiteCell{Site: site, CellType: r.PathValue("cellType"), Cell: r.PathValue("cell")}
		if err := h.Service.DeleteSiteCell(r.Context(), sc); err != nil {
			writeError(w, "delete_cell_failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type CellTypesHandler struct {
	Service *tracking.Service
}

func (h CellTypesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := h.Service.ListCellTypes(r.Context())
		if err != nil {
			writeError(w, "list_cell_types_failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case http.MethodPost:
		var ct domain.CellType
		if !decodeBody(w, r, &ct) {
			return
		}
		if err := h.Service.PutCellType(r.Context(), ct); err != nil {
			writeError(w, "put_cell_type_failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, ct)

	case http.MethodDelete:
		if err := h.Service.DeleteCellType(r.Context(), r.PathValue("name")); err != nil {
			writeError(w, "delete_cell_type_failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type TestCasesHandler struct {
	Service *tracking.Service
}

func (h TestCasesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := h.Service.ListTestCases(r.Context())
		if err != nil {
			writeError(w, "list_test_cases_failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case http.MethodPost:
		var tc domain.TestCase
		if !decodeBody(w, r, &tc) {
			return
		}
		if err := h.Service.PutTestCase(r.Context(), tc); err != nil {
			writeError(w, "put_test_case_failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, tc)

	case http.MethodDelete:
		if err := h.Service.DeleteTestCase(r.Context(), r.PathValue("testId")); err != nil {
			writeError(w, "delete_test_case_failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
