package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ETAnderson/celltrack/internal/domain"
)

// storeFactories returns one fresh store per backend that runs without
// external services.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			res, err := NewStore(context.Background(), FactoryConfig{
				Backend:    "sqlite",
				SQLitePath: filepath.Join(t.TempDir(), "track.db"),
			})
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { _ = res.Store.Close() })
			return res.Store
		},
		"workbook": func(t *testing.T) Store {
			res, err := NewStore(context.Background(), FactoryConfig{
				Backend:      "workbook",
				WorkbookPath: filepath.Join(t.TempDir(), "track.xlsx"),
			})
			if err != nil {
				t.Fatalf("open workbook: %v", err)
			}
			return res.Store
		},
	}
}

func TestStore_Sites(t *testing.T) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			for _, site := range []domain.Site{
				{Name: "Reno", Location: "NV", Phases: []string{"EVT", "DVT"}},
				{Name: "Austin", Location: "TX"},
			} {
				if err := s.UpsertSite(ctx, site); err != nil {
					t.Fatalf("upsert: %v", err)
				}
			}
			if err := s.UpsertSite(ctx, domain.Site{Name: "Austin", Location: "Texas"}); err != nil {
				t.Fatalf("upsert(2): %v", err)
			}

			got, err := s.ListSites(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			want := []domain.Site{
				{Name: "Austin", Location: "Texas"},
				{Name: "Reno", Location: "NV", Phases: []string{"EVT", "DVT"}},
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("sites mismatch (-want +got):\n%s", diff)
			}

			site, ok, err := s.GetSite(ctx, "Reno")
			if err != nil || !ok || site.Location != "NV" {
				t.Fatalf("get: ok=%v err=%v site=%+v", ok, err, site)
			}
			if _, ok, _ := s.GetSite(ctx, "Nowhere"); ok {
				t.Fatalf("expected missing site")
			}

			if err := s.DeleteSite(ctx, "Reno"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := s.DeleteSite(ctx, "Reno"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_CatalogAndCells(t *testing.T) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			if err := s.UpsertCellType(ctx, domain.CellType{Name: "Robot", Description: "arm"}); err != nil {
				t.Fatalf("cell type: %v", err)
			}
			if err := s.UpsertTestCase(ctx, domain.TestCase{
				TestID: "T-1", CellType: "Robot", Scope: "Safety", Cells: domain.CellsAll,
			}); err != nil {
				t.Fatalf("test case: %v", err)
			}

			if err := s.UpsertSite(ctx, domain.Site{Name: "Reno"}); err != nil {
				t.Fatalf("site: %v", err)
			}
			for _, c := range []string{"R2", "R1"} {
				if err := s.AddSiteCell(ctx, domain.SiteCell{Site: "Reno", CellType: "Robot", Cell: c}); err != nil {
					t.Fatalf("add cell: %v", err)
				}
			}
			// duplicates are ignored
			if err := s.AddSiteCell(ctx, domain.SiteCell{Site: "Reno", CellType: "Robot", Cell: "R1"}); err != nil {
				t.Fatalf("add dup cell: %v", err)
			}

			cells, err := s.ListSiteCells(ctx, "Reno")
			if err != nil {
				t.Fatalf("list cells: %v", err)
			}
			want := []domain.SiteCell{
				{Site: "Reno", CellType: "Robot", Cell: "R1"},
				{Site: "Reno", CellType: "Robot", Cell: "R2"},
			}
			if diff := cmp.Diff(want, cells); diff != "" {
				t.Fatalf("cells mismatch (-want +got):\n%s", diff)
			}

			if err := s.DeleteSiteCell(ctx, want[0]); err != nil {
				t.Fatalf("delete cell: %v", err)
			}
			if err := s.DeleteSiteCell(ctx, want[0]); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			tc, ok, err := s.GetTestCase(ctx, "T-1")
			if err != nil || !ok || tc.Cells != domain.CellsAll || tc.Scope != "Safety" {
				t.Fatalf("get test case: ok=%v err=%v tc=%+v", ok, err, tc)
			}
			if err := s.DeleteTestCase(ctx, "T-1"); err != nil {
				t.Fatalf("delete test case: %v", err)
			}
			if err := s.DeleteCellType(ctx, "Nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_Statuses(t *testing.T) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			first := StatusRecord{
				UniqueTestID: "u-1", Site: "Reno", Phase: "EVT",
				CellType: "Robot", Cell: "R1", TestID: "T-1", Status: domain.StatusNotRun,
			}
			other := first
			other.UniqueTestID, other.Phase = "u-2", "DVT"

			if err := s.InsertStatuses(ctx, []StatusRecord{first, other}); err != nil {
				t.Fatalf("insert: %v", err)
			}

			// Same slot under a different id loses to the existing row.
			dup := first
			dup.UniqueTestID = "u-dup"
			if err := s.InsertStatuses(ctx, []StatusRecord{dup}); err != nil {
				t.Fatalf("insert dup: %v", err)
			}

			rows, err := s.ListStatuses(ctx, "Reno", "EVT")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(rows) != 1 || rows[0].UniqueTestID != "u-1" {
				t.Fatalf("unexpected rows: %+v", rows)
			}

			upd := first
			upd.Status = domain.StatusPass
			upd.Note = "ok"
			upd.UpdatedBy = "jo"
			upd.UpdatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			if err := s.UpdateStatus(ctx, upd); err != nil {
				t.Fatalf("update: %v", err)
			}

			got, ok, err := s.GetStatus(ctx, "u-1")
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if diff := cmp.Diff(upd, got); diff != "" {
				t.Fatalf("status mismatch (-want +got):\n%s", diff)
			}

			missing := upd
			missing.UniqueTestID = "u-404"
			if err := s.UpdateStatus(ctx, missing); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestWorkbookStore_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.xlsx")
	ctx := context.Background()

	a, err := NewWorkbookStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := a.UpsertSite(ctx, domain.Site{Name: "Reno", Phases: []string{"EVT"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	b, err := NewWorkbookStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	site, ok, err := b.GetSite(ctx, "Reno")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(site.Phases) != 1 || site.Phases[0] != "EVT" {
		t.Fatalf("unexpected phases: %v", site.Phases)
	}
}

func TestWorkbookStore_SaveLeavesOnlyTheWorkbook(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	ctx := context.Background()

	for _, name := range []string{"track.xlsx", "track.data"} {
		path := filepath.Join(dir, name)

		s, err := NewWorkbookStore(path)
		if err != nil {
			t.Fatalf("%s: open: %v", name, err)
		}
		if err := s.UpsertCellType(ctx, domain.CellType{Name: "Robot"}); err != nil {
			t.Fatalf("%s: upsert: %v", name, err)
		}
		cts, err := s.ListCellTypes(ctx)
		if err != nil || len(cts) != 1 {
			t.Fatalf("%s: list: %v %v", name, cts, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if diff := cmp.Diff([]string{"track.data", "track.xlsx"}, names); diff != "" {
		t.Fatalf("unexpected files (-want +got):\n%s", diff)
	}
}

func TestNewStore_UnknownBackend(t *testing.T) {
	if _, err := NewStore(context.Background(), FactoryConfig{Backend: "redis"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestNewStore_MySQLRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), FactoryConfig{Backend: "mysql"}); err == nil {
		t.Fatalf("expected error without DSN")
	}
}

func TestMemoryIdempotencyCache_TTL(t *testing.T) {
	c := NewMemoryIdempotencyCache()
	ctx := context.Background()

	keyHash := HashIdempotencyKey("k1")
	now := time.Now().UTC()

	err := c.PutIdempotency(ctx, "jo", "/x", keyHash, IdempotencyRecord{
		StatusCode: 200,
		BodyJSON:   []byte(`{"success":true}`),
		CreatedAt:  now,
		ExpiresAt:  now.Add(-1 * time.Second),
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	_, ok, err := c.GetIdempotency(ctx, "jo", "/x", keyHash)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ok {
		t.Fatalf("expected expired record to be treated as missing")
	}
}

func TestMemoryIdempotencyCache_ScopedByActor(t *testing.T) {
	c := NewMemoryIdempotencyCache()
	ctx := context.Background()
	keyHash := HashIdempotencyKey("k1")

	_ = c.PutIdempotency(ctx, "jo", "/x", keyHash, IdempotencyRecord{
		StatusCode: 200,
		ExpiresAt:  time.Now().UTC().Add(time.Hour),
	})

	if _, ok, _ := c.GetIdempotency(ctx, "sam", "/x", keyHash); ok {
		t.Fatalf("expected other actor not to see the record")
	}
	if _, ok, _ := c.GetIdempotency(ctx, "jo", "/x", keyHash); !ok {
		t.Fatalf("expected record for the writing actor")
	}
}
