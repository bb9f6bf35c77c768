package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ETAnderson/celltrack/internal/domain"
)

const (
	sheetSites      = "Sites"
	sheetCellTypes  = "CellTypes"
	sheetSiteCells  = "SiteCells"
	sheetTestCases  = "TestCases"
	sheetTestStatus = "TestStatus"
)

var sheetHeaders = map[string][]string{
	sheetSites:     {"Name", "Location", "Phases"},
	sheetCellTypes: {"Name", "Description"},
	sheetSiteCells: {"Site", "CellType", "Cell"},
	sheetTestCases: {"TestID", "CellType", "Scope", "Cells", "Description"},
	sheetTestStatus: {
		"UniqueTestID", "Site", "Phase", "CellType", "Cell", "TestID",
		"Status", "Note", "Volume", "Date", "StartTime", "EndTime", "Availability",
		"UpdatedBy", "UpdatedAt",
	},
}

var sheetOrder = []string{sheetSites, sheetCellTypes, sheetSiteCells, sheetTestCases, sheetTestStatus}

// WorkbookStore persists everything in one .xlsx file. Every call reads
// the whole file; every mutation rewrites it (temp file + rename).
type WorkbookStore struct {
	path string
	mu   sync.Mutex
}

func NewWorkbookStore(path string) (*WorkbookStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("workbook path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create workbook dir: %w", err)
	}

	s := &WorkbookStore{path: path}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.save(NewMemoryStore()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *WorkbookStore) read(fn func(m *MemoryStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	return fn(m)
}

func (s *WorkbookStore) write(fn func(m *MemoryStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	return s.save(m)
}

func (s *WorkbookStore) ListSites(ctx context.Context) ([]domain.Site, error) {
	var out []domain.Site
	err := s.read(func(m *MemoryStore) (err error) {
		out, err = m.ListSites(ctx)
		return err
	})
	return out, err
}

func (s *WorkbookStore) GetSite(ctx context.Context, name string) (domain.Site, bool, error) {
	var site domain.Site
	var ok bool
	err := s.read(func(m *MemoryStore) (err error) {
		site, ok, err = m.GetSite(ctx, name)
		return err
	})
	return site, ok, err
}

func (s *WorkbookStore) UpsertSite(ctx context.Context, site domain.Site) error {
	return s.write(func(m *MemoryStore) error { return m.UpsertSite(ctx, site) })
}

func (s *WorkbookStore) DeleteSite(ctx context.Context, name string) error {
	return s.write(func(m *MemoryStore) error { return m.DeleteSite(ctx, name) })
}

func (s *WorkbookStore) ListCellTypes(ctx context.Context) ([]domain.CellType, error) {
	var out []domain.CellType
	err := s.read(func(m *MemoryStore) (err error) {
		out, err = m.ListCellTypes(ctx)
		return err
	})
	return out, err
}

func (s *WorkbookStore) UpsertCellType(ctx context.Context, ct domain.CellType) error {
	return s.write(func(m *MemoryStore) error { return m.UpsertCellType(ctx, ct) })
}

func (s *WorkbookStore) DeleteCellType(ctx context.Context, name string) error {
	return s.write(func(m *MemoryStore) error { return m.DeleteCellType(ctx, name) })
}

func (s *WorkbookStore) ListSiteCells(ctx context.Context, site string) ([]domain.SiteCell, error) {
	var out []domain.SiteCell
	err := s.read(func(m *MemoryStore) (err error) {
		out, err = m.ListSiteCells(ctx, site)
		return err
	})
	return out, err
}

func (s *WorkbookStore) AddSiteCell(ctx context.Context, sc domain.SiteCell) error {
	return s.write(func(m *MemoryStore) error { return m.AddSiteCell(ctx, sc) })
}

func (s *WorkbookStore) DeleteSiteCell(ctx context.Context, sc domain.SiteCell) error {
	return s.write(func(m *MemoryStore) error { return m.DeleteSiteCell(ctx, sc) })
}

func (s *WorkbookStore) ListTestCases(ctx context.Context) ([]domain.TestCase, error) {
	var out []domain.TestCase
	err := s.read(func(m *MemoryStore) (err error) {
		out, err = m.ListTestCases(ctx)
		return err
	})
	return out, err
}

func (s *WorkbookStore) GetTestCase(ctx context.Context, testID string) (domain.TestCase, bool, error) {
	var tc domain.TestCase
	var ok bool
	err := s.read(func(m *MemoryStore) (err error) {
		tc, ok, err = m.GetTestCase(ctx, testID)
		return err
	})
	return tc, ok, err
}

func (s *WorkbookStore) UpsertTestCase(ctx context.Context, tc domain.TestCase) error {
	return s.write(func(m *MemoryStore) error { return m.UpsertTestCase(ctx, tc) })
}

func (s *WorkbookStore) DeleteTestCase(ctx context.Context, testID string) error {
	return s.write(func(m *MemoryStore) error { return m.DeleteTestCase(ctx, testID) })
}

func (s *WorkbookStore) ListStatuses(ctx context.Context, site string, phase string) ([]StatusRecord, error) {
	var out []StatusRecord
	err := s.read(func(m *MemoryStore) (err error) {
		out, err = m.ListStatuses(ctx, site, phase)
		return err
	})
	return out, err
}

func (s *WorkbookStore) GetStatus(ctx context.Context, uniqueTestID string) (StatusRecord, bool, error) {
	var rec StatusRecord
	var ok bool
	err := s.read(func(m *MemoryStore) (err error) {
		rec, ok, err = m.GetStatus(ctx, uniqueTestID)
		return err
	})
	return rec, ok, err
}

func (s *WorkbookStore) InsertStatuses(ctx context.Context, recs []StatusRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.write(func(m *MemoryStore) error { return m.InsertStatuses(ctx, recs) })
}

func (s *WorkbookStore) UpdateStatus(ctx context.Context, rec StatusRecord) error {
	return s.write(func(m *MemoryStore) error { return m.UpdateStatus(ctx, rec) })
}

func (s *WorkbookStore) Close() error { return nil }

func (s *WorkbookStore) load() (*MemoryStore, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	present := f.GetSheetList()
	rowsOf := func(sheet string) ([][]string, error) {
		if !slices.Contains(present, sheet) {
			return nil, nil
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) > 0 {
			rows = rows[1:] // header
		}
		return rows, nil
	}

	m := NewMemoryStore()
	ctx := context.Background()

	rows, err := rowsOf(sheetSites)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if cell(r, 0) == "" {
			continue
		}
		_ = m.UpsertSite(ctx, domain.Site{Name: cell(r, 0), Location: cell(r, 1), Phases: splitPhases(cell(r, 2))})
	}

	if rows, err = rowsOf(sheetCellTypes); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if cell(r, 0) == "" {
			continue
		}
		_ = m.UpsertCellType(ctx, domain.CellType{Name: cell(r, 0), Description: cell(r, 1)})
	}

	if rows, err = rowsOf(sheetSiteCells); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if cell(r, 0) == "" {
			continue
		}
		_ = m.AddSiteCell(ctx, domain.SiteCell{Site: cell(r, 0), CellType: cell(r, 1), Cell: cell(r, 2)})
	}

	if rows, err = rowsOf(sheetTestCases); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if cell(r, 0) == "" {
			continue
		}
		_ = m.UpsertTestCase(ctx, domain.TestCase{
			TestID:      cell(r, 0),
			CellType:    cell(r, 1),
			Scope:       cell(r, 2),
			Cells:       domain.CellsMode(cell(r, 3)),
			Description: cell(r, 4),
		})
	}

	if rows, err = rowsOf(sheetTestStatus); err != nil {
		return nil, err
	}
	recs := make([]StatusRecord, 0, len(rows))
	for _, r := range rows {
		if cell(r, 0) == "" {
			continue
		}
		rec := StatusRecord{
			UniqueTestID: cell(r, 0),
			Site:         cell(r, 1),
			Phase:        cell(r, 2),
			CellType:     cell(r, 3),
			Cell:         cell(r, 4),
			TestID:       cell(r, 5),
			Status:       domain.Status(cell(r, 6)),
			Note:         cell(r, 7),
			Volume:       cell(r, 8),
			Date:         cell(r, 9),
			StartTime:    cell(r, 10),
			EndTime:      cell(r, 11),
			Availability: cell(r, 12),
			UpdatedBy:    cell(r, 13),
		}
		if ts := cell(r, 14); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				rec.UpdatedAt = t.UTC()
			}
		}
		recs = append(recs, rec)
	}
	_ = m.InsertStatuses(ctx, recs)

	return m, nil
}

func (s *WorkbookStore) save(m *MemoryStore) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, sheet := range sheetOrder {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
			continue
		}
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}

	for sheet, rows := range dumpRows(m) {
		all := append([][]any{toAny(sheetHeaders[sheet])}, rows...)
		for i, row := range all {
			addr, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, addr, &row); err != nil {
				return fmt.Errorf("write sheet %s: %w", sheet, err)
			}
		}
	}

	// WriteTo does not check the extension the way SaveAs does, so the temp
	// name is free.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".celltrack-*.xlsx")
	if err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// dumpRows renders the store as sheet -> data rows, in stable order.
func dumpRows(m *MemoryStore) map[string][][]any {
	ctx := context.Background()
	out := make(map[string][][]any, len(sheetOrder))

	sites, _ := m.ListSites(ctx)
	for _, site := range sites {
		out[sheetSites] = append(out[sheetSites], []any{site.Name, site.Location, joinPhases(site.Phases)})

		cells, _ := m.ListSiteCells(ctx, site.Name)
		for _, sc := range cells {
			out[sheetSiteCells] = append(out[sheetSiteCells], []any{sc.Site, sc.CellType, sc.Cell})
		}
	}

	cellTypes, _ := m.ListCellTypes(ctx)
	for _, ct := range cellTypes {
		out[sheetCellTypes] = append(out[sheetCellTypes], []any{ct.Name, ct.Description})
	}

	tcs, _ := m.ListTestCases(ctx)
	for _, tc := range tcs {
		out[sheetTestCases] = append(out[sheetTestCases], []any{tc.TestID, tc.CellType, tc.Scope, string(tc.Cells), tc.Description})
	}

	m.mu.RLock()
	recs := make([]StatusRecord, 0, len(m.statuses))
	for _, r := range m.statuses {
		recs = append(recs, r)
	}
	m.mu.RUnlock()
	SortStatuses(recs)

	for _, r := range recs {
		updated := ""
		if !r.UpdatedAt.IsZero() {
			updated = r.UpdatedAt.UTC().Format(time.RFC3339)
		}
		out[sheetTestStatus] = append(out[sheetTestStatus], []any{
			r.UniqueTestID, r.Site, r.Phase, r.CellType, r.Cell, r.TestID,
			string(r.Status), r.Note, r.Volume, r.Date, r.StartTime, r.EndTime, r.Availability,
			r.UpdatedBy, updated,
		})
	}

	for _, sheet := range sheetOrder {
		if _, ok := out[sheet]; !ok {
			out[sheet] = nil
		}
	}
	return out
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func toAny(vals []string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
