// Package tracking owns the test-tracking rules on top of a state.Store:
// catalog maintenance, expanding the catalog into per-cell records for a
// site and phase, and applying partial status writes.
package tracking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ETAnderson/celltrack/internal/domain"
	"github.com/ETAnderson/celltrack/internal/hierarchy"
	"github.com/ETAnderson/celltrack/internal/logging"
	"github.com/ETAnderson/celltrack/internal/state"
)

type Service struct {
	store state.Store
	log   *zap.SugaredLogger

	Now   func() time.Time
	NewID func() string
}

func NewService(store state.Store, logger *zap.SugaredLogger) *Service {
	return &Service{
		store: store,
		log:   logging.OrNop(logger),
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
}

// Sites

func (s *Service) ListSites(ctx context.Context) ([]domain.Site, error) {
	return s.store.ListSites(ctx)
}

func (s *Service) PutSite(ctx context.Context, site domain.Site) error {
	site.Name = strings.TrimSpace(site.Name)
	if err := ValidateSite(site).Err(); err != nil {
		return err
	}
	return s.store.UpsertSite(ctx, site)
}

func (s *Service) DeleteSite(ctx context.Context, name string) error {
	return s.store.DeleteSite(ctx, name)
}

// Cell types

func (s *Service) ListCellTypes(ctx context.Context) ([]domain.CellType, error) {
	return s.store.ListCellTypes(ctx)
}

func (s *Service) PutCellType(ctx context.Context, ct domain.CellType) error {
	ct.Name = strings.TrimSpace(ct.Name)
	if err := ValidateCellType(ct).Err(); err != nil {
		return err
	}
	return s.store.UpsertCellType(ctx, ct)
}

func (s *Service) DeleteCellType(ctx context.Context, name string) error {
	return s.store.DeleteCellType(ctx, name)
}

// Cells configured at a site

func (s *Service) ListSiteCells(ctx context.Context, site string) ([]domain.SiteCell, error) {
	if err := s.requireSite(ctx, site); err != nil {
		return nil, err
	}
	return s.store.ListSiteCells(ctx, site)
}

func (s *Service) AddSiteCell(ctx context.Context, sc domain.SiteCell) error {
	sc.Cell = strings.TrimSpace(sc.Cell)
	res := ValidateSiteCell(sc)
	if res.IsValid() {
		if err := s.requireSite(ctx, sc.Site); err != nil {
			return err
		}
		known, err := s.cellTypeExists(ctx, sc.CellType)
		if err != nil {
			return err
		}
		if !known {
			addIssue(&res, "cellType", "unknown_cell_type", fmt.Sprintf("cell type %q is not defined", sc.CellType))
		}
	}
	if err := res.Err(); err != nil {
		return err
	}
	return s.store.AddSiteCell(ctx, sc)
}

func (s *Service) DeleteSiteCell(ctx context.Context, sc domain.SiteCell) error {
	return s.store.DeleteSiteCell(ctx, sc)
}

// Test case catalog

func (s *Service) ListTestCases(ctx context.Context) ([]domain.TestCase, error) {
	return s.store.ListTestCases(ctx)
}

func (s *Service) PutTestCase(ctx context.Context, tc domain.TestCase) error {
	tc.TestID = strings.TrimSpace(tc.TestID)
	res := ValidateTestCase(tc)
	if res.IsValid() {
		known, err := s.cellTypeExists(ctx, tc.CellType)
		if err != nil {
			return err
		}
		if !known {
			addIssue(&res, "cellType", "unknown_cell_type", fmt.Sprintf("cell type %q is not defined", tc.CellType))
		}
	}
	if err := res.Err(); err != nil {
		return err
	}

	tc.Cells = cellsMode(tc.Cells)
	return s.store.UpsertTestCase(ctx, tc)
}

func (s *Service) DeleteTestCase(ctx context.Context, testID string) error {
	return s.store.DeleteTestCase(ctx, testID)
}

// RecordsBySite expands the catalog into one record per slot at site and
// phase. Slots seen for the first time get a fresh unique id and NOT RUN,
// persisted before returning so ids are stable across loads.
func (s *Service) RecordsBySite(ctx context.Context, site string, phase string) ([]domain.TestCaseRecord, error) {
	var res ValidationResult
	requireNonEmpty(&res, "site", site)
	requireNonEmpty(&res, "phase", phase)
	if err := res.Err(); err != nil {
		return nil, err
	}

	st, ok, err := s.store.GetSite(ctx, site)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("site %q: %w", site, state.ErrNotFound)
	}
	if !st.HasPhase(phase) {
		addIssue(&res, "phase", "unknown_phase", fmt.Sprintf("site %q has no phase %q", site, phase))
		return nil, res.Err()
	}

	siteCells, err := s.store.ListSiteCells(ctx, site)
	if err != nil {
		return nil, err
	}
	cellsByType := make(map[string][]string)
	for _, sc := range siteCells {
		cellsByType[sc.CellType] = append(cellsByType[sc.CellType], sc.Cell)
	}

	tcs, err := s.store.ListTestCases(ctx)
	if err != nil {
		return nil, err
	}

	type slot struct {
		tc   domain.TestCase
		cell string
	}
	var slots []slot
	for _, tc := range tcs {
		switch cellsMode(tc.Cells) {
		case domain.CellsSystem:
			slots = append(slots, slot{tc: tc, cell: domain.SystemCell})
		case domain.CellsFirst:
			if len(cellsByType[tc.CellType]) > 0 {
				slots = append(slots, slot{tc: tc})
			}
		default:
			for _, c := range cellsByType[tc.CellType] {
				slots = append(slots, slot{tc: tc, cell: c})
			}
		}
	}

	existing, err := s.statusesBySlot(ctx, site, phase)
	if err != nil {
		return nil, err
	}

	var missing []state.StatusRecord
	for _, sl := range slots {
		row := state.StatusRecord{
			Site: site, Phase: phase,
			CellType: sl.tc.CellType, Cell: sl.cell, TestID: sl.tc.TestID,
		}
		if _, ok := existing[row.SlotKey()]; ok {
			continue
		}
		row.UniqueTestID = s.NewID()
		row.Status = domain.StatusNotRun
		missing = append(missing, row)
	}

	if len(missing) > 0 {
		if err := s.store.InsertStatuses(ctx, missing); err != nil {
			return nil, fmt.Errorf("materialise status rows: %w", err)
		}
		s.log.Infow("status rows created", "site", site, "phase", phase, "count", len(missing))

		// Re-read so a concurrent first load that won the slot is honoured.
		if existing, err = s.statusesBySlot(ctx, site, phase); err != nil {
			return nil, err
		}
	}

	out := make([]domain.TestCaseRecord, 0, len(slots))
	for _, sl := range slots {
		key := state.StatusRecord{
			Site: site, Phase: phase,
			CellType: sl.tc.CellType, Cell: sl.cell, TestID: sl.tc.TestID,
		}.SlotKey()

		row, ok := existing[key]
		if !ok {
			return nil, fmt.Errorf("status row for %s missing after insert", sl.tc.TestID)
		}
		out = append(out, toRecord(sl.tc, row))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CellType != b.CellType {
			return a.CellType < b.CellType
		}
		if a.Cell != b.Cell {
			return a.Cell < b.Cell
		}
		return a.TestID < b.TestID
	})

	return out, nil
}

// UpdateStatus merges a partial write into the record's status row and
// stamps who changed it.
func (s *Service) UpdateStatus(ctx context.Context, uniqueTestID string, upd domain.FieldUpdate, actor string) (domain.TestCaseRecord, error) {
	row, ok, err := s.store.GetStatus(ctx, uniqueTestID)
	if err != nil {
		return domain.TestCaseRecord{}, err
	}
	if !ok {
		return domain.TestCaseRecord{}, fmt.Errorf("test status %q: %w", uniqueTestID, state.ErrNotFound)
	}

	tc, ok, err := s.store.GetTestCase(ctx, row.TestID)
	if err != nil {
		return domain.TestCaseRecord{}, err
	}
	if !ok {
		// Catalog entry removed after the row was created; keep the row writable.
		tc = domain.TestCase{TestID: row.TestID, CellType: row.CellType}
	}

	rec := toRecord(tc, row)
	if err := ValidateFieldUpdate(rec.Kind, upd).Err(); err != nil {
		return domain.TestCaseRecord{}, err
	}

	for f, v := range upd {
		if f == domain.FieldStatus {
			status, _ := domain.ParseStatus(v)
			v = string(status)
		}
		rec.Apply(f, v)
	}
	rec.UpdatedBy = actor
	rec.UpdatedAt = s.Now()

	if err := s.store.UpdateStatus(ctx, fromRecord(rec, row)); err != nil {
		return domain.TestCaseRecord{}, err
	}

	s.log.Debugw("status updated", "unique_test_id", uniqueTestID, "fields", len(upd), "actor", actor)
	return rec, nil
}

func (s *Service) UpdateNote(ctx context.Context, uniqueTestID string, note string, actor string) (domain.TestCaseRecord, error) {
	return s.UpdateStatus(ctx, uniqueTestID, domain.FieldUpdate{domain.FieldNote: note}, actor)
}

// Summary is the server-side hierarchy for one site and phase.
func (s *Service) Summary(ctx context.Context, site string, phase string) ([]hierarchy.CellTypeGroup, error) {
	recs, err := s.RecordsBySite(ctx, site, phase)
	if err != nil {
		return nil, err
	}
	return hierarchy.Build(recs), nil
}

func (s *Service) requireSite(ctx context.Context, site string) error {
	_, ok, err := s.store.GetSite(ctx, site)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("site %q: %w", site, state.ErrNotFound)
	}
	return nil
}

func (s *Service) cellTypeExists(ctx context.Context, name string) (bool, error) {
	cts, err := s.store.ListCellTypes(ctx)
	if err != nil {
		return false, err
	}
	for _, ct := range cts {
		if ct.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) statusesBySlot(ctx context.Context, site string, phase string) (map[string]state.StatusRecord, error) {
	rows, err := s.store.ListStatuses(ctx, site, phase)
	if err != nil {
		return nil, err
	}
	out := make(map[string]state.StatusRecord, len(rows))
	for _, r := range rows {
		out[r.SlotKey()] = r
	}
	return out, nil
}

func cellsMode(m domain.CellsMode) domain.CellsMode {
	if parsed, ok := domain.ParseCellsMode(string(m)); ok {
		return parsed
	}
	return domain.CellsAll
}

func toRecord(tc domain.TestCase, row state.StatusRecord) domain.TestCaseRecord {
	rec := domain.TestCaseRecord{
		TestID:       row.TestID,
		UniqueTestID: row.UniqueTestID,
		CellType:     row.CellType,
		Cell:         row.Cell,
		Scope:        tc.Scope,
		Cells:        cellsMode(tc.Cells),
		Status:       row.Status,
		Description:  tc.Description,
		Note:         row.Note,
		Volume:       row.Volume,
		Date:         row.Date,
		StartTime:    row.StartTime,
		EndTime:      row.EndTime,
		Availability: row.Availability,
		Site:         row.Site,
		Phase:        row.Phase,
		UpdatedBy:    row.UpdatedBy,
		UpdatedAt:    row.UpdatedAt,
	}
	rec.ResolveKind()
	return rec
}

func fromRecord(rec domain.TestCaseRecord, row state.StatusRecord) state.StatusRecord {
	row.Status = rec.Status
	row.Note = rec.Note
	row.Volume = rec.Volume
	row.Date = rec.Date
	row.StartTime = rec.StartTime
	row.EndTime = rec.EndTime
	row.Availability = rec.Availability
	row.UpdatedBy = rec.UpdatedBy
	row.UpdatedAt = rec.UpdatedAt
	return row
}
