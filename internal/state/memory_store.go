package state

import (
	"context"
	"sort"
	"sync"

	"github.com/ETAnderson/celltrack/internal/domain"
)

type MemoryStore struct {
	mu sync.RWMutex

	sites     map[string]domain.Site
	cellTypes map[string]domain.CellType
	siteCells map[string]map[string]domain.SiteCell // site -> celltype\x00cell -> cell
	testCases map[string]domain.TestCase

	statuses map[string]StatusRecord // unique id -> row
	slots    map[string]string       // slot key -> unique id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sites:     make(map[string]domain.Site),
		cellTypes: make(map[string]domain.CellType),
		siteCells: make(map[string]map[string]domain.SiteCell),
		testCases: make(map[string]domain.TestCase),
		statuses:  make(map[string]StatusRecord),
		slots:     make(map[string]string),
	}
}

func (s *MemoryStore) ListSites(ctx context.Context) ([]domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Site, 0, len(s.sites))
	for _, site := range s.sites {
		out = append(out, copySite(site))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetSite(ctx context.Context, name string) (domain.Site, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.sites[name]
	if !ok {
		return domain.Site{}, false, nil
	}
	return copySite(site), true, nil
}

func (s *MemoryStore) UpsertSite(ctx context.Context, site domain.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sites[site.Name] = copySite(site)
	return nil
}

func (s *MemoryStore) DeleteSite(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sites[name]; !ok {
		return ErrNotFound
	}
	delete(s.sites, name)
	delete(s.siteCells, name)
	return nil
}

func (s *MemoryStore) ListCellTypes(ctx context.Context) ([]domain.CellType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CellType, 0, len(s.cellTypes))
	for _, ct := range s.cellTypes {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpsertCellType(ctx context.Context, ct domain.CellType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cellTypes[ct.Name] = ct
	return nil
}

func (s *MemoryStore) DeleteCellType(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cellTypes[name]; !ok {
		return ErrNotFound
	}
	delete(s.cellTypes, name)
	return nil
}

func (s *MemoryStore) ListSiteCells(ctx context.Context, site string) ([]domain.SiteCell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cells := s.siteCells[site]
	out := make([]domain.SiteCell, 0, len(cells))
	for _, sc := range cells {
		out = append(out, sc)
	}
	SortSiteCells(out)
	return out, nil
}

func (s *MemoryStore) AddSiteCell(ctx context.Context, sc domain.SiteCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.siteCells[sc.Site]
	if !ok {
		m = make(map[string]domain.SiteCell)
		s.siteCells[sc.Site] = m
	}
	m[sc.CellType+"\x00"+sc.Cell] = sc
	return nil
}

func (s *MemoryStore) DeleteSiteCell(ctx context.Context, sc domain.SiteCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.siteCells[sc.Site]
	key := sc.CellType + "\x00" + sc.Cell
	if _, ok := m[key]; !ok {
		return ErrNotFound
	}
	delete(m, key)
	return nil
}

func (s *MemoryStore) ListTestCases(ctx context.Context) ([]domain.TestCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TestCase, 0, len(s.testCases))
	for _, tc := range s.testCases {
		out = append(out, tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestID < out[j].TestID })
	return out, nil
}

func (s *MemoryStore) GetTestCase(ctx context.Context, testID string) (domain.TestCase, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tc, ok := s.testCases[testID]
	return tc, ok, nil
}

func (s *MemoryStore) UpsertTestCase(ctx context.Context, tc domain.TestCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.testCases[tc.TestID] = tc
	return nil
}

func (s *MemoryStore) DeleteTestCase(ctx context.Context, testID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.testCases[testID]; !ok {
		return ErrNotFound
	}
	delete(s.testCases, testID)
	return nil
}

func (s *MemoryStore) ListStatuses(ctx context.Context, site string, phase string) ([]StatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StatusRecord, 0, 64)
	for _, r := range s.statuses {
		if r.Site == site && r.Phase == phase {
			out = append(out, r)
		}
	}
	SortStatuses(out)
	return out, nil
}

func (s *MemoryStore) GetStatus(ctx context.Context, uniqueTestID string) (StatusRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.statuses[uniqueTestID]
	return r, ok, nil
}

// InsertStatuses adds rows; a row whose slot already exists is skipped so
// concurrent first loads keep the id that won.
func (s *MemoryStore) InsertStatuses(ctx context.Context, recs []StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		if _, ok := s.slots[r.SlotKey()]; ok {
			continue
		}
		s.statuses[r.UniqueTestID] = r
		s.slots[r.SlotKey()] = r.UniqueTestID
	}
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, rec StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statuses[rec.UniqueTestID]; !ok {
		return ErrNotFound
	}
	s.statuses[rec.UniqueTestID] = rec
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func copySite(site domain.Site) domain.Site {
	site.Phases = append([]string(nil), site.Phases...)
	return site
}

// SortSiteCells orders cells by type then name for predictable output.
func SortSiteCells(cells []domain.SiteCell) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].CellType != cells[j].CellType {
			return cells[i].CellType < cells[j].CellType
		}
		return cells[i].Cell < cells[j].Cell
	})
}

// SortStatuses orders rows by slot for predictable output.
func SortStatuses(recs []StatusRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].SlotKey() < recs[j].SlotKey()
	})
}
