// Package catalog loads a site/cell/test-case catalog from YAML (or JSON)
// and applies it through the tracking service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ETAnderson/celltrack/internal/domain"
	"github.com/ETAnderson/celltrack/internal/tracking"
)

type Catalog struct {
	CellTypes []domain.CellType `yaml:"cellTypes" json:"cellTypes"`
	Sites     []SiteEntry       `yaml:"sites" json:"sites"`
	TestCases []domain.TestCase `yaml:"testCases" json:"testCases"`
}

// SiteEntry is a site plus its cells, keyed by cell type.
type SiteEntry struct {
	domain.Site `yaml:",inline"`
	Cells       map[string][]string `yaml:"cells" json:"cells"`
}

// Stats counts what Apply wrote, per entry kind and per disposition.
// Entries already stored with identical content are counted as Unchanged
// and not written again.
type Stats struct {
	CellTypes int
	Sites     int
	Cells     int
	TestCases int

	Created   int
	Updated   int
	Unchanged int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d cell types, %d sites, %d cells, %d test cases (%d created, %d updated, %d unchanged)",
		s.CellTypes, s.Sites, s.Cells, s.TestCases, s.Created, s.Updated, s.Unchanged)
}

// LoadFromPath reads a catalog file; the format follows the extension.
func LoadFromPath(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses catalog bytes. ext ".json" selects JSON; anything else,
// including empty, is YAML (a superset of JSON).
func Load(data []byte, ext string) (*Catalog, error) {
	var c Catalog
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse catalog json: %w", err)
		}
		return &c, nil
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	return &c, nil
}

// Apply upserts the catalog in dependency order: cell types, sites and
// their cells, then test cases. It stops at the first rejected entry.
func (c *Catalog) Apply(ctx context.Context, svc *tracking.Service) (Stats, error) {
	var st Stats

	snap, err := takeSnapshot(ctx, svc)
	if err != nil {
		return st, err
	}

	for _, ct := range c.CellTypes {
		ct.Name = strings.TrimSpace(ct.Name)
		d, err := st.decide(snap.cellTypes[ct.Name], ct)
		if err != nil {
			return st, fmt.Errorf("cell type %q: %w", ct.Name, err)
		}
		if d == DispositionUnchanged {
			continue
		}
		if err := svc.PutCellType(ctx, ct); err != nil {
			return st, fmt.Errorf("cell type %q: %w", ct.Name, err)
		}
		st.CellTypes++
		st.record(d)
	}

	for _, s := range c.Sites {
		s.Name = strings.TrimSpace(s.Name)
		d, err := st.decide(snap.sites[s.Name], s.Site)
		if err != nil {
			return st, fmt.Errorf("site %q: %w", s.Name, err)
		}
		if d != DispositionUnchanged {
			if err := svc.PutSite(ctx, s.Site); err != nil {
				return st, fmt.Errorf("site %q: %w", s.Name, err)
			}
			st.Sites++
			st.record(d)
		}

		types := make([]string, 0, len(s.Cells))
		for ct := range s.Cells {
			types = append(types, ct)
		}
		sort.Strings(types)

		for _, ct := range types {
			for _, cell := range s.Cells[ct] {
				sc := domain.SiteCell{Site: s.Name, CellType: ct, Cell: cell}
				if snap.cells[sc] {
					st.Unchanged++
					continue
				}
				if err := svc.AddSiteCell(ctx, sc); err != nil {
					return st, fmt.Errorf("site %q cell %s/%s: %w", s.Name, ct, cell, err)
				}
				st.Cells++
				st.record(DispositionCreated)
			}
		}
	}

	for _, tc := range c.TestCases {
		tc.TestID = strings.TrimSpace(tc.TestID)
		d, err := st.decide(snap.testCases[tc.TestID], normalizeTestCase(tc))
		if err != nil {
			return st, fmt.Errorf("test case %q: %w", tc.TestID, err)
		}
		if d == DispositionUnchanged {
			continue
		}
		if err := svc.PutTestCase(ctx, tc); err != nil {
			return st, fmt.Errorf("test case %q: %w", tc.TestID, err)
		}
		st.TestCases++
		st.record(d)
	}

	return st, nil
}

// decide hashes entry against the stored hash. Unchanged entries are
// counted here; the others are counted by record once written.
func (st *Stats) decide(storedHash string, entry any) (Disposition, error) {
	h, err := hashEntry(entry)
	if err != nil {
		return "", err
	}
	d := ComputeDisposition(storedHash, h)
	if d == DispositionUnchanged {
		st.Unchanged++
	}
	return d, nil
}

func (st *Stats) record(d Disposition) {
	switch d {
	case DispositionCreated:
		st.Created++
	case DispositionUpdated:
		st.Updated++
	}
}
