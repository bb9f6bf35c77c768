package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ETAnderson/celltrack/internal/domain"
	"github.com/ETAnderson/celltrack/internal/tracking"
)

type Disposition string

const (
	DispositionCreated   Disposition = "created"
	DispositionUpdated   Disposition = "updated"
	DispositionUnchanged Disposition = "unchanged"
)

// ComputeDisposition compares the stored entry's hash with the incoming one.
// An empty previous hash means the entry does not exist yet.
func ComputeDisposition(previousHash string, currentHash string) Disposition {
	switch {
	case previousHash == "":
		return DispositionCreated
	case previousHash == currentHash:
		return DispositionUnchanged
	default:
		return DispositionUpdated
	}
}

// hashEntry hashes the canonical JSON form of v.
func hashEntry(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// normalizeTestCase mirrors what the service stores, so a blank mode and
// an explicit All hash the same.
func normalizeTestCase(tc domain.TestCase) domain.TestCase {
	if mode, ok := domain.ParseCellsMode(string(tc.Cells)); ok {
		tc.Cells = mode
	} else if tc.Cells == "" {
		tc.Cells = domain.CellsAll
	}
	return tc
}

// snapshot holds the hashes of what is already stored, keyed by name.
type snapshot struct {
	cellTypes map[string]string
	sites     map[string]string
	cells     map[domain.SiteCell]bool
	testCases map[string]string
}

func takeSnapshot(ctx context.Context, svc *tracking.Service) (*snapshot, error) {
	snap := &snapshot{
		cellTypes: make(map[string]string),
		sites:     make(map[string]string),
		cells:     make(map[domain.SiteCell]bool),
		testCases: make(map[string]string),
	}

	cts, err := svc.ListCellTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cell types: %w", err)
	}
	for _, ct := range cts {
		if snap.cellTypes[ct.Name], err = hashEntry(ct); err != nil {
			return nil, err
		}
	}

	sites, err := svc.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	for _, s := range sites {
		if snap.sites[s.Name], err = hashEntry(s); err != nil {
			return nil, err
		}
		cells, err := svc.ListSiteCells(ctx, s.Name)
		if err != nil {
			return nil, fmt.Errorf("list cells of %s: %w", s.Name, err)
		}
		for _, sc := range cells {
			snap.cells[sc] = true
		}
	}

	tcs, err := svc.ListTestCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	for _, tc := range tcs {
		if snap.testCases[tc.TestID], err = hashEntry(normalizeTestCase(tc)); err != nil {
			return nil, err
		}
	}

	return snap, nil
}
