// Package hierarchy groups flat test case records into
// Cell Type -> Cell -> Scope with pass/fail roll-ups at each level.
package hierarchy

import (
	"sort"
	"strings"

	"github.com/ETAnderson/celltrack/internal/domain"
)

const UnknownBucket = "Unknown"

type Counts struct {
	Passed  int `json:"passedCount"`
	Failed  int `json:"failedCount"`
	Blocked int `json:"blockedCount"`
	NotRun  int `json:"notRunCount"`
	NA      int `json:"naCount"`
}

// Add increments exactly one counter, matching s exactly: "pass" or
// " FAIL " are not PASS or FAIL and count as not run.
func (c *Counts) Add(s domain.Status) {
	switch s {
	case domain.StatusPass:
		c.Passed++
	case domain.StatusFail:
		c.Failed++
	case domain.StatusBlocked:
		c.Blocked++
	case domain.StatusNA:
		c.NA++
	default:
		c.NotRun++
	}
}

func (c Counts) Total() int {
	return c.Passed + c.Failed + c.Blocked + c.NotRun + c.NA
}

type CellTypeGroup struct {
	CellType           string                  `json:"cellType"`
	Cells              map[string]*CellGroup   `json:"cells"`
	FirstCellTestCases []domain.TestCaseRecord `json:"firstCellTestCases"`
	TotalTestCases     int                     `json:"totalTestCases"`
	Counts
}

type CellGroup struct {
	CellName  string                  `json:"cellName"`
	TestCases []domain.TestCaseRecord `json:"testCases"`
	Counts
}

type ScopeGroup struct {
	Scope     string                  `json:"scope"`
	TestCases []domain.TestCaseRecord `json:"testCases"`
	Counts
}

// Build groups records in one pass. It never fails: blank cell types,
// cells and scopes land in the "Unknown" bucket and unrecognised statuses
// count as not run. The result does not depend on input order.
func Build(records []domain.TestCaseRecord) []CellTypeGroup {
	byType := make(map[string]*CellTypeGroup)

	for _, rec := range records {
		typeName := bucket(rec.CellType)

		g, ok := byType[typeName]
		if !ok {
			g = &CellTypeGroup{
				CellType:           typeName,
				Cells:              make(map[string]*CellGroup),
				FirstCellTestCases: []domain.TestCaseRecord{},
			}
			byType[typeName] = g
		}

		g.TotalTestCases++
		g.Counts.Add(rec.Status)

		if rec.Cells == domain.CellsFirst {
			g.FirstCellTestCases = append(g.FirstCellTestCases, rec)
			continue
		}

		cellName := bucket(rec.Cell)
		cg, ok := g.Cells[cellName]
		if !ok {
			cg = &CellGroup{CellName: cellName}
			g.Cells[cellName] = cg
		}
		cg.TestCases = append(cg.TestCases, rec)
		cg.Counts.Add(rec.Status)
	}

	out := make([]CellTypeGroup, 0, len(byType))
	for _, g := range byType {
		sortRecords(g.FirstCellTestCases)
		for _, cg := range g.Cells {
			sortRecords(cg.TestCases)
		}
		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CellType < out[j].CellType
	})

	return out
}

// CellNames returns the cell bucket names in ascending order.
func (g CellTypeGroup) CellNames() []string {
	names := make([]string, 0, len(g.Cells))
	for name := range g.Cells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scopes partitions the cell's test cases by scope, sorted by scope name.
func (g CellGroup) Scopes() []ScopeGroup {
	return ScopesOf(g.TestCases)
}

func ScopesOf(records []domain.TestCaseRecord) []ScopeGroup {
	byScope := make(map[string]*ScopeGroup)
	for _, rec := range records {
		name := bucket(rec.Scope)
		sg, ok := byScope[name]
		if !ok {
			sg = &ScopeGroup{Scope: name}
			byScope[name] = sg
		}
		sg.TestCases = append(sg.TestCases, rec)
		sg.Counts.Add(rec.Status)
	}

	out := make([]ScopeGroup, 0, len(byScope))
	for _, sg := range byScope {
		out = append(out, *sg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Scope < out[j].Scope
	})
	return out
}

func bucket(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return UnknownBucket
	}
	return v
}

func sortRecords(recs []domain.TestCaseRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].TestID != recs[j].TestID {
			return recs[i].TestID < recs[j].TestID
		}
		return recs[i].UniqueTestID < recs[j].UniqueTestID
	})
}
