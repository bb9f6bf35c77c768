package hierarchy

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ETAnderson/celltrack/internal/domain"
)

func rec(id, cellType, cell string, cells domain.CellsMode, status domain.Status) domain.TestCaseRecord {
	return domain.TestCaseRecord{
		TestID:       id,
		UniqueTestID: "u-" + id + "-" + cell,
		CellType:     cellType,
		Cell:         cell,
		Cells:        cells,
		Status:       status,
	}
}

func TestBuild_MixedSiteRollup(t *testing.T) {
	in := []domain.TestCaseRecord{
		rec("A1", "FLIB", "C1", domain.CellsAll, domain.StatusPass),
		rec("A2", "FLIB", "C1", domain.CellsAll, domain.StatusFail),
		rec("A3", "FLIB", "", domain.CellsFirst, domain.StatusNotRun),
	}

	got := Build(in)
	if len(got) != 1 {
		t.Fatalf("expected 1 cell type, got %d", len(got))
	}

	g := got[0]
	if g.CellType != "FLIB" {
		t.Fatalf("expected FLIB, got %q", g.CellType)
	}
	wantCounts := Counts{Passed: 1, Failed: 1, NotRun: 1}
	if diff := cmp.Diff(wantCounts, g.Counts); diff != "" {
		t.Fatalf("cell type counts mismatch (-want +got):\n%s", diff)
	}
	if g.TotalTestCases != 3 {
		t.Fatalf("expected total 3, got %d", g.TotalTestCases)
	}

	c1, ok := g.Cells["C1"]
	if !ok {
		t.Fatalf("expected cell C1")
	}
	if diff := cmp.Diff(Counts{Passed: 1, Failed: 1}, c1.Counts); diff != "" {
		t.Fatalf("cell counts mismatch (-want +got):\n%s", diff)
	}
	if len(g.Cells) != 1 {
		t.Fatalf("first-cell record must not create a cell group, got %v", g.CellNames())
	}

	if len(g.FirstCellTestCases) != 1 || g.FirstCellTestCases[0].TestID != "A3" {
		t.Fatalf("unexpected first-cell list: %+v", g.FirstCellTestCases)
	}
}

func TestBuild_CountsSumToRecordsPerCellType(t *testing.T) {
	in := []domain.TestCaseRecord{
		rec("A1", "FLIB", "C1", domain.CellsAll, domain.StatusPass),
		rec("A2", "FLIB", "C2", domain.CellsAll, domain.StatusBlocked),
		rec("A3", "FLIB", "", domain.CellsFirst, domain.StatusNA),
		rec("B1", "PACK", "P1", domain.CellsAll, "weird"),
		rec("B2", "PACK", domain.SystemCell, domain.CellsSystem, ""),
		rec("C1", "", "", domain.CellsAll, domain.StatusFail),
	}

	perType := map[string]int{}
	for _, r := range in {
		perType[bucket(r.CellType)]++
	}

	for _, g := range Build(in) {
		if g.Counts.Total() != perType[g.CellType] {
			t.Fatalf("%s: counters sum %d, records %d", g.CellType, g.Counts.Total(), perType[g.CellType])
		}
		if g.TotalTestCases != perType[g.CellType] {
			t.Fatalf("%s: total %d, records %d", g.CellType, g.TotalTestCases, perType[g.CellType])
		}
	}
}

func TestBuild_FirstRecordsNeverInCellGroups(t *testing.T) {
	in := []domain.TestCaseRecord{
		rec("F1", "FLIB", "C1", domain.CellsFirst, domain.StatusPass),
		rec("A1", "FLIB", "C1", domain.CellsAll, domain.StatusPass),
	}

	g := Build(in)[0]
	for _, cg := range g.Cells {
		for _, tc := range cg.TestCases {
			if tc.Cells == domain.CellsFirst {
				t.Fatalf("first-cell record %s found in cell %s", tc.TestID, cg.CellName)
			}
		}
	}
	if len(g.FirstCellTestCases) != 1 || g.FirstCellTestCases[0].TestID != "F1" {
		t.Fatalf("expected F1 in first-cell list, got %+v", g.FirstCellTestCases)
	}
}

func TestBuild_OrderIndependent(t *testing.T) {
	in := []domain.TestCaseRecord{
		rec("F3", "FLIB", "", domain.CellsFirst, domain.StatusPass),
		rec("F1", "FLIB", "", domain.CellsFirst, domain.StatusFail),
		rec("F2", "FLIB", "", domain.CellsFirst, domain.StatusNotRun),
		rec("A2", "FLIB", "C1", domain.CellsAll, domain.StatusPass),
		rec("A1", "FLIB", "C1", domain.CellsAll, domain.StatusPass),
		rec("B1", "ALPHA", "X", domain.CellsAll, domain.StatusNA),
	}

	want := Build(in)

	if want[0].CellType != "ALPHA" {
		t.Fatalf("expected cell types sorted, got %q first", want[0].CellType)
	}
	first := want[1].FirstCellTestCases
	if first[0].TestID != "F1" || first[1].TestID != "F2" || first[2].TestID != "F3" {
		t.Fatalf("first-cell list not sorted: %+v", first)
	}

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.TestCaseRecord(nil), in...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		if diff := cmp.Diff(want, Build(shuffled)); diff != "" {
			t.Fatalf("shuffle %d changed output (-want +got):\n%s", i, diff)
		}
	}
}

func TestBuild_MalformedRecordsGoToUnknown(t *testing.T) {
	got := Build([]domain.TestCaseRecord{{}})
	if len(got) != 1 || got[0].CellType != UnknownBucket {
		t.Fatalf("expected Unknown cell type, got %+v", got)
	}
	if _, ok := got[0].Cells[UnknownBucket]; !ok {
		t.Fatalf("expected Unknown cell bucket, got %v", got[0].CellNames())
	}
	if got[0].NotRun != 1 {
		t.Fatalf("expected missing status to count as not run")
	}

	if out := Build(nil); len(out) != 0 {
		t.Fatalf("expected empty result for nil input")
	}
}

func TestBuild_StatusesMatchExactly(t *testing.T) {
	in := []domain.TestCaseRecord{
		rec("A1", "FLIB", "C1", domain.CellsAll, "pass"),
		rec("A2", "FLIB", "C1", domain.CellsAll, " FAIL "),
		rec("A3", "FLIB", "C1", domain.CellsAll, domain.StatusPass),
		rec("A4", "FLIB", "", domain.CellsFirst, "na"),
	}

	got := Build(in)
	if len(got) != 1 {
		t.Fatalf("expected one cell type, got %d", len(got))
	}

	want := Counts{Passed: 1, NotRun: 3}
	if diff := cmp.Diff(want, got[0].Counts); diff != "" {
		t.Fatalf("cell type counts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Counts{Passed: 1, NotRun: 2}, got[0].Cells["C1"].Counts); diff != "" {
		t.Fatalf("cell counts (-want +got):\n%s", diff)
	}

	scopes := ScopesOf(in[:2])
	if len(scopes) != 1 || scopes[0].NotRun != 2 {
		t.Fatalf("expected both near-miss statuses as not run in scope roll-up, got %+v", scopes)
	}
}

func TestCellGroup_Scopes(t *testing.T) {
	cg := CellGroup{
		CellName: "C1",
		TestCases: []domain.TestCaseRecord{
			{TestID: "A1", Scope: "Hardening", Status: domain.StatusPass},
			{TestID: "A2", Scope: "Cell", Status: domain.StatusFail},
			{TestID: "A3", Scope: "Hardening", Status: "bogus"},
			{TestID: "A4", Status: domain.StatusBlocked},
		},
	}

	scopes := cg.Scopes()

	names := make([]string, 0, len(scopes))
	for _, s := range scopes {
		names = append(names, s.Scope)
	}
	if diff := cmp.Diff([]string{"Cell", "Hardening", UnknownBucket}, names); diff != "" {
		t.Fatalf("scope order mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(Counts{Passed: 1, NotRun: 1}, scopes[1].Counts); diff != "" {
		t.Fatalf("hardening counts mismatch (-want +got):\n%s", diff)
	}
	if scopes[2].Blocked != 1 {
		t.Fatalf("expected blocked in Unknown scope")
	}
}
