package format

import (
	"fmt"

	"github.com/ETAnderson/celltrack/internal/domain"
	"github.com/ETAnderson/celltrack/internal/hierarchy"
	"github.com/ETAnderson/celltrack/internal/view"
)

var countHeaders = []string{"Total", "Pass", "Fail", "Blocked", "Not Run", "NA"}

func countCells(c hierarchy.Counts) []any {
	return []any{c.Total(), c.Passed, c.Failed, c.Blocked, c.NotRun, c.NA}
}

// Summary renders one row per cell type, one per cell under it and one
// for the first-cell tests, with a grand total footer.
func Summary(groups []hierarchy.CellTypeGroup, m Mode) string {
	t := NewTable(m)
	t.Header(append([]string{"Cell Type", "Cell"}, countHeaders...)...)
	t.AlignRight(3, 4, 5, 6, 7, 8)

	var total hierarchy.Counts
	for _, g := range groups {
		t.Row(append([]any{g.CellType, ""}, countCells(g.Counts)...)...)

		if len(g.FirstCellTestCases) > 0 {
			var first hierarchy.Counts
			for _, r := range g.FirstCellTestCases {
				first.Add(r.Status)
			}
			t.Row(append([]any{"", "(first cell)"}, countCells(first)...)...)
		}

		for _, name := range g.CellNames() {
			t.Row(append([]any{"", name}, countCells(g.Cells[name].Counts)...)...)
		}

		total.Passed += g.Passed
		total.Failed += g.Failed
		total.Blocked += g.Blocked
		total.NotRun += g.NotRun
		total.NA += g.NA
	}

	t.Footer(append([]any{"Total", ""}, countCells(total)...)...)
	return t.String()
}

// Scopes renders the scope breakdown of one cell.
func Scopes(cell *hierarchy.CellGroup, m Mode) string {
	t := NewTable(m)
	t.Header(append([]string{"Scope"}, countHeaders...)...)
	t.AlignRight(2, 3, 4, 5, 6, 7)
	for _, sg := range cell.Scopes() {
		t.Row(append([]any{sg.Scope}, countCells(sg.Counts)...)...)
	}
	return t.String()
}

// Records renders a flat record list keyed the way the editor addresses
// records.
func Records(recs []domain.TestCaseRecord, m Mode) string {
	t := NewTable(m)
	t.Header("Key", "Cell Type", "Scope", "Status", "Kind", "Note")
	for _, r := range recs {
		t.Row(view.RecordKey(r), r.CellType, r.Scope, statusText(r.Status), string(r.Kind), Truncate(r.Note, 40))
	}
	return t.String()
}

// Truncate shortens s to maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return fmt.Sprintf("%s...", string(r[:maxLen-3]))
}

// statusText shows a status the way the counters saw it: only exact
// matches are shown as themselves.
func statusText(s domain.Status) string {
	switch s {
	case domain.StatusPass, domain.StatusFail, domain.StatusBlocked, domain.StatusNA:
		return string(s)
	}
	return string(domain.StatusNotRun)
}
