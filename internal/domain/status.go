package domain

import "strings"

type Status string

const (
	StatusNotRun  Status = "NOT RUN"
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusBlocked Status = "BLOCKED"
	StatusNA      Status = "NA"
)

// ParseStatus accepts the five known statuses, case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusNotRun, StatusPass, StatusFail, StatusBlocked, StatusNA:
		return s, true
	}
	return "", false
}


type CellsMode string

const (
	CellsAll    CellsMode = "All"
	CellsFirst  CellsMode = "First"
	CellsSystem CellsMode = "System"
)

func ParseCellsMode(raw string) (CellsMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "all":
		return CellsAll, true
	case "first":
		return CellsFirst, true
	case "system":
		return CellsSystem, true
	}
	return "", false
}

// SystemCell is the cell label given to records of System-scoped tests.
const SystemCell = "System"
