package tracking

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ETAnderson/celltrack/internal/domain"
)

var ErrValidation = errors.New("validation failed")

type ValidationIssue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationResult struct {
	Issues []ValidationIssue `json:"issues"`
}

func (r ValidationResult) IsValid() bool {
	return len(r.Issues) == 0
}

// Err returns nil for a valid result, otherwise a *ValidationError.
func (r ValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	return &ValidationError{Issues: r.Issues}
}

type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrValidation.Error()
	}
	first := e.Issues[0]
	if len(e.Issues) == 1 {
		return fmt.Sprintf("%s: %s", first.Path, first.Message)
	}
	return fmt.Sprintf("%s: %s (and %d more)", first.Path, first.Message, len(e.Issues)-1)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func ValidateSite(s domain.Site) ValidationResult {
	var res ValidationResult
	requireNonEmpty(&res, "name", s.Name)
	for i, p := range s.Phases {
		requireNonEmpty(&res, fmt.Sprintf("phases[%d]", i), p)
		if strings.Contains(p, ",") {
			addIssue(&res, fmt.Sprintf("phases[%d]", i), "invalid_phase", "phase must not contain a comma")
		}
	}
	return res
}

func ValidateCellType(ct domain.CellType) ValidationResult {
	var res ValidationResult
	requireNonEmpty(&res, "name", ct.Name)
	return res
}

func ValidateSiteCell(sc domain.SiteCell) ValidationResult {
	var res ValidationResult
	requireNonEmpty(&res, "site", sc.Site)
	requireNonEmpty(&res, "cellType", sc.CellType)
	requireNonEmpty(&res, "cell", sc.Cell)
	if sc.Cell == domain.SystemCell {
		addIssue(&res, "cell", "reserved", fmt.Sprintf("%q is reserved for system-level tests", domain.SystemCell))
	}
	return res
}

func ValidateTestCase(tc domain.TestCase) ValidationResult {
	var res ValidationResult
	requireNonEmpty(&res, "testId", tc.TestID)
	requireNonEmpty(&res, "cellType", tc.CellType)
	if tc.Cells != "" {
		if _, ok := domain.ParseCellsMode(string(tc.Cells)); !ok {
			addIssue(&res, "cells", "invalid_cells", "cells must be one of: All, First, System")
		}
	}
	return res
}

// ValidateFieldUpdate checks field names, status values and that every
// field applies to the record kind.
func ValidateFieldUpdate(kind domain.TestKind, upd domain.FieldUpdate) ValidationResult {
	var res ValidationResult

	if len(upd) == 0 {
		addIssue(&res, "", "empty_update", "at least one field is required")
		return res
	}

	for f, v := range upd {
		path := string(f)
		switch {
		case !f.Valid():
			addIssue(&res, path, "unknown_field", "field is not writable")
		case !kind.Allows(f):
			addIssue(&res, path, "field_not_applicable", fmt.Sprintf("field does not apply to %s tests", kind))
		case f == domain.FieldStatus:
			if _, ok := domain.ParseStatus(v); !ok {
				addIssue(&res, path, "invalid_status", "status must be one of: NOT RUN, PASS, FAIL, BLOCKED, NA")
			}
		}
	}

	sortIssues(res.Issues)
	return res
}

func requireNonEmpty(res *ValidationResult, path string, v string) {
	if strings.TrimSpace(v) == "" {
		addIssue(res, path, "required", "field is required")
	}
}

func addIssue(res *ValidationResult, path string, code string, msg string) {
	res.Issues = append(res.Issues, ValidationIssue{
		Path:    path,
		Code:    code,
		Message: msg,
	})
}

func sortIssues(issues []ValidationIssue) {
	// map iteration order leaks into issue order otherwise
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
}
