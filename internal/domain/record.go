package domain

import "time"

// TestCaseRecord is one test case as known for a site + phase + cell.
// UniqueTestID is the only key safe for writes; TestID is unique only
// within one site/phase slice.
type TestCaseRecord struct {
	TestID       string    `json:"testId"`
	UniqueTestID string    `json:"uniqueTestId"`
	CellType     string    `json:"cellType"`
	Cell         string    `json:"cell,omitempty"`
	Scope        string    `json:"scope"`
	Cells        CellsMode `json:"cells"`
	Status       Status    `json:"status"`
	Description  string    `json:"description,omitempty"`
	Note         string    `json:"note,omitempty"`

	Kind         TestKind `json:"kind"`
	Volume       string   `json:"volume,omitempty"`
	Date         string   `json:"date,omitempty"`
	StartTime    string   `json:"startTime,omitempty"`
	EndTime      string   `json:"endTime,omitempty"`
	Availability string   `json:"availability,omitempty"`

	Site      string    `json:"site,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Value returns the current value of a writable field.
func (r TestCaseRecord) Value(f Field) string {
	switch f {
	case FieldStatus:
		return string(r.Status)
	case FieldNote:
		return r.Note
	case FieldVolume:
		return r.Volume
	case FieldDate:
		return r.Date
	case FieldStartTime:
		return r.StartTime
	case FieldEndTime:
		return r.EndTime
	case FieldAvailability:
		return r.Availability
	}
	return ""
}

// Apply sets a writable field in place. Unknown fields are ignored.
func (r *TestCaseRecord) Apply(f Field, v string) {
	switch f {
	case FieldStatus:
		r.Status = Status(v)
	case FieldNote:
		r.Note = v
	case FieldVolume:
		r.Volume = v
	case FieldDate:
		r.Date = v
	case FieldStartTime:
		r.StartTime = v
	case FieldEndTime:
		r.EndTime = v
	case FieldAvailability:
		r.Availability = v
	}
}

// ResolveKind fills Kind from the id prefix and scope if it is not set.
func (r *TestCaseRecord) ResolveKind() {
	if r.Kind == "" {
		r.Kind = ClassifyKind(r.TestID, r.Scope)
	}
}
