package domain

import "strings"

// TestKind is resolved once when a record is loaded; it decides which
// auxiliary fields the record carries.
type TestKind string

const (
	KindRegular   TestKind = "regular"
	KindHardening TestKind = "hardening"
	KindVolume    TestKind = "volume"
)

const (
	hardeningPrefix = "CH-"
	volumePrefix    = "VT-"
	hardeningScope  = "Hardening"
)

func ClassifyKind(testID string, scope string) TestKind {
	id := strings.ToUpper(strings.TrimSpace(testID))
	switch {
	case strings.HasPrefix(id, volumePrefix):
		return KindVolume
	case strings.HasPrefix(id, hardeningPrefix) && strings.EqualFold(strings.TrimSpace(scope), hardeningScope):
		return KindHardening
	default:
		return KindRegular
	}
}

// AuxFields lists the value fields a kind exposes beyond status and note.
func (k TestKind) AuxFields() []Field {
	switch k {
	case KindVolume:
		return []Field{FieldVolume, FieldDate}
	case KindHardening:
		return []Field{FieldDate, FieldStartTime, FieldEndTime, FieldAvailability}
	default:
		return nil
	}
}

func (k TestKind) Allows(f Field) bool {
	if f == FieldStatus || f == FieldNote {
		return true
	}
	for _, a := range k.AuxFields() {
		if a == f {
			return true
		}
	}
	return false
}
