package domain

type Field string

const (
	FieldStatus       Field = "status"
	FieldNote         Field = "note"
	FieldVolume       Field = "volume"
	FieldDate         Field = "date"
	FieldStartTime    Field = "startTime"
	FieldEndTime      Field = "endTime"
	FieldAvailability Field = "availability"
)

func (f Field) Valid() bool {
	switch f {
	case FieldStatus, FieldNote, FieldVolume, FieldDate, FieldStartTime, FieldEndTime, FieldAvailability:
		return true
	}
	return false
}

// FieldUpdate is a partial write: field name -> new value.
type FieldUpdate map[Field]string
