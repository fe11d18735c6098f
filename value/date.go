package value

import "time"

// DateKind tells which parts of a date value are meaningful.
type DateKind int

const (
	// DateKindUnknown values can be compared with nothing and can not be
	// formatted until ?date, ?time or ?datetime tells what they are.
	DateKindUnknown DateKind = iota
	DateKindDate
	DateKindTime
	DateKindDateTime
)

func (k DateKind) String() string {
	switch k {
	case DateKindDate:
		return "date"
	case DateKindTime:
		return "time"
	case DateKindDateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// DateTime is the payload of date values.
type DateTime struct {
	Time time.Time
	Kind DateKind
}

// ISO renders the value in ISO 8601, limited to the parts the kind uses.
func (d DateTime) ISO() string {
	switch d.Kind {
	case DateKindDate:
		return d.Time.Format("2006-01-02")
	case DateKindTime:
		return d.Time.Format("15:04:05Z07:00")
	default:
		return d.Time.Format(time.RFC3339)
	}
}

// WithKind returns a copy of d with another kind.
func (d DateTime) WithKind(kind DateKind) DateTime {
	return DateTime{Time: d.Time, Kind: kind}
}
