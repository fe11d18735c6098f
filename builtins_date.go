package ftl

import (
	"time"

	"github.com/ftlgo/ftl/value"
)

// dateBuiltin implements ?date, ?time and ?datetime without arguments: a
// string is parsed as ISO 8601, a date value is marked as the given kind.
func dateBuiltin(kind value.DateKind) func(*invocation, value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value) (value.Value, error) {
		if d, ok := v.AsDate(); ok {
			return value.FromDate(d.WithKind(kind)), nil
		}
		d, err := in.e.fmt.parseDate(str(v), kind, "")
		if err != nil {
			return value.Undefined(), err
		}
		return value.FromDate(d), nil
	}
}

// dateParseBuiltin implements s?date("pattern") and the like.
func dateParseBuiltin(kind value.DateKind) func(*invocation, value.Value, []value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
		if v.Kind() != value.KindString {
			return value.Undefined(), in.errorf(ErrBadArguments, "only a string can be parsed with a pattern, got %s", v.TypeName())
		}
		pattern, err := in.stringArg(args, 0)
		if err != nil {
			return value.Undefined(), err
		}
		d, err := in.e.fmt.parseDate(str(v), kind, pattern)
		if err != nil {
			return value.Undefined(), err
		}
		return value.FromDate(d), nil
	}
}

// dateIfUnknown marks a date whose kind is unknown and leaves others alone.
func dateIfUnknown(kind value.DateKind) func(*invocation, value.Value) (value.Value, error) {
	return func(_ *invocation, v value.Value) (value.Value, error) {
		d, _ := v.AsDate()
		if d.Kind != value.DateKindUnknown {
			return v, nil
		}
		return value.FromDate(d.WithKind(kind)), nil
	}
}

// isoBuiltin formats in ISO 8601, in UTC or in the time_zone setting.
func isoBuiltin(utc bool) func(*invocation, value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value) (value.Value, error) {
		d, _ := v.AsDate()
		if d.Kind == value.DateKindUnknown {
			d.Kind = value.DateKindDateTime
		}
		loc := in.e.fmt.loc
		if utc {
			loc = time.UTC
		}
		return value.FromString(value.DateTime{Time: d.Time.In(loc), Kind: d.Kind}.ISO()), nil
	}
}

func dateKindTest(kinds ...value.DateKind) func(*invocation, value.Value) (value.Value, error) {
	return func(_ *invocation, v value.Value) (value.Value, error) {
		d, ok := v.AsDate()
		if !ok {
			return value.False(), nil
		}
		for _, k := range kinds {
			if d.Kind == k {
				return value.True(), nil
			}
		}
		return value.False(), nil
	}
}
