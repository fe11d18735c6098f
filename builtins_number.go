package ftl

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ftlgo/ftl/value"
)

// decimalValue stores integral decimals that fit as integers.
func decimalValue(d decimal.Decimal) value.Value {
	if d.IsInteger() && d.BigInt().IsInt64() {
		return value.FromInt(d.IntPart())
	}
	return value.FromDecimal(d)
}

func parseNumber(s string) (value.Value, error) {
	t := strings.TrimSpace(s)
	switch t {
	case "INF", "+INF", "Infinity":
		return value.FromFloat(math.Inf(1)), nil
	case "-INF", "-Infinity":
		return value.FromFloat(math.Inf(-1)), nil
	case "NaN":
		return value.FromFloat(math.NaN()), nil
	}
	d, err := decimal.NewFromString(t)
	if err != nil {
		return value.Undefined(), newErrorf(ErrBadArguments, "can not convert %q to a number", s)
	}
	return decimalValue(d), nil
}

// roundNumber applies a decimal rounding function. NaN and the infinities
// are returned as they are.
func roundNumber(v value.Value, round func(decimal.Decimal) decimal.Decimal) (value.Value, error) {
	if v.IsInteger() {
		if _, ok := v.AsInt(); ok {
			return v, nil
		}
	}
	d, err := v.AsDecimal()
	if err != nil {
		return v, nil
	}
	return decimalValue(round(d)), nil
}

// biRound rounds half up: 2.5 becomes 3 and -2.5 becomes -2.
func biRound(_ *invocation, v value.Value) (value.Value, error) {
	half := decimal.NewFromFloat(0.5)
	return roundNumber(v, func(d decimal.Decimal) decimal.Decimal { return d.Add(half).Floor() })
}

func biFloor(_ *invocation, v value.Value) (value.Value, error) {
	return roundNumber(v, decimal.Decimal.Floor)
}

func biCeiling(_ *invocation, v value.Value) (value.Value, error) {
	return roundNumber(v, decimal.Decimal.Ceil)
}

// biInt drops the fractional part.
func biInt(_ *invocation, v value.Value) (value.Value, error) {
	return roundNumber(v, func(d decimal.Decimal) decimal.Decimal { return d.Truncate(0) })
}

func biAbs(_ *invocation, v value.Value) (value.Value, error) {
	if f, ok := v.AsFloat(); ok && f < 0 {
		return value.Negate(v)
	}
	if d, err := v.AsDecimal(); err == nil && d.Sign() < 0 {
		return value.Negate(v)
	}
	return v, nil
}

func biToFloat(_ *invocation, v value.Value) (value.Value, error) {
	f, _ := v.AsFloat()
	return value.FromFloat(f), nil
}

func biIsNaN(_ *invocation, v value.Value) (value.Value, error) {
	f, _ := v.AsFloat()
	return value.FromBool(math.IsNaN(f)), nil
}

func biIsInfinite(_ *invocation, v value.Value) (value.Value, error) {
	f, _ := v.AsFloat()
	return value.FromBool(math.IsInf(f, 0)), nil
}

// abcBuiltin numbers with letters: 1 is a, 26 is z, 27 is aa.
func abcBuiltin(upper bool) func(*invocation, value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value) (value.Value, error) {
		n, ok := v.AsInt()
		if !ok || n < 1 {
			return value.Undefined(), in.errorf(ErrBadArguments, "the number must be a positive integer, got %s", value.NumberString(v))
		}
		base := byte('a')
		if upper {
			base = 'A'
		}
		var out []byte
		for n > 0 {
			n--
			out = append([]byte{base + byte(n%26)}, out...)
			n /= 26
		}
		return value.FromString(string(out)), nil
	}
}

// numberToDate reads a number as milliseconds since the epoch.
func numberToDate(kind value.DateKind) func(*invocation, value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value) (value.Value, error) {
		ms, ok := v.AsInt()
		if !ok {
			return value.Undefined(), in.errorf(ErrBadArguments, "expects whole milliseconds, got %s", value.NumberString(v))
		}
		return value.FromTime(time.UnixMilli(ms).In(in.e.fmt.loc), kind), nil
	}
}

// biLong converts a number to an integer, or a date to milliseconds since
// the epoch.
func biLong(in *invocation, v value.Value) (value.Value, error) {
	if d, ok := v.AsDate(); ok {
		return value.FromInt(d.Time.UnixMilli()), nil
	}
	return biInt(in, v)
}

// biString formats a value with the current settings.
func biString(in *invocation, v value.Value) (value.Value, error) {
	if v.Kind() == value.KindString {
		return v, nil
	}
	s, err := in.e.display(v)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromString(s), nil
}

// biStringFormat formats with explicit arguments: a number or date pattern,
// or the words for true and false.
func biStringFormat(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	switch v.Kind() {
	case value.KindBool:
		if len(args) != 2 {
			return value.Undefined(), in.errorf(ErrBadArguments, "a boolean takes the words for true and false, got %d arguments", len(args))
		}
		t, err := in.stringArg(args, 0)
		if err != nil {
			return value.Undefined(), err
		}
		f, err := in.stringArg(args, 1)
		if err != nil {
			return value.Undefined(), err
		}
		b, _ := v.AsBool()
		if b {
			return value.FromString(t), nil
		}
		return value.FromString(f), nil
	case value.KindNumber, value.KindDate:
		if len(args) != 1 {
			return value.Undefined(), in.errorf(ErrBadArguments, "a %s takes one format argument, got %d", v.TypeName(), len(args))
		}
		format, err := in.stringArg(args, 0)
		if err != nil {
			return value.Undefined(), err
		}
		var s string
		if d, ok := v.AsDate(); ok {
			s, err = in.e.fmt.formatDate(d, format)
		} else {
			s, err = in.e.fmt.formatNumber(v, format)
		}
		if err != nil {
			return value.Undefined(), err
		}
		return value.FromString(s), nil
	}
	return value.Undefined(), in.errorf(ErrBadArguments, "a string takes no format arguments")
}

// biC formats for computer consumption: numbers without grouping, booleans
// as true and false, strings as quoted literals.
func biC(_ *invocation, v value.Value) (value.Value, error) {
	switch v.Kind() {
	case value.KindNumber:
		return value.FromString(value.NumberString(v)), nil
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			return value.FromString("true"), nil
		}
		return value.FromString("false"), nil
	}
	return value.FromString(jsonQuote(str(v))), nil
}

// biCN is ?c that also accepts missing values and prints them as null.
func biCN(in *invocation, v value.Value) (value.Value, error) {
	if v.IsMissing() {
		return value.FromString("null"), nil
	}
	return biC(in, v)
}
