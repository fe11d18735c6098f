package value

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ftlgo/ftl/internal/errors"
)

// numClass orders number payloads for promotion.
type numClass int

const (
	numInt numClass = iota
	numFloat
	numDecimal
)

func classOf(v Value) (numClass, bool) {
	switch v.data.(type) {
	case int64:
		return numInt, true
	case float64:
		return numFloat, true
	case decimal.Decimal:
		return numDecimal, true
	}
	return 0, false
}

// IsNumber reports whether v is a number.
func (v Value) IsNumber() bool {
	_, ok := classOf(v)
	return ok
}

// AsInt returns the value as an int64 if it is an integral number that fits.
func (v Value) AsInt() (int64, bool) {
	switch d := v.data.(type) {
	case int64:
		return d, true
	case float64:
		if d == math.Trunc(d) && d >= math.MinInt64 && d <= math.MaxInt64 {
			return int64(d), true
		}
	case decimal.Decimal:
		if d.IsInteger() {
			bi := d.BigInt()
			if bi.IsInt64() {
				return bi.Int64(), true
			}
		}
	}
	return 0, false
}

// AsFloat returns the value as a float64 if it is a number.
func (v Value) AsFloat() (float64, bool) {
	switch d := v.data.(type) {
	case int64:
		return float64(d), true
	case float64:
		return d, true
	case decimal.Decimal:
		return d.InexactFloat64(), true
	}
	return 0, false
}

// AsDecimal converts a number to a decimal. NaN and infinities can not be
// represented and yield an arithmetic error.
func (v Value) AsDecimal() (decimal.Decimal, error) {
	switch d := v.data.(type) {
	case int64:
		return decimal.NewFromInt(d), nil
	case float64:
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return decimal.Zero, errors.Newf(errors.ErrArithmetic, "%s can not be converted to a decimal", NumberString(v))
		}
		return decimal.NewFromFloat(d), nil
	case decimal.Decimal:
		return d, nil
	}
	return decimal.Zero, errors.Newf(errors.ErrInvalidType, "expected a number, got %s", v.TypeName())
}

// IsInteger reports whether v is a number without a fractional part.
func (v Value) IsInteger() bool {
	switch d := v.data.(type) {
	case int64:
		return true
	case float64:
		return d == math.Trunc(d) && !math.IsInf(d, 0)
	case decimal.Decimal:
		return d.IsInteger()
	}
	return false
}

// NumberString renders a number in the computer format: no grouping, a dot
// as decimal separator and no superfluous trailing zeros.
func NumberString(v Value) string {
	switch d := v.data.(type) {
	case int64:
		return strconv.FormatInt(d, 10)
	case float64:
		switch {
		case math.IsNaN(d):
			return "NaN"
		case math.IsInf(d, 1):
			return "INF"
		case math.IsInf(d, -1):
			return "-INF"
		}
		return strconv.FormatFloat(d, 'f', -1, 64)
	case decimal.Decimal:
		return d.String()
	}
	return ""
}

// normalizeDecimal turns an integral decimal that fits an int64 back into an
// int64 so that results of exact arithmetic stay cheap to handle.
func normalizeDecimal(d decimal.Decimal) Value {
	if d.IsInteger() {
		bi := d.BigInt()
		if bi.IsInt64() {
			return FromInt(bi.Int64())
		}
	}
	return FromDecimal(d)
}

func scaleOf(d decimal.Decimal) int32 {
	if e := d.Exponent(); e < 0 {
		return -e
	}
	return 0
}

func addInt(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) == (b > 0) {
		return c, true
	}
	return 0, false
}

func subInt(a, b int64) (int64, bool) {
	c := a - b
	if (c < a) == (b > 0) {
		return c, true
	}
	return 0, false
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}
