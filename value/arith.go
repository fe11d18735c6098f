package value

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ftlgo/ftl/internal/errors"
)

// DivisionMinScale is the minimum number of fractional digits kept by
// decimal division.
const DivisionMinScale = 12

// ArithmeticEngine implements the numeric operators. Engines differ in how
// they promote mixed payloads and in their division semantics.
type ArithmeticEngine interface {
	Name() string
	Add(a, b Value) (Value, error)
	Subtract(a, b Value) (Value, error)
	Multiply(a, b Value) (Value, error)
	Divide(a, b Value) (Value, error)
	Modulus(a, b Value) (Value, error)
	// CompareNumbers returns -1, 0 or 1.
	CompareNumbers(a, b Value) (int, error)
}

var (
	// BigDecimalEngine computes everything exactly with decimals. Results
	// that are integral and fit an int64 are returned as integers. Division
	// keeps max(12, scale(a), scale(b)) fractional digits, rounding half
	// away from zero. Float operands that are NaN or infinite fall back to
	// float arithmetic.
	BigDecimalEngine ArithmeticEngine = bigDecimalEngine{}

	// ConservativeEngine keeps the payload class of its operands, promoting
	// int < float < decimal. Integer overflow promotes to decimal. Integer
	// division stays integral when exact and otherwise falls back to decimal
	// division; float division by zero yields an infinity.
	ConservativeEngine ArithmeticEngine = conservativeEngine{}
)

// EngineByName returns the engine registered under name ("bigdecimal" or
// "conservative").
func EngineByName(name string) (ArithmeticEngine, bool) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "")) {
	case "bigdecimal", "default", "":
		return BigDecimalEngine, true
	case "conservative":
		return ConservativeEngine, true
	}
	return nil, false
}

func numbers(op string, a, b Value) (numClass, numClass, error) {
	ca, okA := classOf(a)
	cb, okB := classOf(b)
	if !okA || !okB {
		return 0, 0, errors.Newf(errors.ErrArithmetic, "can not apply %s to %s and %s", op, a.TypeName(), b.TypeName())
	}
	return ca, cb, nil
}

func nonFinite(a, b Value) bool {
	for _, v := range [2]Value{a, b} {
		if f, ok := v.data.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return true
		}
	}
	return false
}

func divisionByZero() error {
	return errors.New(errors.ErrArithmetic, "division by zero")
}

func divideDecimal(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, divisionByZero()
	}
	scale := max(int32(DivisionMinScale), scaleOf(a), scaleOf(b))
	return a.DivRound(b, scale), nil
}

func floatOp(op byte, a, b Value) Value {
	fa, _ := a.AsFloat()
	fb, _ := b.AsFloat()
	switch op {
	case '+':
		return FromFloat(fa + fb)
	case '-':
		return FromFloat(fa - fb)
	case '*':
		return FromFloat(fa * fb)
	case '/':
		return FromFloat(fa / fb)
	default:
		return FromFloat(math.Mod(fa, fb))
	}
}

func compareFloats(a, b Value) int {
	fa, _ := a.AsFloat()
	fb, _ := b.AsFloat()
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type bigDecimalEngine struct{}

func (bigDecimalEngine) Name() string { return "bigdecimal" }

func (e bigDecimalEngine) apply(op byte, opName string, a, b Value) (Value, error) {
	ca, cb, err := numbers(opName, a, b)
	if err != nil {
		return Value{}, err
	}
	if ca == numInt && cb == numInt {
		x, y := a.data.(int64), b.data.(int64)
		var r int64
		ok := true
		switch op {
		case '+':
			r, ok = addInt(x, y)
		case '-':
			r, ok = subInt(x, y)
		case '*':
			r, ok = mulInt(x, y)
		case '%':
			if y == 0 {
				return Value{}, divisionByZero()
			}
			if y == -1 {
				return FromInt(0), nil
			}
			r = x % y
		case '/':
			ok = false
		}
		if ok {
			return FromInt(r), nil
		}
	}
	if nonFinite(a, b) {
		return floatOp(op, a, b), nil
	}
	da, err := a.AsDecimal()
	if err != nil {
		return Value{}, err
	}
	db, err := b.AsDecimal()
	if err != nil {
		return Value{}, err
	}
	switch op {
	case '+':
		return normalizeDecimal(da.Add(db)), nil
	case '-':
		return normalizeDecimal(da.Sub(db)), nil
	case '*':
		return normalizeDecimal(da.Mul(db)), nil
	case '/':
		q, err := divideDecimal(da, db)
		if err != nil {
			return Value{}, err
		}
		return normalizeDecimal(q), nil
	default:
		if db.IsZero() {
			return Value{}, divisionByZero()
		}
		return normalizeDecimal(da.Mod(db)), nil
	}
}

func (e bigDecimalEngine) Add(a, b Value) (Value, error)      { return e.apply('+', "+", a, b) }
func (e bigDecimalEngine) Subtract(a, b Value) (Value, error) { return e.apply('-', "-", a, b) }
func (e bigDecimalEngine) Multiply(a, b Value) (Value, error) { return e.apply('*', "*", a, b) }
func (e bigDecimalEngine) Divide(a, b Value) (Value, error)   { return e.apply('/', "/", a, b) }
func (e bigDecimalEngine) Modulus(a, b Value) (Value, error)  { return e.apply('%', "%", a, b) }

func (bigDecimalEngine) CompareNumbers(a, b Value) (int, error) {
	ca, cb, err := numbers("comparison", a, b)
	if err != nil {
		return 0, err
	}
	if ca == numInt && cb == numInt {
		return compareInts(a.data.(int64), b.data.(int64)), nil
	}
	if nonFinite(a, b) {
		return compareFloats(a, b), nil
	}
	da, _ := a.AsDecimal()
	db, _ := b.AsDecimal()
	return da.Cmp(db), nil
}

type conservativeEngine struct{}

func (conservativeEngine) Name() string { return "conservative" }

func (e conservativeEngine) apply(op byte, opName string, a, b Value) (Value, error) {
	ca, cb, err := numbers(opName, a, b)
	if err != nil {
		return Value{}, err
	}
	switch max(ca, cb) {
	case numInt:
		x, y := a.data.(int64), b.data.(int64)
		switch op {
		case '+':
			if r, ok := addInt(x, y); ok {
				return FromInt(r), nil
			}
		case '-':
			if r, ok := subInt(x, y); ok {
				return FromInt(r), nil
			}
		case '*':
			if r, ok := mulInt(x, y); ok {
				return FromInt(r), nil
			}
		case '/':
			if y == 0 {
				return Value{}, divisionByZero()
			}
			if x%y == 0 && !(x == math.MinInt64 && y == -1) {
				return FromInt(x / y), nil
			}
		case '%':
			if y == 0 {
				return Value{}, divisionByZero()
			}
			if y == -1 {
				return FromInt(0), nil
			}
			return FromInt(x % y), nil
		}
	case numFloat:
		return floatOp(op, a, b), nil
	}
	if nonFinite(a, b) {
		return floatOp(op, a, b), nil
	}
	da, _ := a.AsDecimal()
	db, _ := b.AsDecimal()
	switch op {
	case '+':
		return FromDecimal(da.Add(db)), nil
	case '-':
		return FromDecimal(da.Sub(db)), nil
	case '*':
		return FromDecimal(da.Mul(db)), nil
	case '/':
		q, err := divideDecimal(da, db)
		if err != nil {
			return Value{}, err
		}
		return FromDecimal(q), nil
	default:
		if db.IsZero() {
			return Value{}, divisionByZero()
		}
		return FromDecimal(da.Mod(db)), nil
	}
}

func (e conservativeEngine) Add(a, b Value) (Value, error)      { return e.apply('+', "+", a, b) }
func (e conservativeEngine) Subtract(a, b Value) (Value, error) { return e.apply('-', "-", a, b) }
func (e conservativeEngine) Multiply(a, b Value) (Value, error) { return e.apply('*', "*", a, b) }
func (e conservativeEngine) Divide(a, b Value) (Value, error)   { return e.apply('/', "/", a, b) }
func (e conservativeEngine) Modulus(a, b Value) (Value, error)  { return e.apply('%', "%", a, b) }

func (conservativeEngine) CompareNumbers(a, b Value) (int, error) {
	ca, cb, err := numbers("comparison", a, b)
	if err != nil {
		return 0, err
	}
	switch max(ca, cb) {
	case numInt:
		return compareInts(a.data.(int64), b.data.(int64)), nil
	case numFloat:
		return compareFloats(a, b), nil
	}
	if nonFinite(a, b) {
		return compareFloats(a, b), nil
	}
	da, _ := a.AsDecimal()
	db, _ := b.AsDecimal()
	return da.Cmp(db), nil
}

// Negate returns -v.
func Negate(v Value) (Value, error) {
	switch d := v.data.(type) {
	case int64:
		if d == math.MinInt64 {
			return FromDecimal(decimal.NewFromInt(d).Neg()), nil
		}
		return FromInt(-d), nil
	case float64:
		return FromFloat(-d), nil
	case decimal.Decimal:
		return FromDecimal(d.Neg()), nil
	}
	return Value{}, errors.Newf(errors.ErrInvalidType, "can not negate %s", v.TypeName())
}
