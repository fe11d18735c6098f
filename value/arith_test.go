package value

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftlgo/ftl/internal/errors"
)

func dec(s string) Value {
	return FromDecimal(decimal.RequireFromString(s))
}

type arithCase struct {
	name     string
	op       byte
	a, b     Value
	want     string
	wantType string
}

func applyOp(eng ArithmeticEngine, op byte, a, b Value) (Value, error) {
	switch op {
	case '+':
		return eng.Add(a, b)
	case '-':
		return eng.Subtract(a, b)
	case '*':
		return eng.Multiply(a, b)
	case '/':
		return eng.Divide(a, b)
	}
	return eng.Modulus(a, b)
}

func runArith(t *testing.T, eng ArithmeticEngine, cases []arithCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := applyOp(eng, tc.op, tc.a, tc.b)
			require.NoError(t, err)
			assert.Equal(t, tc.want, NumberString(got))
			assert.Equal(t, tc.wantType, got.TypeName())
		})
	}
}

func TestBigDecimalPromotion(t *testing.T) {
	runArith(t, BigDecimalEngine, []arithCase{
		{"int plus int", '+', FromInt(1), FromInt(2), "3", "number (integer)"},
		{"int overflow", '+', FromInt(math.MaxInt64), FromInt(1), "9223372036854775808", "number (decimal)"},
		{"int times int overflow", '*', FromInt(math.MaxInt64), FromInt(2), "18446744073709551614", "number (decimal)"},
		{"exact division", '/', FromInt(10), FromInt(2), "5", "number (integer)"},
		{"half", '/', FromInt(1), FromInt(2), "0.5", "number (decimal)"},
		{"third", '/', FromInt(1), FromInt(3), "0.333333333333", "number (decimal)"},
		{"two thirds rounds half up", '/', FromInt(2), FromInt(3), "0.666666666667", "number (decimal)"},
		{"float sum is exact", '+', FromFloat(0.1), FromFloat(0.2), "0.3", "number (decimal)"},
		{"integral decimal narrows", '*', dec("1.50"), FromInt(2), "3", "number (integer)"},
		{"modulus", '%', FromInt(7), FromInt(3), "1", "number (integer)"},
		{"decimal modulus", '%', dec("7.5"), FromInt(2), "1.5", "number (decimal)"},
		{"NaN stays float", '+', FromFloat(math.NaN()), FromInt(1), "NaN", "number (float)"},
		{"infinity stays float", '*', FromFloat(math.Inf(1)), FromInt(2), "INF", "number (float)"},
	})
}

func TestConservativePromotion(t *testing.T) {
	runArith(t, ConservativeEngine, []arithCase{
		{"int plus int", '+', FromInt(1), FromInt(2), "3", "number (integer)"},
		{"int overflow", '+', FromInt(math.MaxInt64), FromInt(1), "9223372036854775808", "number (decimal)"},
		{"exact int division", '/', FromInt(6), FromInt(3), "2", "number (integer)"},
		{"inexact int division", '/', FromInt(7), FromInt(2), "3.5", "number (decimal)"},
		{"int and float", '+', FromFloat(1.5), FromInt(1), "2.5", "number (float)"},
		{"float and decimal", '+', dec("1.5"), FromFloat(1), "2.5", "number (decimal)"},
		{"decimal keeps scale", '*', dec("1.50"), FromInt(2), "3", "number (decimal)"},
		{"float division by zero", '/', FromFloat(5), FromFloat(0), "INF", "number (float)"},
		{"int modulus", '%', FromInt(-7), FromInt(3), "-1", "number (integer)"},
	})
}

func TestDivisionByZero(t *testing.T) {
	for _, eng := range []ArithmeticEngine{BigDecimalEngine, ConservativeEngine} {
		t.Run(eng.Name(), func(t *testing.T) {
			_, err := eng.Divide(FromInt(5), FromInt(0))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrArithmetic))

			_, err = eng.Modulus(FromInt(5), FromInt(0))
			assert.True(t, errors.Is(err, errors.ErrArithmetic))

			_, err = eng.Divide(dec("1.5"), dec("0"))
			assert.True(t, errors.Is(err, errors.ErrArithmetic))
		})
	}
}

func TestNonNumbers(t *testing.T) {
	_, err := BigDecimalEngine.Add(FromString("1"), FromInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrArithmetic))
	assert.Contains(t, err.Error(), "string")
}

func TestCompareNumbers(t *testing.T) {
	tests := []struct {
		a, b Value
		want int
	}{
		{FromInt(1), FromFloat(1.0), 0},
		{FromInt(1), dec("1.000"), 0},
		{dec("0.1"), FromFloat(0.1), 0},
		{FromInt(2), dec("10"), -1},
		{FromFloat(math.Inf(1)), dec("1e100"), 1},
	}
	for _, eng := range []ArithmeticEngine{BigDecimalEngine, ConservativeEngine} {
		for _, tc := range tests {
			got, err := eng.CompareNumbers(tc.a, tc.b)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got, "%s: %s vs %s", eng.Name(), tc.a.Repr(), tc.b.Repr())
		}
	}
}

func TestEngineByName(t *testing.T) {
	eng, ok := EngineByName("BigDecimal")
	require.True(t, ok)
	assert.Equal(t, "bigdecimal", eng.Name())

	eng, ok = EngineByName("conservative")
	require.True(t, ok)
	assert.Equal(t, ConservativeEngine, eng)

	_, ok = EngineByName("float")
	assert.False(t, ok)
}

func TestNegate(t *testing.T) {
	v, err := Negate(FromInt(math.MinInt64))
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775808", NumberString(v))

	v, err = Negate(dec("-2.5"))
	require.NoError(t, err)
	assert.Equal(t, "2.5", NumberString(v))

	_, err = Negate(FromString("x"))
	assert.True(t, errors.Is(err, errors.ErrInvalidType))
}
