package errors

import (
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ftlgo/ftl/syntax"
)

func TestErrorString(t *testing.T) {
	span := syntax.Span{StartLine: 3, StartCol: 4, EndLine: 3, EndCol: 9}
	tests := []struct {
		err  *Error
		want string
	}{
		{New(ErrBounds, "too far"), "bounds error: too far"},
		{New(ErrSyntax, "bad").WithName("a.ftl"), "syntax error: bad (in a.ftl)"},
		{New(ErrSyntax, "bad").WithSpan(span), "syntax error: bad (at line 3, column 5)"},
		{Newf(ErrInvalidType, "got %d", 1).WithName("a.ftl").WithSpan(span), "invalid type: got 1 (in a.ftl at line 3, column 5)"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.err.Error())
		assert.Equal(t, tc.want, fmt.Sprintf("%v", tc.err))
	}
}

func TestWithersKeepFirstValue(t *testing.T) {
	inner := syntax.Span{StartLine: 1, StartCol: 2}
	outer := syntax.Span{StartLine: 5, StartCol: 0}
	err := New(ErrEval, "x").WithSpan(inner).WithSpan(outer).WithName("inner.ftl").WithName("outer.ftl").WithExpr("a").WithExpr("b")
	assert.Equal(t, inner, *err.Span)
	assert.Equal(t, "inner.ftl", err.Name)
	assert.Equal(t, "a", err.Expr)
}

func TestKindsAndCauses(t *testing.T) {
	root := goerrors.New("disk on fire")
	err := New(ErrIO, "writing").WithCause(root)
	wrapped := fmt.Errorf("render: %w", err)

	assert.True(t, Is(wrapped, ErrIO))
	assert.False(t, Is(wrapped, ErrSyntax))
	assert.ErrorIs(t, wrapped, root)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrIO, kind)
	_, ok = KindOf(root)
	assert.False(t, ok)
}

func TestFatalKinds(t *testing.T) {
	for _, k := range []ErrorKind{ErrStopped, ErrOutOfFuel, ErrRecursionLimit, ErrIO} {
		assert.True(t, New(k, "").IsFatal(), k.String())
	}
	for _, k := range []ErrorKind{ErrSyntax, ErrInvalidReference, ErrEval, ErrBadArguments} {
		assert.False(t, New(k, "").IsFatal(), k.String())
	}
}

func TestDebugFormat(t *testing.T) {
	err := New(ErrInvalidReference, "user.name is undefined").
		WithName("pages/index.ftl").
		WithSpan(syntax.Span{StartLine: 2, StartCol: 2, EndLine: 2, EndCol: 11}).
		WithExpr("user.name")
	err.DebugInfo = &DebugInfo{
		TemplateSource: "<h1>\n${user.name}\n</h1>",
		ReferencedVars: map[string]string{"user": `{"id": 7}`},
		MacroStack:     []string{"card (pages/index.ftl)"},
	}
	out := fmt.Sprintf("%+v", err)
	assert.Contains(t, out, "==> user.name")
	assert.Contains(t, out, " index.ftl ")
	assert.Contains(t, out, "   1 | <h1>\n   2 > ${user.name}\n")
	assert.Contains(t, out, "     i   ^^^^^^^^^ invalid reference\n")
	assert.Contains(t, out, "   3 | </h1>\n")
	assert.Contains(t, out, "Macro stack:\n    - card (pages/index.ftl)\n")
	assert.Contains(t, out, "Referenced variables:\n    user: {\"id\": 7}\n")
}

func TestDebugFormatShowsCauses(t *testing.T) {
	inner := New(ErrSyntax, "unexpected end")
	err := New(ErrEval, "?eval failed").WithCause(inner)
	out := fmt.Sprintf("%+v", err)
	assert.Equal(t, "eval error: ?eval failed\n\ncaused by: syntax error: unexpected end", out)
}
