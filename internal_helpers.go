package ftl

import (
	goerrors "errors"
	"io"

	"github.com/ftlgo/ftl/internal/errors"
	"github.com/ftlgo/ftl/syntax"
	"github.com/ftlgo/ftl/value"
)

// Error represents an error that occurred during template processing.
type Error = errors.Error

// ErrorKind describes the category of a template error.
type ErrorKind = errors.ErrorKind

const (
	ErrSyntax           = errors.ErrSyntax
	ErrInvalidReference = errors.ErrInvalidReference
	ErrInvalidType      = errors.ErrInvalidType
	ErrArithmetic       = errors.ErrArithmetic
	ErrBounds           = errors.ErrBounds
	ErrDeclaration      = errors.ErrDeclaration
	ErrEval             = errors.ErrEval
	ErrTemplateNotFound = errors.ErrTemplateNotFound
	ErrUnknownBuiltin   = errors.ErrUnknownBuiltin
	ErrInvalidOperation = errors.ErrInvalidOperation
	ErrBadArguments     = errors.ErrBadArguments
	ErrRecursionLimit   = errors.ErrRecursionLimit
	ErrStopped          = errors.ErrStopped
	ErrOutOfFuel        = errors.ErrOutOfFuel
	ErrIO               = errors.ErrIO
)

// NewError creates a new error with the given kind and message.
func NewError(kind ErrorKind, msg string) *Error {
	return errors.New(kind, msg)
}

// IsKind reports whether err holds a template error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return errors.Is(err, kind)
}

func newErrorf(kind ErrorKind, format string, args ...any) *Error {
	return errors.Newf(kind, format, args...)
}

// errorAt attaches a location to err. Errors that are not template errors
// are wrapped as evaluation errors so that every failure has a kind.
func errorAt(err error, span syntax.Span) error {
	if err == nil {
		return nil
	}
	var tErr *Error
	if !goerrors.As(err, &tErr) {
		return errors.New(ErrEval, err.Error()).WithCause(err).WithSpan(span)
	}
	return tErr.WithSpan(span)
}

// typeError reports an operand of the wrong shape.
func typeError(what, expected string, got value.Value) *Error {
	return newErrorf(ErrInvalidType, "%s expects %s, got %s", what, expected, got.TypeName())
}

// isFatal reports whether err must not be swallowed by <#attempt>.
func isFatal(err error) bool {
	var tErr *Error
	if goerrors.As(err, &tErr) {
		return tErr.IsFatal()
	}
	return false
}

func writeString(w io.Writer, s string) error {
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(w, s); err != nil {
		return newErrorf(ErrIO, "writing output: %v", err).WithCause(err)
	}
	return nil
}
