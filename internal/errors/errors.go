// Package errors defines the structured error type shared by every layer of
// the engine.
package errors

import (
	goerrors "errors"
	"fmt"

	"github.com/ftlgo/ftl/syntax"
)

// ErrorKind describes the category of an error.
type ErrorKind int

const (
	// ErrSyntax is raised by the lexer and the parser.
	ErrSyntax ErrorKind = iota
	// ErrInvalidReference is raised when an undefined or null value is
	// dereferenced without an existence operator.
	ErrInvalidReference
	// ErrInvalidType is raised when an operator or built-in receives a value
	// of the wrong shape.
	ErrInvalidType
	// ErrArithmetic covers incompatible operands of arithmetic and comparison
	// operators as well as division by zero.
	ErrArithmetic
	// ErrBounds is raised for out-of-range indexes and slices.
	ErrBounds
	// ErrDeclaration is raised by namespaces in strict variable mode.
	ErrDeclaration
	// ErrEval wraps a parse error raised while evaluating a dynamic expression.
	ErrEval
	ErrTemplateNotFound
	ErrUnknownBuiltin
	ErrInvalidOperation
	ErrBadArguments
	ErrRecursionLimit
	ErrStopped
	ErrOutOfFuel
	ErrIO
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSyntax:
		return "syntax error"
	case ErrInvalidReference:
		return "invalid reference"
	case ErrInvalidType:
		return "invalid type"
	case ErrArithmetic:
		return "arithmetic error"
	case ErrBounds:
		return "bounds error"
	case ErrDeclaration:
		return "declaration error"
	case ErrEval:
		return "eval error"
	case ErrTemplateNotFound:
		return "template not found"
	case ErrUnknownBuiltin:
		return "unknown built-in"
	case ErrInvalidOperation:
		return "invalid operation"
	case ErrBadArguments:
		return "bad arguments"
	case ErrRecursionLimit:
		return "recursion limit exceeded"
	case ErrStopped:
		return "stopped"
	case ErrOutOfFuel:
		return "engine ran out of fuel"
	case ErrIO:
		return "output error"
	default:
		return "error"
	}
}

// Fatal reports whether errors of this kind abort a render even inside an
// attempt block.
func (k ErrorKind) Fatal() bool {
	switch k {
	case ErrStopped, ErrOutOfFuel, ErrRecursionLimit, ErrIO:
		return true
	}
	return false
}

// Error represents an error that occurred while parsing or rendering a
// template.
type Error struct {
	Kind    ErrorKind
	Message string
	Span    *syntax.Span
	// Name is the name of the template the error was raised in.
	Name string
	// Source is the template source, used for debug rendering.
	Source string
	// Expr is the source text of the failing expression, if known.
	Expr      string
	DebugInfo *DebugInfo
	cause     error
}

// New creates a new error.
func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates a new error with a formatted message.
func Newf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Name != "" && e.Span != nil {
		return fmt.Sprintf("%s: %s (in %s at line %d, column %d)", e.Kind, e.Message, e.Name, e.Span.StartLine, e.Span.StartCol+1)
	}
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (at line %d, column %d)", e.Kind, e.Message, e.Span.StartLine, e.Span.StartCol+1)
	}
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Kind, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the error this error was caused by.
func (e *Error) Unwrap() error {
	return e.cause
}

// Format implements fmt.Formatter. The %+v verb renders debug info and the
// chain of causes.
func (e *Error) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			writeDetailed(f, e, true)
			return
		}
		_, _ = fmt.Fprint(f, e.Error())
	case 's':
		_, _ = fmt.Fprint(f, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(f, "%q", e.Error())
	}
}

// WithSpan sets the span if the error does not have one yet.
func (e *Error) WithSpan(span syntax.Span) *Error {
	if e.Span == nil {
		e.Span = &span
	}
	return e
}

// WithName sets the template name if the error does not have one yet.
func (e *Error) WithName(name string) *Error {
	if e.Name == "" {
		e.Name = name
	}
	return e
}

// WithSource sets the template source.
func (e *Error) WithSource(source string) *Error {
	if e.Source == "" {
		e.Source = source
	}
	return e
}

// WithExpr records the source text of the failing expression.
func (e *Error) WithExpr(expr string) *Error {
	if e.Expr == "" {
		e.Expr = expr
	}
	return e
}

// WithCause records the error that caused this one.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// IsFatal reports whether the error must not be swallowed by an attempt
// block.
func (e *Error) IsFatal() bool {
	return e.Kind.Fatal()
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ftlErr *Error
	if goerrors.As(err, &ftlErr) {
		return ftlErr.Kind, true
	}
	return 0, false
}

// Is reports whether err's chain holds an *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = goerrors.Unwrap(err)
	}
	return false
}
