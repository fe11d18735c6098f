package ftl

import (
	"fmt"

	"github.com/ftlgo/ftl/internal/parser"
	"github.com/ftlgo/ftl/value"
)

// shape is a set of value kinds a built-in accepts as its operand.
type shape uint16

const (
	shapeString shape = 1 << iota
	shapeNumber
	shapeBool
	shapeDate
	shapeSeq
	shapeCollection
	shapeHash
	shapeNode
	shapeMacro
	shapeMethod
	shapeObject

	shapeIterable = shapeSeq | shapeCollection
	shapeAny      = ^shape(0)
)

func shapeOf(v value.Value) shape {
	switch v.Kind() {
	case value.KindString:
		return shapeString
	case value.KindNumber:
		return shapeNumber
	case value.KindBool:
		return shapeBool
	case value.KindDate:
		return shapeDate
	case value.KindSeq:
		return shapeSeq
	case value.KindCollection:
		return shapeCollection
	case value.KindHash:
		return shapeHash
	case value.KindNode:
		return shapeNode
	case value.KindMacro:
		return shapeMacro
	case value.KindCallable:
		return shapeMethod
	case value.KindObject:
		return shapeObject
	}
	return 0
}

// builtin describes one ?name.
//
// A built-in with an eager form computes its result from the operand
// alone. A built-in that only has a call form evaluates to a method bound
// to the operand, which the template then calls with arguments:
// s?left_pad(5). With both forms, x?string and x?string("0.00") pick the
// eager and the call form respectively.
type builtin struct {
	accepts shape
	expects string
	// missing lets undefined and null operands through.
	missing bool

	eager func(in *invocation, v value.Value) (value.Value, error)

	call             func(in *invocation, v value.Value, args []value.Value) (value.Value, error)
	minArgs, maxArgs int // maxArgs < 0 means no limit

	// lazy receives its arguments unevaluated.
	lazy func(in *invocation, v value.Value, args []parser.Expr) (value.Value, error)

	// loop reads the state of the loop the operand variable belongs to.
	loop func(in *invocation, l *loopState, args []value.Value) (value.Value, error)
}

// invocation is one evaluation of a built-in.
type invocation struct {
	e    *Environment
	sc   *Scope
	name string
}

func (e *Environment) evalBuiltIn(sc *Scope, node *parser.BuiltIn, args []parser.Expr, called bool) (value.Value, error) {
	b, ok := builtinTable[node.Name]
	if !ok {
		return value.Undefined(), newErrorf(ErrUnknownBuiltin, "unknown built-in ?%s", node.Name).WithSpan(node.Span())
	}
	in := &invocation{e: e, sc: sc, name: node.Name}

	if b.loop != nil {
		return in.evalLoop(b, node, args, called)
	}

	var (
		v   value.Value
		err error
	)
	if b.missing {
		v, err = e.evalOptional(sc, node.Expr)
	} else {
		v, err = e.evalDefined(sc, node.Expr)
	}
	if err != nil {
		return v, err
	}
	if v.IsNull() && !b.missing {
		return v, e.nullError(node.Expr)
	}
	if !(b.missing && v.IsMissing()) && b.accepts&shapeOf(v) == 0 {
		return value.Undefined(), in.operandError(b.expects, v)
	}

	if b.lazy != nil {
		if !called {
			return value.Undefined(), newErrorf(ErrBadArguments, "?%s must be called with arguments", node.Name)
		}
		return b.lazy(in, v, args)
	}
	if !called {
		if b.eager != nil {
			return b.eager(in, v)
		}
		return value.FromCallable(&boundBuiltin{in: in, b: b, operand: v}), nil
	}
	if b.call == nil {
		return value.Undefined(), newErrorf(ErrBadArguments, "?%s does not take arguments", node.Name)
	}
	argv, err := e.evalArgs(sc, args)
	if err != nil {
		return value.Undefined(), err
	}
	return in.invoke(b, v, argv)
}

func (in *invocation) invoke(b *builtin, v value.Value, args []value.Value) (value.Value, error) {
	if len(args) < b.minArgs || (b.maxArgs >= 0 && len(args) > b.maxArgs) {
		return value.Undefined(), in.argCountError(b, len(args))
	}
	return b.call(in, v, args)
}

func (in *invocation) evalLoop(b *builtin, node *parser.BuiltIn, args []parser.Expr, called bool) (value.Value, error) {
	v, ok := node.Expr.(*parser.Var)
	if !ok {
		return value.Undefined(), newErrorf(ErrInvalidOperation, "?%s can only be applied to a loop variable", in.name)
	}
	l := in.sc.findLoop(v.Name)
	if l == nil {
		return value.Undefined(), newErrorf(ErrInvalidOperation, "?%s: %s is not a loop variable here", in.name, v.Name)
	}
	var argv []value.Value
	if called {
		var err error
		if argv, err = in.e.evalArgs(in.sc, args); err != nil {
			return value.Undefined(), err
		}
	}
	if len(argv) < b.minArgs || (b.maxArgs >= 0 && len(argv) > b.maxArgs) {
		return value.Undefined(), in.argCountError(b, len(argv))
	}
	return b.loop(in, l, argv)
}

// boundBuiltin is a call-only built-in waiting for its arguments.
type boundBuiltin struct {
	in      *invocation
	b       *builtin
	operand value.Value
}

func (bb *boundBuiltin) Call(_ value.State, args []value.Value) (value.Value, error) {
	return bb.in.invoke(bb.b, bb.operand, args)
}

func (in *invocation) operandError(expects string, v value.Value) *Error {
	return typeError("?"+in.name, expects, v)
}

func (in *invocation) argCountError(b *builtin, got int) *Error {
	var want string
	switch {
	case b.maxArgs < 0:
		want = fmt.Sprintf("at least %d", b.minArgs)
	case b.minArgs == b.maxArgs:
		want = fmt.Sprintf("%d", b.minArgs)
	default:
		want = fmt.Sprintf("%d to %d", b.minArgs, b.maxArgs)
	}
	return newErrorf(ErrBadArguments, "?%s takes %s arguments, got %d", in.name, want, got)
}

func (in *invocation) argError(i int, expects string, got value.Value) *Error {
	return newErrorf(ErrInvalidType, "?%s expects %s as argument %d, got %s", in.name, expects, i+1, got.TypeName())
}

func (in *invocation) errorf(kind ErrorKind, format string, args ...any) *Error {
	return newErrorf(kind, "?%s: %s", in.name, fmt.Sprintf(format, args...))
}

func (in *invocation) stringArg(args []value.Value, i int) (string, error) {
	s, ok := args[i].AsString()
	if !ok {
		return "", in.argError(i, "a string", args[i])
	}
	return s, nil
}

// optStringArg returns args[i], or def when the argument was not given.
func (in *invocation) optStringArg(args []value.Value, i int, def string) (string, error) {
	if i >= len(args) {
		return def, nil
	}
	return in.stringArg(args, i)
}

func (in *invocation) intArg(args []value.Value, i int) (int, error) {
	n, ok := args[i].AsInt()
	if !ok || !args[i].IsNumber() {
		return 0, in.argError(i, "an integer", args[i])
	}
	return int(n), nil
}

func (in *invocation) boolArg(args []value.Value, i int) (bool, error) {
	b, ok := args[i].AsBool()
	if !ok {
		return false, in.argError(i, "a boolean", args[i])
	}
	return b, nil
}

func (in *invocation) callableArg(args []value.Value, i int) (value.Callable, error) {
	c, ok := args[i].AsCallable()
	if !ok {
		return nil, in.argError(i, "a function or lambda", args[i])
	}
	return c, nil
}

func str(v value.Value) string {
	s, _ := v.AsString()
	return s
}
