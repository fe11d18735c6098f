package ftl

import (
	goerrors "errors"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ftlgo/ftl/internal/parser"
	"github.com/ftlgo/ftl/value"
)

// Existence built-ins see missing operands.

func biHasContent(_ *invocation, v value.Value) (value.Value, error) {
	if v.IsMissing() {
		return value.False(), nil
	}
	if s, ok := v.AsString(); ok {
		return value.FromBool(s != ""), nil
	}
	if m, ok := v.AsMapping(); ok {
		return value.FromBool(m.Len() > 0), nil
	}
	if n, ok := v.Len(); ok {
		return value.FromBool(n > 0), nil
	}
	if it, ok := v.Iterate(); ok {
		for range it {
			return value.True(), nil
		}
		return value.False(), nil
	}
	return value.True(), nil
}

func biExists(_ *invocation, v value.Value) (value.Value, error) {
	return value.FromBool(!v.IsMissing()), nil
}

func biIfExists(_ *invocation, v value.Value) (value.Value, error) {
	if v.IsMissing() {
		return value.FromString(""), nil
	}
	return v, nil
}

// biDefault returns the operand, or else the first argument that is not
// missing.
func biDefault(_ *invocation, v value.Value, args []value.Value) (value.Value, error) {
	if !v.IsMissing() {
		return v, nil
	}
	for _, a := range args {
		if !a.IsMissing() {
			return a, nil
		}
	}
	return value.Undefined(), nil
}

// Type tests.

func kindTest(kinds ...value.ValueKind) func(*invocation, value.Value) (value.Value, error) {
	return func(_ *invocation, v value.Value) (value.Value, error) {
		k := v.Kind()
		for _, want := range kinds {
			if k == want {
				return value.True(), nil
			}
		}
		return value.False(), nil
	}
}

func biIsDirective(_ *invocation, v value.Value) (value.Value, error) {
	m, ok := v.AsMacro()
	return value.FromBool(ok && !m.IsFunction()), nil
}

func biIsMarkupOutput(_ *invocation, v value.Value) (value.Value, error) {
	return value.FromBool(v.IsMarkup()), nil
}

// Node built-ins.

func node(v value.Value) value.Node {
	n, _ := v.AsNode()
	return n
}

func biNodeName(_ *invocation, v value.Value) (value.Value, error) {
	return value.FromString(node(v).NodeName()), nil
}

func biNodeType(_ *invocation, v value.Value) (value.Value, error) {
	return value.FromString(node(v).NodeType()), nil
}

func biNodeNamespace(_ *invocation, v value.Value) (value.Value, error) {
	return value.FromString(node(v).NodeNamespace()), nil
}

func nodesValue(nodes []value.Node) value.Value {
	items := make([]value.Value, len(nodes))
	for i, n := range nodes {
		items[i] = value.FromNode(n)
	}
	return value.FromSlice(items)
}

func biChildren(_ *invocation, v value.Value) (value.Value, error) {
	return nodesValue(node(v).ChildNodes()), nil
}

func biParent(_ *invocation, v value.Value) (value.Value, error) {
	p := node(v).ParentNode()
	if p == nil {
		return value.Undefined(), nil
	}
	return value.FromNode(p), nil
}

func biRoot(_ *invocation, v value.Value) (value.Value, error) {
	n := node(v)
	for n.ParentNode() != nil {
		n = n.ParentNode()
	}
	return value.FromNode(n), nil
}

func biAncestors(_ *invocation, v value.Value) (value.Value, error) {
	var out []value.Node
	for p := node(v).ParentNode(); p != nil; p = p.ParentNode() {
		out = append(out, p)
	}
	return nodesValue(out), nil
}

// biAncestorsNamed keeps the ancestors with one of the given names.
func biAncestorsNamed(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	names := make(map[string]bool, len(args))
	for i := range args {
		name, err := in.stringArg(args, i)
		if err != nil {
			return value.Undefined(), err
		}
		names[name] = true
	}
	var out []value.Node
	for p := node(v).ParentNode(); p != nil; p = p.ParentNode() {
		if names[p.NodeName()] {
			out = append(out, p)
		}
	}
	return nodesValue(out), nil
}

// Dynamic evaluation.

// nestedError wraps an error raised inside dynamically evaluated code. The
// inner location refers to the evaluated text, so only its message is
// kept; the wrapper gets the location of the built-in. Fatal errors pass
// through unchanged.
func (in *invocation) nestedError(what, src string, err error) error {
	if isFatal(err) {
		return err
	}
	msg := err.Error()
	var tErr *Error
	if goerrors.As(err, &tErr) {
		msg = tErr.Kind.String() + ": " + tErr.Message
	}
	return newErrorf(ErrEval, "?%s failed %s %q: %s", in.name, what, src, msg).WithCause(err)
}

func biEval(in *invocation, v value.Value) (value.Value, error) {
	src := str(v)
	expr, err := parser.ParseExpression(src)
	if err != nil {
		return value.Undefined(), in.nestedError("to parse", src, err)
	}
	// locations inside the expression refer to src
	e := in.e
	prev := e.current
	e.current = &Template{
		cfg:          e.cfg,
		ast:          &parser.Template{Name: prev.Name(), Source: src},
		outputFormat: prev.outputFormat,
		autoEsc:      prev.autoEsc,
		attributes:   prev.attributes,
	}
	r, err := e.eval(in.sc, expr)
	e.current = prev
	if err != nil {
		return value.Undefined(), in.nestedError("to evaluate", src, err)
	}
	return r, nil
}

// biEvalJSON parses a JSON document. JSON is a subset of YAML, and the
// ordered map decoding keeps object keys in document order.
func biEvalJSON(in *invocation, v value.Value) (value.Value, error) {
	src := str(v)
	var doc any
	if err := yaml.UnmarshalWithOptions([]byte(src), &doc, yaml.UseOrderedMap()); err != nil {
		return value.Undefined(), in.nestedError("to parse", src, err)
	}
	return fromDocument(doc), nil
}

// biInterpret parses a string as a template and returns it as a macro
// that renders in the namespace the built-in was evaluated in. The
// operand may also be a sequence of the source and a template name.
func biInterpret(in *invocation, v value.Value) (value.Value, error) {
	src := str(v)
	name := in.e.current.Name() + "->anonymous_interpreted"
	if v.Kind() == value.KindSeq {
		parts, _ := v.Items()
		if len(parts) == 0 || len(parts) > 2 {
			return value.Undefined(), in.errorf(ErrBadArguments, "the sequence must hold the source and optionally a name, got %d items", len(parts))
		}
		var ok bool
		if src, ok = parts[0].AsString(); !ok {
			return value.Undefined(), in.operandError("a string or a sequence of strings", parts[0])
		}
		if len(parts) == 2 {
			if name, ok = parts[1].AsString(); !ok {
				return value.Undefined(), in.operandError("a string or a sequence of strings", parts[1])
			}
		}
	}
	t, err := in.e.cfg.TemplateFromString(name, src)
	if err != nil {
		return value.Undefined(), in.nestedError("to parse", src, err)
	}
	t.outputFormat, t.autoEsc = in.e.oc.format, in.e.oc.autoEsc
	m := &macroValue{
		node: &parser.Macro{Name: name, Body: t.ast.Body},
		ns:   in.sc.Namespace(),
		tmpl: t,
	}
	return value.FromMacro(m), nil
}

// Output formats.

func (in *invocation) requireMarkupFormat() error {
	if !isMarkupFormat(in.e.oc.format) {
		return in.errorf(ErrInvalidOperation, "needs a markup output format, but the output format is %s", in.e.oc.format)
	}
	return nil
}

func biNoEsc(in *invocation, v value.Value) (value.Value, error) {
	if err := in.requireMarkupFormat(); err != nil {
		return value.Undefined(), err
	}
	return value.FromMarkup(str(v)), nil
}

func biEsc(in *invocation, v value.Value) (value.Value, error) {
	if err := in.requireMarkupFormat(); err != nil {
		return value.Undefined(), err
	}
	if v.IsMarkup() {
		return v, nil
	}
	return value.FromMarkup(escapeFor(in.e.oc.format, str(v))), nil
}

func biMarkupString(_ *invocation, v value.Value) (value.Value, error) {
	return value.FromString(str(v)), nil
}

// Macros and templates.

func biNamespace(in *invocation, v value.Value) (value.Value, error) {
	m, _ := v.AsMacro()
	mv, ok := m.(*macroValue)
	if !ok {
		return value.Undefined(), in.operandError("a macro or function defined by a template", v)
	}
	return value.FromObject(mv.ns), nil
}

func biAbsoluteTemplateName(in *invocation, v value.Value) (value.Value, error) {
	return value.FromString("/" + resolveName(in.e.current.Name(), str(v))), nil
}

func biAbsoluteTemplateNameFrom(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	base, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromString("/" + resolveName(strings.TrimPrefix(base, "/"), str(v))), nil
}

// Conditionals. Only the chosen argument is evaluated.

func biThen(in *invocation, v value.Value, args []parser.Expr) (value.Value, error) {
	if len(args) != 2 {
		return value.Undefined(), newErrorf(ErrBadArguments, "?then takes 2 arguments, got %d", len(args))
	}
	b, _ := v.AsBool()
	if b {
		return in.e.evalDefined(in.sc, args[0])
	}
	return in.e.evalDefined(in.sc, args[1])
}

// biSwitch takes case and result pairs, optionally followed by a default.
func biSwitch(in *invocation, v value.Value, args []parser.Expr) (value.Value, error) {
	if len(args) < 2 {
		return value.Undefined(), newErrorf(ErrBadArguments, "?switch takes at least 2 arguments, got %d", len(args))
	}
	i := 0
	for ; i+1 < len(args); i += 2 {
		c, err := in.e.evalDefined(in.sc, args[i])
		if err != nil {
			return value.Undefined(), err
		}
		if in.equal(v, c) {
			return in.e.evalDefined(in.sc, args[i+1])
		}
	}
	if i < len(args) {
		return in.e.evalDefined(in.sc, args[i])
	}
	return value.Undefined(), in.errorf(ErrInvalidOperation, "no case matched %s and there is no default", v.Repr())
}

// Loop variable built-ins.

func loopIndex(_ *invocation, l *loopState, _ []value.Value) (value.Value, error) {
	return value.FromInt(int64(l.index)), nil
}

func loopCounter(_ *invocation, l *loopState, _ []value.Value) (value.Value, error) {
	return value.FromInt(int64(l.index + 1)), nil
}

func loopHasNext(_ *invocation, l *loopState, _ []value.Value) (value.Value, error) {
	return value.FromBool(l.hasNext), nil
}

func loopIsFirst(_ *invocation, l *loopState, _ []value.Value) (value.Value, error) {
	return value.FromBool(l.index == 0), nil
}

func loopIsLast(_ *invocation, l *loopState, _ []value.Value) (value.Value, error) {
	return value.FromBool(!l.hasNext), nil
}

// The first item is odd: parity is counted from 1.
func loopIsOdd(_ *invocation, l *loopState, _ []value.Value) (value.Value, error) {
	return value.FromBool(l.index%2 == 0), nil
}

func loopIsEven(_ *invocation, l *loopState, _ []value.Value) (value.Value, error) {
	return value.FromBool(l.index%2 == 1), nil
}

func loopParity(odd, even string) func(*invocation, *loopState, []value.Value) (value.Value, error) {
	return func(_ *invocation, l *loopState, _ []value.Value) (value.Value, error) {
		if l.index%2 == 0 {
			return value.FromString(odd), nil
		}
		return value.FromString(even), nil
	}
}

func loopItemCycle(_ *invocation, l *loopState, args []value.Value) (value.Value, error) {
	return args[l.index%len(args)], nil
}
