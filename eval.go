package ftl

import (
	goerrors "errors"
	"iter"
	"strings"
	"time"

	ftlerrors "github.com/ftlgo/ftl/internal/errors"
	"github.com/ftlgo/ftl/internal/parser"
	"github.com/ftlgo/ftl/value"
)

// eval evaluates expr in sc. A name that resolves to nothing yields
// Undefined; consumers that need a value use evalDefined.
func (e *Environment) eval(sc *Scope, expr parser.Expr) (value.Value, error) {
	v, err := e.evalExpr(sc, expr)
	if err != nil {
		return value.Undefined(), e.located(err, expr)
	}
	return v, nil
}

// located attaches the span and source text of expr to errors that do not
// have a location yet.
func (e *Environment) located(err error, expr parser.Expr) error {
	var tErr *Error
	if !goerrors.As(err, &tErr) {
		tErr = ftlerrors.New(ErrEval, err.Error()).WithCause(err)
		err = tErr
	}
	if tErr.Span == nil {
		tErr.WithSpan(expr.Span()).WithExpr(e.exprText(expr))
	}
	return err
}

func (e *Environment) evalDefined(sc *Scope, expr parser.Expr) (value.Value, error) {
	v, err := e.eval(sc, expr)
	if err != nil {
		return v, err
	}
	if v.IsUndefined() {
		return v, e.undefinedError(expr)
	}
	return v, nil
}

func (e *Environment) undefinedError(expr parser.Expr) *Error {
	text := e.exprText(expr)
	if text == "" {
		text = "the expression"
	}
	return newErrorf(ErrInvalidReference, "%s is undefined", text).
		WithSpan(expr.Span()).
		WithExpr(text)
}

// evalOptional evaluates the operand of ! and ??. A parenthesized operand
// also absorbs invalid references raised anywhere inside it.
func (e *Environment) evalOptional(sc *Scope, expr parser.Expr) (value.Value, error) {
	if p, ok := expr.(*parser.Paren); ok {
		v, err := e.eval(sc, p.Expr)
		if err != nil && IsKind(err, ErrInvalidReference) {
			return value.Undefined(), nil
		}
		return v, err
	}
	return e.eval(sc, expr)
}

func (e *Environment) evalCond(sc *Scope, expr parser.Expr, what string) (bool, error) {
	v, err := e.evalDefined(sc, expr)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, typeError(what, "a boolean", v).WithSpan(expr.Span()).WithExpr(e.exprText(expr))
	}
	return b, nil
}

func (e *Environment) evalInt(sc *Scope, expr parser.Expr, what string) (int, error) {
	v, err := e.evalDefined(sc, expr)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt()
	if !ok || !v.IsInteger() {
		return 0, typeError(what, "an integer", v).WithSpan(expr.Span())
	}
	return int(n), nil
}

func (e *Environment) evalExpr(sc *Scope, expr parser.Expr) (value.Value, error) {
	switch x := expr.(type) {
	case *parser.Const:
		return x.Value, nil

	case *parser.Var:
		return e.lookup(sc, x.Name), nil

	case *parser.SpecialVar:
		return e.specialVar(sc, x.Name)

	case *parser.Interpolated:
		var sb strings.Builder
		for _, part := range x.Parts {
			v, err := e.evalDefined(sc, part)
			if err != nil {
				return v, err
			}
			s, err := e.display(v)
			if err != nil {
				return v, e.located(err, part)
			}
			sb.WriteString(s)
		}
		return value.FromString(sb.String()), nil

	case *parser.ListLit:
		items := make([]value.Value, len(x.Items))
		for i, item := range x.Items {
			v, err := e.evalDefined(sc, item)
			if err != nil {
				return v, err
			}
			items[i] = v
		}
		return value.FromSlice(items), nil

	case *parser.HashLit:
		h := value.NewHash()
		for i := range x.Keys {
			k, err := e.evalDefined(sc, x.Keys[i])
			if err != nil {
				return k, err
			}
			ks, ok := k.AsString()
			if !ok {
				return k, typeError("a hash literal key", "a string", k).WithSpan(x.Keys[i].Span())
			}
			v, err := e.evalDefined(sc, x.Values[i])
			if err != nil {
				return v, err
			}
			h.Set(ks, v)
		}
		return value.FromHash(h), nil

	case *parser.Paren:
		return e.eval(sc, x.Expr)

	case *parser.UnaryOp:
		if x.Op == "!" {
			b, err := e.evalCond(sc, x.Expr, "operator !")
			return value.FromBool(!b), err
		}
		v, err := e.evalDefined(sc, x.Expr)
		if err != nil {
			return v, err
		}
		if !v.IsNumber() {
			return v, typeError("unary "+x.Op, "a number", v)
		}
		if x.Op == "-" {
			return value.Negate(v)
		}
		return v, nil

	case *parser.BinOp:
		l, err := e.evalDefined(sc, x.Left)
		if err != nil {
			return l, err
		}
		r, err := e.evalDefined(sc, x.Right)
		if err != nil {
			return r, err
		}
		if x.Op == "+" {
			return e.add(l, r)
		}
		return e.arith(x.Op, l, r)

	case *parser.Logical:
		l, err := e.evalCond(sc, x.Left, "operator "+x.Op)
		if err != nil {
			return value.Undefined(), err
		}
		if (x.Op == "&&" && !l) || (x.Op == "||" && l) {
			return value.FromBool(l), nil
		}
		r, err := e.evalCond(sc, x.Right, "operator "+x.Op)
		return value.FromBool(r), err

	case *parser.Compare:
		l, err := e.evalDefined(sc, x.Left)
		if err != nil {
			return l, err
		}
		r, err := e.evalDefined(sc, x.Right)
		if err != nil {
			return r, err
		}
		b, err := e.compare(x.Op, l, r)
		return value.FromBool(b), err

	case *parser.Range:
		return e.evalRange(sc, x)

	case *parser.GetAttr:
		target, err := e.evalDefined(sc, x.Expr)
		if err != nil {
			return target, err
		}
		if target.IsNull() {
			return target, e.nullError(x.Expr)
		}
		return e.getAttr(target, x.Name)

	case *parser.GetItem:
		target, err := e.evalDefined(sc, x.Expr)
		if err != nil {
			return target, err
		}
		if target.IsNull() {
			return target, e.nullError(x.Expr)
		}
		if r, ok := x.Index.(*parser.Range); ok {
			return e.slice(sc, target, r)
		}
		key, err := e.evalDefined(sc, x.Index)
		if err != nil {
			return key, err
		}
		return e.getItem(target, key)

	case *parser.BuiltIn:
		return e.evalBuiltIn(sc, x, nil, false)

	case *parser.Call:
		if b, ok := x.Expr.(*parser.BuiltIn); ok {
			return e.evalBuiltIn(sc, b, x.Args, true)
		}
		callee, err := e.evalDefined(sc, x.Expr)
		if err != nil {
			return callee, err
		}
		args, err := e.evalArgs(sc, x.Args)
		if err != nil {
			return value.Undefined(), err
		}
		return e.call(callee, args, x.Expr)

	case *parser.DefaultTo:
		v, err := e.evalOptional(sc, x.Expr)
		if err != nil {
			return v, err
		}
		if !v.IsMissing() {
			return v, nil
		}
		if x.Default == nil {
			return value.FromString(""), nil
		}
		return e.evalDefined(sc, x.Default)

	case *parser.Exists:
		v, err := e.evalOptional(sc, x.Expr)
		if err != nil {
			return v, err
		}
		return value.FromBool(!v.IsMissing()), nil

	case *parser.Lambda:
		return value.FromCallable(&lambda{node: x, scope: sc}), nil
	}
	return value.Undefined(), newErrorf(ErrInvalidOperation, "unsupported expression %T", expr)
}

func (e *Environment) evalArgs(sc *Scope, exprs []parser.Expr) ([]value.Value, error) {
	args := make([]value.Value, len(exprs))
	for i, a := range exprs {
		v, err := e.evalDefined(sc, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (e *Environment) nullError(expr parser.Expr) *Error {
	text := e.exprText(expr)
	return newErrorf(ErrInvalidReference, "%s is null", text).WithSpan(expr.Span()).WithExpr(text)
}

// call invokes a function value: a template function or a host callable.
func (e *Environment) call(callee value.Value, args []value.Value, expr parser.Expr) (value.Value, error) {
	c, ok := callee.AsCallable()
	if !ok {
		return value.Undefined(), typeError(e.exprText(expr), "a function", callee)
	}
	return c.Call(e, args)
}

// lambda is a one-parameter function literal evaluated in the scope it was
// written in.
type lambda struct {
	node  *parser.Lambda
	scope *Scope
}

func (l *lambda) Call(state value.State, args []value.Value) (value.Value, error) {
	e, ok := state.(*Environment)
	if !ok {
		return value.Undefined(), newErrorf(ErrInvalidOperation, "a lambda can only be called while rendering")
	}
	if len(args) != 1 {
		return value.Undefined(), newErrorf(ErrBadArguments, "a lambda takes 1 argument, got %d", len(args))
	}
	sc := newScope(ScopeBlock, l.scope)
	sc.vars.Set(l.node.Param, args[0])
	return e.eval(sc, l.node.Body)
}

func (e *Environment) specialVar(sc *Scope, name string) (value.Value, error) {
	switch name {
	case "namespace":
		return value.FromObject(sc.Namespace()), nil
	case "main":
		return value.FromObject(e.mainNS), nil
	case "globals":
		return value.FromObject(globalsView{e}), nil
	case "locals":
		if sc.macroScope() == nil {
			return value.Undefined(), nil
		}
		return value.FromHash(sc.locals()), nil
	case "vars":
		return value.FromObject(varsView{e: e, sc: sc}), nil
	case "data_model":
		return value.FromHash(e.model), nil
	case "now":
		return value.FromTime(time.Now().In(e.fmt.loc), value.DateKindDateTime), nil
	case "lang":
		base, _ := e.fmt.tag.Base()
		return value.FromString(base.String()), nil
	case "locale":
		return value.FromString(e.fmt.settings.Locale), nil
	case "template_name", "current_template_name":
		return value.FromString(e.current.Name()), nil
	case "main_template_name":
		return value.FromString(e.main.Name()), nil
	case "caller_template_name":
		if len(e.frames) == 0 {
			return value.Undefined(), newErrorf(ErrInvalidOperation, ".caller_template_name can only be used inside a macro or function")
		}
		return value.FromString(e.frames[len(e.frames)-1].callerTmpl.Name()), nil
	case "error":
		err, ok := e.currentError()
		if !ok {
			return value.Undefined(), newErrorf(ErrInvalidOperation, ".error can only be used inside <#recover>")
		}
		return value.FromString(err.Error()), nil
	case "node":
		if len(e.visits) == 0 {
			return value.Undefined(), nil
		}
		return value.FromNode(e.visits[len(e.visits)-1].node), nil
	case "version":
		return value.FromString(Version), nil
	case "pass":
		return value.FromMacro(passMacro{}), nil
	case "output_format":
		return value.FromString(e.oc.format), nil
	case "auto_esc":
		return value.FromBool(e.oc.autoEscaping()), nil
	case "url_escaping_charset":
		return value.FromString(e.fmt.settings.URLEscapingCharset), nil
	}
	return value.Undefined(), newErrorf(ErrInvalidReference, "unknown special variable .%s", name)
}

// passMacro is .pass, a macro that does nothing.
type passMacro struct{}

func (passMacro) Call(value.State, []value.Value) (value.Value, error) { return value.Undefined(), nil }
func (passMacro) MacroName() string                                    { return "pass" }
func (passMacro) IsFunction() bool                                     { return false }

// globalsView is .globals: the globals, then the data model, then the
// shared variables.
type globalsView struct {
	e *Environment
}

func (g globalsView) GetAttr(name string) value.Value {
	if v, ok := g.e.globals.Get(name); ok {
		return v
	}
	if v, ok := g.e.model.Get(name); ok {
		return v
	}
	if v, ok := g.e.cfg.sharedVariable(name); ok {
		return v
	}
	return value.Undefined()
}

func (g globalsView) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(names []string) {
		for _, k := range names {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	add(g.e.globals.Keys())
	add(g.e.model.Keys())
	add(g.e.cfg.sharedNames())
	return keys
}

func (g globalsView) ObjectShape() value.ObjectShape { return value.ShapeHash }

// varsView is .vars, resolving names like an unqualified reference.
type varsView struct {
	e  *Environment
	sc *Scope
}

func (v varsView) GetAttr(name string) value.Value { return v.e.lookup(v.sc, name) }

// display converts a value to text for output and string concatenation.
func (e *Environment) display(v value.Value) (string, error) {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.AsString()
		return s, nil
	case value.KindNumber:
		return e.fmt.formatNumber(v, e.fmt.settings.NumberFormat)
	case value.KindBool:
		b, _ := v.AsBool()
		return e.fmt.formatBool(b), nil
	case value.KindDate:
		d, _ := v.AsDate()
		return e.fmt.formatDate(d, "")
	case value.KindNode:
		n, _ := v.AsNode()
		return n.Text(), nil
	}
	if t, ok := asText(v); ok {
		return t.Text(), nil
	}
	return "", typeError("interpolation", "a string, number, boolean or date", v)
}

// textObject is an object that prints as text, like the items of
// ?matches.
type textObject interface {
	Text() string
}

func asText(v value.Value) (textObject, bool) {
	obj, ok := v.AsObject()
	if !ok {
		return nil, false
	}
	t, ok := obj.(textObject)
	return t, ok
}

func isDisplayable(v value.Value) bool {
	switch v.Kind() {
	case value.KindString, value.KindNumber, value.KindBool, value.KindDate, value.KindNode:
		return true
	}
	_, ok := asText(v)
	return ok
}

// add implements +: numbers add, sequences concatenate, displayable values
// join as strings and hashes merge with the right side winning.
func (e *Environment) add(l, r value.Value) (value.Value, error) {
	if l.IsNumber() && r.IsNumber() {
		return e.fmt.engine.Add(l, r)
	}
	if l.Kind() == value.KindSeq && r.Kind() == value.KindSeq {
		a, _ := l.AsSequence()
		b, _ := r.AsSequence()
		return value.ConcatSequences(a, b), nil
	}
	if isDisplayable(l) && isDisplayable(r) {
		ls, err := e.display(l)
		if err != nil {
			return value.Undefined(), err
		}
		rs, err := e.display(r)
		if err != nil {
			return value.Undefined(), err
		}
		if l.IsMarkup() || r.IsMarkup() {
			if !l.IsMarkup() {
				ls = escapeFor(e.oc.format, ls)
			}
			if !r.IsMarkup() {
				rs = escapeFor(e.oc.format, rs)
			}
			return value.FromMarkup(ls + rs), nil
		}
		return value.FromString(ls + rs), nil
	}
	if l.Kind() == value.KindHash && r.Kind() == value.KindHash {
		a, _ := l.AsMapping()
		b, _ := r.AsMapping()
		return value.FromHash(value.MergeMappings(a, b)), nil
	}
	return value.Undefined(), newErrorf(ErrInvalidType, "can not add %s and %s", l.TypeName(), r.TypeName())
}

// arith implements - * / % through the arithmetic engine.
func (e *Environment) arith(op string, l, r value.Value) (value.Value, error) {
	if !l.IsNumber() || !r.IsNumber() {
		kind := ErrArithmetic
		if l.IsNull() || r.IsNull() {
			kind = ErrInvalidType
		}
		return value.Undefined(), newErrorf(kind, "operator %s expects numbers, got %s and %s", op, l.TypeName(), r.TypeName())
	}
	eng := e.fmt.engine
	switch op {
	case "+":
		return eng.Add(l, r)
	case "-":
		return eng.Subtract(l, r)
	case "*":
		return eng.Multiply(l, r)
	case "/":
		return eng.Divide(l, r)
	case "%":
		return eng.Modulus(l, r)
	}
	return value.Undefined(), newErrorf(ErrInvalidOperation, "unknown operator %s", op)
}

// compare implements the comparison operators.
func (e *Environment) compare(op string, l, r value.Value) (bool, error) {
	equality := op == "==" || op == "!="
	if l.IsNull() || r.IsNull() {
		if !equality {
			return false, newErrorf(ErrInvalidType, "can not use operator %s on %s and %s", op, l.TypeName(), r.TypeName())
		}
		same := l.IsNull() && r.IsNull()
		return same == (op == "=="), nil
	}

	lk, rk := l.Kind(), r.Kind()
	switch {
	case lk == value.KindNumber && rk == value.KindNumber:
		c, err := e.fmt.engine.CompareNumbers(l, r)
		if err != nil {
			return false, err
		}
		return applyOrder(op, c), nil

	case lk == value.KindString && rk == value.KindString:
		if !equality {
			return false, newErrorf(ErrArithmetic, "can not use operator %s on strings", op)
		}
		ls, _ := l.AsString()
		rs, _ := r.AsString()
		return applyOrder(op, e.fmt.collator.CompareString(ls, rs)), nil

	case lk == value.KindBool && rk == value.KindBool:
		if !equality {
			return false, newErrorf(ErrArithmetic, "can not use operator %s on booleans", op)
		}
		lb, _ := l.AsBool()
		rb, _ := r.AsBool()
		return (lb == rb) == (op == "=="), nil

	case lk == value.KindDate && rk == value.KindDate:
		ld, _ := l.AsDate()
		rd, _ := r.AsDate()
		if ld.Kind == value.DateKindUnknown || rd.Kind == value.DateKindUnknown {
			return false, newErrorf(ErrArithmetic, "can not compare dates of unknown kind; use ?date, ?time or ?datetime first")
		}
		if ld.Kind != rd.Kind {
			return false, newErrorf(ErrArithmetic, "can not compare a %s with a %s", ld.Kind, rd.Kind)
		}
		return applyOrder(op, ld.Time.Compare(rd.Time)), nil
	}
	return false, newErrorf(ErrInvalidType, "can not compare %s with %s", l.TypeName(), r.TypeName())
}

func applyOrder(op string, c int) bool {
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

// getAttr resolves target.name.
func (e *Environment) getAttr(target value.Value, name string) (value.Value, error) {
	if m, ok := target.AsMapping(); ok {
		if v, found := m.Get(name); found {
			return v, nil
		}
		return value.Undefined(), nil
	}
	if n, ok := target.AsNode(); ok {
		return n.GetAttr(name), nil
	}
	if host, ok := target.AsHost(); ok {
		v, found, err := e.cfg.accessor.GetProperty(host, name)
		if err != nil {
			return value.Undefined(), err
		}
		if !found {
			return value.Undefined(), nil
		}
		return v, nil
	}
	if obj, ok := target.AsObject(); ok {
		return obj.GetAttr(name), nil
	}
	return value.Undefined(), newErrorf(ErrInvalidType, "can not get %q from %s", name, target.TypeName())
}

// getItem resolves target[key].
func (e *Environment) getItem(target, key value.Value) (value.Value, error) {
	if s, ok := key.AsString(); ok {
		return e.getAttr(target, s)
	}
	if !key.IsNumber() {
		return value.Undefined(), typeError("the [] operator", "a number, a string or a range", key)
	}
	i, ok := key.AsInt()
	if !ok {
		return value.Undefined(), typeError("the [] operator", "an integer index", key)
	}
	if seq, ok := target.AsSequence(); ok {
		n := seq.SeqLen()
		if i < 0 || i >= int64(n) {
			return value.Undefined(), newErrorf(ErrBounds, "index %d is out of bounds for sequence of size %d", i, n)
		}
		return seq.SeqItem(int(i)), nil
	}
	if s, ok := target.AsString(); ok {
		runes := []rune(s)
		if i < 0 || i >= int64(len(runes)) {
			return value.Undefined(), newErrorf(ErrBounds, "index %d is out of bounds for string of length %d", i, len(runes))
		}
		return value.FromString(string(runes[i])), nil
	}
	return value.Undefined(), typeError("numeric indexing", "a sequence or string", target)
}

// bounds resolves a range against a length, returning the first index, the
// index after the last one and whether the walk goes backwards.
func (e *Environment) bounds(sc *Scope, r *parser.Range, size int, what string) (start, end int, desc bool, err error) {
	start, err = e.evalInt(sc, r.Start, "a range start")
	if err != nil {
		return 0, 0, false, err
	}
	if start < 0 {
		return 0, 0, false, newErrorf(ErrBounds, "negative range start %d", start)
	}
	if r.Mode == parser.RangeUnbounded {
		if start > size {
			return 0, 0, false, newErrorf(ErrBounds, "range start %d is out of bounds for %s of size %d", start, what, size)
		}
		return start, size, false, nil
	}
	n, err := e.evalInt(sc, r.End, "a range end")
	if err != nil {
		return 0, 0, false, err
	}

	switch r.Mode {
	case parser.RangeLength:
		if n < 0 {
			return 0, 0, false, newErrorf(ErrBounds, "negative range length %d", n)
		}
		if start > size {
			return 0, 0, false, newErrorf(ErrBounds, "range start %d is out of bounds for %s of size %d", start, what, size)
		}
		return start, min(start+n, size), false, nil
	case parser.RangeExclusive:
		if start == n {
			if start > size {
				return 0, 0, false, newErrorf(ErrBounds, "range start %d is out of bounds for %s of size %d", start, what, size)
			}
			return start, start, false, nil
		}
		if start < n {
			if n > size {
				return 0, 0, false, newErrorf(ErrBounds, "range end %d is out of bounds for %s of size %d", n, what, size)
			}
			return start, n, false, nil
		}
		// descending, exclusive of n
		n++
	}

	if start <= n {
		if n >= size {
			return 0, 0, false, newErrorf(ErrBounds, "range end %d is out of bounds for %s of size %d", n, what, size)
		}
		return start, n + 1, false, nil
	}
	if start >= size {
		return 0, 0, false, newErrorf(ErrBounds, "range start %d is out of bounds for %s of size %d", start, what, size)
	}
	if n < 0 {
		return 0, 0, false, newErrorf(ErrBounds, "negative range end %d", n)
	}
	return start, n - 1, true, nil
}

// slice resolves target[range] for sequences and strings.
func (e *Environment) slice(sc *Scope, target value.Value, r *parser.Range) (value.Value, error) {
	if seq, ok := target.AsSequence(); ok {
		start, end, desc, err := e.bounds(sc, r, seq.SeqLen(), "sequence")
		if err != nil {
			return value.Undefined(), err
		}
		var out []value.Value
		if desc {
			for i := start; i > end; i-- {
				out = append(out, seq.SeqItem(i))
			}
		} else {
			for i := start; i < end; i++ {
				out = append(out, seq.SeqItem(i))
			}
		}
		if out == nil {
			out = []value.Value{}
		}
		return value.FromSlice(out), nil
	}
	if s, ok := target.AsString(); ok {
		runes := []rune(s)
		start, end, desc, err := e.bounds(sc, r, len(runes), "string")
		if err != nil {
			return value.Undefined(), err
		}
		if desc {
			return value.Undefined(), newErrorf(ErrBounds, "a descending range can not slice a string")
		}
		return value.FromString(string(runes[start:end])), nil
	}
	return value.Undefined(), typeError("range slicing", "a sequence or string", target)
}

// evalRange turns a range expression used as a value into a sequence, or
// into an endless collection for a..
func (e *Environment) evalRange(sc *Scope, r *parser.Range) (value.Value, error) {
	start, err := e.evalInt(sc, r.Start, "a range start")
	if err != nil {
		return value.Undefined(), err
	}
	if r.Mode == parser.RangeUnbounded {
		return value.FromObject(endlessRange{start: start}), nil
	}
	n, err := e.evalInt(sc, r.End, "a range end")
	if err != nil {
		return value.Undefined(), err
	}
	switch r.Mode {
	case parser.RangeLength:
		if n >= 0 {
			return value.FromObject(rangeValue{start: start, count: n, step: 1}), nil
		}
		return value.FromObject(rangeValue{start: start, count: -n, step: -1}), nil
	case parser.RangeExclusive:
		if start <= n {
			return value.FromObject(rangeValue{start: start, count: n - start, step: 1}), nil
		}
		return value.FromObject(rangeValue{start: start, count: start - n, step: -1}), nil
	}
	if start <= n {
		return value.FromObject(rangeValue{start: start, count: n - start + 1, step: 1}), nil
	}
	return value.FromObject(rangeValue{start: start, count: start - n + 1, step: -1}), nil
}

// rangeValue is a finite numeric range, a sequence computed on access.
type rangeValue struct {
	start, count, step int
}

func (r rangeValue) GetAttr(string) value.Value     { return value.Undefined() }
func (r rangeValue) ObjectShape() value.ObjectShape { return value.ShapeSeq }
func (r rangeValue) SeqLen() int                    { return r.count }

func (r rangeValue) SeqItem(i int) value.Value {
	if i < 0 || i >= r.count {
		return value.Undefined()
	}
	return value.FromInt(int64(r.start + i*r.step))
}

// endlessRange is a right-unbounded range. It can be listed but not
// indexed.
type endlessRange struct {
	start int
}

func (r endlessRange) GetAttr(string) value.Value     { return value.Undefined() }
func (r endlessRange) ObjectShape() value.ObjectShape { return value.ShapeCollection }
func (r endlessRange) ObjectLen() int                 { return -1 }

func (r endlessRange) Iterate() iter.Seq[value.Value] {
	return func(yield func(value.Value) bool) {
		for i := r.start; ; i++ {
			if !yield(value.FromInt(int64(i))) {
				return
			}
		}
	}
}
