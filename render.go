package ftl

import (
	"bytes"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/ftlgo/ftl/internal/parser"
	"github.com/ftlgo/ftl/value"
)

// control is a transfer of control leaving a body. It travels next to the
// error result, so <#attempt> never sees it.
type control int

const (
	ctrlNone control = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
)

func (c control) String() string {
	switch c {
	case ctrlBreak:
		return "break"
	case ctrlContinue:
		return "continue"
	case ctrlReturn:
		return "return"
	}
	return "none"
}

// render executes body in sc, writing to w. It stops at the first error or
// control signal.
func (e *Environment) render(w io.Writer, sc *Scope, body []parser.Stmt) (control, error) {
	for _, stmt := range body {
		if err := e.consumeFuel(); err != nil {
			return ctrlNone, e.decorate(err, stmt, sc)
		}
		ctrl, err := e.renderStmt(w, sc, stmt)
		if err != nil {
			return ctrlNone, e.decorate(err, stmt, sc)
		}
		if ctrl != ctrlNone {
			return ctrl, nil
		}
	}
	return ctrlNone, nil
}

func (e *Environment) renderStmt(w io.Writer, sc *Scope, stmt parser.Stmt) (control, error) {
	switch s := stmt.(type) {
	case *parser.Text:
		return ctrlNone, writeString(w, s.Raw)

	case *parser.Interpolation:
		v, err := e.evalDefined(sc, s.Expr)
		if err != nil {
			return ctrlNone, err
		}
		out, err := e.interpolate(sc, s.Expr, v)
		if err != nil {
			return ctrlNone, err
		}
		return ctrlNone, writeString(w, out)

	case *parser.If:
		for _, b := range s.Branches {
			ok, err := e.evalCond(sc, b.Cond, "<#if>")
			if err != nil {
				return ctrlNone, err
			}
			if ok {
				return e.render(w, sc, b.Body)
			}
		}
		return e.render(w, sc, s.Else)

	case *parser.List:
		return e.renderList(w, sc, s)

	case *parser.Items:
		return e.renderItems(w, sc, s)

	case *parser.Sep:
		loop := sc.innermostLoop()
		if loop == nil {
			return ctrlNone, newErrorf(ErrInvalidOperation, "<#sep> can only be used inside <#list> or <#items>")
		}
		if !loop.hasNext {
			return ctrlNone, nil
		}
		return e.render(w, sc, s.Body)

	case *parser.Break:
		return ctrlBreak, nil

	case *parser.Continue:
		return ctrlContinue, nil

	case *parser.Switch:
		return e.renderSwitch(w, sc, s)

	case *parser.Assign:
		return ctrlNone, e.renderAssign(sc, s)

	case *parser.AssignCapture:
		return e.renderCapture(sc, s)

	case *parser.Macro:
		ns := sc.Namespace()
		ns.Declare(s.Name, value.FromMacro(&macroValue{node: s, ns: ns, tmpl: e.current}))
		return ctrlNone, nil

	case *parser.Return:
		return e.renderReturn(sc, s)

	case *parser.Nested:
		return ctrlNone, e.renderNested(w, sc, s)

	case *parser.MacroCall:
		return ctrlNone, e.renderMacroCall(w, sc, s)

	case *parser.Include:
		return ctrlNone, e.renderInclude(w, sc, s)

	case *parser.Import:
		return ctrlNone, e.renderImport(sc, s)

	case *parser.Attempt:
		return e.renderAttempt(w, sc, s)

	case *parser.Compress:
		cw := &compressWriter{w: w}
		ctrl, err := e.render(cw, sc, s.Body)
		if err != nil {
			return ctrlNone, err
		}
		if err := cw.Close(); err != nil {
			return ctrlNone, newErrorf(ErrIO, "writing output: %v", err).WithCause(err)
		}
		return ctrl, nil

	case *parser.Escape:
		if e.oc.autoEscaping() {
			return ctrlNone, newErrorf(ErrInvalidOperation, "<#escape> can not be used where %s auto-escaping is on", e.oc.format)
		}
		return e.renderWithOutput(w, sc, e.oc.withEscape(s), s.Body)

	case *parser.NoEscape:
		return e.renderWithOutput(w, sc, e.oc.withEscape(nil), s.Body)

	case *parser.AutoEsc:
		return e.renderWithOutput(w, sc, e.oc.withAutoEsc(s.Enabled), s.Body)

	case *parser.OutputFormat:
		v, err := e.evalDefined(sc, s.Format)
		if err != nil {
			return ctrlNone, err
		}
		name, ok := v.AsString()
		if !ok {
			return ctrlNone, typeError("<#outputformat>", "a string", v)
		}
		if _, known := outputFormats[strings.ToLower(name)]; !known {
			return ctrlNone, newErrorf(ErrBadArguments, "unknown output format %q", name)
		}
		return e.renderWithOutput(w, sc, e.oc.withFormat(canonicalFormat(name)), s.Body)

	case *parser.Setting:
		v, err := e.evalDefined(sc, s.Value)
		if err != nil {
			return ctrlNone, err
		}
		fs, err := e.fmt.with(s.Name, v)
		if err != nil {
			return ctrlNone, err
		}
		e.fmt = fs
		return ctrlNone, nil

	case *parser.Stop:
		msg := "stopped by <#stop>"
		if s.Message != nil {
			v, err := e.evalDefined(sc, s.Message)
			if err != nil {
				return ctrlNone, err
			}
			if msg, err = e.display(v); err != nil {
				return ctrlNone, err
			}
		}
		return ctrlNone, NewError(ErrStopped, msg)

	case *parser.Flush:
		if f, ok := w.(flusher); ok {
			if err := f.Flush(); err != nil {
				return ctrlNone, newErrorf(ErrIO, "flushing output: %v", err).WithCause(err)
			}
		}
		return ctrlNone, nil

	case *parser.Visit:
		return ctrlNone, e.renderVisit(w, sc, s)

	case *parser.Recurse:
		return ctrlNone, e.renderRecurse(w, sc, s)
	}
	return ctrlNone, newErrorf(ErrInvalidOperation, "unsupported statement %T", stmt)
}

func (e *Environment) renderWithOutput(w io.Writer, sc *Scope, oc *outputContext, body []parser.Stmt) (control, error) {
	prev := e.oc
	e.oc = oc
	defer func() { e.oc = prev }()
	return e.render(w, sc, body)
}

// interpolate converts the value of a ${} to text: the active <#escape>
// expression is applied first, then the value is formatted and escaped for
// the output format unless it is markup.
func (e *Environment) interpolate(sc *Scope, expr parser.Expr, v value.Value) (string, error) {
	if esc := e.oc.activeEscape(); esc != nil {
		bsc := newScope(ScopeBlock, sc)
		bsc.vars.Set(esc.Var, v)
		ev, err := e.evalDefined(bsc, esc.Expr)
		if err != nil {
			return "", err
		}
		v = ev
	}
	if v.IsMarkup() {
		s, _ := v.AsString()
		return s, nil
	}
	s, err := e.display(v)
	if err != nil {
		return "", errorAt(err, expr.Span())
	}
	if e.oc.autoEscaping() {
		s = escapeFor(e.oc.format, s)
	}
	return s, nil
}

func (e *Environment) renderList(w io.Writer, sc *Scope, node *parser.List) (control, error) {
	src, err := e.evalDefined(sc, node.Source)
	if err != nil {
		return ctrlNone, err
	}
	if node.LoopVar != "" {
		n, ctrl, err := e.iterate(w, sc, src, node.LoopVar, node.ValueVar, node.Body)
		if err != nil || ctrl != ctrlNone {
			return ctrl, err
		}
		if n == 0 {
			return e.render(w, sc, node.Else)
		}
		return ctrlNone, nil
	}

	empty, err := isEmptyListable(src)
	if err != nil {
		return ctrlNone, errorAt(err, node.Source.Span())
	}
	if empty {
		return e.render(w, sc, node.Else)
	}
	bsc := newScope(ScopeBlock, sc)
	bsc.pending = &pendingList{source: src}
	ctrl, err := e.render(w, bsc, node.Body)
	if ctrl == ctrlBreak {
		ctrl = ctrlNone
	}
	return ctrl, err
}

func (e *Environment) renderItems(w io.Writer, sc *Scope, node *parser.Items) (control, error) {
	pending := sc.findPending()
	if pending == nil {
		return ctrlNone, newErrorf(ErrInvalidOperation, "<#items> can only be used inside a <#list> without loop variable")
	}
	if pending.used {
		return ctrlNone, newErrorf(ErrInvalidOperation, "<#items> can only be used once per <#list>")
	}
	pending.used = true
	_, ctrl, err := e.iterate(w, sc, pending.source, node.LoopVar, node.ValueVar, node.Body)
	return ctrl, err
}

// iterate renders body once per item of src with a fresh loop scope and
// returns the number of iterations started. A break ends the loop and is
// consumed here.
func (e *Environment) iterate(w io.Writer, sc *Scope, src value.Value, name, valueVar string, body []parser.Stmt) (int, control, error) {
	run := func(index int, item value.Value, hasNext bool, val *value.Value) (bool, control, error) {
		lsc := newScope(ScopeLoop, sc)
		lsc.loop = &loopState{name: name, index: index, hasNext: hasNext, item: item}
		lsc.loop.bind(lsc)
		if val != nil {
			lsc.vars.Set(valueVar, *val)
		}
		ctrl, err := e.render(w, lsc, body)
		if err != nil {
			return false, ctrlNone, err
		}
		switch ctrl {
		case ctrlBreak:
			return false, ctrlNone, nil
		case ctrlReturn:
			return false, ctrlReturn, nil
		}
		return true, ctrlNone, nil
	}

	if src.Kind() == value.KindHash {
		m, _ := src.AsMapping()
		if valueVar == "" {
			return 0, ctrlNone, newErrorf(ErrInvalidType, "listing a hash needs a key and a value variable: <#list h as k, v>")
		}
		keys := m.Keys()
		for i, k := range keys {
			v, _ := m.Get(k)
			more, ctrl, err := run(i, value.FromString(k), i < len(keys)-1, &v)
			if err != nil || !more {
				return i + 1, ctrl, err
			}
		}
		return len(keys), ctrlNone, nil
	}
	if valueVar != "" {
		return 0, ctrlNone, typeError("<#list> with key and value variables", "a hash", src)
	}

	if seq, ok := src.AsSequence(); ok {
		n := seq.SeqLen()
		for i := 0; i < n; i++ {
			more, ctrl, err := run(i, seq.SeqItem(i), i < n-1, nil)
			if err != nil || !more {
				return i + 1, ctrl, err
			}
		}
		return n, ctrlNone, nil
	}

	items, ok := src.Iterate()
	if !ok {
		return 0, ctrlNone, typeError("<#list>", "a sequence, collection or hash", src)
	}
	next, stop := iter.Pull(items)
	defer stop()
	item, ok := next()
	i := 0
	for ok {
		following, hasNext := next()
		more, ctrl, err := run(i, item, hasNext, nil)
		i++
		if err != nil || !more {
			return i, ctrl, err
		}
		item, ok = following, hasNext
	}
	return i, ctrlNone, nil
}

func isEmptyListable(v value.Value) (bool, error) {
	switch v.Kind() {
	case value.KindSeq, value.KindHash:
		n, _ := v.Len()
		return n == 0, nil
	case value.KindCollection:
		items, _ := v.Iterate()
		for range items {
			return false, nil
		}
		return true, nil
	}
	return false, typeError("<#list>", "a sequence, collection or hash", v)
}

func (e *Environment) renderSwitch(w io.Writer, sc *Scope, node *parser.Switch) (control, error) {
	subject, err := e.evalDefined(sc, node.Value)
	if err != nil {
		return ctrlNone, err
	}
	start := -1
	for i, c := range node.Cases {
		if c.Values == nil {
			continue
		}
		for _, expr := range c.Values {
			cv, err := e.evalDefined(sc, expr)
			if err != nil {
				return ctrlNone, err
			}
			eq, err := e.compare("==", subject, cv)
			if err != nil {
				return ctrlNone, errorAt(err, expr.Span())
			}
			if eq {
				start = i
				break
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		for i, c := range node.Cases {
			if c.Values == nil {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return ctrlNone, nil
	}
	for _, c := range node.Cases[start:] {
		ctrl, err := e.render(w, sc, c.Body)
		if err != nil {
			return ctrlNone, err
		}
		switch ctrl {
		case ctrlBreak:
			return ctrlNone, nil
		case ctrlNone:
		default:
			return ctrl, nil
		}
		if c.On {
			break
		}
	}
	return ctrlNone, nil
}

func (e *Environment) renderCapture(sc *Scope, node *parser.AssignCapture) (control, error) {
	var buf strings.Builder
	ctrl, err := e.render(&buf, sc, node.Body)
	if err != nil {
		return ctrlNone, err
	}
	captured := value.FromString(buf.String())
	if e.oc.autoEscaping() {
		captured = value.FromMarkup(buf.String())
	}
	target, err := e.assignContainer(sc, node.Scope, node.Namespace)
	if err != nil {
		return ctrlNone, err
	}
	return ctrl, target.set(node.Name, captured)
}

func (e *Environment) renderReturn(sc *Scope, node *parser.Return) (control, error) {
	msc := sc.macroScope()
	if msc == nil || msc.frame == nil {
		return ctrlNone, newErrorf(ErrInvalidOperation, "<#return> can only be used inside a macro or function")
	}
	frame := msc.frame
	if node.Value == nil {
		return ctrlReturn, nil
	}
	if !frame.macro.node.IsFunction {
		return ctrlNone, newErrorf(ErrInvalidOperation, "<#return> in macro %s can not have a value", frame.macro.node.Name)
	}
	v, err := e.eval(sc, node.Value)
	if err != nil {
		return ctrlNone, err
	}
	frame.result = v
	return ctrlReturn, nil
}

func (e *Environment) renderMacroCall(w io.Writer, sc *Scope, node *parser.MacroCall) error {
	callee, err := e.evalDefined(sc, node.Callee)
	if err != nil {
		return err
	}
	pos := make([]value.Value, len(node.Args))
	for i, a := range node.Args {
		if pos[i], err = e.eval(sc, a); err != nil {
			return err
		}
	}
	named := make([]namedValue, len(node.NamedArgs))
	for i, a := range node.NamedArgs {
		v, err := e.eval(sc, a.Value)
		if err != nil {
			return err
		}
		named[i] = namedValue{name: a.Name, val: v}
	}

	if m, ok := callee.AsMacro(); ok {
		if mv, own := m.(*macroValue); own {
			return e.invokeMacro(w, mv, pos, named, node, sc)
		}
	}
	c, ok := callee.AsCallable()
	if !ok {
		return typeError("<@"+e.exprText(node.Callee)+">", "a macro or function", callee).WithExpr(e.exprText(node.Callee))
	}
	if node.HasBody {
		return newErrorf(ErrInvalidOperation, "%s is not a macro and can not take nested content", e.exprText(node.Callee))
	}
	if len(named) > 0 {
		h := value.NewHash()
		for _, nv := range named {
			h.Set(nv.name, nv.val)
		}
		pos = append(pos, value.FromHash(h))
	}
	res, err := c.Call(e, pos)
	if err != nil {
		return errorAt(err, node.Span())
	}
	if res.IsMissing() {
		return nil
	}
	out, err := e.interpolate(sc, node.Callee, res)
	if err != nil {
		return err
	}
	return writeString(w, out)
}

func (e *Environment) renderInclude(w io.Writer, sc *Scope, node *parser.Include) error {
	nameV, err := e.evalDefined(sc, node.Name)
	if err != nil {
		return err
	}
	name, ok := nameV.AsString()
	if !ok {
		return typeError("<#include>", "a template name string", nameV)
	}
	parse, ignoreMissing := true, false
	for _, p := range node.Params {
		v, err := e.evalDefined(sc, p.Value)
		if err != nil {
			return err
		}
		switch p.Name {
		case "parse", "ignore_missing":
			b, ok := v.AsBool()
			if !ok {
				return typeError("<#include> parameter "+p.Name, "a boolean", v)
			}
			if p.Name == "parse" {
				parse = b
			} else {
				ignoreMissing = b
			}
		case "encoding":
		default:
			return newErrorf(ErrBadArguments, "<#include> has no parameter %q", p.Name)
		}
	}

	full := resolveName(e.current.Name(), name)
	if !parse {
		src, err := e.cfg.templateSource(full)
		if err != nil {
			if ignoreMissing && IsKind(err, ErrTemplateNotFound) {
				return nil
			}
			return err
		}
		return writeString(w, src)
	}
	t, err := e.cfg.GetTemplate(full)
	if err != nil {
		if ignoreMissing && IsKind(err, ErrTemplateNotFound) {
			e.logger.Debug("missing include ignored", slog.String("include", full))
			return nil
		}
		return err
	}

	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	prevTmpl, prevOC, prevFmt := e.current, e.oc, e.fmt
	e.current = t
	e.oc = &outputContext{format: t.outputFormat, autoEsc: t.autoEsc}
	defer func() { e.current, e.oc, e.fmt = prevTmpl, prevOC, prevFmt }()

	e.defineMacros(t, sc.Namespace(), t.ast.Body)
	ctrl, err := e.render(w, sc, t.ast.Body)
	if err != nil {
		return err
	}
	if ctrl != ctrlNone {
		return newErrorf(ErrInvalidOperation, "<#%s> can not leave an included template", ctrl)
	}
	return nil
}

func (e *Environment) renderImport(sc *Scope, node *parser.Import) error {
	nameV, err := e.evalDefined(sc, node.Name)
	if err != nil {
		return err
	}
	name, ok := nameV.AsString()
	if !ok {
		return typeError("<#import>", "a template name string", nameV)
	}
	lib, err := e.importLib(resolveName(e.current.Name(), name))
	if err != nil {
		return err
	}
	sc.Namespace().Declare(node.As, value.FromObject(lib))
	return nil
}

// renderAttempt renders the attempt body into a buffer. On a recoverable
// error the buffered output is dropped and the recover body runs instead.
func (e *Environment) renderAttempt(w io.Writer, sc *Scope, node *parser.Attempt) (control, error) {
	var buf bytes.Buffer
	ctrl, err := e.render(&buf, sc, node.Body)
	if err == nil {
		if _, werr := buf.WriteTo(w); werr != nil {
			return ctrlNone, newErrorf(ErrIO, "writing output: %v", werr).WithCause(werr)
		}
		return ctrl, nil
	}
	if isFatal(err) {
		return ctrlNone, err
	}
	e.logger.Error("error in <#attempt> block, rendering <#recover>",
		slog.String("template", e.current.Name()),
		slog.Int("line", int(node.Span().StartLine)),
		slog.Any("error", err))
	e.errs = append(e.errs, err)
	defer func() { e.errs = e.errs[:len(e.errs)-1] }()
	return e.render(w, sc, node.Recover)
}
