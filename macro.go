package ftl

import (
	"io"

	"github.com/ftlgo/ftl/internal/parser"
	"github.com/ftlgo/ftl/value"
)

// macroValue is a macro or function bound to the namespace it was defined
// in.
type macroValue struct {
	node *parser.Macro
	ns   *Scope
	tmpl *Template
}

func (m *macroValue) MacroName() string { return m.node.Name }
func (m *macroValue) IsFunction() bool  { return m.node.IsFunction }

// Call invokes a function from an expression.
func (m *macroValue) Call(state value.State, args []value.Value) (value.Value, error) {
	e, ok := state.(*Environment)
	if !ok {
		return value.Undefined(), newErrorf(ErrInvalidOperation, "%s can only be called while rendering", m.node.Name)
	}
	if !m.node.IsFunction {
		return value.Undefined(), newErrorf(ErrInvalidType, "%s is a macro, call it as <@%s/>", m.node.Name, m.node.Name)
	}
	return e.callFunction(m, args)
}

// macroFrame is one active macro or function call.
type macroFrame struct {
	macro *macroValue
	scope *Scope

	// the call site, where nested content runs
	caller     *Scope
	callerTmpl *Template
	callerOC   *outputContext
	body       []parser.Stmt
	loopVars   []string

	result value.Value
}

type namedValue struct {
	name string
	val  value.Value
}

func (e *Environment) invokeMacro(w io.Writer, m *macroValue, pos []value.Value, named []namedValue, call *parser.MacroCall, caller *Scope) error {
	if m.node.IsFunction {
		return newErrorf(ErrInvalidType, "%s is a function, call it in an expression as %s()", m.node.Name, m.node.Name)
	}
	frame := &macroFrame{macro: m, caller: caller, callerTmpl: e.current, callerOC: e.oc}
	if call != nil && call.HasBody {
		frame.body = call.Body
		frame.loopVars = call.LoopVars
	}
	return e.runMacro(w, frame, pos, named)
}

func (e *Environment) callFunction(m *macroValue, args []value.Value) (value.Value, error) {
	frame := &macroFrame{macro: m, callerTmpl: e.current, callerOC: e.oc, result: value.Undefined()}
	if err := e.runMacro(io.Discard, frame, args, nil); err != nil {
		return value.Undefined(), err
	}
	return frame.result, nil
}

func (e *Environment) runMacro(w io.Writer, frame *macroFrame, pos []value.Value, named []namedValue) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	m := frame.macro
	sc := newScope(ScopeMacro, m.ns)
	sc.frame = frame
	frame.scope = sc

	prevTmpl, prevOC, prevFmt := e.current, e.oc, e.fmt
	e.current = m.tmpl
	e.oc = &outputContext{format: m.tmpl.outputFormat, autoEsc: m.tmpl.autoEsc}
	e.frames = append(e.frames, frame)
	defer func() {
		e.frames = e.frames[:len(e.frames)-1]
		e.current, e.oc, e.fmt = prevTmpl, prevOC, prevFmt
	}()

	if err := e.bindArgs(m, sc, pos, named); err != nil {
		return err
	}
	ctrl, err := e.render(w, sc, m.node.Body)
	if err != nil {
		return err
	}
	if ctrl == ctrlBreak || ctrl == ctrlContinue {
		return newErrorf(ErrInvalidOperation, "<#%s> must be inside <#list> or <#switch>", ctrl).WithName(m.tmpl.Name())
	}
	return nil
}

// bindArgs binds call arguments to the parameters of m. Parameters left
// unbound get their default, evaluated in the macro scope itself so it
// sees earlier parameters and the defining namespace, never the caller.
func (e *Environment) bindArgs(m *macroValue, sc *Scope, pos []value.Value, named []namedValue) error {
	params := m.node.Params
	bound := make([]bool, len(params))

	var extraPos []value.Value
	for i, v := range pos {
		if i < len(params) {
			sc.vars.Set(params[i].Name, v)
			bound[i] = true
		} else {
			extraPos = append(extraPos, v)
		}
	}

	extraNamed := value.NewHash()
	for _, nv := range named {
		idx := -1
		for i, p := range params {
			if p.Name == nv.name {
				idx = i
				break
			}
		}
		if idx < 0 {
			extraNamed.Set(nv.name, nv.val)
			continue
		}
		sc.vars.Set(nv.name, nv.val)
		bound[idx] = true
	}

	if m.node.CatchAll == "" {
		if len(extraPos) > 0 {
			return newErrorf(ErrBadArguments, "%s takes %d arguments, got %d", m.node.Name, len(params), len(pos))
		}
		if keys := extraNamed.Keys(); len(keys) > 0 {
			return newErrorf(ErrBadArguments, "%s has no parameter named %q", m.node.Name, keys[0])
		}
	} else if len(named) > 0 {
		sc.vars.Set(m.node.CatchAll, value.FromHash(extraNamed))
	} else {
		if extraPos == nil {
			extraPos = []value.Value{}
		}
		sc.vars.Set(m.node.CatchAll, value.FromSlice(extraPos))
	}

	for i, p := range params {
		if bound[i] {
			continue
		}
		if p.Default == nil {
			return newErrorf(ErrBadArguments, "%s requires the parameter %q", m.node.Name, p.Name)
		}
		v, err := e.eval(sc, p.Default)
		if err != nil {
			return e.decorate(err, p.Default, sc)
		}
		sc.vars.Set(p.Name, v)
	}
	return nil
}

// renderNested renders the body given at the call site of the current
// macro in the caller's scope.
func (e *Environment) renderNested(w io.Writer, sc *Scope, node *parser.Nested) error {
	msc := sc.macroScope()
	if msc == nil || msc.frame == nil {
		return newErrorf(ErrInvalidOperation, "<#nested> can only be used inside a macro")
	}
	frame := msc.frame
	if frame.body == nil {
		return nil
	}
	args := make([]value.Value, len(node.Args))
	for i, a := range node.Args {
		v, err := e.eval(sc, a)
		if err != nil {
			return err
		}
		args[i] = v
	}
	if len(frame.loopVars) > len(args) {
		return newErrorf(ErrBadArguments, "the body of <@%s> declares %d loop variables, but <#nested> passed %d",
			frame.macro.node.Name, len(frame.loopVars), len(args))
	}

	nsc := newScope(ScopeBlock, frame.caller)
	for i, name := range frame.loopVars {
		nsc.vars.Set(name, args[i])
	}

	prevTmpl, prevOC := e.current, e.oc
	e.current, e.oc = frame.callerTmpl, frame.callerOC
	defer func() { e.current, e.oc = prevTmpl, prevOC }()

	ctrl, err := e.render(w, nsc, frame.body)
	if err != nil {
		return err
	}
	if ctrl != ctrlNone {
		return newErrorf(ErrInvalidOperation, "<#%s> can not leave the body of <@%s>", ctrl, frame.macro.node.Name)
	}
	return nil
}
