package ftl

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/ftlgo/ftl/internal/parser"
	"github.com/ftlgo/ftl/value"
)

// Version is reported by the .version special variable.
const Version = "1.0.0"

// Environment is the state of a single render: the output sink, the
// namespaces and scopes, the effective settings and the macro call stack.
// It is not safe for concurrent use.
type Environment struct {
	ctx     context.Context
	cfg     *Configuration
	main    *Template
	current *Template
	out     io.Writer
	logger  *slog.Logger

	model   *value.Hash
	frozen  *frozenSet
	globals *value.Hash
	mainNS  *Scope
	libs    map[string]*Scope

	fmt *formatState
	oc  *outputContext

	frames []*macroFrame
	depth  int
	fuel   *fuelGauge

	// errs holds the errors of the enclosing <#recover> blocks.
	errs   []error
	visits []*visitFrame
}

func newEnvironment(ctx context.Context, t *Template, model *value.Hash, w io.Writer) (*Environment, error) {
	settings := t.cfg.settings
	if t.locale != "" {
		settings.Locale = t.locale
	}
	if t.engine != nil {
		settings.ArithmeticEngine = t.engine.Name()
	}
	fs, err := newFormatState(settings)
	if err != nil {
		return nil, err
	}
	e := &Environment{
		ctx:     ctx,
		cfg:     t.cfg,
		main:    t,
		current: t,
		out:     w,
		logger:  t.cfg.logger.With(slog.String("template", t.Name())),
		model:   model,
		globals: value.NewHash(),
		mainNS:  t.newNamespace(),
		libs:    make(map[string]*Scope),
		fmt:     fs,
		oc:      &outputContext{format: t.outputFormat, autoEsc: t.autoEsc},
	}
	e.frozen = newFrozenSet()
	e.frozen.add(value.FromHash(model))
	if settings.Fuel > 0 {
		e.fuel = newFuelGauge(settings.Fuel)
	}
	return e, nil
}

func (t *Template) newNamespace() *Scope {
	ns := NewNamespace(t.Name())
	ns.strict = t.strictVars
	return ns
}

// Context returns the Go context of the render.
func (e *Environment) Context() context.Context {
	return e.ctx
}

// Name returns the name of the template currently executing.
func (e *Environment) Name() string {
	return e.current.Name()
}

// MainTemplate returns the template the render was started with.
func (e *Environment) MainTemplate() *Template {
	return e.main
}

// MainNamespace returns the namespace of the main template.
func (e *Environment) MainNamespace() *Scope {
	return e.mainNS
}

// Lookup resolves a name the way a top-level reference in the main
// template would: the main namespace, the globals, the data model, then
// the shared variables.
func (e *Environment) Lookup(name string) value.Value {
	return e.lookup(e.mainNS, name)
}

func (e *Environment) lookup(sc *Scope, name string) value.Value {
	if v, ok := sc.ResolveVariable(name); ok {
		return v
	}
	if v, ok := e.globals.Get(name); ok {
		return v
	}
	if v, ok := e.model.Get(name); ok {
		return v
	}
	if v, ok := e.cfg.sharedVariable(name); ok {
		return v
	}
	return value.Undefined()
}

// SetGlobal sets a variable as <#global> would.
func (e *Environment) SetGlobal(name string, v any) {
	e.globals.Set(name, value.FromAny(v))
}

// SetSetting changes a setting for the rest of the render, as <#setting>
// does at the top level.
func (e *Environment) SetSetting(name string, v any) error {
	fs, err := e.fmt.with(name, value.FromAny(v))
	if err != nil {
		return err
	}
	e.fmt = fs
	return nil
}

// Settings returns the effective settings.
func (e *Environment) Settings() Settings {
	return e.fmt.settings
}

// Process renders the main template into the output writer.
func (e *Environment) Process() error {
	e.logger.Debug("processing template")
	err := e.runTemplate(e.out, e.main, e.mainNS)
	if err != nil {
		if IsKind(err, ErrStopped) {
			e.logger.Warn("template stopped", slog.Any("error", err))
		}
		return err
	}
	if f, ok := e.out.(flusher); ok {
		if err := f.Flush(); err != nil {
			return newErrorf(ErrIO, "flushing output: %v", err).WithCause(err)
		}
	}
	return nil
}

// runTemplate defines the macros of t in ns and renders its body there.
func (e *Environment) runTemplate(w io.Writer, t *Template, ns *Scope) error {
	prevTmpl, prevOC := e.current, e.oc
	e.current = t
	e.oc = &outputContext{format: t.outputFormat, autoEsc: t.autoEsc}
	defer func() { e.current, e.oc = prevTmpl, prevOC }()

	e.defineMacros(t, ns, t.ast.Body)
	ctrl, err := e.render(w, ns, t.ast.Body)
	if err != nil {
		return err
	}
	if ctrl != ctrlNone {
		return newErrorf(ErrInvalidOperation, "unexpected %s at the top level", ctrl).WithName(t.Name())
	}
	return nil
}

// defineMacros binds the top-level macros of a template before its body
// runs, so they can be called above their definition.
func (e *Environment) defineMacros(t *Template, ns *Scope, body []parser.Stmt) {
	for _, stmt := range body {
		if m, ok := stmt.(*parser.Macro); ok {
			ns.Declare(m.Name, value.FromMacro(&macroValue{node: m, ns: ns, tmpl: t}))
		}
	}
}

// CallMacro invokes a macro of the main namespace, writing its output to
// the environment's writer. Named arguments take precedence when both are
// given for one parameter.
func (e *Environment) CallMacro(name string, args []any, named map[string]any) error {
	v, ok := e.mainNS.Get(name)
	if !ok {
		e.defineMacros(e.main, e.mainNS, e.main.ast.Body)
		v, ok = e.mainNS.Get(name)
	}
	m, isMacro := v.AsMacro()
	mv, isOwn := m.(*macroValue)
	if !ok || !isMacro || !isOwn {
		return newErrorf(ErrInvalidReference, "no macro named %q in %s", name, e.main.Name())
	}
	pos := make([]value.Value, len(args))
	for i, a := range args {
		pos[i] = value.FromAny(a)
	}
	var namedArgs []namedValue
	for k, a := range named {
		namedArgs = append(namedArgs, namedValue{name: k, val: value.FromAny(a)})
	}
	return e.invokeMacro(e.out, mv, pos, namedArgs, nil, e.mainNS)
}

// Import loads a library template into its own namespace, or returns the
// namespace it was already imported into during this render.
func (e *Environment) Import(name string) (*Scope, error) {
	return e.importLib(resolveName(e.current.Name(), name))
}

func (e *Environment) importLib(name string) (*Scope, error) {
	if ns, ok := e.libs[name]; ok {
		return ns, nil
	}
	t, err := e.cfg.GetTemplate(name)
	if err != nil {
		return nil, err
	}
	// The namespace is registered before it runs so that circular imports
	// see it; a failed import is forgotten.
	ns := t.newNamespace()
	e.libs[name] = ns
	if err := e.enter(); err != nil {
		delete(e.libs, name)
		return nil, err
	}
	defer e.leave()
	if err := e.runTemplate(io.Discard, t, ns); err != nil {
		delete(e.libs, name)
		return nil, err
	}
	return ns, nil
}

// enter counts one level of macro or import nesting. Callers must call
// leave only when enter succeeded.
func (e *Environment) enter() error {
	if limit := e.fmt.settings.MaxRecursion; limit > 0 && e.depth >= limit {
		return newErrorf(ErrRecursionLimit, "recursion limit of %d exceeded", limit)
	}
	e.depth++
	return nil
}

func (e *Environment) leave() {
	e.depth--
}

func (e *Environment) consumeFuel() error {
	if err := e.ctx.Err(); err != nil {
		return newErrorf(ErrStopped, "render canceled: %v", err).WithCause(err)
	}
	if e.fuel == nil {
		return nil
	}
	return e.fuel.burn()
}

// macroStack lists the active macro calls, innermost first.
func (e *Environment) macroStack() []string {
	out := make([]string, 0, len(e.frames))
	for i := len(e.frames) - 1; i >= 0; i-- {
		f := e.frames[i]
		out = append(out, f.macro.node.Name+" ("+f.macro.tmpl.Name()+")")
	}
	return out
}

func (e *Environment) currentError() (error, bool) {
	if len(e.errs) == 0 {
		return nil, false
	}
	return e.errs[len(e.errs)-1], true
}

// exprText returns the source text of an expression of the current
// template.
func (e *Environment) exprText(expr parser.Expr) string {
	src := e.current.Source()
	sp := expr.Span()
	if int(sp.EndOffset) > len(src) || sp.StartOffset >= sp.EndOffset {
		return ""
	}
	return strings.TrimSpace(sp.Text(src))
}

// FuelLevels reports the fuel consumed and left. ok is false when the
// render has no fuel limit.
func (e *Environment) FuelLevels() (consumed, remaining uint64, ok bool) {
	if e.fuel == nil {
		return 0, 0, false
	}
	consumed, remaining = e.fuel.levels()
	return consumed, remaining, true
}
