package ftl

import (
	"github.com/ftlgo/ftl/internal/parser"
	"github.com/ftlgo/ftl/value"
)

// assignTarget is where an assignment directive binds plain names.
type assignTarget struct {
	kind  parser.AssignScope
	scope *Scope
	e     *Environment
}

func (t assignTarget) get(name string) (value.Value, bool) {
	if t.kind == parser.ScopeGlobal {
		return t.e.globals.Get(name)
	}
	return t.scope.ResolveVariable(name)
}

func (t assignTarget) set(name string, v value.Value) error {
	switch t.kind {
	case parser.ScopeGlobal:
		t.e.globals.Set(name, v)
		return nil
	case parser.ScopeVar:
		t.scope.Declare(name, v)
		return nil
	case parser.ScopeLocal:
		t.scope.vars.Set(name, v)
		return nil
	}
	return t.scope.Put(name, v)
}

func (e *Environment) assignContainer(sc *Scope, kind parser.AssignScope, nsExpr parser.Expr) (assignTarget, error) {
	t := assignTarget{kind: kind, e: e}
	switch kind {
	case parser.ScopeGlobal:
		if nsExpr != nil {
			return t, newErrorf(ErrInvalidOperation, "<#global> can not assign into a namespace")
		}
	case parser.ScopeLocal:
		t.scope = sc.macroScope()
		if t.scope == nil {
			return t, newErrorf(ErrInvalidOperation, "<#local> can only be used inside a macro or function")
		}
	case parser.ScopeVar:
		t.scope = sc
	default:
		t.scope = sc.Namespace()
		if nsExpr != nil {
			v, err := e.evalDefined(sc, nsExpr)
			if err != nil {
				return t, err
			}
			ns, ok := namespaceOf(v)
			if !ok {
				return t, typeError("<#assign ... in>", "a namespace", v).WithSpan(nsExpr.Span())
			}
			t.scope = ns
		}
	}
	return t, nil
}

func namespaceOf(v value.Value) (*Scope, bool) {
	obj, ok := v.AsObject()
	if !ok {
		return nil, false
	}
	ns, ok := obj.(*Scope)
	if !ok || ns.kind != ScopeNamespace {
		return nil, false
	}
	return ns, true
}

func (e *Environment) renderAssign(sc *Scope, node *parser.Assign) error {
	target, err := e.assignContainer(sc, node.Scope, node.Namespace)
	if err != nil {
		return err
	}
	for _, item := range node.Items {
		if err := e.assignItem(sc, target, item); err != nil {
			return errorAt(err, item.Span())
		}
	}
	return nil
}

func (e *Environment) assignItem(sc *Scope, target assignTarget, item parser.Assignment) error {
	if item.Op == "" {
		v, ok := item.Target.(*parser.Var)
		if !ok {
			return newErrorf(ErrInvalidOperation, "<#var> can only declare plain names")
		}
		return target.set(v.Name, value.Undefined())
	}

	var newVal value.Value
	if item.Op == "=" {
		v, err := e.evalDefined(sc, item.Value)
		if err != nil {
			return err
		}
		newVal = v
	} else {
		cur, err := e.currentValue(sc, target, item.Target)
		if err != nil {
			return err
		}
		rhs := value.FromInt(1)
		if item.Value != nil {
			if rhs, err = e.evalDefined(sc, item.Value); err != nil {
				return err
			}
		}
		switch item.Op {
		case "+=":
			newVal, err = e.add(cur, rhs)
		case "++":
			newVal, err = e.arith("+", cur, rhs)
		case "--":
			newVal, err = e.arith("-", cur, rhs)
		default:
			newVal, err = e.arith(item.Op[:1], cur, rhs)
		}
		if err != nil {
			return err
		}
	}

	switch t := item.Target.(type) {
	case *parser.Var:
		return target.set(t.Name, newVal)
	case *parser.GetAttr:
		container, err := e.evalDefined(sc, t.Expr)
		if err != nil {
			return err
		}
		return e.setMember(container, value.FromString(t.Name), newVal)
	case *parser.GetItem:
		container, err := e.evalDefined(sc, t.Expr)
		if err != nil {
			return err
		}
		key, err := e.evalDefined(sc, t.Index)
		if err != nil {
			return err
		}
		return e.setMember(container, key, newVal)
	}
	return newErrorf(ErrInvalidOperation, "can not assign to %s", e.exprText(item.Target))
}

// currentValue reads the value an operator assignment starts from.
func (e *Environment) currentValue(sc *Scope, target assignTarget, expr parser.Expr) (value.Value, error) {
	if v, ok := expr.(*parser.Var); ok {
		if cur, found := target.get(v.Name); found && !cur.IsUndefined() {
			return cur, nil
		}
		if cur := e.lookup(sc, v.Name); !cur.IsUndefined() {
			return cur, nil
		}
		return value.Undefined(), e.undefinedError(expr)
	}
	return e.evalDefined(sc, expr)
}

// setMember writes container[key]. Namespaces, hashes, mutable objects,
// sequences and host objects are tried in that order. Hashes and sequences
// of the data model and of shared variables are read-only.
func (e *Environment) setMember(container, key, v value.Value) error {
	if e.readOnly(container) {
		return newErrorf(ErrInvalidType, "can not assign %s into a %s of the data model or a shared variable", key.Repr(), container.TypeName())
	}
	name, isName := key.AsString()
	if isName {
		if ns, ok := namespaceOf(container); ok {
			return ns.Put(name, v)
		}
		if h, ok := container.AsHash(); ok {
			h.Set(name, v)
			return nil
		}
		if obj, ok := container.AsObject(); ok {
			if m, ok := obj.(value.MutableObject); ok {
				return m.SetAttr(name, v)
			}
		}
	}
	if idx, ok := key.AsInt(); ok && key.IsNumber() {
		if items, ok := container.AsSlice(); ok {
			if idx < 0 || idx >= int64(len(items)) {
				return newErrorf(ErrBounds, "index %d is out of bounds for sequence of size %d", idx, len(items))
			}
			items[idx] = v
			return nil
		}
	}
	if host, ok := container.AsHost(); ok && isName {
		return e.cfg.accessor.SetProperty(host, name, v)
	}
	return newErrorf(ErrInvalidType, "can not assign %s into %s", key.Repr(), container.TypeName())
}
