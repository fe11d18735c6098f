package ftl

import (
	"github.com/ftlgo/ftl/value"
)

// ScopeKind tells what introduced a scope.
type ScopeKind int

const (
	// ScopeNamespace is the top-level scope of a template. It has no
	// enclosing scope.
	ScopeNamespace ScopeKind = iota
	// ScopeMacro holds the parameters and locals of one macro call.
	ScopeMacro
	// ScopeLoop holds the loop variables of one iteration.
	ScopeLoop
	// ScopeBlock holds bindings introduced by other directives.
	ScopeBlock
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeNamespace:
		return "namespace"
	case ScopeMacro:
		return "macro"
	case ScopeLoop:
		return "loop"
	default:
		return "block"
	}
}

// Scope is a variable resolution context: a local mapping plus a link to
// the enclosing scope. Chains always end in a namespace scope.
//
// Namespaces are exposed to templates as hashes, so ns.name and
// <#assign x = 1 in ns> work on them.
type Scope struct {
	kind      ScopeKind
	vars      *value.Hash
	enclosing *Scope

	// namespace scopes
	name     string
	strict   bool
	declared map[string]bool

	// macro scopes
	frame *macroFrame

	// loop scopes
	loop *loopState

	// the block of a <#list> whose body uses <#items>
	pending *pendingList
}

// NewNamespace creates the namespace scope of the named template.
func NewNamespace(name string) *Scope {
	return &Scope{kind: ScopeNamespace, vars: value.NewHash(), name: name}
}

func newScope(kind ScopeKind, enclosing *Scope) *Scope {
	return &Scope{kind: kind, vars: value.NewHash(), enclosing: enclosing}
}

// Kind returns what introduced the scope.
func (s *Scope) Kind() ScopeKind { return s.kind }

// Enclosing returns the scope lookups fall back to, or nil for namespaces.
func (s *Scope) Enclosing() *Scope { return s.enclosing }

// Get returns a local binding without falling back to enclosing scopes.
func (s *Scope) Get(name string) (value.Value, bool) {
	return s.vars.Get(name)
}

// ResolveVariable walks the chain from s outward.
func (s *Scope) ResolveVariable(name string) (value.Value, bool) {
	for cur := s; cur != nil; cur = cur.enclosing {
		if v, ok := cur.vars.Get(name); ok {
			return v, true
		}
	}
	return value.Undefined(), false
}

// Put binds name in this scope. A strict namespace rejects names that were
// never declared.
func (s *Scope) Put(name string, val value.Value) error {
	if s.strict && !s.declared[name] {
		return newErrorf(ErrDeclaration, "variable %q was not declared with <#var>", name)
	}
	s.vars.Set(name, val)
	return nil
}

// Declare marks name as declared and binds it.
func (s *Scope) Declare(name string, val value.Value) {
	if s.declared == nil {
		s.declared = make(map[string]bool)
	}
	s.declared[name] = true
	s.vars.Set(name, val)
}

// Remove deletes a local binding.
func (s *Scope) Remove(name string) {
	s.vars.Delete(name)
}

// DefinesVariable reports local membership.
func (s *Scope) DefinesVariable(name string) bool {
	_, ok := s.vars.Get(name)
	return ok
}

// Namespace returns the namespace that terminates the chain.
func (s *Scope) Namespace() *Scope {
	cur := s
	for cur.enclosing != nil {
		cur = cur.enclosing
	}
	return cur
}

// Name returns the template name of a namespace scope.
func (s *Scope) Name() string {
	return s.Namespace().name
}

// macroScope returns the innermost macro scope of the chain.
func (s *Scope) macroScope() *Scope {
	for cur := s; cur != nil; cur = cur.enclosing {
		if cur.kind == ScopeMacro {
			return cur
		}
	}
	return nil
}

// findLoop returns the innermost loop binding the given variable.
func (s *Scope) findLoop(name string) *loopState {
	for cur := s; cur != nil; cur = cur.enclosing {
		if cur.loop != nil && cur.loop.name == name {
			return cur.loop
		}
	}
	return nil
}

// locals collects the bindings from s out to the innermost macro scope.
func (s *Scope) locals() *value.Hash {
	out := value.NewHash()
	var chain []*Scope
	for cur := s; cur != nil && cur.kind != ScopeNamespace; cur = cur.enclosing {
		chain = append(chain, cur)
		if cur.kind == ScopeMacro {
			break
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].vars.All() {
			out.Set(k, v)
		}
	}
	return out
}

// GetAttr implements value.Object.
func (s *Scope) GetAttr(name string) value.Value {
	v, ok := s.vars.Get(name)
	if !ok {
		return value.Undefined()
	}
	return v
}

// SetAttr implements value.MutableObject.
func (s *Scope) SetAttr(name string, val value.Value) error {
	return s.Put(name, val)
}

// Keys implements value.MapObject.
func (s *Scope) Keys() []string { return s.vars.Keys() }

// ObjectShape implements value.ShapedObject.
func (s *Scope) ObjectShape() value.ObjectShape { return value.ShapeHash }

// loopState is the bookkeeping of one iteration, read by the loop
// variable built-ins.
type loopState struct {
	name    string
	index   int
	hasNext bool
	item    value.Value
}

func (l *loopState) bind(sc *Scope) {
	sc.vars.Set(l.name, l.item)
	sc.vars.Set(l.name+"_index", value.FromInt(int64(l.index)))
	sc.vars.Set(l.name+"_has_next", value.FromBool(l.hasNext))
}

// pendingList is the source of a <#list> waiting for its <#items>.
type pendingList struct {
	source value.Value
	used   bool
}

// findPending returns the innermost <#list> waiting for <#items>. The
// search does not leave the current macro.
func (s *Scope) findPending() *pendingList {
	for cur := s; cur != nil; cur = cur.enclosing {
		if cur.pending != nil {
			return cur.pending
		}
		if cur.kind == ScopeMacro {
			break
		}
	}
	return nil
}

// innermostLoop returns the state of the innermost iteration.
func (s *Scope) innermostLoop() *loopState {
	for cur := s; cur != nil; cur = cur.enclosing {
		if cur.loop != nil {
			return cur.loop
		}
		if cur.kind == ScopeMacro {
			break
		}
	}
	return nil
}
