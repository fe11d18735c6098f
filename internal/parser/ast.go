// Package parser builds the immutable AST of FTL templates.
package parser

import (
	"github.com/ftlgo/ftl/syntax"
	"github.com/ftlgo/ftl/value"
)

// Span represents a location range in source code.
type Span = syntax.Span

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
	Span() Span
}

// Stmt represents a statement node.
type Stmt interface {
	Node
	stmt()
}

// Expr represents an expression node.
type Expr interface {
	Node
	expr()
}

// --- Statement Types ---

// Template is the root node of a parsed template.
type Template struct {
	Name   string
	Source string
	Header *Header
	Body   []Stmt
	span   Span
}

func (t *Template) node()      {}
func (t *Template) stmt()      {}
func (t *Template) Span() Span { return t.span }

// Header holds the parameters of the <#ftl> directive.
type Header struct {
	Params []NamedArg
	span   Span
}

// Param returns the expression of a header parameter.
func (h *Header) Param(name string) (Expr, bool) {
	if h == nil {
		return nil, false
	}
	for _, p := range h.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Text outputs raw template text.
type Text struct {
	Raw  string
	span Span
}

func (t *Text) node()      {}
func (t *Text) stmt()      {}
func (t *Text) Span() Span { return t.span }

// Interpolation outputs the value of ${expr}.
type Interpolation struct {
	Expr Expr
	span Span
}

func (i *Interpolation) node()      {}
func (i *Interpolation) stmt()      {}
func (i *Interpolation) Span() Span { return i.span }

// IfBranch is one condition of an if/elseif chain.
type IfBranch struct {
	Cond Expr
	Body []Stmt
}

// If represents <#if>, its <#elseif> branches and an optional <#else>.
type If struct {
	Branches []IfBranch
	Else     []Stmt
	span     Span
}

func (i *If) node()      {}
func (i *If) stmt()      {}
func (i *If) Span() Span { return i.span }

// List represents <#list>. LoopVar is empty when the body uses <#items>.
// ValueVar is set when listing a hash as key, value.
type List struct {
	Source   Expr
	LoopVar  string
	ValueVar string
	Body     []Stmt
	Else     []Stmt
	span     Span
}

func (l *List) node()      {}
func (l *List) stmt()      {}
func (l *List) Span() Span { return l.span }

// Items represents <#items> inside a <#list> without loop variable.
type Items struct {
	LoopVar  string
	ValueVar string
	Body     []Stmt
	span     Span
}

func (i *Items) node()      {}
func (i *Items) stmt()      {}
func (i *Items) Span() Span { return i.span }

// Sep represents <#sep>, rendered for every item except the last.
type Sep struct {
	Body []Stmt
	span Span
}

func (s *Sep) node()      {}
func (s *Sep) stmt()      {}
func (s *Sep) Span() Span { return s.span }

// Break exits the innermost list or switch.
type Break struct {
	span Span
}

func (b *Break) node()      {}
func (b *Break) stmt()      {}
func (b *Break) Span() Span { return b.span }

// Continue skips to the next iteration of the innermost list.
type Continue struct {
	span Span
}

func (c *Continue) node()      {}
func (c *Continue) stmt()      {}
func (c *Continue) Span() Span { return c.span }

// Case is a branch of a switch. Values is nil for <#default>. A branch
// opened with <#on> does not fall through into the next one.
type Case struct {
	Values []Expr
	Body   []Stmt
	On     bool
	span   Span
}

// Switch represents <#switch>.
type Switch struct {
	Value Expr
	Cases []Case
	span  Span
}

func (s *Switch) node()      {}
func (s *Switch) stmt()      {}
func (s *Switch) Span() Span { return s.span }

// AssignScope selects the scope an assignment directive writes to.
type AssignScope int

const (
	ScopeAssign AssignScope = iota // <#assign>: current namespace
	ScopeLocal                     // <#local>: current macro
	ScopeGlobal                    // <#global>: the globals
	ScopeVar                       // <#var>: declaration in the current scope
)

func (s AssignScope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeGlobal:
		return "global"
	case ScopeVar:
		return "var"
	}
	return "assign"
}

// Assignment is a single `target op value` pair. Value is nil for ++, --
// and bare <#var> declarations.
type Assignment struct {
	Target Expr
	Op     string
	Value  Expr
	span   Span
}

// Span returns the location of the assignment.
func (a Assignment) Span() Span { return a.span }

// Assign represents <#assign>, <#local>, <#global> and <#var>.
type Assign struct {
	Scope     AssignScope
	Items     []Assignment
	Namespace Expr
	span      Span
}

func (a *Assign) node()      {}
func (a *Assign) stmt()      {}
func (a *Assign) Span() Span { return a.span }

// AssignCapture captures the output of its body into a variable.
type AssignCapture struct {
	Scope     AssignScope
	Name      string
	Namespace Expr
	Body      []Stmt
	span      Span
}

func (a *AssignCapture) node()      {}
func (a *AssignCapture) stmt()      {}
func (a *AssignCapture) Span() Span { return a.span }

// Param is a declared macro parameter.
type Param struct {
	Name    string
	Default Expr
}

// Macro represents <#macro> and <#function>.
type Macro struct {
	Name       string
	Params     []Param
	CatchAll   string
	IsFunction bool
	Body       []Stmt
	span       Span
}

func (m *Macro) node()      {}
func (m *Macro) stmt()      {}
func (m *Macro) Span() Span { return m.span }

// Return leaves a macro, or a function with a value.
type Return struct {
	Value Expr
	span  Span
}

func (r *Return) node()      {}
func (r *Return) stmt()      {}
func (r *Return) Span() Span { return r.span }

// Nested renders the nested content of the current macro call.
type Nested struct {
	Args []Expr
	span Span
}

func (n *Nested) node()      {}
func (n *Nested) stmt()      {}
func (n *Nested) Span() Span { return n.span }

// NamedArg is a `name=value` argument.
type NamedArg struct {
	Name  string
	Value Expr
}

// MacroCall represents <@callee args ; loopVars>body</@callee>.
type MacroCall struct {
	Callee    Expr
	Args      []Expr
	NamedArgs []NamedArg
	LoopVars  []string
	Body      []Stmt
	HasBody   bool
	span      Span
}

func (m *MacroCall) node()      {}
func (m *MacroCall) stmt()      {}
func (m *MacroCall) Span() Span { return m.span }

// Include represents <#include>.
type Include struct {
	Name   Expr
	Params []NamedArg
	span   Span
}

func (i *Include) node()      {}
func (i *Include) stmt()      {}
func (i *Include) Span() Span { return i.span }

// Import represents <#import name as ns>.
type Import struct {
	Name Expr
	As   string
	span Span
}

func (i *Import) node()      {}
func (i *Import) stmt()      {}
func (i *Import) Span() Span { return i.span }

// Attempt represents <#attempt>...<#recover>...</#attempt>.
type Attempt struct {
	Body    []Stmt
	Recover []Stmt
	span    Span
}

func (a *Attempt) node()      {}
func (a *Attempt) stmt()      {}
func (a *Attempt) Span() Span { return a.span }

// Compress represents <#compress>.
type Compress struct {
	Body []Stmt
	span Span
}

func (c *Compress) node()      {}
func (c *Compress) stmt()      {}
func (c *Compress) Span() Span { return c.span }

// Escape represents <#escape x as expr>.
type Escape struct {
	Var  string
	Expr Expr
	Body []Stmt
	span Span
}

func (e *Escape) node()      {}
func (e *Escape) stmt()      {}
func (e *Escape) Span() Span { return e.span }

// NoEscape represents <#noescape>.
type NoEscape struct {
	Body []Stmt
	span Span
}

func (n *NoEscape) node()      {}
func (n *NoEscape) stmt()      {}
func (n *NoEscape) Span() Span { return n.span }

// AutoEsc switches auto-escaping on (Enabled) or off for its body.
type AutoEsc struct {
	Enabled bool
	Body    []Stmt
	span    Span
}

func (a *AutoEsc) node()      {}
func (a *AutoEsc) stmt()      {}
func (a *AutoEsc) Span() Span { return a.span }

// OutputFormat represents <#outputformat "name">.
type OutputFormat struct {
	Format Expr
	Body   []Stmt
	span   Span
}

func (o *OutputFormat) node()      {}
func (o *OutputFormat) stmt()      {}
func (o *OutputFormat) Span() Span { return o.span }

// Setting represents <#setting name=value>.
type Setting struct {
	Name  string
	Value Expr
	span  Span
}

func (s *Setting) node()      {}
func (s *Setting) stmt()      {}
func (s *Setting) Span() Span { return s.span }

// Stop aborts the render.
type Stop struct {
	Message Expr
	span    Span
}

func (s *Stop) node()      {}
func (s *Stop) stmt()      {}
func (s *Stop) Span() Span { return s.span }

// Flush flushes the output sink.
type Flush struct {
	span Span
}

func (f *Flush) node()      {}
func (f *Flush) stmt()      {}
func (f *Flush) Span() Span { return f.span }

// Visit represents <#visit node using ns>.
type Visit struct {
	Node  Expr
	Using Expr
	span  Span
}

func (v *Visit) node()      {}
func (v *Visit) stmt()      {}
func (v *Visit) Span() Span { return v.span }

// Recurse represents <#recurse node using ns>. Node is nil for the
// current node.
type Recurse struct {
	Node  Expr
	Using Expr
	span  Span
}

func (r *Recurse) node()      {}
func (r *Recurse) stmt()      {}
func (r *Recurse) Span() Span { return r.span }

// --- Expression Types ---

// Var is a variable reference.
type Var struct {
	Name string
	span Span
}

func (v *Var) node()      {}
func (v *Var) expr()      {}
func (v *Var) Span() Span { return v.span }

// SpecialVar is a .name reference.
type SpecialVar struct {
	Name string
	span Span
}

func (s *SpecialVar) node()      {}
func (s *SpecialVar) expr()      {}
func (s *SpecialVar) Span() Span { return s.span }

// Const represents a literal value.
type Const struct {
	Value value.Value
	span  Span
}

func (c *Const) node()      {}
func (c *Const) expr()      {}
func (c *Const) Span() Span { return c.span }

// Interpolated is a string literal containing ${} interpolations.
type Interpolated struct {
	Parts []Expr
	span  Span
}

func (i *Interpolated) node()      {}
func (i *Interpolated) expr()      {}
func (i *Interpolated) Span() Span { return i.span }

// ListLit is a [a, b] sequence literal.
type ListLit struct {
	Items []Expr
	span  Span
}

func (l *ListLit) node()      {}
func (l *ListLit) expr()      {}
func (l *ListLit) Span() Span { return l.span }

// HashLit is a {k: v} hash literal.
type HashLit struct {
	Keys   []Expr
	Values []Expr
	span   Span
}

func (h *HashLit) node()      {}
func (h *HashLit) expr()      {}
func (h *HashLit) Span() Span { return h.span }

// Paren is a parenthesized expression.
type Paren struct {
	Expr Expr
	span Span
}

func (p *Paren) node()      {}
func (p *Paren) expr()      {}
func (p *Paren) Span() Span { return p.span }

// UnaryOp is !x, -x or +x.
type UnaryOp struct {
	Op   string
	Expr Expr
	span Span
}

func (u *UnaryOp) node()      {}
func (u *UnaryOp) expr()      {}
func (u *UnaryOp) Span() Span { return u.span }

// BinOp is an arithmetic operator: + - * / %.
type BinOp struct {
	Op    string
	Left  Expr
	Right Expr
	span  Span
}

func (b *BinOp) node()      {}
func (b *BinOp) expr()      {}
func (b *BinOp) Span() Span { return b.span }

// Logical is && or ||.
type Logical struct {
	Op    string
	Left  Expr
	Right Expr
	span  Span
}

func (l *Logical) node()      {}
func (l *Logical) expr()      {}
func (l *Logical) Span() Span { return l.span }

// Compare is a comparison. Op is one of == != < <= > >=.
type Compare struct {
	Op    string
	Left  Expr
	Right Expr
	span  Span
}

func (c *Compare) node()      {}
func (c *Compare) expr()      {}
func (c *Compare) Span() Span { return c.span }

// RangeMode tells how the end of a range is interpreted.
type RangeMode int

const (
	RangeInclusive RangeMode = iota // a..b
	RangeExclusive                  // a..<b
	RangeLength                     // a..*n
	RangeUnbounded                  // a..
)

// Range is a numeric range expression.
type Range struct {
	Start Expr
	End   Expr
	Mode  RangeMode
	span  Span
}

func (r *Range) node()      {}
func (r *Range) expr()      {}
func (r *Range) Span() Span { return r.span }

// GetAttr is expr.name.
type GetAttr struct {
	Expr Expr
	Name string
	span Span
}

func (g *GetAttr) node()      {}
func (g *GetAttr) expr()      {}
func (g *GetAttr) Span() Span { return g.span }

// GetItem is expr[index]; a Range index slices.
type GetItem struct {
	Expr  Expr
	Index Expr
	span  Span
}

func (g *GetItem) node()      {}
func (g *GetItem) expr()      {}
func (g *GetItem) Span() Span { return g.span }

// BuiltIn is expr?name.
type BuiltIn struct {
	Expr Expr
	Name string
	span Span
}

func (b *BuiltIn) node()      {}
func (b *BuiltIn) expr()      {}
func (b *BuiltIn) Span() Span { return b.span }

// Call is expr(args).
type Call struct {
	Expr Expr
	Args []Expr
	span Span
}

func (c *Call) node()      {}
func (c *Call) expr()      {}
func (c *Call) Span() Span { return c.span }

// DefaultTo is expr!default. Default is nil for a bare expr!.
type DefaultTo struct {
	Expr    Expr
	Default Expr
	span    Span
}

func (d *DefaultTo) node()      {}
func (d *DefaultTo) expr()      {}
func (d *DefaultTo) Span() Span { return d.span }

// Exists is expr??.
type Exists struct {
	Expr Expr
	span Span
}

func (e *Exists) node()      {}
func (e *Exists) expr()      {}
func (e *Exists) Span() Span { return e.span }

// Lambda is param -> body, accepted by the sequence built-ins.
type Lambda struct {
	Param string
	Body  Expr
	span  Span
}

func (l *Lambda) node()      {}
func (l *Lambda) expr()      {}
func (l *Lambda) Span() Span { return l.span }
