package ftl

import (
	goerrors "errors"

	ftlerrors "github.com/ftlgo/ftl/internal/errors"
	"github.com/ftlgo/ftl/internal/parser"
)

const maxReprLen = 80

// decorate attaches the location of node in the current template and a
// snapshot of the variables it references. Errors already carrying a
// location keep it, so the innermost failing node wins.
func (e *Environment) decorate(err error, node parser.Node, sc *Scope) error {
	if err == nil {
		return nil
	}
	var tErr *Error
	if !goerrors.As(err, &tErr) {
		tErr = ftlerrors.New(ErrEval, err.Error()).WithCause(err)
		err = tErr
	}
	if tErr.Name == "" {
		tErr.WithName(e.current.Name()).WithSource(e.current.Source())
	}
	if node != nil {
		tErr.WithSpan(node.Span())
	}
	if tErr.DebugInfo == nil {
		tErr.DebugInfo = e.makeDebugInfo(node, sc)
	}
	return err
}

func (e *Environment) makeDebugInfo(node parser.Node, sc *Scope) *ftlerrors.DebugInfo {
	names := refs{}
	switch n := node.(type) {
	case parser.Expr:
		names.expr(n)
	case parser.Stmt:
		names.stmt(n)
	}

	vars := make(map[string]string, len(names))
	if sc != nil {
		for name := range names {
			val := e.lookup(sc, name)
			if val.IsUndefined() {
				continue
			}
			repr := val.Repr()
			if len(repr) > maxReprLen {
				repr = repr[:maxReprLen-3] + "..."
			}
			vars[name] = repr
		}
	}

	return &ftlerrors.DebugInfo{
		TemplateSource: e.current.Source(),
		ReferencedVars: vars,
		MacroStack:     e.macroStack(),
	}
}

// refs collects the top-level variable names a node reads.
type refs map[string]struct{}

func (r refs) stmt(stmt parser.Stmt) {
	switch s := stmt.(type) {
	case *parser.Interpolation:
		r.expr(s.Expr)
	case *parser.If:
		for _, b := range s.Branches {
			r.expr(b.Cond)
		}
	case *parser.List:
		r.expr(s.Source)
	case *parser.Switch:
		r.expr(s.Value)
	case *parser.Assign:
		for _, item := range s.Items {
			r.expr(item.Target, item.Value)
		}
		r.expr(s.Namespace)
	case *parser.MacroCall:
		r.expr(s.Callee)
		r.expr(s.Args...)
		r.named(s.NamedArgs)
	case *parser.Nested:
		r.expr(s.Args...)
	case *parser.Return:
		r.expr(s.Value)
	case *parser.Include:
		r.expr(s.Name)
		r.named(s.Params)
	case *parser.Import:
		r.expr(s.Name)
	case *parser.Setting:
		r.expr(s.Value)
	case *parser.Stop:
		r.expr(s.Message)
	case *parser.Visit:
		r.expr(s.Node, s.Using)
	case *parser.Recurse:
		r.expr(s.Node, s.Using)
	case *parser.OutputFormat:
		r.expr(s.Format)
	}
}

func (r refs) expr(exprs ...parser.Expr) {
	for _, expr := range exprs {
		switch x := expr.(type) {
		case *parser.Var:
			r[x.Name] = struct{}{}
		case *parser.Interpolated:
			r.expr(x.Parts...)
		case *parser.Paren:
			r.expr(x.Expr)
		case *parser.UnaryOp:
			r.expr(x.Expr)
		case *parser.BinOp:
			r.expr(x.Left, x.Right)
		case *parser.Logical:
			r.expr(x.Left, x.Right)
		case *parser.Compare:
			r.expr(x.Left, x.Right)
		case *parser.Range:
			r.expr(x.Start, x.End)
		case *parser.GetAttr:
			r.expr(x.Expr)
		case *parser.GetItem:
			r.expr(x.Expr, x.Index)
		case *parser.BuiltIn:
			r.expr(x.Expr)
		case *parser.Call:
			r.expr(x.Expr)
			r.expr(x.Args...)
		case *parser.DefaultTo:
			r.expr(x.Expr, x.Default)
		case *parser.Exists:
			r.expr(x.Expr)
		case *parser.ListLit:
			r.expr(x.Items...)
		case *parser.HashLit:
			r.expr(x.Keys...)
			r.expr(x.Values...)
		case *parser.Lambda:
			r.expr(x.Body)
			delete(r, x.Param)
		}
	}
}

func (r refs) named(args []parser.NamedArg) {
	for _, arg := range args {
		r.expr(arg.Value)
	}
}
