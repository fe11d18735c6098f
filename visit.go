package ftl

import (
	"io"

	"github.com/ftlgo/ftl/internal/parser"
	"github.com/ftlgo/ftl/value"
)

// visitFrame is an active <#visit>: the node being handled and the
// namespaces searched for handlers.
type visitFrame struct {
	node  value.Node
	using []*Scope
}

func (e *Environment) renderVisit(w io.Writer, sc *Scope, node *parser.Visit) error {
	v, err := e.evalDefined(sc, node.Node)
	if err != nil {
		return err
	}
	n, ok := v.AsNode()
	if !ok {
		return typeError("<#visit>", "a node", v)
	}
	using, err := e.visitNamespaces(sc, node.Using)
	if err != nil {
		return err
	}
	return e.visitNode(w, sc, n, using)
}

func (e *Environment) renderRecurse(w io.Writer, sc *Scope, node *parser.Recurse) error {
	var parent value.Node
	if node.Node != nil {
		v, err := e.evalDefined(sc, node.Node)
		if err != nil {
			return err
		}
		n, ok := v.AsNode()
		if !ok {
			return typeError("<#recurse>", "a node", v)
		}
		parent = n
	} else {
		if len(e.visits) == 0 {
			return newErrorf(ErrInvalidOperation, "<#recurse> without a node can only be used in a node handler")
		}
		parent = e.visits[len(e.visits)-1].node
	}
	using, err := e.visitNamespaces(sc, node.Using)
	if err != nil {
		return err
	}
	for _, child := range parent.ChildNodes() {
		if err := e.visitNode(w, sc, child, using); err != nil {
			return err
		}
	}
	return nil
}

// visitNamespaces resolves the using clause: a namespace, a template name
// to import, or a sequence of those. Without a clause the namespaces of the
// enclosing visit are used, or else the current namespace.
func (e *Environment) visitNamespaces(sc *Scope, using parser.Expr) ([]*Scope, error) {
	if using == nil {
		if len(e.visits) > 0 {
			return e.visits[len(e.visits)-1].using, nil
		}
		return []*Scope{sc.Namespace()}, nil
	}
	v, err := e.evalDefined(sc, using)
	if err != nil {
		return nil, err
	}
	items := []value.Value{v}
	if v.Kind() == value.KindSeq {
		items, _ = v.Items()
	}
	out := make([]*Scope, 0, len(items))
	for _, item := range items {
		if ns, ok := namespaceOf(item); ok {
			out = append(out, ns)
			continue
		}
		name, ok := item.AsString()
		if !ok {
			return nil, typeError("the using clause", "a namespace or template name", item)
		}
		ns, err := e.importLib(resolveName(e.current.Name(), name))
		if err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, nil
}

// visitNode calls the handler macro of n: the macro named after the node,
// or else the one named "@" plus the node type. Text without a handler is
// written as is and documents recurse into their children.
func (e *Environment) visitNode(w io.Writer, sc *Scope, n value.Node, using []*Scope) error {
	handler := findHandler(using, n.NodeName())
	if handler == nil {
		handler = findHandler(using, "@"+n.NodeType())
	}
	if handler == nil {
		switch n.NodeType() {
		case "text":
			text := n.Text()
			if e.oc.autoEscaping() {
				text = escapeFor(e.oc.format, text)
			}
			return writeString(w, text)
		case "document":
			e.visits = append(e.visits, &visitFrame{node: n, using: using})
			defer func() { e.visits = e.visits[:len(e.visits)-1] }()
			for _, child := range n.ChildNodes() {
				if err := e.visitNode(w, sc, child, using); err != nil {
					return err
				}
			}
			return nil
		case "comment", "pi":
			return nil
		}
		return newErrorf(ErrInvalidReference, "no macro handles the %s node %q", n.NodeType(), n.NodeName())
	}
	e.visits = append(e.visits, &visitFrame{node: n, using: using})
	defer func() { e.visits = e.visits[:len(e.visits)-1] }()
	return e.invokeMacro(w, handler, nil, nil, nil, sc)
}

func findHandler(using []*Scope, name string) *macroValue {
	for _, ns := range using {
		v, ok := ns.Get(name)
		if !ok {
			continue
		}
		m, ok := v.AsMacro()
		if !ok {
			continue
		}
		if mv, ok := m.(*macroValue); ok && !mv.node.IsFunction {
			return mv
		}
	}
	return nil
}
