// Package xmlnode exposes XML documents to templates as node values.
//
// A parsed document is a tree of *Node. Member access on an element
// follows these rules:
//
//	x.name      child elements called name: the element itself when there
//	            is exactly one, otherwise a sequence
//	x["*"]      all child elements
//	x["**"]     all descendant elements in document order
//	x["@id"]    the value of attribute id
//	x["@@text"] the text content
//	x["@@qname"] the element name with its prefix
//
// Nodes print as their text content, and ?node_name, ?children, ?parent and
// <#visit> work on them like on any other node.
package xmlnode

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ftlgo/ftl/value"
)

// Node types as reported by ?node_type.
const (
	TypeDocument = "document"
	TypeElement  = "element"
	TypeText     = "text"
	TypeComment  = "comment"
	TypePI       = "pi"
)

// Node is one node of a parsed document.
type Node struct {
	typ      string
	name     xml.Name
	attrs    []xml.Attr
	text     string
	parent   *Node
	children []*Node
}

var _ value.Node = (*Node)(nil)

// Parse reads a whole document from r.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	doc := &Node{typ: TypeDocument}
	cur := doc
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmlnode: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Node{typ: TypeElement, name: t.Name, attrs: t.Attr, parent: cur}
			cur.children = append(cur.children, el)
			cur = el
		case xml.EndElement:
			cur = cur.parent
		case xml.CharData:
			if cur == doc {
				continue
			}
			cur.appendText(string(t))
		case xml.Comment:
			cur.children = append(cur.children, &Node{typ: TypeComment, text: string(t), parent: cur})
		case xml.ProcInst:
			if t.Target == "xml" {
				continue
			}
			cur.children = append(cur.children, &Node{
				typ: TypePI, name: xml.Name{Local: t.Target}, text: string(t.Inst), parent: cur,
			})
		}
	}
	return doc, nil
}

// ParseString parses a document held in a string.
func ParseString(src string) (*Node, error) {
	return Parse(strings.NewReader(src))
}

// appendText merges adjacent character data, which the decoder may split.
func (n *Node) appendText(s string) {
	if k := len(n.children); k > 0 && n.children[k-1].typ == TypeText {
		n.children[k-1].text += s
		return
	}
	n.children = append(n.children, &Node{typ: TypeText, text: s, parent: n})
}

func (n *Node) NodeName() string {
	switch n.typ {
	case TypeElement, TypePI:
		return n.name.Local
	}
	return "@" + n.typ
}

func (n *Node) NodeType() string { return n.typ }

func (n *Node) NodeNamespace() string { return n.name.Space }

func (n *Node) ParentNode() value.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) ChildNodes() []value.Node {
	out := make([]value.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// Text returns the concatenated character data of n and its descendants.
func (n *Node) Text() string {
	switch n.typ {
	case TypeText, TypeComment, TypePI:
		return n.text
	}
	var b strings.Builder
	n.collectText(&b)
	return b.String()
}

func (n *Node) collectText(b *strings.Builder) {
	for _, c := range n.children {
		switch c.typ {
		case TypeText:
			b.WriteString(c.text)
		case TypeElement:
			c.collectText(b)
		}
	}
}

// Attr returns the value of the attribute with the given local name.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Elements returns the child elements called name, or all child elements
// when name is empty.
func (n *Node) Elements(name string) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.typ == TypeElement && (name == "" || c.name.Local == name) {
			out = append(out, c)
		}
	}
	return out
}

func (n *Node) descendants(out []*Node) []*Node {
	for _, c := range n.children {
		if c.typ == TypeElement {
			out = append(out, c)
			out = c.descendants(out)
		}
	}
	return out
}

func (n *Node) GetAttr(name string) value.Value {
	switch {
	case name == "*":
		return nodeSeq(n.Elements(""))
	case name == "**":
		return nodeSeq(n.descendants(nil))
	case name == "@@text":
		return value.FromString(n.Text())
	case name == "@@qname":
		return value.FromString(n.qname())
	case strings.HasPrefix(name, "@"):
		if s, ok := n.Attr(name[1:]); ok {
			return value.FromString(s)
		}
		return value.Undefined()
	}
	els := n.Elements(name)
	if len(els) == 1 {
		return value.FromNode(els[0])
	}
	return nodeSeq(els)
}

func (n *Node) qname() string {
	if n.name.Space == "" {
		return n.name.Local
	}
	for _, a := range n.attrs {
		if a.Name.Space == "xmlns" && a.Value == n.name.Space {
			return a.Name.Local + ":" + n.name.Local
		}
	}
	return n.name.Local
}

// String implements fmt.Stringer for debug output.
func (n *Node) String() string {
	return "<" + n.typ + " " + n.NodeName() + ">"
}

func nodeSeq(nodes []*Node) value.Value {
	items := make([]value.Value, len(nodes))
	for i, c := range nodes {
		items[i] = value.FromNode(c)
	}
	return value.FromSlice(items)
}
