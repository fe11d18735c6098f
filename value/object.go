package value

import (
	"context"
	"iter"
)

// State is the part of the rendering environment that host callables may
// use. The engine's Environment implements it.
type State interface {
	// Context returns the Go context of the render.
	Context() context.Context

	// Lookup resolves a variable the way an unqualified template reference
	// would.
	Lookup(name string) Value

	// Name returns the name of the template being rendered.
	Name() string
}

// Callable is a function that can be invoked from templates with positional
// arguments: ${fn(1, "a")}.
type Callable interface {
	Call(state State, args []Value) (Value, error)
}

// Func adapts a plain function to the Callable interface.
type Func func(state State, args []Value) (Value, error)

// Call invokes f.
func (f Func) Call(state State, args []Value) (Value, error) {
	return f(state, args)
}

// Macro is a user-defined macro or function. Macros are rendered as
// directives (<@m/>), functions are invoked from expressions (f()).
type Macro interface {
	Callable
	MacroName() string
	IsFunction() bool
}

// Node is a value of an external tree, for example an XML element.
type Node interface {
	// NodeName returns the element or attribute name, or a pseudo-name such
	// as "@text" for text nodes.
	NodeName() string
	// NodeType returns "element", "text", "attribute", "comment", "pi" or
	// "document".
	NodeType() string
	NodeNamespace() string
	// ParentNode returns nil for the root.
	ParentNode() Node
	ChildNodes() []Node
	// Text returns the concatenated text content.
	Text() string
	// GetAttr resolves member access on the node.
	GetAttr(name string) Value
}

// Object is an interface for host objects with attribute access.
type Object interface {
	// GetAttr returns the value of the named attribute, or Undefined if the
	// attribute does not exist.
	GetAttr(name string) Value
}

// MutableObject is an object that supports attribute assignment, for
// example through <#assign obj.attr = value>.
type MutableObject interface {
	Object
	SetAttr(name string, val Value) error
}

// ObjectShape is the kind of value an Object stands for in templates.
type ObjectShape int

const (
	// ShapePlain objects only support member access.
	ShapePlain ObjectShape = iota
	// ShapeHash objects are hashes and implement MapObject.
	ShapeHash
	// ShapeSeq objects are sequences and implement SeqObject.
	ShapeSeq
	// ShapeCollection objects can be listed but not indexed. They
	// implement IterableObject.
	ShapeCollection
)

var shapeNames = [...]string{"plain", "hash", "sequence", "collection"}

func (s ObjectShape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// ShapedObject is an Object that is more than plain.
type ShapedObject interface {
	Object
	ObjectShape() ObjectShape
}

// Sequence is an index-addressable view of a sequence value.
type Sequence interface {
	SeqLen() int
	// SeqItem returns the item at index, or Undefined if out of bounds.
	SeqItem(index int) Value
}

// SeqObject is an object that behaves like a sequence.
type SeqObject interface {
	Object
	Sequence
}

// Mapping is a key-addressable view of a hash value.
type Mapping interface {
	Get(key string) (Value, bool)
	Keys() []string
	Len() int
}

// MapObject is an object that behaves like a hash with known keys.
type MapObject interface {
	Object
	Keys() []string
}

// IterableObject can provide a custom iterator. It takes precedence over
// SeqObject for iteration.
type IterableObject interface {
	Object
	// Iterate returns a fresh iterator on every call.
	Iterate() iter.Seq[Value]
}

// ObjectWithLen provides an explicit length for an object.
type ObjectWithLen interface {
	Object
	// ObjectLen returns -1 if the length is unknown.
	ObjectLen() int
}

// BoolObject is implemented by objects that can stand in a boolean context,
// such as the result of ?matches.
type BoolObject interface {
	AsBool() bool
}

// PropertyAccessor resolves members of opaque host objects. It is the last
// resort of member access and assignment.
type PropertyAccessor interface {
	// GetProperty returns the named property. The bool result is false if
	// the object has no such member.
	GetProperty(obj any, name string) (Value, bool, error)
	// SetProperty assigns the named property.
	SetProperty(obj any, name string, val Value) error
}

// ShapeOf reports the shape of obj.
func ShapeOf(obj Object) ObjectShape {
	if so, ok := obj.(ShapedObject); ok {
		return so.ObjectShape()
	}
	return ShapePlain
}

// objectLen is the number of items of a sequence or hash object, or -1.
func objectLen(obj Object) int {
	switch o := obj.(type) {
	case ObjectWithLen:
		return o.ObjectLen()
	case SeqObject:
		return o.SeqLen()
	case MapObject:
		return len(o.Keys())
	}
	return -1
}

// iterateObject lists the items of a collection or sequence object and the
// keys of a hash object. It returns nil for plain objects.
func iterateObject(obj Object) iter.Seq[Value] {
	if it, ok := obj.(IterableObject); ok {
		if items := it.Iterate(); items != nil {
			return items
		}
	}
	var (
		n    int
		item func(int) Value
	)
	switch ShapeOf(obj) {
	case ShapeSeq:
		s, ok := obj.(SeqObject)
		if !ok {
			return nil
		}
		n, item = s.SeqLen(), s.SeqItem
	case ShapeHash:
		m, ok := obj.(MapObject)
		if !ok {
			return nil
		}
		keys := m.Keys()
		n, item = len(keys), func(i int) Value { return FromString(keys[i]) }
	default:
		return nil
	}
	return func(yield func(Value) bool) {
		for i := range n {
			if !yield(item(i)) {
				return
			}
		}
	}
}
