// Package value provides the dynamic value model of the template engine.
//
// Every expression evaluated by the engine produces a Value. A Value wraps
// exactly one payload out of a closed set of shapes, and Kind reports which
// shape it is. Evaluator and built-in code switch over Kind exhaustively
// instead of probing for host types.
//
// # Shapes
//
//   - Undefined: a lookup that found nothing
//   - Null: an explicit null coming from the data model
//   - Bool: true or false
//   - Number: int64, float64 or decimal.Decimal
//   - String: text, optionally marked as markup that must not be escaped
//   - Date: an instant plus a DateKind (date, time, datetime or unknown)
//   - Seq: an index-addressable sequence ([]Value or a SeqObject)
//   - Collection: an iterable that can not be indexed (an IterableObject)
//   - Hash: a string-keyed mapping (*Hash or a MapObject)
//   - Callable: a function or bound built-in
//   - Macro: a user-defined macro or function
//   - Node: a tree-shaped external value such as an XML element
//   - Object: an opaque host object reached through a PropertyAccessor
//
// # Example Usage
//
//	ctx := value.FromAny(map[string]any{
//	    "name":  "World",
//	    "items": []int{1, 2, 3},
//	})
//	if ctx.Kind() == value.KindHash {
//	    h, _ := ctx.AsMapping()
//	    name, _ := h.Get("name")
//	    fmt.Println(name.String())
//	}
package value

import (
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind describes the shape of a Value.
type ValueKind int

const (
	// KindUndefined represents a lookup miss.
	//
	// Undefined values may only be observed by existence operators. Every
	// other consumer raises an invalid reference error.
	KindUndefined ValueKind = iota

	// KindNull represents an explicit null, for example a nil entry in a
	// host map. It is present, but has no usable value.
	KindNull

	// KindBool represents a boolean value.
	KindBool

	// KindNumber represents a numeric value. The payload is an int64, a
	// float64 or a decimal.Decimal, and the arithmetic engine decides how
	// mixed payloads are promoted.
	KindNumber

	// KindString represents text. Markup strings produced by ?no_esc are
	// strings too, see IsMarkup.
	KindString

	// KindDate represents a date, time or date-time value.
	KindDate

	// KindSeq represents an ordered, index-addressable sequence.
	KindSeq

	// KindCollection represents an iterable that can not be indexed, such as
	// a right-unbounded range.
	KindCollection

	// KindHash represents a string-keyed mapping.
	KindHash

	// KindCallable represents a function or method that can be invoked with
	// positional arguments.
	KindCallable

	// KindMacro represents a user-defined macro or function.
	KindMacro

	// KindNode represents a node of an external tree, for example an XML DOM.
	KindNode

	// KindObject represents an opaque host object. Its members are reached
	// through a PropertyAccessor.
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindUndefined:
		return "missing"
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindSeq:
		return "sequence"
	case KindCollection:
		return "collection"
	case KindHash:
		return "hash"
	case KindCallable:
		return "method"
	case KindMacro:
		return "macro"
	case KindNode:
		return "node"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value represents a dynamically typed value in the template engine.
//
// Primitive payloads are immutable. Sequences and hashes are shared by
// reference, so an assignment through an index or key is visible to every
// holder of the same Value.
type Value struct {
	data any
}

type undefinedType struct{}
type nullType struct{}

// markup is a string that has already been escaped for the output format.
type markup string

var (
	undefinedVal = undefinedType{}
	nullVal      = nullType{}
)

// Undefined returns the undefined value.
func Undefined() Value {
	return Value{data: undefinedVal}
}

// Null returns the explicit null value.
func Null() Value {
	return Value{data: nullVal}
}

// True returns the boolean true value.
func True() Value {
	return Value{data: true}
}

// False returns the boolean false value.
func False() Value {
	return Value{data: false}
}

// FromBool creates a Value from a boolean.
func FromBool(v bool) Value {
	return Value{data: v}
}

// FromInt creates a Value from an int64.
func FromInt(v int64) Value {
	return Value{data: v}
}

// FromFloat creates a Value from a float64.
func FromFloat(v float64) Value {
	return Value{data: v}
}

// FromDecimal creates a Value from an arbitrary-precision decimal.
func FromDecimal(v decimal.Decimal) Value {
	return Value{data: v}
}

// FromString creates a Value from a string.
func FromString(v string) Value {
	return Value{data: v}
}

// FromMarkup creates a string Value that is already escaped for the output
// format and is written verbatim by auto-escaping.
func FromMarkup(v string) Value {
	return Value{data: markup(v)}
}

// FromDate creates a Value from a DateTime.
func FromDate(v DateTime) Value {
	return Value{data: v}
}

// FromTime creates a date Value of the given kind.
func FromTime(t time.Time, kind DateKind) Value {
	return Value{data: DateTime{Time: t, Kind: kind}}
}

// FromSlice creates a sequence Value from a slice of Values.
func FromSlice(v []Value) Value {
	if v == nil {
		v = []Value{}
	}
	return Value{data: v}
}

// FromHash creates a hash Value from an ordered Hash.
func FromHash(h *Hash) Value {
	if h == nil {
		h = NewHash()
	}
	return Value{data: h}
}

// FromMap creates a hash Value from a Go map. Keys are ordered
// lexicographically.
func FromMap(m map[string]Value) Value {
	return Value{data: HashFromMap(m)}
}

// FromCallable creates a Value from a Callable.
func FromCallable(c Callable) Value {
	return Value{data: c}
}

// FromFunc creates a callable Value from a plain function.
func FromFunc(fn func(state State, args []Value) (Value, error)) Value {
	return Value{data: Func(fn)}
}

// FromObject creates a Value from an Object. The kind is derived from the
// object's ObjectShape.
func FromObject(o Object) Value {
	return Value{data: o}
}

// FromNode creates a Value from a Node.
func FromNode(n Node) Value {
	return Value{data: n}
}

// FromMacro creates a Value from a Macro.
func FromMacro(m Macro) Value {
	return Value{data: m}
}

// FromHost wraps an arbitrary host value as an opaque object. Its members
// are resolved through the configured PropertyAccessor.
func FromHost(v any) Value {
	if v == nil {
		return Null()
	}
	return Value{data: hostValue{v}}
}

type hostValue struct {
	v any
}

// Kind returns the shape of the value.
func (v Value) Kind() ValueKind {
	switch d := v.data.(type) {
	case nil, undefinedType:
		return KindUndefined
	case nullType:
		return KindNull
	case bool:
		return KindBool
	case int64, float64, decimal.Decimal:
		return KindNumber
	case string, markup:
		return KindString
	case DateTime:
		return KindDate
	case []Value:
		return KindSeq
	case *Hash:
		return KindHash
	case Macro:
		return KindMacro
	case Node:
		return KindNode
	case Callable:
		return KindCallable
	case Object:
		switch ShapeOf(d) {
		case ShapeSeq:
			return KindSeq
		case ShapeHash:
			return KindHash
		case ShapeCollection:
			return KindCollection
		default:
			return KindObject
		}
	default:
		return KindObject
	}
}

// TypeName describes the value's concrete shape for error messages.
func (v Value) TypeName() string {
	switch d := v.data.(type) {
	case markup:
		return "markup"
	case int64:
		return "number (integer)"
	case float64:
		return "number (float)"
	case decimal.Decimal:
		return "number (decimal)"
	case DateTime:
		switch d.Kind {
		case DateKindDate:
			return "date"
		case DateKindTime:
			return "time"
		case DateKindDateTime:
			return "datetime"
		default:
			return "date (unknown kind)"
		}
	case Macro:
		if d.IsFunction() {
			return "function"
		}
		return "macro"
	case hostValue:
		return fmt.Sprintf("object (%T)", d.v)
	}
	return v.Kind().String()
}

// Raw returns the wrapped payload.
func (v Value) Raw() any {
	if h, ok := v.data.(hostValue); ok {
		return h.v
	}
	return v.data
}

// IsUndefined returns true if the value is undefined.
func (v Value) IsUndefined() bool {
	return v.Kind() == KindUndefined
}

// IsNull returns true if the value is the explicit null.
func (v Value) IsNull() bool {
	_, ok := v.data.(nullType)
	return ok
}

// IsMissing returns true for undefined and null values, the two shapes
// existence operators treat as absent.
func (v Value) IsMissing() bool {
	return v.IsUndefined() || v.IsNull()
}

// IsMarkup reports whether the value is a string that must not be escaped.
func (v Value) IsMarkup() bool {
	_, ok := v.data.(markup)
	return ok
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	switch d := v.data.(type) {
	case string:
		return d, true
	case markup:
		return string(d), true
	default:
		return "", false
	}
}

// AsBool returns the boolean payload. Objects implementing BoolObject are
// boolean-coercible as well.
func (v Value) AsBool() (bool, bool) {
	switch d := v.data.(type) {
	case bool:
		return d, true
	case BoolObject:
		return d.AsBool(), true
	default:
		return false, false
	}
}

// AsDate returns the date payload.
func (v Value) AsDate() (DateTime, bool) {
	d, ok := v.data.(DateTime)
	return d, ok
}

// AsCallable returns the value as a Callable. Macros are callable too.
func (v Value) AsCallable() (Callable, bool) {
	c, ok := v.data.(Callable)
	return c, ok
}

// AsMacro returns the macro payload.
func (v Value) AsMacro() (Macro, bool) {
	m, ok := v.data.(Macro)
	return m, ok
}

// AsNode returns the node payload.
func (v Value) AsNode() (Node, bool) {
	n, ok := v.data.(Node)
	return n, ok
}

// AsObject returns the Object payload.
func (v Value) AsObject() (Object, bool) {
	o, ok := v.data.(Object)
	return o, ok
}

// AsHost returns the payload of a value created by FromHost.
func (v Value) AsHost() (any, bool) {
	h, ok := v.data.(hostValue)
	return h.v, ok
}

// AsHash returns the ordered Hash payload. Hash-shaped objects are not
// returned, use AsMapping for those.
func (v Value) AsHash() (*Hash, bool) {
	h, ok := v.data.(*Hash)
	return h, ok
}

// AsSlice returns the slice payload of a plain sequence.
func (v Value) AsSlice() ([]Value, bool) {
	s, ok := v.data.([]Value)
	return s, ok
}

// AsSequence returns an indexable view of a sequence value.
func (v Value) AsSequence() (Sequence, bool) {
	switch d := v.data.(type) {
	case []Value:
		return sliceSeq(d), true
	case Object:
		if s, ok := d.(SeqObject); ok && ShapeOf(d) == ShapeSeq {
			return s, true
		}
	}
	return nil, false
}

// AsMapping returns a key-addressable view of a hash value.
func (v Value) AsMapping() (Mapping, bool) {
	switch d := v.data.(type) {
	case *Hash:
		return d, true
	case Object:
		if m, ok := d.(MapObject); ok && ShapeOf(d) == ShapeHash {
			return objectMapping{m}, true
		}
	}
	return nil, false
}

// Items collects the elements of a sequence or collection. It returns false
// for any other shape. Unbounded collections must be walked with Iterate.
func (v Value) Items() ([]Value, bool) {
	if s, ok := v.data.([]Value); ok {
		return s, true
	}
	if seq, ok := v.AsSequence(); ok {
		out := make([]Value, seq.SeqLen())
		for i := range out {
			out[i] = seq.SeqItem(i)
		}
		return out, true
	}
	if it, ok := v.Iterate(); ok {
		var out []Value
		for item := range it {
			out = append(out, item)
		}
		return out, true
	}
	return nil, false
}

// Iterate returns an iterator over a sequence or collection.
func (v Value) Iterate() (iter.Seq[Value], bool) {
	switch d := v.data.(type) {
	case []Value:
		return func(yield func(Value) bool) {
			for _, item := range d {
				if !yield(item) {
					return
				}
			}
		}, true
	case Object:
		switch ShapeOf(d) {
		case ShapeSeq, ShapeCollection:
			if it := iterateObject(d); it != nil {
				return it, true
			}
		}
	}
	return nil, false
}

// Len returns the length of strings, sequences and hashes.
func (v Value) Len() (int, bool) {
	switch d := v.data.(type) {
	case string:
		return len([]rune(d)), true
	case markup:
		return len([]rune(d)), true
	case []Value:
		return len(d), true
	case *Hash:
		return d.Len(), true
	case Object:
		if n := objectLen(d); n >= 0 {
			return n, true
		}
	}
	return 0, false
}

// String returns the canonical, locale-independent text of the value. Use
// it for debugging and for the computer format; templates format values
// through the environment's locale-aware formatters.
func (v Value) String() string {
	switch d := v.data.(type) {
	case nil, undefinedType:
		return ""
	case nullType:
		return "null"
	case bool:
		return strconv.FormatBool(d)
	case int64, float64, decimal.Decimal:
		return NumberString(v)
	case string:
		return d
	case markup:
		return string(d)
	case DateTime:
		return d.ISO()
	case Node:
		return d.Text()
	case Macro:
		return d.MacroName()
	default:
		return v.Repr()
	}
}

// Repr returns a debug representation of the value.
func (v Value) Repr() string {
	switch d := v.data.(type) {
	case nil, undefinedType:
		return "undefined"
	case nullType:
		return "null"
	case string:
		return strconv.Quote(d)
	case markup:
		return "markup(" + strconv.Quote(string(d)) + ")"
	case DateTime:
		return d.Kind.String() + "(" + d.ISO() + ")"
	case *Hash:
		parts := make([]string, 0, d.Len())
		for k, val := range d.All() {
			parts = append(parts, strconv.Quote(k)+": "+val.Repr())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Macro:
		if d.IsFunction() {
			return "<function " + d.MacroName() + ">"
		}
		return "<macro " + d.MacroName() + ">"
	case Node:
		return "<node " + d.NodeName() + ">"
	case Callable:
		return "<method>"
	case hostValue:
		return fmt.Sprintf("<%T>", d.v)
	}
	if items, ok := v.sequenceItems(); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = item.Repr()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if m, ok := v.AsMapping(); ok {
		parts := make([]string, 0)
		for _, k := range m.Keys() {
			val, _ := m.Get(k)
			parts = append(parts, strconv.Quote(k)+": "+val.Repr())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	switch v.data.(type) {
	case bool, int64, float64, decimal.Decimal:
		return v.String()
	}
	if v.Kind() == KindCollection {
		return "<collection>"
	}
	return fmt.Sprintf("%v", v.data)
}

func (v Value) sequenceItems() ([]Value, bool) {
	if s, ok := v.data.([]Value); ok {
		return s, true
	}
	if seq, ok := v.AsSequence(); ok {
		out := make([]Value, seq.SeqLen())
		for i := range out {
			out[i] = seq.SeqItem(i)
		}
		return out, true
	}
	return nil, false
}

// SameAs reports identity: same payload for primitives, the same instance
// for hashes, sequences and objects.
func (v Value) SameAs(other Value) bool {
	switch a := v.data.(type) {
	case []Value:
		b, ok := other.data.([]Value)
		return ok && len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
	case *Hash:
		b, ok := other.data.(*Hash)
		return ok && a == b
	case decimal.Decimal:
		b, ok := other.data.(decimal.Decimal)
		return ok && a.Equal(b)
	case DateTime:
		b, ok := other.data.(DateTime)
		return ok && a.Kind == b.Kind && a.Time.Equal(b.Time)
	case float64:
		b, ok := other.data.(float64)
		return ok && (a == b || (math.IsNaN(a) && math.IsNaN(b)))
	case bool, int64, string, markup, undefinedType, nullType:
		return v.data == other.data
	}
	return false
}

type sliceSeq []Value

func (s sliceSeq) GetAttr(string) Value { return Undefined() }
func (s sliceSeq) SeqLen() int          { return len(s) }
func (s sliceSeq) SeqItem(i int) Value {
	if i < 0 || i >= len(s) {
		return Undefined()
	}
	return s[i]
}

type objectMapping struct {
	m MapObject
}

func (o objectMapping) Get(key string) (Value, bool) {
	v := o.m.GetAttr(key)
	if v.IsUndefined() {
		return v, false
	}
	return v, true
}

func (o objectMapping) Keys() []string { return o.m.Keys() }
func (o objectMapping) Len() int       { return len(o.m.Keys()) }
