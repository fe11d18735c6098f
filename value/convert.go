package value

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/ftlgo/ftl/internal/errors"
)

// FromAny wraps a Go value into the value model:
//   - nil -> Null()
//   - bool, ints, uints, floats, decimal.Decimal -> Bool / Number
//   - string -> String
//   - time.Time -> Date of kind DateKindDateTime, DateTime -> Date
//   - slices and arrays -> Seq (recursively)
//   - maps -> Hash with keys in lexicographic order (recursively)
//   - structs -> Hash of exported fields, honouring json tags
//   - pointers to structs -> opaque object resolved by a PropertyAccessor
//   - Callable, Macro, Node, Object -> passed through
//   - functions -> Callable invoking the function through reflection
func FromAny(v any) Value {
	switch d := v.(type) {
	case nil:
		return Null()
	case Value:
		return d
	case decimal.Decimal:
		return FromDecimal(d)
	case time.Time:
		return FromTime(d, DateKindDateTime)
	case DateTime:
		return FromDate(d)
	case *Hash:
		return FromHash(d)
	case Macro:
		return FromMacro(d)
	case Node:
		return FromNode(d)
	case Callable:
		return FromCallable(d)
	case Object:
		return FromObject(d)
	}
	return fromReflectValue(reflect.ValueOf(v))
}

func fromReflectValue(rv reflect.Value) Value {
	if !rv.IsValid() {
		return Null()
	}
	if rv.CanInterface() {
		switch d := rv.Interface().(type) {
		case Value, decimal.Decimal, time.Time, DateTime, *Hash, Macro, Node, Callable, Object:
			return FromAny(d)
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return FromBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FromInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return FromDecimal(decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0))
		}
		return FromInt(int64(u))
	case reflect.Float32, reflect.Float64:
		return FromFloat(rv.Float())
	case reflect.String:
		return FromString(rv.String())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return FromSlice(nil)
		}
		slice := make([]Value, rv.Len())
		for i := range slice {
			slice[i] = fromReflectValue(rv.Index(i))
		}
		return FromSlice(slice)
	case reflect.Map:
		if rv.IsNil() {
			return FromHash(nil)
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key()
			var key string
			if k.Kind() == reflect.String {
				key = k.String()
			} else {
				key = fmt.Sprintf("%v", k.Interface())
			}
			m[key] = fromReflectValue(iter.Value())
		}
		return FromMap(m)
	case reflect.Struct:
		return fromStruct(rv)
	case reflect.Func:
		if rv.IsNil() {
			return Null()
		}
		return FromCallable(reflectFunc{fn: rv})
	case reflect.Interface:
		if rv.IsNil() {
			return Null()
		}
		return fromReflectValue(rv.Elem())
	case reflect.Ptr:
		if rv.IsNil() {
			return Null()
		}
		if rv.Elem().Kind() == reflect.Struct {
			return FromHost(rv.Interface())
		}
		return fromReflectValue(rv.Elem())
	default:
		return FromHost(rv.Interface())
	}
}

func fromStruct(rv reflect.Value) Value {
	t := rv.Type()
	h := NewHash()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, skip := fieldName(field)
		if skip {
			continue
		}
		h.Set(name, fromReflectValue(rv.Field(i)))
	}
	return FromHash(h)
}

func fieldName(field reflect.StructField) (string, bool) {
	if tag := field.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return "", true
		}
		if name != "" {
			return name, false
		}
	}
	return field.Name, false
}

// ToAny unwraps a Value into plain Go data for host callables: nil, bool,
// int64, float64, decimal.Decimal, string, time.Time, []any and
// map[string]any. Other shapes are returned as their raw payload.
func ToAny(v Value) any {
	switch d := v.data.(type) {
	case nil, undefinedType, nullType:
		return nil
	case bool, int64, float64, decimal.Decimal, string:
		return d
	case markup:
		return string(d)
	case DateTime:
		return d.Time
	case hostValue:
		return d.v
	}
	switch v.Kind() {
	case KindSeq, KindCollection:
		items, _ := v.Items()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = ToAny(item)
		}
		return out
	case KindHash:
		m, _ := v.AsMapping()
		out := make(map[string]any, m.Len())
		for _, k := range m.Keys() {
			item, _ := m.Get(k)
			out[k] = ToAny(item)
		}
		return out
	}
	return v.data
}

// reflectFunc exposes a Go function as a Callable.
type reflectFunc struct {
	fn reflect.Value
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func (f reflectFunc) Call(_ State, args []Value) (Value, error) {
	return callReflect(f.fn, args)
}

func callReflect(fn reflect.Value, args []Value) (Value, error) {
	t := fn.Type()
	numIn := t.NumIn()
	if t.IsVariadic() {
		if len(args) < numIn-1 {
			return Value{}, errors.Newf(errors.ErrBadArguments, "expected at least %d arguments, got %d", numIn-1, len(args))
		}
	} else if len(args) != numIn {
		return Value{}, errors.Newf(errors.ErrBadArguments, "expected %d arguments, got %d", numIn, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var want reflect.Type
		if t.IsVariadic() && i >= numIn-1 {
			want = t.In(numIn - 1).Elem()
		} else {
			want = t.In(i)
		}
		rv, err := convertArg(arg, want)
		if err != nil {
			return Value{}, errors.Newf(errors.ErrBadArguments, "argument %d: %v", i+1, err)
		}
		in[i] = rv
	}

	out := fn.Call(in)
	switch len(out) {
	case 0:
		return Undefined(), nil
	case 1:
		if t.Out(0) == errorType {
			if err, _ := out[0].Interface().(error); err != nil {
				return Value{}, err
			}
			return Undefined(), nil
		}
		return fromReflectValue(out[0]), nil
	default:
		if t.Out(len(out)-1) == errorType {
			if err, _ := out[len(out)-1].Interface().(error); err != nil {
				return Value{}, err
			}
		}
		return fromReflectValue(out[0]), nil
	}
}

func convertArg(arg Value, want reflect.Type) (reflect.Value, error) {
	if want == reflect.TypeOf(Value{}) {
		return reflect.ValueOf(arg), nil
	}
	raw := ToAny(arg)
	if raw == nil {
		return reflect.Zero(want), nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}
	if d, ok := raw.(decimal.Decimal); ok && isNumericKind(want.Kind()) {
		rv = reflect.ValueOf(d.InexactFloat64())
	}
	if rv.Type().ConvertibleTo(want) && isNumericKind(rv.Kind()) == isNumericKind(want.Kind()) {
		return rv.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("can not use %s as %s", arg.TypeName(), want)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// ReflectAccessor is the default PropertyAccessor. It exposes exported
// struct fields as properties and exported methods as callables. A member
// name matches a Go name directly, with its first letter upper-cased, or
// through a json tag.
type ReflectAccessor struct{}

// GetProperty implements PropertyAccessor.
func (ReflectAccessor) GetProperty(obj any, name string) (Value, bool, error) {
	rv := reflect.ValueOf(obj)
	if !rv.IsValid() {
		return Undefined(), false, nil
	}
	for _, candidate := range memberNames(name) {
		if m := rv.MethodByName(candidate); m.IsValid() {
			return FromCallable(reflectFunc{fn: m}), true, nil
		}
	}
	sv := reflect.Indirect(rv)
	if sv.Kind() != reflect.Struct {
		return Undefined(), false, nil
	}
	if f, ok := findField(sv, name); ok {
		return fromReflectValue(f), true, nil
	}
	return Undefined(), false, nil
}

// SetProperty implements PropertyAccessor.
func (ReflectAccessor) SetProperty(obj any, name string, val Value) error {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.Newf(errors.ErrInvalidOperation, "can not set %q on %T", name, obj)
	}
	f, ok := findField(rv.Elem(), name)
	if !ok || !f.CanSet() {
		return errors.Newf(errors.ErrInvalidOperation, "%T has no settable property %q", obj, name)
	}
	arg, err := convertArg(val, f.Type())
	if err != nil {
		return errors.Newf(errors.ErrInvalidType, "property %q: %v", name, err)
	}
	f.Set(arg)
	return nil
}

func findField(sv reflect.Value, name string) (reflect.Value, bool) {
	t := sv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tagged, skip := fieldName(field)
		if skip {
			continue
		}
		if field.Name == name || tagged == name || field.Name == upperFirst(name) {
			return sv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func memberNames(name string) []string {
	upper := upperFirst(name)
	if upper == name {
		return []string{name}
	}
	return []string{name, upper}
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
