package ftl

import (
	"slices"
	"strings"

	"github.com/ftlgo/ftl/value"
)

// items collects a sequence or a finite collection.
func (in *invocation) items(v value.Value) ([]value.Value, error) {
	if obj, ok := v.AsObject(); ok {
		if _, endless := obj.(endlessRange); endless {
			return nil, in.errorf(ErrInvalidOperation, "can not be applied to an endless range")
		}
	}
	items, ok := v.Items()
	if !ok {
		return nil, in.operandError("a sequence or collection", v)
	}
	return items, nil
}

func biSize(in *invocation, v value.Value) (value.Value, error) {
	if m, ok := v.AsMapping(); ok {
		return value.FromInt(int64(m.Len())), nil
	}
	if seq, ok := v.AsSequence(); ok {
		return value.FromInt(int64(seq.SeqLen())), nil
	}
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromInt(int64(len(items))), nil
}

func biFirst(_ *invocation, v value.Value) (value.Value, error) {
	if seq, ok := v.AsSequence(); ok {
		return seq.SeqItem(0), nil
	}
	first := value.Undefined()
	it, _ := v.Iterate()
	for item := range it {
		first = item
		break
	}
	return first, nil
}

func biLast(_ *invocation, v value.Value) (value.Value, error) {
	seq, _ := v.AsSequence()
	return seq.SeqItem(seq.SeqLen() - 1), nil
}

func biReverse(in *invocation, v value.Value) (value.Value, error) {
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	out := slices.Clone(items)
	slices.Reverse(out)
	return value.FromSlice(nonNil(out)), nil
}

func nonNil(items []value.Value) []value.Value {
	if items == nil {
		return []value.Value{}
	}
	return items
}

func biSequence(in *invocation, v value.Value) (value.Value, error) {
	if v.Kind() == value.KindSeq {
		return v, nil
	}
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromSlice(nonNil(items)), nil
}

// sortOrder returns the ordering of sort keys, which must all be strings,
// numbers, dates or booleans.
func (in *invocation) sortOrder(keys []value.Value) (func(a, b value.Value) int, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	kind := keys[0].Kind()
	for i, k := range keys {
		if k.Kind() != kind {
			return nil, in.errorf(ErrInvalidType, "can not sort values of different types: item 1 is %s, item %d is %s",
				keys[0].TypeName(), i+1, k.TypeName())
		}
	}
	switch kind {
	case value.KindString:
		coll := in.e.fmt.collator
		return func(a, b value.Value) int { return coll.CompareString(str(a), str(b)) }, nil
	case value.KindNumber:
		eng := in.e.fmt.engine
		return func(a, b value.Value) int {
			c, _ := eng.CompareNumbers(a, b)
			return c
		}, nil
	case value.KindDate:
		return func(a, b value.Value) int {
			da, _ := a.AsDate()
			db, _ := b.AsDate()
			return da.Time.Compare(db.Time)
		}, nil
	case value.KindBool:
		return func(a, b value.Value) int {
			ba, _ := a.AsBool()
			bb, _ := b.AsBool()
			switch {
			case ba == bb:
				return 0
			case ba:
				return 1
			}
			return -1
		}, nil
	}
	return nil, in.errorf(ErrInvalidType, "can only sort strings, numbers, dates and booleans, got %s", keys[0].TypeName())
}

// sortByKeys sorts items stably by the parallel keys slice.
func (in *invocation) sortByKeys(items, keys []value.Value) (value.Value, error) {
	cmp, err := in.sortOrder(keys)
	if err != nil {
		return value.Undefined(), err
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	if cmp != nil {
		slices.SortStableFunc(idx, func(a, b int) int { return cmp(keys[a], keys[b]) })
	}
	out := make([]value.Value, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return value.FromSlice(out), nil
}

func biSort(in *invocation, v value.Value) (value.Value, error) {
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	return in.sortByKeys(items, items)
}

// biSortBy sorts hashes by a key, or by a path of keys given as a
// sequence.
func biSortBy(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	var path []string
	if s, ok := args[0].AsString(); ok {
		path = []string{s}
	} else if parts, ok := args[0].Items(); ok && args[0].Kind() == value.KindSeq {
		for i, p := range parts {
			s, ok := p.AsString()
			if !ok {
				return value.Undefined(), in.errorf(ErrInvalidType, "key %d of the path is %s, not a string", i+1, p.TypeName())
			}
			path = append(path, s)
		}
	} else {
		return value.Undefined(), in.argError(0, "a key or a sequence of keys", args[0])
	}

	keys := make([]value.Value, len(items))
	for i, item := range items {
		key := item
		for _, name := range path {
			if key, err = in.e.getAttr(key, name); err != nil {
				return value.Undefined(), err
			}
			if key.IsMissing() {
				return value.Undefined(), in.errorf(ErrInvalidReference, "item %d has no %q", i+1, strings.Join(path, "."))
			}
		}
		keys[i] = key
	}
	return in.sortByKeys(items, keys)
}

// biJoin joins the items with a separator. Missing items are skipped. The
// optional arguments are the result for an empty sequence and a suffix
// added to non-empty results.
func biJoin(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	sep, err := in.stringArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	parts := make([]string, 0, len(items))
	for i, item := range items {
		if item.IsMissing() {
			continue
		}
		s, err := in.e.display(item)
		if err != nil {
			return value.Undefined(), in.errorf(ErrInvalidType, "item %d can not be joined: %v", i+1, err)
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		empty, err := in.optStringArg(args, 1, "")
		if err != nil {
			return value.Undefined(), err
		}
		return value.FromString(empty), nil
	}
	suffix, err := in.optStringArg(args, 2, "")
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromString(strings.Join(parts, sep) + suffix), nil
}

// equal compares like == but reports values of different types as
// unequal instead of failing.
func (in *invocation) equal(a, b value.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	eq, err := in.e.compare("==", a, b)
	return err == nil && eq
}

func biSeqContains(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	for _, item := range items {
		if in.equal(item, args[0]) {
			return value.True(), nil
		}
	}
	return value.False(), nil
}

func seqIndexOf(last bool) func(*invocation, value.Value, []value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
		items, err := in.items(v)
		if err != nil {
			return value.Undefined(), err
		}
		start, step := 0, 1
		if last {
			start, step = len(items)-1, -1
		}
		if len(args) > 1 {
			if start, err = in.intArg(args, 1); err != nil {
				return value.Undefined(), err
			}
			if last {
				start = min(start, len(items)-1)
			} else {
				start = max(start, 0)
			}
		}
		for i := start; i >= 0 && i < len(items); i += step {
			if in.equal(items[i], args[0]) {
				return value.FromInt(int64(i)), nil
			}
		}
		return value.FromInt(-1), nil
	}
}

// biChunk splits a sequence into sequences of n items. With a filler the
// last chunk is padded to n items.
func biChunk(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	n, err := in.intArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	if n < 1 {
		return value.Undefined(), in.errorf(ErrBadArguments, "the chunk size must be at least 1, got %d", n)
	}
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	chunks := []value.Value{}
	for i := 0; i < len(items); i += n {
		chunk := slices.Clone(items[i:min(i+n, len(items))])
		if len(args) > 1 {
			for len(chunk) < n {
				chunk = append(chunk, args[1])
			}
		}
		chunks = append(chunks, value.FromSlice(chunk))
	}
	return value.FromSlice(chunks), nil
}

// extremeBuiltin implements ?min and ?max over numbers or dates. Missing
// items are skipped; an empty sequence gives a missing value.
func extremeBuiltin(sign int) func(*invocation, value.Value) (value.Value, error) {
	return func(in *invocation, v value.Value) (value.Value, error) {
		items, err := in.items(v)
		if err != nil {
			return value.Undefined(), err
		}
		var present []value.Value
		for _, item := range items {
			if !item.IsMissing() {
				present = append(present, item)
			}
		}
		if len(present) == 0 {
			return value.Undefined(), nil
		}
		if k := present[0].Kind(); k != value.KindNumber && k != value.KindDate {
			return value.Undefined(), in.errorf(ErrInvalidType, "expects numbers or dates, got %s", present[0].TypeName())
		}
		cmp, err := in.sortOrder(present)
		if err != nil {
			return value.Undefined(), err
		}
		best := present[0]
		for _, item := range present[1:] {
			if cmp(item, best)*sign > 0 {
				best = item
			}
		}
		return best, nil
	}
}

func (in *invocation) test(fn value.Callable, item value.Value) (bool, error) {
	r, err := fn.Call(in.e, []value.Value{item})
	if err != nil {
		return false, err
	}
	b, ok := r.AsBool()
	if !ok {
		return false, in.errorf(ErrInvalidType, "the function must return a boolean, got %s", r.TypeName())
	}
	return b, nil
}

func biFilter(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	fn, err := in.callableArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	out := []value.Value{}
	for _, item := range items {
		ok, err := in.test(fn, item)
		if err != nil {
			return value.Undefined(), err
		}
		if ok {
			out = append(out, item)
		}
	}
	return value.FromSlice(out), nil
}

func biMap(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	fn, err := in.callableArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	out := make([]value.Value, len(items))
	for i, item := range items {
		if out[i], err = fn.Call(in.e, []value.Value{item}); err != nil {
			return value.Undefined(), err
		}
	}
	return value.FromSlice(out), nil
}

// biTakeWhile walks the operand lazily, so it also ends endless ranges.
func biTakeWhile(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	fn, err := in.callableArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	it, _ := v.Iterate()
	out := []value.Value{}
	for item := range it {
		ok, terr := in.test(fn, item)
		if terr != nil {
			err = terr
			break
		}
		if !ok {
			break
		}
		out = append(out, item)
	}
	if err != nil {
		return value.Undefined(), err
	}
	return value.FromSlice(out), nil
}

func biDropWhile(in *invocation, v value.Value, args []value.Value) (value.Value, error) {
	fn, err := in.callableArg(args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	items, err := in.items(v)
	if err != nil {
		return value.Undefined(), err
	}
	for i, item := range items {
		ok, err := in.test(fn, item)
		if err != nil {
			return value.Undefined(), err
		}
		if !ok {
			return value.FromSlice(slices.Clone(items[i:])), nil
		}
	}
	return value.FromSlice([]value.Value{}), nil
}

func biKeys(_ *invocation, v value.Value) (value.Value, error) {
	m, _ := v.AsMapping()
	return stringsValue(m.Keys()), nil
}

func biValues(_ *invocation, v value.Value) (value.Value, error) {
	m, _ := v.AsMapping()
	keys := m.Keys()
	out := make([]value.Value, len(keys))
	for i, k := range keys {
		out[i], _ = m.Get(k)
	}
	return value.FromSlice(out), nil
}
