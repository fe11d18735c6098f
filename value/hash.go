package value

import (
	"iter"
	"slices"
	"sort"
)

// Hash is an insertion-ordered string-keyed mapping. Hash literals, merged
// hashes and namespaces snapshots are all Hashes, so ?keys and listing
// follow the order in which keys were first set.
type Hash struct {
	keys []string
	m    map[string]Value
}

// NewHash returns an empty Hash.
func NewHash() *Hash {
	return &Hash{m: make(map[string]Value)}
}

// HashFromMap builds a Hash from a Go map with keys in lexicographic order.
func HashFromMap(m map[string]Value) *Hash {
	h := &Hash{keys: make([]string, 0, len(m)), m: make(map[string]Value, len(m))}
	for k := range m {
		h.keys = append(h.keys, k)
	}
	sort.Strings(h.keys)
	for _, k := range h.keys {
		h.m[k] = m[k]
	}
	return h
}

// Get returns the value stored under key.
func (h *Hash) Get(key string) (Value, bool) {
	v, ok := h.m[key]
	return v, ok
}

// Set stores val under key. A new key is appended to the key order; an
// existing key keeps its position.
func (h *Hash) Set(key string, val Value) {
	if _, ok := h.m[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.m[key] = val
}

// Delete removes key.
func (h *Hash) Delete(key string) {
	if _, ok := h.m[key]; !ok {
		return
	}
	delete(h.m, key)
	if i := slices.Index(h.keys, key); i >= 0 {
		h.keys = slices.Delete(h.keys, i, i+1)
	}
}

// Keys returns a copy of the keys in order.
func (h *Hash) Keys() []string {
	return slices.Clone(h.keys)
}

// Values returns the values in key order.
func (h *Hash) Values() []Value {
	out := make([]Value, len(h.keys))
	for i, k := range h.keys {
		out[i] = h.m[k]
	}
	return out
}

// Len returns the number of entries.
func (h *Hash) Len() int {
	return len(h.keys)
}

// All iterates over the entries in key order.
func (h *Hash) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range h.keys {
			if !yield(k, h.m[k]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy.
func (h *Hash) Clone() *Hash {
	out := &Hash{keys: slices.Clone(h.keys), m: make(map[string]Value, len(h.m))}
	for k, v := range h.m {
		out.m[k] = v
	}
	return out
}

// MergeMappings returns a new Hash holding left's entries followed by the
// keys of right not present in left. Values from right win on collision.
func MergeMappings(left, right Mapping) *Hash {
	out := NewHash()
	for _, k := range left.Keys() {
		v, _ := left.Get(k)
		out.Set(k, v)
	}
	for _, k := range right.Keys() {
		v, _ := right.Get(k)
		out.Set(k, v)
	}
	return out
}

// ConcatSequences returns a new sequence with the items of a followed by
// the items of b.
func ConcatSequences(a, b Sequence) Value {
	out := make([]Value, 0, a.SeqLen()+b.SeqLen())
	for i := 0; i < a.SeqLen(); i++ {
		out = append(out, a.SeqItem(i))
	}
	for i := 0; i < b.SeqLen(); i++ {
		out = append(out, b.SeqItem(i))
	}
	return FromSlice(out)
}
