package ftl

import "github.com/ftlgo/ftl/value"

// frozenSet records the hashes and sequences that belong to the data model
// or to shared variables. Templates may read them but not assign into
// them, so one render can not change what another render sees.
type frozenSet struct {
	hashes map[*value.Hash]struct{}
	// seqs is keyed by the address of the first item.
	seqs map[*value.Value]struct{}
}

func newFrozenSet() *frozenSet {
	return &frozenSet{
		hashes: make(map[*value.Hash]struct{}),
		seqs:   make(map[*value.Value]struct{}),
	}
}

// add records v and every hash and sequence reachable from it.
func (f *frozenSet) add(v value.Value) {
	if h, ok := v.AsHash(); ok {
		if _, seen := f.hashes[h]; seen {
			return
		}
		f.hashes[h] = struct{}{}
		for _, item := range h.All() {
			f.add(item)
		}
		return
	}
	if items, ok := v.AsSlice(); ok && len(items) > 0 {
		if _, seen := f.seqs[&items[0]]; seen {
			return
		}
		f.seqs[&items[0]] = struct{}{}
		for _, item := range items {
			f.add(item)
		}
	}
}

func (f *frozenSet) holds(v value.Value) bool {
	if h, ok := v.AsHash(); ok {
		_, found := f.hashes[h]
		return found
	}
	if items, ok := v.AsSlice(); ok && len(items) > 0 {
		_, found := f.seqs[&items[0]]
		return found
	}
	return false
}

// readOnly reports whether container comes from the data model or from a
// shared variable.
func (e *Environment) readOnly(container value.Value) bool {
	if e.frozen.holds(container) {
		return true
	}
	e.cfg.sharedMu.RLock()
	defer e.cfg.sharedMu.RUnlock()
	return e.cfg.frozen.holds(container)
}
