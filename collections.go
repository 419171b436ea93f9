package modeledjs

// orderedMap backs both Map (key/value) and Set (key==value) objects:
// a slice for insertion order plus a same-value-zero lookup, since
// JSValue isn't comparable with Go's == for objects-as-keys in all
// cases (NaN-as-key in particular needs SameValueZero, not ==).
type orderedMap struct {
	keys   []JSValue
	values []JSValue
}

func newOrderedMap() *orderedMap {
	return &orderedMap{}
}

func (m *orderedMap) indexOf(vm *VM, key JSValue) int {
	for i, k := range m.keys {
		if vm.sameValueZero(k, key) {
			return i
		}
	}
	return -1
}

func (m *orderedMap) get(vm *VM, key JSValue) (JSValue, bool) {
	if i := m.indexOf(vm, key); i >= 0 {
		return m.values[i], true
	}
	return JSUndefined{}, false
}

func (m *orderedMap) set(vm *VM, key, value JSValue) {
	if i := m.indexOf(vm, key); i >= 0 {
		m.values[i] = value
		return
	}
	m.keys = append(m.keys, key)
	m.values = append(m.values, value)
}

func (m *orderedMap) delete(vm *VM, key JSValue) bool {
	i := m.indexOf(vm, key)
	if i < 0 {
		return false
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.values = append(m.values[:i], m.values[i+1:]...)
	return true
}

func (m *orderedMap) has(vm *VM, key JSValue) bool {
	return m.indexOf(vm, key) >= 0
}

func (m *orderedMap) size() int { return len(m.keys) }

func (m *orderedMap) clear() {
	m.keys = nil
	m.values = nil
}

// FinalizationRegistryData tracks a FinalizationRegistry's registered
// targets (spec.md §3.3). The cleanup callback is recorded for
// register()/unregister() bookkeeping but is never invoked: this
// engine has no GC hook to observe when a target becomes unreachable.
type FinalizationRegistryData struct {
	cleanup *JSObject
	entries []finalizationEntry
}

type finalizationEntry struct {
	target       JSValue
	heldValue    JSValue
	unregisterTok JSValue
}

func (r *FinalizationRegistryData) register(target, heldValue, unregisterTok JSValue) {
	r.entries = append(r.entries, finalizationEntry{target: target, heldValue: heldValue, unregisterTok: unregisterTok})
}

func (r *FinalizationRegistryData) unregister(vm *VM, unregisterTok JSValue) bool {
	removed := false
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.unregisterTok != nil && vm.sameValueZero(e.unregisterTok, unregisterTok) {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed
}
