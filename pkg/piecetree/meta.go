package piecetree

import "reflect"

// OrderedMap is a string-keyed map that remembers the order keys were first
// set, the way a JSON object's own key order is meaningful. merge_meta's
// patch ordering (nested objects fully emitted before sibling scalars,
// siblings in insertion order) depends on this; a plain map[string]any
// cannot express it.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

// NewOrderedMap returns an empty ordered map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: map[string]any{}}
}

// Set assigns key to value. An existing key keeps its original position;
// a new key is appended after the current last key.
func (m *OrderedMap) Set(key string, value any) *OrderedMap {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}

	m.values[key] = value

	return m
}

// Get returns the value at key and whether it was present.
func (m *OrderedMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}

	v, ok := m.values[key]

	return v, ok
}

// Delete removes key, if present.
func (m *OrderedMap) Delete(key string) {
	if m == nil {
		return
	}

	if _, ok := m.values[key]; !ok {
		return
	}

	delete(m.values, key)

	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)

			break
		}
	}
}

// Keys returns the keys in insertion order. The returned slice is a copy.
func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}

	out := make([]string, len(m.keys))
	copy(out, m.keys)

	return out
}

// Len returns the number of entries, treating a nil map as empty.
func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}

	return len(m.keys)
}

// Clone returns a deep copy, recursing into nested *OrderedMap values. A nil
// receiver clones to nil.
func (m *OrderedMap) Clone() *OrderedMap {
	if m == nil {
		return nil
	}

	out := &OrderedMap{
		keys:   append([]string{}, m.keys...),
		values: make(map[string]any, len(m.values)),
	}

	for k, v := range m.values {
		if nested, ok := v.(*OrderedMap); ok {
			out.values[k] = nested.Clone()

			continue
		}

		out.values[k] = v
	}

	return out
}

// ToPlain converts the ordered map to a plain map[string]any, recursing into
// nested *OrderedMap values. Key order is lost; this exists for schema
// validation and external serialization, not for round-tripping.
func (m *OrderedMap) ToPlain() map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m.keys))

	for _, k := range m.keys {
		v := m.values[k]
		if nested, ok := v.(*OrderedMap); ok {
			out[k] = nested.ToPlain()

			continue
		}

		out[k] = v
	}

	return out
}

// PatchOp names a JSON-patch-style operation produced by merge_meta.
type PatchOp string

const (
	PatchAdd     PatchOp = "add"
	PatchRemove  PatchOp = "remove"
	PatchReplace PatchOp = "replace"
)

// Patch is one entry of the forward or inverse patch list returned by
// MergeMeta. Path is the key sequence from the merged object's root; Value
// is unset for PatchRemove.
type Patch struct {
	Op    PatchOp
	Path  []string
	Value any
}

// MergeMeta deep-merges source onto target and returns the merged map along
// with the forward patches (target -> merged) and inverse patches (merged ->
// target), suitable for undo.
//
// Emission order follows the source's determinism rule: within an object,
// all keys whose merged value is itself a nested object are emitted first,
// each fully before any sibling scalar key; scalar keys follow in the order
// they were first encountered (target's existing order, then any new keys
// source introduces, in source's order). The same rule applies recursively
// inside each nested object.
//
// A key present only in target is left untouched and produces no patch. A
// key present in both whose values are not both *OrderedMap is treated as a
// scalar: unequal values produce a replace patch, equal values produce none.
func MergeMeta(target, source *OrderedMap) (merged *OrderedMap, forward, inverse []Patch) {
	merged, forward, inverse = mergeObjects(target, source, nil)

	return merged, forward, inverse
}

func mergeObjects(target, source *OrderedMap, path []string) (*OrderedMap, []Patch, []Patch) {
	merged := target.Clone()
	if merged == nil {
		merged = NewOrderedMap()
	}

	if source == nil {
		return merged, nil, nil
	}

	order, seen := make([]string, 0, target.Len()+source.Len()), map[string]bool{}

	for _, k := range target.Keys() {
		order = append(order, k)
		seen[k] = true
	}

	for _, k := range source.Keys() {
		if !seen[k] {
			order = append(order, k)
			seen[k] = true
		}
	}

	var nestedKeys, scalarKeys []string

	for _, k := range order {
		_, sExists := source.Get(k)
		if !sExists {
			continue
		}

		tv, _ := target.Get(k)
		sv, _ := source.Get(k)

		_, tIsObj := tv.(*OrderedMap)
		_, sIsObj := sv.(*OrderedMap)

		if tIsObj && sIsObj {
			nestedKeys = append(nestedKeys, k)
		} else {
			scalarKeys = append(scalarKeys, k)
		}
	}

	var forward, inverse []Patch

	for _, k := range nestedKeys {
		tv, _ := target.Get(k)
		sv, _ := source.Get(k)

		childMerged, f, inv := mergeObjects(tv.(*OrderedMap), sv.(*OrderedMap), append(path, k)) //nolint:forcetypeassert // guarded above by tIsObj/sIsObj.
		merged.Set(k, childMerged)
		forward = append(forward, f...)
		inverse = append(inverse, inv...)
	}

	for _, k := range scalarKeys {
		tv, tExists := target.Get(k)
		sv, _ := source.Get(k)
		childPath := append(append([]string{}, path...), k)

		if !tExists {
			merged.Set(k, sv)
			forward = append(forward, Patch{Op: PatchAdd, Path: childPath, Value: sv})
			inverse = append(inverse, Patch{Op: PatchRemove, Path: childPath})

			continue
		}

		if reflect.DeepEqual(tv, sv) {
			continue
		}

		merged.Set(k, sv)
		forward = append(forward, Patch{Op: PatchReplace, Path: childPath, Value: sv})
		inverse = append(inverse, Patch{Op: PatchReplace, Path: childPath, Value: tv})
	}

	return merged, forward, inverse
}
