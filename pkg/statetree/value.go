package statetree

import (
	"math"
	"strconv"
)

// Kind discriminates the variants a Value can hold.
type Kind uint8

const (
	// KindAbsent is the zero Kind: no value at all (a missing key, an undefined path).
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindMap
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a JSON-compatible state tree node.
//
// The zero Value is absent. Arrays and maps are reference-like: copying a Value
// shares the underlying elements, so callers that need an independent tree
// must use Clone.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	m    *Map
}

// Map is an insertion-ordered string-keyed map of Values.
type Map struct {
	keys []string
	vals map[string]Value
}

// Pair is a key/value used to build maps in order.
type Pair struct {
	Key   string
	Value Value
}

// Field is a shorthand for Pair.
func Field(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// Absent returns the absent Value.
func Absent() Value { return Value{} }

// Null returns a JSON null.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, n: f} }

// Int returns a numeric Value from an integer.
func Int(i int64) Value { return Value{kind: KindNumber, n: float64(i)} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns a sequence holding vals. The slice is used as is.
func Array(vals ...Value) Value {
	if vals == nil {
		vals = []Value{}
	}
	return Value{kind: KindArray, arr: vals}
}

// Object returns a map holding pairs in the given order. Absent values are skipped.
func Object(pairs ...Pair) Value {
	m := NewMap()
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return Value{kind: KindMap, m: m}
}

// FromMap wraps m as a Value. A nil map yields an empty map Value.
func FromMap(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v holds nothing.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsContainer reports whether v is an array or a map.
func (v Value) IsContainer() bool { return v.kind == KindArray || v.kind == KindMap }

// AsBool returns the boolean held by v and whether v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number held by v and whether v is a number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string held by v and whether v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Elements returns the elements of an array Value, or nil.
func (v Value) Elements() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Map returns the map of a map Value, or nil.
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// Len returns the number of elements or entries, 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindMap:
		return v.m.Len()
	default:
		return 0
	}
}

// Keys returns the keys of a map Value in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	return v.m.Keys()
}

// Lookup returns the entry for key when v is a map.
func (v Value) Lookup(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	return v.m.Get(key)
}

// Truthy follows the falsiness rules of the JSON-origin host: absent, null,
// false, 0, NaN and "" are falsy; every array and map is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindAbsent, KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		return v.s != ""
	default:
		return true
	}
}

// Clone returns a deep copy of v. Arrays clone element-wise, maps key-wise,
// scalars pass through.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		out := make([]Value, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Clone()
		}
		return Value{kind: KindArray, arr: out}
	case KindMap:
		return Value{kind: KindMap, m: v.m.Clone()}
	default:
		return v
	}
}

// Equal reports deep structural equality. Map key order is ignored.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindAbsent, KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if v.m.Len() != o.m.Len() {
			return false
		}
		for _, k := range v.m.keys {
			ov, ok := o.m.vals[k]
			if !ok || !v.m.vals[k].Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{vals: map[string]Value{}}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Get returns the entry for key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Set stores v under key, keeping the original position of an existing key.
// Setting an absent Value deletes the key.
func (m *Map) Set(key string, v Value) {
	if v.IsAbsent() {
		m.Delete(key)
		return
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	out := &Map{
		keys: make([]string, len(m.keys)),
		vals: make(map[string]Value, len(m.vals)),
	}
	copy(out.keys, m.keys)
	for k, v := range m.vals {
		out.vals[k] = v.Clone()
	}
	return out
}
