package statetree

import (
	"fmt"
	"strconv"
	"strings"
)

// Path is a parsed dotted selector such as "user.profile.name".
type Path []string

// ParsePath splits a dotted selector into segments. Empty selectors and empty
// segments ("a..b", ".a", "a.") are rejected.
func ParsePath(selector string) (Path, error) {
	if selector == "" {
		return nil, fmt.Errorf("selector cannot be empty")
	}
	segs := strings.Split(selector, ".")
	for i, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("selector %q has an empty segment at position %d", selector, i)
		}
	}
	return Path(segs), nil
}

// ParsePaths parses every selector, failing on the first invalid one.
func ParsePaths(selectors []string) ([]Path, error) {
	paths := make([]Path, 0, len(selectors))
	for _, sel := range selectors {
		p, err := ParsePath(sel)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// MustPath is ParsePath for selectors known to be valid. It panics otherwise.
func MustPath(selector string) Path {
	p, err := ParsePath(selector)
	if err != nil {
		panic(err)
	}
	return p
}

// String joins the segments back into a dotted selector.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// index parses seg as a sequence index.
func index(seg string) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Get reads the value at p. Any missing intermediate yields an absent Value.
func (v Value) Get(p Path) Value {
	cur := v
	for _, seg := range p {
		switch cur.kind {
		case KindMap:
			next, ok := cur.m.Get(seg)
			if !ok {
				return Value{}
			}
			cur = next
		case KindArray:
			i, ok := index(seg)
			if !ok || i >= len(cur.arr) {
				return Value{}
			}
			cur = cur.arr[i]
		default:
			return Value{}
		}
	}
	return cur
}

// SetPath writes x at p inside v, creating intermediate maps as needed.
// Non-container intermediates are replaced by maps. Writing an absent x
// creates the intermediates and removes the leaf.
func (v *Value) SetPath(p Path, x Value) {
	if len(p) == 0 {
		*v = x
		return
	}
	seg, rest := p[0], p[1:]

	if v.kind == KindArray {
		if i, ok := index(seg); ok {
			if x.IsAbsent() && len(rest) == 0 {
				v.deleteIndex(i)
				return
			}
			for len(v.arr) <= i {
				v.arr = append(v.arr, Null())
			}
			v.arr[i].SetPath(rest, x)
			if v.arr[i].IsAbsent() {
				v.arr[i] = Null()
			}
			return
		}
	}
	if v.kind != KindMap {
		*v = Value{kind: KindMap, m: NewMap()}
	}

	if len(rest) == 0 {
		v.m.Set(seg, x)
		return
	}
	child, _ := v.m.Get(seg)
	child.SetPath(rest, x)
	v.m.Set(seg, child)
}

// DeletePath removes the value at p when present. Deleting a sequence element
// removes it and shifts later elements down. Missing intermediates are a no-op.
func (v *Value) DeletePath(p Path) {
	if len(p) == 0 {
		*v = Value{}
		return
	}
	seg, rest := p[0], p[1:]
	switch v.kind {
	case KindMap:
		if len(rest) == 0 {
			v.m.Delete(seg)
			return
		}
		child, ok := v.m.Get(seg)
		if !ok || !child.IsContainer() {
			return
		}
		child.DeletePath(rest)
		v.m.Set(seg, child)
	case KindArray:
		i, ok := index(seg)
		if !ok || i >= len(v.arr) {
			return
		}
		if len(rest) == 0 {
			v.deleteIndex(i)
			return
		}
		v.arr[i].DeletePath(rest)
	}
}

func (v *Value) deleteIndex(i int) {
	if i >= len(v.arr) {
		return
	}
	v.arr = append(v.arr[:i], v.arr[i+1:]...)
}
