package statetree

// Merge reconciles an incoming (partial or full) state into old.
//
// With no selectors incoming wholly replaces old. Otherwise old is deep-cloned
// and, for every selector, the cloned subtree is overwritten with the value
// from incoming or deleted when incoming has nothing at that path. Everything
// outside the selectors keeps its old value.
//
// Neither argument is modified and the result shares no containers with them.
func Merge(old, incoming Value, selectors []Path) Value {
	if len(selectors) == 0 {
		return incoming.Clone()
	}

	merged := old.Clone()
	if !merged.IsContainer() {
		merged = FromMap(NewMap())
	}
	for _, p := range selectors {
		next := incoming.Get(p)
		if next.IsAbsent() {
			merged.DeletePath(p)
			continue
		}
		merged.SetPath(p, next.Clone())
	}
	return merged
}
