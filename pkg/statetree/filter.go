package statetree

// Filter extracts the subtrees named by selectors from state into a fresh map,
// keeping their nesting. Selectors are applied in order, so overlapping ones
// overwrite each other. A selector missing from state adds nothing, not even
// its intermediate maps; Merge on the receiving side reads the absent path as
// a deletion.
//
// Copied subtrees are deep clones: the result never aliases state.
func Filter(selectors []Path, state Value) Value {
	result := FromMap(NewMap())
	for _, p := range selectors {
		v := state.Get(p)
		if v.IsAbsent() {
			continue
		}
		result.SetPath(p, v.Clone())
	}
	return result
}
