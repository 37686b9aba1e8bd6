// Package ordering reconciles two orderings of attribute names into index
// correspondence tables, used to move value vectors between representations
// that declare their attributes in a different order.
//
// Names match by exact string equality only. Both functions run in O(n·m).
package ordering

// BuildMapping returns, for each name in names, its position in sorted.
// Names absent from sorted are skipped, so the result may be shorter than names.
//
//	BuildMapping([]string{"a", "b", "c"}, []string{"c", "a"}) // [2 0]
//	BuildMapping([]string{"a", "b", "c"}, []string{"a", "x"}) // [0]
func BuildMapping(sorted, names []string) []int {
	mapping := make([]int, 0, len(names))
	for _, name := range names {
		if i := indexOf(sorted, name); i >= 0 {
			mapping = append(mapping, i)
		}
	}
	return mapping
}

// ResolveWithGaps returns one entry per name in names: its position in
// sorted, or -1 when absent. hasGaps reports whether any -1 was produced.
//
//	ResolveWithGaps([]string{"a", "b", "c"}, []string{"a", "x", "c"}) // [0 -1 2], true
func ResolveWithGaps(sorted, names []string) (mapping []int, hasGaps bool) {
	mapping = make([]int, len(names))
	for i, name := range names {
		j := indexOf(sorted, name)
		if j < 0 {
			hasGaps = true
		}
		mapping[i] = j
	}
	return mapping, hasGaps
}

// Reorder returns a vector where position i holds src[mapping[i]]. A -1
// (or out of range) entry yields nil at that position.
func Reorder(src []any, mapping []int) []any {
	dst := make([]any, len(mapping))
	for i, j := range mapping {
		if j >= 0 && j < len(src) {
			dst[i] = src[j]
		}
	}
	return dst
}

// Table is a correspondence between a source ordering and a target
// ordering, computed once and reused for every vector.
type Table struct {
	mapping []int
	gaps    bool
}

// NewTable computes the table that moves vectors laid out in source order
// into target order.
func NewTable(source, target []string) *Table {
	m, gaps := ResolveWithGaps(source, target)
	return &Table{mapping: m, gaps: gaps}
}

// Mapping returns the target→source positions; -1 marks a gap.
func (t *Table) Mapping() []int {
	return t.mapping
}

// HasGaps reports whether some target name has no source position.
func (t *Table) HasGaps() bool {
	return t.gaps
}

// Apply reorders a source vector into target order.
func (t *Table) Apply(src []any) []any {
	return Reorder(src, t.mapping)
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
