package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sorted []string
		names  []string
		want   []int
	}{
		{name: "reordered", sorted: []string{"a", "b", "c"}, names: []string{"c", "a"}, want: []int{2, 0}},
		{name: "unmatched skipped", sorted: []string{"a", "b", "c"}, names: []string{"a", "x"}, want: []int{0}},
		{name: "identity", sorted: []string{"a", "b"}, names: []string{"a", "b"}, want: []int{0, 1}},
		{name: "empty names", sorted: []string{"a"}, names: nil, want: []int{}},
		{name: "case sensitive", sorted: []string{"Name"}, names: []string{"name"}, want: []int{}},
		{name: "no partial match", sorted: []string{"name"}, names: []string{"nam"}, want: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BuildMapping(tt.sorted, tt.names))
		})
	}
}

func TestResolveWithGaps(t *testing.T) {
	t.Parallel()

	t.Run("gap", func(t *testing.T) {
		m, gaps := ResolveWithGaps([]string{"a", "b", "c"}, []string{"a", "x", "c"})
		assert.Equal(t, []int{0, -1, 2}, m)
		assert.True(t, gaps)
	})

	t.Run("permutation", func(t *testing.T) {
		m, gaps := ResolveWithGaps([]string{"a", "b", "c"}, []string{"c", "a", "b"})
		assert.Equal(t, []int{2, 0, 1}, m)
		assert.False(t, gaps)
	})

	t.Run("longer names", func(t *testing.T) {
		m, gaps := ResolveWithGaps([]string{"a"}, []string{"a", "b", "c"})
		assert.Equal(t, []int{0, -1, -1}, m)
		assert.True(t, gaps)
	})

	t.Run("first match wins", func(t *testing.T) {
		m, _ := ResolveWithGaps([]string{"a", "a"}, []string{"a"})
		assert.Equal(t, []int{0}, m)
	})
}

func TestReorder(t *testing.T) {
	t.Parallel()

	src := []any{"id-1", "alice", 30}
	assert.Equal(t, []any{30, nil, "id-1"}, Reorder(src, []int{2, -1, 0}))
	assert.Equal(t, []any{nil}, Reorder(src, []int{7}))
	assert.Empty(t, Reorder(src, nil))
}

func TestTable(t *testing.T) {
	t.Parallel()

	tbl := NewTable([]string{"name", "id", "extra"}, []string{"id", "name", "age"})
	assert.Equal(t, []int{1, 0, -1}, tbl.Mapping())
	assert.True(t, tbl.HasGaps())
	assert.Equal(t, []any{7, "bob", nil}, tbl.Apply([]any{"bob", 7, true}))
}
