package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_Exact(t *testing.T) {
	n, ok := Resolve("at", []string{"at", "sa"})
	assert.True(t, ok)
	assert.Equal(t, "at", n)
}

func TestResolve_CaseInsensitive(t *testing.T) {
	n, ok := Resolve("AT", []string{"at", "sa"})
	assert.True(t, ok)
	assert.Equal(t, "at", n)
}

func TestResolve_Normalized(t *testing.T) {
	n, ok := Resolve("my_note", []string{"my-note"})
	assert.True(t, ok)
	assert.Equal(t, "my-note", n)
}

func TestResolve_Unresolved(t *testing.T) {
	_, ok := Resolve("ghost", []string{"at", "sa"})
	assert.False(t, ok)
}

func TestNormalize_CollapsesRuns(t *testing.T) {
	assert.Equal(t, "a-b-c", Normalize("A__b   c"))
}

func TestIndex_MatchesPlainResolve(t *testing.T) {
	idx := NewIndex()
	names := []string{"Alpha Note", "beta-note"}
	n, ok := idx.Resolve("alpha note", names)
	assert.True(t, ok)
	assert.Equal(t, "Alpha Note", n)

	idx.Invalidate()
	names = append(names, "Alpha Note Two")
	n2, ok := idx.Resolve("alpha_note_two", names)
	assert.True(t, ok)
	assert.Equal(t, "Alpha Note Two", n2)
}
