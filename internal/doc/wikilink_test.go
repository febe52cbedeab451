package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractWikilinks_Basic(t *testing.T) {
	links := ExtractWikilinks("See [[at]] and [[another note]].")
	assert.Equal(t, []string{"at", "another note"}, links)
}

func TestExtractWikilinks_PipeDisplayText(t *testing.T) {
	links := ExtractWikilinks("Read [[target|Display Text]] now.")
	assert.Equal(t, []string{"target"}, links)
}

func TestExtractWikilinks_DedupPreservesFirstOrder(t *testing.T) {
	links := ExtractWikilinks("[[b]] [[a]] [[b]] [[a]]")
	assert.Equal(t, []string{"b", "a"}, links)
}

func TestExtractWikilinks_None(t *testing.T) {
	assert.Nil(t, ExtractWikilinks("no links here"))
}

func TestExtractWikilinks_TrimsWhitespace(t *testing.T) {
	links := ExtractWikilinks("[[  spaced  ]]")
	assert.Equal(t, []string{"spaced"}, links)
}
