package kaybee

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tg1482/kaybee/internal/config"
)

func openGraph(t *testing.T) *Graph {
	t.Helper()
	cfg := config.Load(config.Flags{
		DBPath: filepath.Join(t.TempDir(), "graph.db"), SetDBPath: true,
	})
	g, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGraph_WriteReadFacade(t *testing.T) {
	g := openGraph(t)

	require.NoError(t, g.Write("sa", "---\ntype: concept\n---\nLinks [[at]]."))
	require.NoError(t, g.Write("at", "---\ntype: concept\n---\nBody."))

	names, err := g.Ls("concept")
	require.NoError(t, err)
	assert.Equal(t, []string{"at", "sa"}, names)

	links, err := g.Wikilinks("sa")
	require.NoError(t, err)
	assert.Equal(t, []string{"at"}, links)

	back, err := g.Backlinks("at")
	require.NoError(t, err)
	assert.Equal(t, []string{"sa"}, back)
}

func TestGraph_WritePreviewDoesNotMutate(t *testing.T) {
	g := openGraph(t)
	require.NoError(t, g.Write("a", "original"))

	diff, err := g.WritePreview("a", "changed", 3)
	require.NoError(t, err)
	assert.Contains(t, diff, "-original")
	assert.Contains(t, diff, "+changed")

	got, err := g.Cat("a")
	require.NoError(t, err)
	assert.Equal(t, "original", got)
}

func TestGraph_PushPull(t *testing.T) {
	g := openGraph(t)
	remoteDSN := filepath.Join(t.TempDir(), "remote.db")
	g.cfg.RemoteDSN = remoteDSN

	require.NoError(t, g.Write("a", "---\ntype: note\n---\nbody"))

	scope := map[string]string{"team": "x"}
	seq, err := g.Push(scope, 0)
	require.NoError(t, err)
	assert.Greater(t, seq, int64(0))

	g2 := openGraph(t)
	g2.cfg.RemoteDSN = remoteDSN
	n, err := g2.Pull(scope)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	content, err := g2.Cat("a")
	require.NoError(t, err)
	assert.Equal(t, "---\ntype: note\n---\nbody", content)
}
