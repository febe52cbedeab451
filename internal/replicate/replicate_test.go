package replicate

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	kdb "github.com/tg1482/kaybee/db"
	"github.com/tg1482/kaybee/internal/schema"
	"github.com/tg1482/kaybee/internal/store"
	"github.com/tg1482/kaybee/models"
)

func openStore(t *testing.T, dsn string) *store.Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, kdb.Migrate(gdb))
	st, err := store.Open(gdb, store.Options{Layout: schema.LayoutPerType})
	require.NoError(t, err)
	return st
}

func openRemote(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(gdb))
	return gdb
}

func TestPush_ReplaysWritesIdempotently(t *testing.T) {
	local := openStore(t, "file:push1?mode=memory&cache=shared")
	remote := openRemote(t, "file:push1remote?mode=memory&cache=shared")
	scope := Scope{"team": "X"}

	require.NoError(t, local.Write("a", "---\ntype: note\n---\nbody a"))
	require.NoError(t, local.Write("b", "---\ntype: note\n---\nbody b"))

	pusher := Pusher{Local: local, Remote: remote, Scope: scope}
	seq1, err := pusher.Push(0)
	require.NoError(t, err)
	assert.Greater(t, seq1, int64(0))

	var rows []models.RemoteNode
	require.NoError(t, remote.Find(&rows).Error)
	assert.Len(t, rows, 2)

	seq2, err := pusher.Push(0)
	require.NoError(t, err)
	assert.Equal(t, seq1, seq2)

	var rowsAfter []models.RemoteNode
	require.NoError(t, remote.Find(&rowsAfter).Error)
	assert.Len(t, rowsAfter, 2)
}

func TestPush_ReplaysDelete(t *testing.T) {
	local := openStore(t, "file:push2?mode=memory&cache=shared")
	remote := openRemote(t, "file:push2remote?mode=memory&cache=shared")
	scope := Scope{"team": "X"}

	require.NoError(t, local.Write("a", "---\ntype: note\n---\nbody a"))
	pusher := Pusher{Local: local, Remote: remote, Scope: scope}
	seq, err := pusher.Push(0)
	require.NoError(t, err)

	require.NoError(t, local.Rm("a"))
	_, err = pusher.Push(seq)
	require.NoError(t, err)

	var rows []models.RemoteNode
	require.NoError(t, remote.Find(&rows).Error)
	assert.Empty(t, rows)
}

func TestPull_BypassesChangelog(t *testing.T) {
	remote := openRemote(t, "file:pull1remote?mode=memory&cache=shared")
	local := openStore(t, "file:pull1?mode=memory&cache=shared")
	scope := Scope{"team": "X"}

	require.NoError(t, remote.Create(&models.RemoteNode{
		ScopeKey: scope.Key(), Name: "a", Type: "note", Content: "---\ntype: note\n---\npulled",
	}).Error)

	puller := Puller{Local: local, Remote: remote, Scope: scope}
	n, err := puller.Pull()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	content, err := local.Cat("a")
	require.NoError(t, err)
	assert.Equal(t, "---\ntype: note\n---\npulled", content)

	entries, err := local.ChangelogList(0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPush_FallbackFullScanWhenChangelogDisabled(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file:push3?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, kdb.Migrate(gdb))
	local, err := store.Open(gdb, store.Options{Layout: schema.LayoutPerType, ChangelogDisabled: true})
	require.NoError(t, err)
	remote := openRemote(t, "file:push3remote?mode=memory&cache=shared")
	scope := Scope{"team": "X"}

	require.NoError(t, local.Write("a", "---\ntype: note\n---\nbody a"))

	pusher := Pusher{Local: local, Remote: remote, Scope: scope}
	_, err = pusher.Push(0)
	require.NoError(t, err)

	var rows []models.RemoteNode
	require.NoError(t, remote.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Name)
}
