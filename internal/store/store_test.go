package store

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	kdb "github.com/tg1482/kaybee/db"
	"github.com/tg1482/kaybee/internal/schema"
)

func openStore(t *testing.T, layout string) *Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, kdb.Migrate(gdb))
	st, err := Open(gdb, Options{Layout: layout})
	require.NoError(t, err)
	return st
}

func bothLayouts(t *testing.T, fn func(t *testing.T, st *Store)) {
	for _, layout := range []string{schema.LayoutPerType, schema.LayoutUnified} {
		layout := layout
		t.Run(layout, func(t *testing.T) {
			fn(t, openStore(t, layout))
		})
	}
}

func TestStore_WriteAndCatRoundTrip(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		content := "---\ntype: concept\ndescription: d\n---\nLinks [[at]]."
		require.NoError(t, st.Write("sa", content))

		got, err := st.Cat("sa")
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})
}

func TestStore_WikilinksAndBacklinks(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("sa", "---\ntype: concept\n---\nLinks [[at]]."))
		require.NoError(t, st.Write("at", "---\ntype: concept\n---\nBody."))

		names, err := st.Ls("concept")
		require.NoError(t, err)
		assert.Equal(t, []string{"at", "sa"}, names)

		links, err := st.Wikilinks("sa")
		require.NoError(t, err)
		assert.Equal(t, []string{"at"}, links)

		back, err := st.Backlinks("at")
		require.NoError(t, err)
		assert.Equal(t, []string{"sa"}, back)
	})
}

func TestStore_RmLeavesUnresolvedBacklink(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("sa", "---\ntype: concept\n---\nLinks [[at]]."))
		require.NoError(t, st.Write("at", "---\ntype: concept\n---\nBody."))
		require.NoError(t, st.Rm("at"))

		links, err := st.Wikilinks("sa")
		require.NoError(t, err)
		assert.Empty(t, links)

		back, err := st.Backlinks("at")
		require.NoError(t, err)
		assert.Empty(t, back)

		require.NoError(t, st.Write("at", "---\ntype: concept\n---\nBody again."))
		links, err = st.Wikilinks("sa")
		require.NoError(t, err)
		assert.Equal(t, []string{"at"}, links)
	})
}

func TestStore_MvPreservesContentAndBacklinks(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("at", "---\ntype: concept\n---\nBody."))
		require.NoError(t, st.Write("sa", "---\ntype: concept\n---\nLinks [[at]]."))
		priorCat, err := st.Cat("sa")
		require.NoError(t, err)

		require.NoError(t, st.Mv("sa", "sa2"))

		got, err := st.Cat("sa2")
		require.NoError(t, err)
		assert.Equal(t, priorCat, got)

		back, err := st.Backlinks("at")
		require.NoError(t, err)
		assert.Equal(t, []string{"sa2"}, back)

		_, err = st.Cat("sa")
		assert.Error(t, err)
	})
}

func TestStore_CpDeepCopiesEdges(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("at", "---\ntype: concept\n---\nBody."))
		require.NoError(t, st.Write("sa", "---\ntype: concept\n---\nLinks [[at]]."))
		require.NoError(t, st.Cp("sa", "sa-copy"))

		links, err := st.Wikilinks("sa-copy")
		require.NoError(t, err)
		assert.Equal(t, []string{"at"}, links)
	})
}

func TestStore_TouchIsIdempotent(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Touch("a", "first"))
		require.NoError(t, st.Touch("a", "second"))

		got, err := st.Cat("a")
		require.NoError(t, err)
		assert.Equal(t, "first", got)
	})
}

func TestStore_TypeChangeMigratesRow(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("a", "---\ntype: task\nstatus: open\n---\nBody."))
		require.NoError(t, st.Write("a", "---\ntype: note\ntopic: x\n---\nBody."))

		info, err := st.Info("a")
		require.NoError(t, err)
		assert.Equal(t, "note", info.Type)
	})
}

func TestStore_ReadDepthBoundedBFS(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("a", "---\ntype: n\n---\n[[b]]"))
		require.NoError(t, st.Write("b", "---\ntype: n\n---\n[[c]] [[a]]"))
		require.NoError(t, st.Write("c", "---\ntype: n\n---\nleaf"))

		order, content, err := st.Read("a", 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, order)
		assert.Len(t, content, 2)

		order, content, err = st.Read("a", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, order)
		assert.Len(t, content, 3)
	})
}

func TestStore_RemoveTypeMigratesToUntyped(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("a", "---\ntype: task\nstatus: open\n---\nBody."))
		require.NoError(t, st.RemoveType("task"))

		info, err := st.Info("a")
		require.NoError(t, err)
		assert.Equal(t, "untyped", info.Type)
	})
}

func TestStore_SchemaMonotonicityWithoutFreeze(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("a", "---\ntype: task\nstatus: open\n---\nBody."))
		require.NoError(t, st.Write("b", "---\ntype: task\nstatus: open\npriority: high\n---\nBody."))

		m, err := st.SchemaMap()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"status", "priority"}, m["task"])
	})
}

func TestStore_ChangelogSequenceIncreasesAcrossMutations(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("a", "content a"))
		require.NoError(t, st.Write("b", "content b"))
		require.NoError(t, st.Mv("b", "b2"))
		require.NoError(t, st.Cp("a", "a2"))

		entries, err := st.ChangelogList(0, 0)
		require.NoError(t, err)
		require.Len(t, entries, 4)
		for i := 1; i < len(entries); i++ {
			assert.Greater(t, entries[i].Seq, entries[i-1].Seq)
		}
	})
}

func TestStore_ValidatorRejectionLeavesNoPartialWrite(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.SetValidator(rejectAll{}))

		err := st.Write("c1", "---\ntype: concept\n---\nBody.")
		require.Error(t, err)

		_, err = st.Cat("c1")
		assert.Error(t, err)

		entries, err := st.ChangelogList(0, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

type rejectAll struct{}

func (rejectAll) Check(v *GraphView) []string {
	return []string{"always rejected"}
}

func TestStore_GrepSearchesContent(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("a", "---\ntype: n\n---\nhas needle here"))
		require.NoError(t, st.Write("b", "---\ntype: n\n---\nno match"))

		names, err := st.Grep("needle", false)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, names)
	})
}

func TestStore_QueryRunsRawSQLWithParams(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("a", "---\ntype: n\n---\nBody."))
		require.NoError(t, st.Write("b", "---\ntype: n\n---\nBody."))

		rows, err := st.Query("SELECT name, type FROM nodes WHERE name = ?", "a")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "a", rows[0]["name"])
		assert.Equal(t, "n", rows[0]["type"])
	})
}

func TestStore_TagsAggregation(t *testing.T) {
	bothLayouts(t, func(t *testing.T, st *Store) {
		require.NoError(t, st.Write("a", "---\ntype: n\ntags: [x, y]\n---\nBody."))
		require.NoError(t, st.Write("b", "---\ntype: n\ntags: [y]\n---\nBody."))

		tags, err := st.Tags()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a"}, tags["x"])
		assert.ElementsMatch(t, []string{"a", "b"}, tags["y"])
	})
}
