package validate

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	kdb "github.com/tg1482/kaybee/db"
	"github.com/tg1482/kaybee/internal/kerr"
	"github.com/tg1482/kaybee/internal/schema"
	"github.com/tg1482/kaybee/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, kdb.Migrate(gdb))
	st, err := store.Open(gdb, store.Options{Layout: schema.LayoutPerType})
	require.NoError(t, err)
	return st
}

func TestRequiresField_RejectsMissingFieldWithNoPartialWrite(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.SetValidator(New(RequiresField{Type: "concept", Field: "description"})))

	err := st.Write("c1", "---\ntype: concept\n---\nbody")
	require.Error(t, err)
	assert.Equal(t, kerr.Invalid, kerr.CodeOf(err))

	_, err = st.Cat("c1")
	assert.Error(t, err)

	entries, err := st.ChangelogList(0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRequiresField_AllowsPresentField(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.SetValidator(New(RequiresField{Type: "concept", Field: "description"})))

	err := st.Write("c1", "---\ntype: concept\ndescription: d\n---\nbody")
	require.NoError(t, err)
}

func TestRequiresTag_RejectsMissingTag(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.SetValidator(New(RequiresTag{Type: "concept", Tag: "reviewed"})))

	err := st.Write("c1", "---\ntype: concept\ntags: [draft]\n---\nbody")
	assert.Error(t, err)

	require.NoError(t, st.SetValidator(nil))
	require.NoError(t, st.Write("c2", "---\ntype: concept\ntags: [reviewed]\n---\nbody"))
}

func TestRequiresLink_UnresolvedCountsAsMissing(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.SetValidator(New(RequiresLink{Type: "task", TargetType: "project"})))

	err := st.Write("t1", "---\ntype: task\n---\n[[ghost]]")
	assert.Error(t, err)
}

func TestRequiresLink_ResolvedTargetSatisfies(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.Write("p1", "---\ntype: project\n---\nbody"))
	require.NoError(t, st.SetValidator(New(RequiresLink{Type: "task", TargetType: "project"})))

	require.NoError(t, st.Write("t1", "---\ntype: task\n---\n[[p1]]"))
}

func TestNoOrphans_RejectsIsolatedNode(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.SetValidator(New(NoOrphans{})))

	err := st.Write("lonely", "---\ntype: note\n---\nno links here")
	assert.Error(t, err)
}

func TestFreezeSchema_InstallNarrowsThenRejectsNewField(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.Write("a", "---\ntype: task\nstatus: open\npriority: high\n---\nbody"))

	require.NoError(t, st.SetValidator(New(FreezeSchema{Type: "task", Fields: []string{"status"}})))

	m, err := st.SchemaMap()
	require.NoError(t, err)
	assert.Equal(t, []string{"status"}, m["task"])

	err = st.Write("b", "---\ntype: task\nstatus: open\nowner: x\n---\nbody")
	assert.Error(t, err)
}

func TestCustom_RunsUserPredicate(t *testing.T) {
	st := openStore(t)
	rule := Custom{
		Type: "task",
		Name: "status-not-blocked",
		Predicate: func(v *store.GraphView, name string) string {
			meta, err := v.Metadata(name)
			if err != nil {
				return err.Error()
			}
			if meta["status"].String() == "blocked" {
				return "status must not be blocked"
			}
			return ""
		},
	}
	require.NoError(t, st.SetValidator(New(rule)))

	err := st.Write("t1", "---\ntype: task\nstatus: blocked\n---\nbody")
	assert.Error(t, err)

	require.NoError(t, st.Write("t2", "---\ntype: task\nstatus: open\n---\nbody"))
}
