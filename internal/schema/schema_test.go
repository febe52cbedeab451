package schema

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tg1482/kaybee/internal/doc"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS types (name TEXT PRIMARY KEY)`).Error)
	return db
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	return map[string]Backend{
		LayoutPerType: NewPerType(),
		LayoutUnified: NewUnified(),
	}
}

func TestBackend_WidenAndUpsertRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			db := openTestDB(t)
			fields := map[string]doc.Value{
				"status": {Scalar: "open"},
				"tags":   {IsList: true, List: []string{"a", "b"}},
			}
			require.NoError(t, b.Upsert(db, "task", "buy-milk", "body text", fields))

			content, got, err := b.Read(db, "task", "buy-milk")
			require.NoError(t, err)
			assert.Equal(t, "body text", content)
			assert.Equal(t, "open", got["status"].Scalar)
			assert.Equal(t, []string{"a", "b"}, got["tags"].Items())
		})
	}
}

func TestBackend_WidenIsAdditive(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			db := openTestDB(t)
			require.NoError(t, b.Widen(db, "task", []string{"status"}))
			require.NoError(t, b.Widen(db, "task", []string{"status", "priority"}))

			fields, err := b.Fields(db, "task")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"status", "priority"}, fields)
		})
	}
}

func TestBackend_SanitizationCollisionRejected(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			db := openTestDB(t)
			require.NoError(t, b.Widen(db, "task", []string{"due date"}))
			err := b.Widen(db, "task", []string{"due-date"})
			require.Error(t, err)
		})
	}
}

func TestBackend_SetFieldsNarrowsFieldSet(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			db := openTestDB(t)
			require.NoError(t, b.Widen(db, "task", []string{"status", "priority"}))
			require.NoError(t, b.SetFields(db, "task", []string{"status"}))

			fields, err := b.Fields(db, "task")
			require.NoError(t, err)
			assert.Equal(t, []string{"status"}, fields)
		})
	}
}

func TestBackend_DeleteAndRename(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			db := openTestDB(t)
			fields := map[string]doc.Value{"status": {Scalar: "open"}}
			require.NoError(t, b.Upsert(db, "task", "a", "body", fields))
			require.NoError(t, b.Rename(db, "task", "a", "b"))

			_, _, err := b.Read(db, "task", "a")
			assert.Error(t, err)
			_, _, err = b.Read(db, "task", "b")
			assert.NoError(t, err)

			require.NoError(t, b.Delete(db, "task", "b"))
			_, _, err = b.Read(db, "task", "b")
			assert.Error(t, err)
		})
	}
}

func TestBackend_DropType(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			db := openTestDB(t)
			fields := map[string]doc.Value{"status": {Scalar: "open"}}
			require.NoError(t, b.Upsert(db, "task", "a", "body", fields))
			require.NoError(t, b.DropType(db, "task"))

			names, err := b.Names(db, "task")
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

func TestBackend_AllContentAndSchemaMap(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			db := openTestDB(t)
			require.NoError(t, b.Upsert(db, "task", "a", "body-a", map[string]doc.Value{"status": {Scalar: "open"}}))
			require.NoError(t, b.Upsert(db, "note", "b", "body-b", map[string]doc.Value{"topic": {Scalar: "x"}}))

			rows, err := b.AllContent(db)
			require.NoError(t, err)
			assert.Len(t, rows, 2)

			m, err := b.SchemaMap(db)
			require.NoError(t, err)
			assert.Equal(t, []string{"status"}, m["task"])
			assert.Equal(t, []string{"topic"}, m["note"])
		})
	}
}

func TestUnified_TypeChangeNullsForeignColumns(t *testing.T) {
	db := openTestDB(t)
	u := NewUnified()

	require.NoError(t, u.Upsert(db, "task", "x", "body", map[string]doc.Value{"status": {Scalar: "open"}}))
	require.NoError(t, u.Upsert(db, "note", "x", "body", map[string]doc.Value{"topic": {Scalar: "y"}}))

	_, fields, err := u.Read(db, "note", "x")
	require.NoError(t, err)
	assert.Equal(t, "y", fields["topic"].Scalar)
	_, hasStatus := fields["status"]
	assert.False(t, hasStatus)
}

func TestRegistry_GetUnknownLayout(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nonexistent")
	assert.Error(t, err)
}

func TestRegistry_LayoutsListsBuiltins(t *testing.T) {
	r := NewRegistry()
	assert.ElementsMatch(t, []string{LayoutPerType, LayoutUnified}, r.Layouts())
}

func TestSanitize_CollisionAndEdgeCases(t *testing.T) {
	assert.Equal(t, "due_date", Sanitize("due date"))
	assert.Equal(t, "due_date", Sanitize("due-date"))
	assert.Equal(t, "_123", Sanitize("123"))
	assert.Equal(t, "_", Sanitize("---"))
}
