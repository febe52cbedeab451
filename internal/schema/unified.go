package schema

import (
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tg1482/kaybee/internal/doc"
	"github.com/tg1482/kaybee/internal/kerr"
)

// Unified is the single-table storage backend: one _data row per node, with
// a column for every field across every type, plus a _type_fields side
// table recording which fields belong to which type (spec.md 4.4, 6).
type Unified struct{}

// NewUnified constructs the unified-table backend.
func NewUnified() *Unified { return &Unified{} }

func (Unified) Name() string { return LayoutUnified }

const dataTable = "_data"

func ensureDataTable(tx *gorm.DB) error {
	return tx.Exec(`CREATE TABLE IF NOT EXISTS _data (
		name TEXT PRIMARY KEY,
		type TEXT,
		_content TEXT
	)`).Error
}

func ensureTypeFieldsTable(tx *gorm.DB) error {
	return tx.Exec(`CREATE TABLE IF NOT EXISTS _type_fields (
		type TEXT NOT NULL,
		field TEXT NOT NULL,
		ord INTEGER NOT NULL,
		PRIMARY KEY (type, field)
	)`).Error
}

func (u *Unified) Fields(tx *gorm.DB, typ string) ([]string, error) {
	fields, err := orderedFields(tx, typ)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []string{}
	}
	return fields, nil
}

func (u *Unified) Widen(tx *gorm.DB, typ string, keys []string) error {
	if err := ensureDataTable(tx); err != nil {
		return err
	}
	if err := ensureTypeFieldsTable(tx); err != nil {
		return err
	}
	if err := tx.Exec(`INSERT OR IGNORE INTO types (name) VALUES (?)`, typ).Error; err != nil {
		return err
	}

	plans, err := planFields(tx, typ, keys)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		// The column is shared across every type in _data, so another type
		// may have already created it.
		exists, err := columnExists(tx, dataTable, plan.Column)
		if err != nil {
			return err
		}
		if !exists {
			if err := tx.Exec(fmt.Sprintf(
				`ALTER TABLE %s ADD COLUMN %s TEXT`, quoteIdent(dataTable), quoteIdent(plan.Column),
			)).Error; err != nil {
				return err
			}
		}
		if err := tx.Exec(
			`INSERT OR IGNORE INTO _type_fields (type, field, ord) VALUES (?, ?, ?)`,
			typ, plan.Column, plan.Ord,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (u *Unified) SetFields(tx *gorm.DB, typ string, fields []string) error {
	if err := u.Widen(tx, typ, fields); err != nil {
		return err
	}
	dropped, err := pruneFields(tx, typ, fields)
	if err != nil {
		return err
	}
	for _, col := range dropped {
		if err := tx.Exec(`DELETE FROM _type_fields WHERE type = ? AND field = ?`, typ, col).Error; err != nil {
			return err
		}
		// Null the column for this type's rows only; the column itself may
		// still be in use by other types sharing _data.
		if err := tx.Exec(fmt.Sprintf(
			`UPDATE %s SET %s = NULL WHERE type = ?`, quoteIdent(dataTable), quoteIdent(col),
		), typ).Error; err != nil {
			return err
		}
	}
	return nil
}

func (u *Unified) Upsert(tx *gorm.DB, typ, name, content string, fields map[string]doc.Value) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	if err := u.Widen(tx, typ, keys); err != nil {
		return err
	}

	cols := []string{"name", "type", "_content"}
	placeholders := []string{"?", "?", "?"}
	args := []any{name, typ, content}
	assignments := []string{"type = excluded.type", "_content = excluded._content"}

	for _, k := range keys {
		col := Sanitize(k)
		cols = append(cols, quoteIdent(col))
		placeholders = append(placeholders, "?")
		args = append(args, doc.Encode(fields[k]))
		assignments = append(assignments, quoteIdent(col)+" = excluded."+quoteIdent(col))
	}

	q := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(name) DO UPDATE SET %s`,
		quoteIdent(dataTable), strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(assignments, ", "),
	)
	if err := tx.Exec(q, args...).Error; err != nil {
		return err
	}

	// A type change leaves stale values in columns that don't belong to the
	// new type; null them out.
	return u.nullForeignColumns(tx, typ, name)
}

// nullForeignColumns nulls every _data column that isn't in typ's known
// field set for the given row, so a type change doesn't leak old fields.
func (u *Unified) nullForeignColumns(tx *gorm.DB, typ, name string) error {
	allCols, err := allDataColumns(tx)
	if err != nil {
		return err
	}
	keep, err := u.Fields(tx, typ)
	if err != nil {
		return err
	}
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}
	for _, col := range allCols {
		if col == "name" || col == "type" || col == "_content" || keepSet[col] {
			continue
		}
		if err := tx.Exec(fmt.Sprintf(
			`UPDATE %s SET %s = NULL WHERE name = ?`, quoteIdent(dataTable), quoteIdent(col),
		), name).Error; err != nil {
			return err
		}
	}
	return nil
}

func allDataColumns(tx *gorm.DB) ([]string, error) {
	rows, err := tx.Raw(fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(dataTable))).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	var out []string
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		switch v := vals[1].(type) {
		case string:
			out = append(out, v)
		case []byte:
			out = append(out, string(v))
		}
	}
	return out, rows.Err()
}

func (u *Unified) Delete(tx *gorm.DB, typ, name string) error {
	return tx.Exec(`DELETE FROM _data WHERE name = ? AND type = ?`, name, typ).Error
}

func (u *Unified) Rename(tx *gorm.DB, typ, name, newName string) error {
	return tx.Exec(`UPDATE _data SET name = ? WHERE name = ? AND type = ?`, newName, name, typ).Error
}

func (u *Unified) DropType(tx *gorm.DB, typ string) error {
	if err := tx.Exec(`DELETE FROM _data WHERE type = ?`, typ).Error; err != nil {
		return err
	}
	if err := tx.Exec(`DELETE FROM _type_fields WHERE type = ?`, typ).Error; err != nil {
		return err
	}
	if err := dropAllFields(tx, typ); err != nil {
		return err
	}
	return tx.Exec(`DELETE FROM types WHERE name = ?`, typ).Error
}

func (u *Unified) Read(tx *gorm.DB, typ, name string) (string, map[string]doc.Value, error) {
	if err := ensureDataTable(tx); err != nil {
		return "", nil, err
	}
	fields, err := u.Fields(tx, typ)
	if err != nil {
		return "", nil, err
	}

	selectCols := []string{"_content"}
	for _, f := range fields {
		selectCols = append(selectCols, quoteIdent(f))
	}
	row := tx.Raw(fmt.Sprintf(
		`SELECT %s FROM %s WHERE name = ? AND type = ?`, strings.Join(selectCols, ", "), quoteIdent(dataTable),
	), name, typ).Row()

	dest := make([]any, len(selectCols))
	raw := make([]sql.NullString, len(selectCols))
	for i := range dest {
		dest[i] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		return "", nil, kerr.Wrap(kerr.NotFound, "node not found: "+name, err)
	}

	content := raw[0].String
	out := make(map[string]doc.Value, len(fields))
	for i, f := range fields {
		if raw[i+1].Valid {
			out[f] = doc.Decode(raw[i+1].String)
		}
	}
	return content, out, nil
}

func (u *Unified) Names(tx *gorm.DB, typ string) ([]string, error) {
	if err := ensureDataTable(tx); err != nil {
		return nil, err
	}
	if typ != "" {
		return scanStrings(tx.Raw(`SELECT name FROM _data WHERE type = ?`, typ))
	}
	return scanStrings(tx.Raw(`SELECT name FROM _data`))
}

func (u *Unified) AllContent(tx *gorm.DB) ([]ContentRow, error) {
	if err := ensureDataTable(tx); err != nil {
		return nil, err
	}
	rows, err := tx.Raw(`SELECT name, type, _content FROM _data`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ContentRow
	for rows.Next() {
		var cr ContentRow
		if err := rows.Scan(&cr.Name, &cr.Type, &cr.Content); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (u *Unified) SchemaMap(tx *gorm.DB) (map[string][]string, error) {
	types, err := scanStrings(tx.Raw(`SELECT name FROM types`))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(types))
	for _, t := range types {
		fields, err := u.Fields(tx, t)
		if err != nil {
			return nil, err
		}
		out[t] = fields
	}
	return out, nil
}
