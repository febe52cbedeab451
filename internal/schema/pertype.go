package schema

import (
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tg1482/kaybee/internal/doc"
	"github.com/tg1482/kaybee/internal/kerr"
)

// PerType is the per-type-table storage backend: each type gets its own
// table named after the type, primary key "name", a "_content" column, and
// one text column per observed field (spec.md 4.4).
type PerType struct{}

// NewPerType constructs the per-type-table backend.
func NewPerType() *PerType { return &PerType{} }

func (PerType) Name() string { return LayoutPerType }

func tableFor(typ string) string {
	return "t_" + Sanitize(typ)
}

func quoteIdent(id string) string { return `"` + id + `"` }

func columnExists(tx *gorm.DB, table, col string) (bool, error) {
	rows, err := tx.Raw(fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table))).Rows()
	if err != nil {
		return false, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return false, err
	}
	// PRAGMA table_info columns: cid, name, type, notnull, dflt_value, pk
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return false, err
		}
		if name, ok := vals[1].([]byte); ok && string(name) == col {
			return true, nil
		}
		if name, ok := vals[1].(string); ok && name == col {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (p *PerType) ensureTable(tx *gorm.DB, typ string) error {
	table := tableFor(typ)
	if err := tx.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, _content TEXT)`, quoteIdent(table),
	)).Error; err != nil {
		return err
	}
	return tx.Exec(`INSERT OR IGNORE INTO types (name) VALUES (?)`, typ).Error
}

func (p *PerType) Fields(tx *gorm.DB, typ string) ([]string, error) {
	fields, err := orderedFields(tx, typ)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []string{}
	}
	return fields, nil
}

func (p *PerType) Widen(tx *gorm.DB, typ string, keys []string) error {
	if err := p.ensureTable(tx, typ); err != nil {
		return err
	}
	plans, err := planFields(tx, typ, keys)
	if err != nil {
		return err
	}
	table := tableFor(typ)
	for _, plan := range plans {
		if !plan.IsNewCol {
			continue
		}
		exists, err := columnExists(tx, table, plan.Column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := tx.Exec(fmt.Sprintf(
			`ALTER TABLE %s ADD COLUMN %s TEXT`, quoteIdent(table), quoteIdent(plan.Column),
		)).Error; err != nil {
			return err
		}
	}
	return nil
}

func (p *PerType) SetFields(tx *gorm.DB, typ string, fields []string) error {
	if err := p.Widen(tx, typ, fields); err != nil {
		return err
	}
	dropped, err := pruneFields(tx, typ, fields)
	if err != nil {
		return err
	}
	// SQLite (and the pure-Go drivers used here) support DROP COLUMN since
	// 3.35; nulling is avoided so freeze_schema genuinely narrows the table.
	table := tableFor(typ)
	for _, col := range dropped {
		if err := tx.Exec(fmt.Sprintf(`ALTER TABLE %s DROP COLUMN %s`, quoteIdent(table), quoteIdent(col))).Error; err != nil {
			return err
		}
	}
	return nil
}

func (p *PerType) Upsert(tx *gorm.DB, typ, name, content string, fields map[string]doc.Value) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	if err := p.Widen(tx, typ, keys); err != nil {
		return err
	}

	table := tableFor(typ)
	cols := []string{"name", "_content"}
	placeholders := []string{"?", "?"}
	args := []any{name, content}
	assignments := []string{`_content = excluded._content`}

	for _, k := range keys {
		col := Sanitize(k)
		cols = append(cols, quoteIdent(col))
		placeholders = append(placeholders, "?")
		args = append(args, doc.Encode(fields[k]))
		assignments = append(assignments, quoteIdent(col)+" = excluded."+quoteIdent(col))
	}

	q := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(name) DO UPDATE SET %s`,
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(assignments, ", "),
	)
	return tx.Exec(q, args...).Error
}

func (p *PerType) Delete(tx *gorm.DB, typ, name string) error {
	table := tableFor(typ)
	exists, err := tableExists(tx, table)
	if err != nil || !exists {
		return err
	}
	return tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, quoteIdent(table)), name).Error
}

func (p *PerType) Rename(tx *gorm.DB, typ, name, newName string) error {
	table := tableFor(typ)
	return tx.Exec(fmt.Sprintf(`UPDATE %s SET name = ? WHERE name = ?`, quoteIdent(table)), newName, name).Error
}

func (p *PerType) DropType(tx *gorm.DB, typ string) error {
	table := tableFor(typ)
	if err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(table))).Error; err != nil {
		return err
	}
	if err := dropAllFields(tx, typ); err != nil {
		return err
	}
	return tx.Exec(`DELETE FROM types WHERE name = ?`, typ).Error
}

func (p *PerType) Read(tx *gorm.DB, typ, name string) (string, map[string]doc.Value, error) {
	table := tableFor(typ)
	exists, err := tableExists(tx, table)
	if err != nil {
		return "", nil, err
	}
	if !exists {
		return "", nil, kerr.New(kerr.NotFound, "node not found: "+name)
	}

	fields, err := p.Fields(tx, typ)
	if err != nil {
		return "", nil, err
	}

	selectCols := []string{"_content"}
	for _, f := range fields {
		selectCols = append(selectCols, quoteIdent(f))
	}
	row := tx.Raw(fmt.Sprintf(`SELECT %s FROM %s WHERE name = ?`, strings.Join(selectCols, ", "), quoteIdent(table)), name).Row()

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

func (p *PerType) Names(tx *gorm.DB, typ string) ([]string, error) {
	if typ != "" {
		table := tableFor(typ)
		exists, err := tableExists(tx, table)
		if err != nil || !exists {
			return nil, err
		}
		return scanStrings(tx.Raw(fmt.Sprintf(`SELECT name FROM %s`, quoteIdent(table))))
	}

	types, err := p.allTypes(tx)
	if err != nil {
		return nil, err
	}
	var all []string
	for _, t := range types {
		names, err := p.Names(tx, t)
		if err != nil {
			return nil, err
		}
		all = append(all, names...)
	}
	return all, nil
}

func (p *PerType) AllContent(tx *gorm.DB) ([]ContentRow, error) {
	types, err := p.allTypes(tx)
	if err != nil {
		return nil, err
	}
	var out []ContentRow
	for _, typ := range types {
		table := tableFor(typ)
		rows, err := tx.Raw(fmt.Sprintf(`SELECT name, _content FROM %s`, quoteIdent(table))).Rows()
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var name, content string
			if err := rows.Scan(&name, &content); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, ContentRow{Name: name, Type: typ, Content: content})
		}
		rows.Close()
	}
	return out, nil
}

func (p *PerType) SchemaMap(tx *gorm.DB) (map[string][]string, error) {
	types, err := p.allTypes(tx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(types))
	for _, t := range types {
		fields, err := p.Fields(tx, t)
		if err != nil {
			return nil, err
		}
		out[t] = fields
	}
	return out, nil
}

func (p *PerType) allTypes(tx *gorm.DB) ([]string, error) {
	return scanStrings(tx.Raw(`SELECT name FROM types`))
}

func tableExists(tx *gorm.DB, table string) (bool, error) {
	var n int
	err := tx.Raw(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Row().Scan(&n)
	return n > 0, err
}

func scanStrings(tx *gorm.DB) ([]string, error) {
	rows, err := tx.Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
