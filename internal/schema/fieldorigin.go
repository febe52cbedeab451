package schema

import (
	"gorm.io/gorm"

	"github.com/tg1482/kaybee/internal/kerr"
)

// fieldOrigin is internal bookkeeping, shared by both layouts, that records
// which original (pre-sanitization) metadata key a sanitized column belongs
// to and the order it was first declared in. It is what lets Widen detect a
// genuine sanitization collision (two distinct keys mapping to the same
// column) rather than the ordinary case of re-observing a known field.
const fieldOriginDDL = `CREATE TABLE IF NOT EXISTS _field_origin (
	type TEXT NOT NULL,
	column TEXT NOT NULL,
	orig_key TEXT NOT NULL,
	ord INTEGER NOT NULL,
	PRIMARY KEY (type, column)
)`

func ensureFieldOriginTable(tx *gorm.DB) error {
	return tx.Exec(fieldOriginDDL).Error
}

// fieldPlan describes one key being widened onto a type.
type fieldPlan struct {
	Orig     string
	Column   string
	Ord      int
	IsNewCol bool // true the first time this column is created for the type
}

// planFields resolves keys against the recorded origins for typ, detecting
// within-batch and cross-write sanitization collisions, and returns the
// columns that need to be newly created (IsNewCol) versus already known.
func planFields(tx *gorm.DB, typ string, keys []string) ([]fieldPlan, error) {
	if err := ensureFieldOriginTable(tx); err != nil {
		return nil, err
	}

	seenInBatch := make(map[string]string, len(keys))
	var plans []fieldPlan

	var maxOrd int
	row := tx.Raw(`SELECT COALESCE(MAX(ord), -1) FROM _field_origin WHERE type = ?`, typ).Row()
	if err := row.Scan(&maxOrd); err != nil {
		return nil, err
	}

	for _, key := range keys {
		col := Sanitize(key)

		if prevOrig, dup := seenInBatch[col]; dup && prevOrig != key {
			return nil, kerr.New(kerr.SchemaConflict,
				"metadata keys \""+prevOrig+"\" and \""+key+"\" sanitize to the same field \""+col+"\"")
		}
		seenInBatch[col] = key

		var existingOrig string
		var existingOrd int
		err := tx.Raw(`SELECT orig_key, ord FROM _field_origin WHERE type = ? AND column = ?`, typ, col).
			Row().Scan(&existingOrig, &existingOrd)
		switch {
		case err == nil:
			if existingOrig != key {
				return nil, kerr.New(kerr.SchemaConflict,
					"metadata key \""+key+"\" collides with existing field \""+col+"\" owned by \""+existingOrig+"\"")
			}
			plans = append(plans, fieldPlan{Orig: key, Column: col, Ord: existingOrd, IsNewCol: false})
		default:
			maxOrd++
			if err := tx.Exec(
				`INSERT INTO _field_origin (type, column, orig_key, ord) VALUES (?, ?, ?, ?)`,
				typ, col, key, maxOrd,
			).Error; err != nil {
				return nil, err
			}
			plans = append(plans, fieldPlan{Orig: key, Column: col, Ord: maxOrd, IsNewCol: true})
		}
	}

	return plans, nil
}

// orderedFields returns typ's known columns in first-declared order.
func orderedFields(tx *gorm.DB, typ string) ([]string, error) {
	if err := ensureFieldOriginTable(tx); err != nil {
		return nil, err
	}
	rows, err := tx.Raw(`SELECT column FROM _field_origin WHERE type = ? ORDER BY ord ASC`, typ).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		fields = append(fields, c)
	}
	return fields, rows.Err()
}

// pruneFields removes _field_origin rows for typ whose column is not in
// keep, returning the sanitized column names that were dropped.
func pruneFields(tx *gorm.DB, typ string, keep []string) ([]string, error) {
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[Sanitize(k)] = true
	}

	existing, err := orderedFields(tx, typ)
	if err != nil {
		return nil, err
	}

	var dropped []string
	for _, col := range existing {
		if keepSet[col] {
			continue
		}
		if err := tx.Exec(`DELETE FROM _field_origin WHERE type = ? AND column = ?`, typ, col).Error; err != nil {
			return nil, err
		}
		dropped = append(dropped, col)
	}
	return dropped, nil
}

func dropAllFields(tx *gorm.DB, typ string) error {
	if err := ensureFieldOriginTable(tx); err != nil {
		return err
	}
	return tx.Exec(`DELETE FROM _field_origin WHERE type = ?`, typ).Error
}

func renameFieldsType(tx *gorm.DB, oldType, newType string) error {
	if err := ensureFieldOriginTable(tx); err != nil {
		return err
	}
	return tx.Exec(`UPDATE _field_origin SET type = ? WHERE type = ?`, newType, oldType).Error
}
