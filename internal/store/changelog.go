package store

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/tg1482/kaybee/models"
)

// Changelog operation kinds (spec.md 4.7).
const (
	OpNodeWrite      = "node.write"
	OpNodeRm         = "node.rm"
	OpNodeMv         = "node.mv"
	OpNodeCp         = "node.cp"
	OpNodeTypeChange = "node.type_change"
	OpTypeAdd        = "type.add"
	OpTypeRm         = "type.rm"
)

// WritePayload is node.write and node.type_change's replayable payload.
type WritePayload struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// MvPayload is node.mv's replayable payload.
type MvPayload struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// RmPayload is node.rm's replayable payload: the node's last-known type, so
// a replaying remote can locate its typed row.
type RmPayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CpPayload is node.cp's replayable payload.
type CpPayload struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

// TypePayload is type.add/type.rm's replayable payload.
type TypePayload struct {
	Type string `json:"type"`
}

// append records one changelog entry, transactional with the mutation that
// produced it. Disabling the changelog makes this a no-op, per spec.md 4.7
// ("Disabling the changelog skips append but must not break the mutation
// path").
func (s *Store) append(tx *gorm.DB, op, subject string, payload any) error {
	if s.changelogDisabled {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&models.ChangelogEntry{Op: op, Subject: subject, Payload: string(b)}).Error
}

// ChangelogList returns entries with seq strictly greater than sinceSeq, in
// ascending seq order, capped at limit (0 means unlimited).
func (s *Store) ChangelogList(sinceSeq int64, limit int) ([]models.ChangelogEntry, error) {
	q := s.db.Where("seq > ?", sinceSeq).Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []models.ChangelogEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ChangelogTruncate deletes every entry with seq <= beforeSeq.
func (s *Store) ChangelogTruncate(beforeSeq int64) error {
	return s.db.Where("seq <= ?", beforeSeq).Delete(&models.ChangelogEntry{}).Error
}

// ChangelogMaxSeq returns the highest recorded seq, or 0 if the changelog is
// empty.
func (s *Store) ChangelogMaxSeq() (int64, error) {
	var max int64
	err := s.db.Model(&models.ChangelogEntry{}).Select("COALESCE(MAX(seq), 0)").Row().Scan(&max)
	return max, err
}

// ChangelogDisabled reports whether this store records mutation history.
func (s *Store) ChangelogDisabled() bool { return s.changelogDisabled }
