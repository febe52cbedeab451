// Package replicate implements push-by-delta and pull-by-scope over a
// store.Store, the way internal/validate layers rules onto store without
// store ever importing replicate (spec.md 4.9).
package replicate

import (
	"encoding/json"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tg1482/kaybee/internal/store"
	"github.com/tg1482/kaybee/models"
)

// Scope tags every row a push writes and every row a pull selects, e.g.
// {"team": "X", "user": "Y"}.
type Scope map[string]string

// Key renders the scope as a canonical, sorted "k=v,k=v" string, used both
// as the remote row's scope column and as the pull selector.
func (s Scope) Key() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+s[k])
	}
	return strings.Join(parts, ",")
}

// EnsureSchema migrates the remote handle's mirror table. Callers open the
// remote the same way they open a local store (db.Connect) and call this
// once before the first Push or Pull.
func EnsureSchema(remote *gorm.DB) error {
	return remote.AutoMigrate(&models.RemoteNode{})
}

// Pusher replays a local store's changelog onto a remote handle, tagged
// with Scope.
type Pusher struct {
	Local  *store.Store
	Remote *gorm.DB
	Scope  Scope
}

// Push replays every changelog entry with seq > sinceSeq as a remote
// upsert/delete/rename/type-change and returns the maximum seq applied.
// Re-running Push from the same sinceSeq reproduces the same remote state
// (spec.md 4.9, "idempotent by design").
//
// When the local changelog is disabled, Push instead performs a full-table
// scan that emits upserts only: deletions are lossy in that mode, as the
// spec documents.
func (p Pusher) Push(sinceSeq int64) (int64, error) {
	if p.Local.ChangelogDisabled() {
		return sinceSeq, p.pushFullScan()
	}

	entries, err := p.Local.ChangelogList(sinceSeq, 0)
	if err != nil {
		return sinceSeq, err
	}

	maxSeq := sinceSeq
	for _, e := range entries {
		if err := p.applyEntry(e.Op, e.Payload); err != nil {
			return maxSeq, err
		}
		maxSeq = e.Seq
	}
	return maxSeq, nil
}

func (p Pusher) applyEntry(op, payload string) error {
	switch op {
	case store.OpNodeWrite, store.OpNodeTypeChange:
		var pl store.WritePayload
		if err := json.Unmarshal([]byte(payload), &pl); err != nil {
			return err
		}
		return p.upsertRemote(pl.Name, pl.Type, pl.Content)

	case store.OpNodeRm:
		var pl store.RmPayload
		if err := json.Unmarshal([]byte(payload), &pl); err != nil {
			return err
		}
		return p.deleteRemote(pl.Name)

	case store.OpNodeMv:
		var pl store.MvPayload
		if err := json.Unmarshal([]byte(payload), &pl); err != nil {
			return err
		}
		// On a re-push the destination row may already exist from the
		// previous run; replace it so the rename cannot hit the unique index.
		if err := p.deleteRemote(pl.New); err != nil {
			return err
		}
		return p.Remote.Model(&models.RemoteNode{}).
			Where("scope_key = ? AND name = ?", p.Scope.Key(), pl.Old).
			Update("name", pl.New).Error

	case store.OpNodeCp:
		var pl store.CpPayload
		if err := json.Unmarshal([]byte(payload), &pl); err != nil {
			return err
		}
		var row models.RemoteNode
		err := p.Remote.Where("scope_key = ? AND name = ?", p.Scope.Key(), pl.Src).First(&row).Error
		if err != nil {
			return err
		}
		return p.upsertRemote(pl.Dst, row.Type, row.Content)

	default:
		// type.add / type.rm have no remote row-level effect: types are
		// emergent from the content the remote already mirrors.
		return nil
	}
}

func (p Pusher) upsertRemote(name, typ, content string) error {
	return p.Remote.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_key"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "content"}),
	}).Create(&models.RemoteNode{ScopeKey: p.Scope.Key(), Name: name, Type: typ, Content: content}).Error
}

func (p Pusher) deleteRemote(name string) error {
	return p.Remote.Where("scope_key = ? AND name = ?", p.Scope.Key(), name).Delete(&models.RemoteNode{}).Error
}

func (p Pusher) pushFullScan() error {
	names, err := p.Local.Ls("")
	if err != nil {
		return err
	}
	for _, name := range names {
		info, err := p.Local.Info(name)
		if err != nil {
			return err
		}
		if err := p.upsertRemote(name, info.Type, info.Content); err != nil {
			return err
		}
	}
	return nil
}

// Puller pulls every remote row matching Scope into Local, applying each as
// a local write that bypasses the changelog (spec.md 4.9, "to prevent
// push-back loops"). It never deletes local nodes.
type Puller struct {
	Local  *store.Store
	Remote *gorm.DB
	Scope  Scope
}

// Pull selects every remote row tagged with Scope and applies it locally.
// Local names present before the pull but absent from the remote scope
// selection are left untouched: Pull mirrors additions and updates, it does
// not infer remote deletions from a row's absence.
func (p Puller) Pull() (int, error) {
	var rows []models.RemoteNode
	if err := p.Remote.Where("scope_key = ?", p.Scope.Key()).Find(&rows).Error; err != nil {
		return 0, err
	}
	for i, row := range rows {
		if err := p.Local.ApplyRemote(row.Name, row.Content); err != nil {
			return i, err
		}
	}
	return len(rows), nil
}
