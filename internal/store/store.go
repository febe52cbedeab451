// Package store owns the node index, the typed projection (delegated to
// internal/schema), the link index, and the changelog, all inside one
// transactional domain per mutation (spec.md 3, "Lifecycle ownership").
//
// Every public mutation method opens exactly one *gorm.DB transaction and
// runs schema migration, typed upsert, node-index update, edge replacement,
// the optional validator gatekeeper check, and the changelog append inside
// it — so a validator rejection or any other failure rolls back the whole
// mutation, satisfying spec.md 8's "no partial writes" property without a
// separate savepoint: the surrounding transaction already holds nothing
// durable until it commits.
package store

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tg1482/kaybee/internal/doc"
	"github.com/tg1482/kaybee/internal/kerr"
	"github.com/tg1482/kaybee/internal/resolve"
	"github.com/tg1482/kaybee/internal/schema"
	"github.com/tg1482/kaybee/models"
)

// Store is the engine's single entry point over one primary database
// handle. It is not safe for concurrent mutation from multiple goroutines
// without the caller serializing calls; concurrent readers are fine,
// mirroring spec.md 5's "single-writer per database handle".
type Store struct {
	db                *gorm.DB
	registry          *schema.Registry
	backend           schema.Backend
	layout            string
	changelogDisabled bool
	idx               *resolve.Index
	validator         Validator
}

// Options configures Open.
type Options struct {
	Layout            string // schema.LayoutPerType or schema.LayoutUnified
	ChangelogDisabled bool
}

// Open builds a Store over an already-migrated *gorm.DB (see db.Connect),
// selecting the named layout's backend from the schema registry.
func Open(gdb *gorm.DB, opts Options) (*Store, error) {
	reg := schema.NewRegistry()
	backend, err := reg.Get(opts.Layout)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:                gdb,
		registry:          reg,
		backend:           backend,
		layout:            opts.Layout,
		changelogDisabled: opts.ChangelogDisabled,
		idx:               resolve.NewIndex(),
	}, nil
}

// Validator is the gatekeeper contract: Check runs every installed rule
// against the hypothetical post-mutation state (visible within the
// in-flight transaction via v) and returns every violation message,
// collected rather than short-circuited (spec.md 7).
type Validator interface {
	Check(v *GraphView) []string
}

// Installer is implemented by rules that also mutate schema at install time
// (freeze_schema: "also instructs the schema registry to set exactly that
// field set on install").
type Installer interface {
	Install(tx *gorm.DB, backend schema.Backend) error
}

// SetValidator installs v as the write-path gatekeeper. If v also
// implements Installer, its install-time schema migration runs immediately
// inside its own transaction.
func (s *Store) SetValidator(v Validator) error {
	if inst, ok := v.(Installer); ok {
		if err := s.db.Transaction(func(tx *gorm.DB) error {
			return inst.Install(tx, s.backend)
		}); err != nil {
			return err
		}
	}
	s.validator = v
	return nil
}

// Layout reports the database's storage layout.
func (s *Store) Layout() string { return s.layout }

// runMutation wraps fn in one transaction, invalidates the fuzzy-resolution
// index on success (node names may have changed), and runs the installed
// validator against the post-mutation state before allowing commit.
func (s *Store) runMutation(fn func(tx *gorm.DB) error) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		if s.validator != nil {
			violations := s.validator.Check(&GraphView{tx: tx, store: s})
			if len(violations) > 0 {
				return kerr.NewInvalid(violations)
			}
		}
		return nil
	})
	if err == nil {
		s.idx.Invalidate()
	}
	return err
}

// allNames returns every node name currently indexed, used by the fuzzy
// resolver. tx may be a transaction mid-mutation or the root handle.
func allNames(tx *gorm.DB) ([]string, error) {
	var names []string
	if err := tx.Model(&models.NodeIndex{}).Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// resolveName maps token to a canonical node name using the three-stage
// strategy, scoped to the names currently visible under tx.
func (s *Store) resolveName(tx *gorm.DB, token string) (string, bool, error) {
	names, err := allNames(tx)
	if err != nil {
		return "", false, err
	}
	name, ok := s.idx.Resolve(token, names)
	return name, ok, nil
}

// validateName enforces spec.md 3's node-name invariant.
func validateName(name string) error {
	if name == "" {
		return kerr.New(kerr.Invalid, "node name must not be empty")
	}
	if strings.Contains(name, "[[") || strings.Contains(name, "]]") {
		return kerr.New(kerr.Invalid, "node name must not contain \"[[\" or \"]]\"")
	}
	return nil
}

// nodeType looks up name's recorded type; ok is false if name is unknown.
func nodeType(tx *gorm.DB, name string) (string, bool, error) {
	var rec models.NodeIndex
	err := tx.Where("name = ?", name).First(&rec).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return "", false, nil
	case err != nil:
		return "", false, err
	default:
		return rec.Type, true, nil
	}
}

// fieldValues converts a parsed header into the schema backend's expected
// map, excluding the reserved "type" key (which the node index, not the
// typed row, owns as a column).
func fieldValues(meta *doc.Meta) map[string]doc.Value {
	out := make(map[string]doc.Value, meta.Len())
	for _, k := range meta.Keys() {
		if k == doc.ReservedType {
			continue
		}
		v, _ := meta.Get(k)
		out[k] = v
	}
	return out
}

func notFound(name string) error {
	return kerr.New(kerr.NotFound, fmt.Sprintf("node not found: %s", name))
}

func alreadyExists(name string) error {
	return kerr.New(kerr.Exists, fmt.Sprintf("node already exists: %s", name))
}
