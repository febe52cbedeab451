// Package schema implements the emergent per-type schema mechanism: each
// type owns an ordered field set that widens as new metadata keys are
// observed, materialized into one of two interchangeable storage layouts.
//
// The two layouts (per-type tables, unified table) are modeled as two
// implementations of one Backend interface, registered by name into a
// Registry exactly the way internal/registry.Registry looks up a
// provider.LanguageProvider by canonical name: one name picked at database
// creation, recorded in meta(k,v), and never mixed with the other within a
// single database file (spec.md 3, invariant 5).
package schema

import (
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/tg1482/kaybee/internal/doc"
)

// Backend is the schema registry's storage contract. All methods take a
// *gorm.DB that is expected to be a transaction (or the root handle for
// pure reads); the caller (internal/store) owns transaction boundaries so
// that schema migration, row upsert, and everything else in one mutation
// commit or abort together.
type Backend interface {
	// Name is the layout's identifier, as recorded in meta(k,v).
	Name() string

	// Fields returns typ's ordered field set (excluding the reserved "type"
	// key and "_content"). Returns an empty, non-nil slice for an unknown type.
	Fields(tx *gorm.DB, typ string) ([]string, error)

	// Widen ensures typ's table/columns exist for every key in keys,
	// additively. Already-known keys are a no-op. A key that sanitizes to
	// the same column as a different existing key is a SchemaConflict.
	Widen(tx *gorm.DB, typ string, keys []string) error

	// SetFields installs exactly fields as typ's field set, dropping
	// anything else (used by freeze_schema's migration).
	SetFields(tx *gorm.DB, typ string, fields []string) error

	// Upsert writes name's row under typ with the given content and field
	// values, widening the schema first if needed.
	Upsert(tx *gorm.DB, typ, name, content string, fields map[string]doc.Value) error

	// Delete removes name's typed row under typ. Missing rows are a no-op.
	Delete(tx *gorm.DB, typ, name string) error

	// Rename moves name's typed row to newName under the same type.
	Rename(tx *gorm.DB, typ, name, newName string) error

	// DropType removes typ's storage entirely (table, or unified rows/side
	// rows). It does not touch the nodes(name,type) index; the caller
	// migrates affected nodes to "untyped" separately.
	DropType(tx *gorm.DB, typ string) error

	// Read returns name's raw content and field values under typ.
	Read(tx *gorm.DB, typ, name string) (content string, fields map[string]doc.Value, err error)

	// Names lists every node name stored under typ, in no particular order.
	// An empty typ ("") lists every typed node across every type.
	Names(tx *gorm.DB, typ string) ([]string, error)

	// AllContent returns every node's (name, type, content) triple across
	// every type, for content-scanning queries like grep.
	AllContent(tx *gorm.DB) ([]ContentRow, error)

	// SchemaMap returns the full type -> ordered field set mapping.
	SchemaMap(tx *gorm.DB) (map[string][]string, error)
}

// ContentRow is one node's content as seen by a cross-type scan.
type ContentRow struct {
	Name    string
	Type    string
	Content string
}

// Names of the two built-in layouts, as recorded in meta(k,v).
const (
	LayoutPerType = "pertype"
	LayoutUnified = "unified"
)

// Registry looks up a Backend by layout name. Construction is lazy: each
// factory is called at most once per Registry, mirroring how
// internal/registry.Registry holds one long-lived instance per provider.
type Registry struct {
	mu        sync.Mutex
	factories map[string]func() Backend
	instances map[string]Backend
}

// NewRegistry returns a registry pre-populated with the two built-in
// layouts. Callers needing a third layout can Register their own.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]func() Backend),
		instances: make(map[string]Backend),
	}
	r.Register(LayoutPerType, func() Backend { return NewPerType() })
	r.Register(LayoutUnified, func() Backend { return NewUnified() })
	return r
}

// Register adds a named backend factory, rejecting a name collision.
func (r *Registry) Register(name string, factory func() Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("schema: layout %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Get returns the named backend, constructing it on first use.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.instances[name]; ok {
		return b, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("schema: unknown layout %q", name)
	}
	b := factory()
	r.instances[name] = b
	return b, nil
}

// Layouts lists every registered layout name, sorted.
func (r *Registry) Layouts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
