// Package kaybee is the engine's single entry point, wiring db.Connect,
// internal/store, internal/replicate, internal/scan, and internal/diffutil
// into one Graph that implements the query façade
// spec.md 6 describes (ls, find, grep, tags, schema, graph, read, cat,
// body, frontmatter, info, write, touch, rm, mv, cp, add_type,
// remove_type, push, pull), the same way the teacher's cli.Runner sits on
// top of core.FileProcessor/core.AtomicWriter/internal/registry without
// callers touching those packages directly.
package kaybee

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/tg1482/kaybee/db"
	"github.com/tg1482/kaybee/internal/config"
	"github.com/tg1482/kaybee/internal/diffutil"
	"github.com/tg1482/kaybee/internal/doc"
	"github.com/tg1482/kaybee/internal/replicate"
	"github.com/tg1482/kaybee/internal/scan"
	"github.com/tg1482/kaybee/internal/store"
	"github.com/tg1482/kaybee/models"
)

// Graph is one open knowledge graph: a primary database handle, the
// transactional store built on top of it, and (optionally) a remote handle
// for replication.
type Graph struct {
	cfg    *config.Config
	gdb    *gorm.DB
	store  *store.Store
	remote *gorm.DB
}

// Open resolves cfg.DBPath as the primary database, migrates it, and binds
// a Store over it at cfg.Layout. A mismatched layout on an existing
// database surfaces as a kerr.LayoutMismatch error.
func Open(cfg *config.Config) (*Graph, error) {
	gdb, err := db.Connect(cfg.DBPath, cfg.Layout, false)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(gdb, store.Options{
		Layout:            cfg.Layout,
		ChangelogDisabled: cfg.ChangelogDisabled,
	})
	if err != nil {
		return nil, err
	}
	return &Graph{cfg: cfg, gdb: gdb, store: st}, nil
}

// Close releases the underlying database connection(s).
func (g *Graph) Close() error {
	if sqlDB, err := g.gdb.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			return cerr
		}
	}
	if g.remote != nil {
		if sqlDB, err := g.remote.DB(); err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}

// SetValidator installs the gatekeeper validator every subsequent mutation
// runs against (spec.md 4.8). Pass an *internal/validate.Validator built
// from one or more rule values.
func (g *Graph) SetValidator(v store.Validator) error {
	return g.store.SetValidator(v)
}

// Layout reports the database's storage layout.
func (g *Graph) Layout() string { return g.store.Layout() }

// --- node store ---

// Write parses content, widens the schema, and upserts name (spec.md 4.5).
func (g *Graph) Write(name, content string) error { return g.store.Write(name, content) }

// Touch writes content only if name is absent.
func (g *Graph) Touch(name, content string) error { return g.store.Touch(name, content) }

// Rm deletes name.
func (g *Graph) Rm(name string) error { return g.store.Rm(name) }

// Mv renames old to newName, preserving content and rewriting outgoing
// edge sources.
func (g *Graph) Mv(old, newName string) error { return g.store.Mv(old, newName) }

// Cp deep-copies src's content and outgoing edges to dst.
func (g *Graph) Cp(src, dst string) error { return g.store.Cp(src, dst) }

// Cat returns name's full raw content.
func (g *Graph) Cat(name string) (string, error) { return g.store.Cat(name) }

// Body returns name's content after the frontmatter header.
func (g *Graph) Body(name string) (string, error) { return g.store.Body(name) }

// Frontmatter returns name's parsed metadata.
func (g *Graph) Frontmatter(name string) (*doc.Meta, error) { return g.store.Frontmatter(name) }

// Info returns name's full read view: identity, content, metadata, body.
func (g *Graph) Info(name string) (*store.Info, error) { return g.store.Info(name) }

// Read performs a breadth-first expansion from name through resolved
// outgoing edges up to depth hops.
func (g *Graph) Read(name string, depth int) ([]string, map[string]string, error) {
	return g.store.Read(name, depth)
}

// Ls lists node names, optionally filtered by type.
func (g *Graph) Ls(typ string) ([]string, error) { return g.store.Ls(typ) }

// Find lists node names matching nameRegex, optionally restricted to
// typeFilter.
func (g *Graph) Find(nameRegex, typeFilter string) ([]string, error) {
	return g.store.Find(nameRegex, typeFilter)
}

// Grep searches node content for pattern.
func (g *Graph) Grep(pattern string, fullContent bool) ([]string, error) {
	return g.store.Grep(pattern, fullContent)
}

// Tags returns every tag observed across all nodes, mapped to the node
// names carrying it.
func (g *Graph) Tags() (map[string][]string, error) { return g.store.Tags() }

// TagsOf returns a single node's tags.
func (g *Graph) TagsOf(name string) ([]string, error) { return g.store.TagsOf(name) }

// Tree groups every node name by its type.
func (g *Graph) Tree() (map[string][]string, error) { return g.store.Tree() }

// Query is the raw SQL passthrough escape hatch over the primary database.
func (g *Graph) Query(sql string, params ...any) ([]map[string]any, error) {
	return g.store.Query(sql, params...)
}

// --- link index ---

// Wikilinks returns name's resolved outgoing targets.
func (g *Graph) Wikilinks(name string) ([]string, error) { return g.store.Wikilinks(name) }

// RawWikilinks returns name's outgoing targets verbatim, unresolved tokens
// included.
func (g *Graph) RawWikilinks(name string) ([]string, error) { return g.store.RawWikilinks(name) }

// Backlinks returns every node whose resolved outgoing edges include name.
func (g *Graph) Backlinks(name string) ([]string, error) { return g.store.Backlinks(name) }

// Graph returns the full resolved adjacency: source name -> resolved
// targets.
func (g *Graph) Graph() (map[string][]string, error) { return g.store.Graph() }

// --- schema registry ---

// AddType registers typ with an empty field set.
func (g *Graph) AddType(typ string) error { return g.store.AddType(typ) }

// RemoveType drops typ's storage, migrating its nodes to "untyped".
func (g *Graph) RemoveType(typ string) error { return g.store.RemoveType(typ) }

// SchemaMap returns the full type -> ordered field set mapping.
func (g *Graph) SchemaMap() (map[string][]string, error) { return g.store.SchemaMap() }

// --- changelog ---

// ChangelogList returns entries with seq strictly greater than sinceSeq.
func (g *Graph) ChangelogList(sinceSeq int64, limit int) ([]models.ChangelogEntry, error) {
	return g.store.ChangelogList(sinceSeq, limit)
}

// ChangelogMaxSeq returns the highest recorded seq.
func (g *Graph) ChangelogMaxSeq() (int64, error) { return g.store.ChangelogMaxSeq() }

// ChangelogTruncate deletes every entry with seq <= beforeSeq.
func (g *Graph) ChangelogTruncate(beforeSeq int64) error { return g.store.ChangelogTruncate(beforeSeq) }

// --- replication ---

// connectRemote lazily opens and mirrors the remote handle named by
// cfg.RemoteDSN, caching it for the life of the Graph.
func (g *Graph) connectRemote() (*gorm.DB, error) {
	if g.remote != nil {
		return g.remote, nil
	}
	if g.cfg.RemoteDSN == "" {
		return nil, fmt.Errorf("kaybee: no remote configured (set %s)", config.EnvRemoteDSN)
	}
	if g.cfg.RemoteToken != "" {
		if err := os.Setenv(db.AuthTokenEnv, g.cfg.RemoteToken); err != nil {
			return nil, err
		}
	}
	remote, err := db.Connect(g.cfg.RemoteDSN, g.cfg.Layout, false)
	if err != nil {
		return nil, err
	}
	if err := replicate.EnsureSchema(remote); err != nil {
		return nil, err
	}
	g.remote = remote
	return remote, nil
}

// Push replays local changelog entries with seq > sinceSeq to the
// configured remote, tagged with scope, and returns the maximum seq
// applied (spec.md 4.9).
func (g *Graph) Push(scope replicate.Scope, sinceSeq int64) (int64, error) {
	remote, err := g.connectRemote()
	if err != nil {
		return sinceSeq, err
	}
	pusher := replicate.Pusher{Local: g.store, Remote: remote, Scope: scope}
	return pusher.Push(sinceSeq)
}

// Pull applies every remote row tagged with scope locally, bypassing the
// changelog (spec.md 4.9). Returns the number of rows applied.
func (g *Graph) Pull(scope replicate.Scope) (int, error) {
	remote, err := g.connectRemote()
	if err != nil {
		return 0, err
	}
	puller := replicate.Puller{Local: g.store, Remote: remote, Scope: scope}
	return puller.Pull()
}

// --- bulk import ---

// Import walks scope's filesystem tree and writes every matched file as a
// node named after its basename (internal/scan), stopping at the first
// write error.
func (g *Graph) Import(ctx context.Context, sc scan.Scope) (int, error) {
	w := scan.NewWalker()
	return scan.Import(ctx, w, sc, g.store.Write)
}

// --- diff preview ---

// WritePreview renders a unified diff between name's current content and
// candidate, without writing anything — the write path's dry-run view.
func (g *Graph) WritePreview(name, candidate string, context int) (string, error) {
	before, err := g.store.Cat(name)
	if err != nil {
		before = ""
	}
	return diffutil.Unified(before, candidate, name, context), nil
}
