// Package models holds the gorm structs for kaybee's fixed-schema tables.
//
// The typed, per-node metadata lives in tables that aren't known at compile
// time (see internal/schema); everything that IS fixed — the node index, the
// edge table, the type registry, the changelog, and the open-database meta
// record — is modeled here the ordinary gorm way.
package models

import "time"

// NodeIndex is the nodes(name, type) table from the spec's persisted schema.
type NodeIndex struct {
	Name string `gorm:"primaryKey;column:name"`
	Type string `gorm:"column:type;not null"`
}

func (NodeIndex) TableName() string { return "nodes" }

// Edge is a single unresolved wikilink: source name -> raw target token.
// No uniqueness constraint; the write path itself forbids duplicates.
type Edge struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	Source string `gorm:"column:source;not null;index:idx_edges_source"`
	Target string `gorm:"column:target;not null;index:idx_edges_target"`
}

func (Edge) TableName() string { return "edges" }

// TypeRecord is a row in the types(name) registry table.
type TypeRecord struct {
	Name string `gorm:"primaryKey;column:name"`
}

func (TypeRecord) TableName() string { return "types" }

// TypeField backs the unified layout's _type_fields(type, field, ord) table.
type TypeField struct {
	Type  string `gorm:"column:type;primaryKey"`
	Field string `gorm:"column:field;primaryKey"`
	Ord   int    `gorm:"column:ord"`
}

func (TypeField) TableName() string { return "_type_fields" }

// ChangelogEntry is one append-only changelog row. Seq is assigned by
// autoincrement so it is strictly increasing across the life of the file.
type ChangelogEntry struct {
	Seq     int64     `gorm:"primaryKey;autoIncrement;column:seq"`
	Ts      time.Time `gorm:"column:ts;autoCreateTime"`
	Op      string    `gorm:"column:op;not null"`
	Subject string    `gorm:"column:subject;not null"`
	Payload string    `gorm:"column:payload"`
}

func (ChangelogEntry) TableName() string { return "changelog" }

// MetaRecord is a single key/value row in the meta(k,v) table. It records the
// database's storage layout and schema version at creation time; opening a
// database with a mismatched layout is a LayoutMismatch error.
type MetaRecord struct {
	K string `gorm:"column:k;primaryKey"`
	V string `gorm:"column:v"`
}

func (MetaRecord) TableName() string { return "meta" }

const (
	MetaKeyLayout        = "layout"
	MetaKeySchemaVersion = "schema_version"

	SchemaVersion = "1"
)

// RemoteNode is one row of a replication target: a node's full raw content,
// tagged with the scope (e.g. {team: X, user: Y}) that pushed it, per
// spec.md 4.9. ScopeKey is the scope mapping's canonical sorted-and-joined
// form, used as half of the row's natural key so push is an idempotent
// upsert and pull can select by scope cheaply.
type RemoteNode struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	ScopeKey string `gorm:"column:scope_key;not null;uniqueIndex:idx_remote_scope_name"`
	Name     string `gorm:"column:name;not null;uniqueIndex:idx_remote_scope_name"`
	Type     string `gorm:"column:type"`
	Content  string `gorm:"column:content"`
}

func (RemoteNode) TableName() string { return "remote_nodes" }
