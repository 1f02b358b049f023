// Package schemacache holds an in-memory snapshot of the database
// catalog. Writers replace the whole snapshot atomically; readers pin
// one snapshot for the duration of a statement's analysis and never
// mutate it.
package schemacache

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ObjectKey addresses a catalog object by schema and name.
type ObjectKey struct {
	Schema string
	Name   string
}

type Column struct {
	Name    string
	Ordinal int
	Type    string
	NotNull bool
	Default *string
}

type Table struct {
	Schema     string
	Name       string
	RLSEnabled bool
	Columns    []Column
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

type Index struct {
	Schema  string
	Table   string
	Name    string
	Unique  bool
	Primary bool
}

type Function struct {
	Schema  string
	Name    string
	Args    string
	Returns string
}

type Trigger struct {
	Schema string
	Table  string
	Name   string
}

type Extension struct {
	Name    string
	Version string
}

type Policy struct {
	Schema string
	Table  string
	Name   string
}

type Role struct {
	Name     string
	Super    bool
	CanLogin bool
}

type TypeDef struct {
	Schema string
	Name   string
	Kind   string // base, enum, domain, composite
}

// Snapshot is one consistent view of the catalog.
type Snapshot struct {
	Schemas    []string
	Tables     map[ObjectKey]*Table
	Indexes    []Index
	Functions  []Function
	Triggers   []Trigger
	Extensions []Extension
	Policies   []Policy
	Roles      []Role
	Types      []TypeDef
	LoadedAt   time.Time
}

// Table looks up a table; an empty schema defaults to "public".
func (s *Snapshot) Table(schema, name string) *Table {
	if s == nil {
		return nil
	}
	if schema == "" {
		schema = "public"
	}
	return s.Tables[ObjectKey{Schema: schema, Name: name}]
}

// Cache is the refreshable holder the workspace hands to analyzers.
// Connection settings are passed per Refresh, so a settings update
// never has to tear the cache down.
type Cache struct {
	snap   atomic.Pointer[Snapshot]
	logger logrus.FieldLogger
}

func New(logger logrus.FieldLogger) *Cache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Cache{logger: logger}
}

// Snapshot returns the current snapshot, or nil when the catalog has
// never been loaded (no connection configured, or the load failed).
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Publish atomically replaces the snapshot. Exposed so tests and the
// workspace can install synthetic snapshots.
func (c *Cache) Publish(s *Snapshot) {
	c.snap.Store(s)
}
