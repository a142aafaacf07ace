// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package backup

import (
	"fmt"

	"github.com/tomtom215/promptshelf/internal/config"
	"github.com/tomtom215/promptshelf/internal/validation"
)

// Table is a registered table and the columns that identify a row.
type Table struct {
	Name string
	Keys []string
}

// Registry is the ordered set of tables the engine snapshots and restores.
// Order is restore order, so referenced tables must come first.
type Registry struct {
	tables []Table
	index  map[string]int
}

// NewRegistry builds a registry, rejecting empty, invalid or duplicate names.
// A table without keys is identified by its id column.
func NewRegistry(tables ...Table) (*Registry, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("registry needs at least one table")
	}

	r := &Registry{
		tables: make([]Table, 0, len(tables)),
		index:  make(map[string]int, len(tables)),
	}
	for _, t := range tables {
		if !validation.IsTableName(t.Name) {
			return nil, fmt.Errorf("invalid table name %q", t.Name)
		}
		if _, dup := r.index[t.Name]; dup {
			return nil, fmt.Errorf("table %s registered twice", t.Name)
		}
		keys := append([]string(nil), t.Keys...)
		if len(keys) == 0 {
			keys = []string{"id"}
		}
		for _, k := range keys {
			if !validation.IsTableName(k) {
				return nil, fmt.Errorf("invalid key column %q for table %s", k, t.Name)
			}
		}
		r.index[t.Name] = len(r.tables)
		r.tables = append(r.tables, Table{Name: t.Name, Keys: keys})
	}
	return r, nil
}

// RegistryFromConfig builds the registry from backup.tables.
func RegistryFromConfig(cfg *config.BackupConfig) (*Registry, error) {
	specs, err := cfg.TableSpecs()
	if err != nil {
		return nil, err
	}
	tables := make([]Table, len(specs))
	for i, s := range specs {
		tables[i] = Table{Name: s.Name, Keys: s.Keys}
	}
	return NewRegistry(tables...)
}

// MustRegistry is NewRegistry for fixed table lists. It panics on error.
func MustRegistry(tables ...Table) *Registry {
	r, err := NewRegistry(tables...)
	if err != nil {
		panic(err)
	}
	return r
}

// Tables returns the registered tables in order.
func (r *Registry) Tables() []Table {
	out := make([]Table, len(r.tables))
	copy(out, r.tables)
	return out
}

// Names returns the registered table names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tables))
	for i, t := range r.tables {
		names[i] = t.Name
	}
	return names
}

// Lookup returns the registered table called name.
func (r *Registry) Lookup(name string) (Table, bool) {
	i, ok := r.index[name]
	if !ok {
		return Table{}, false
	}
	return r.tables[i], true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Len returns the number of registered tables.
func (r *Registry) Len() int {
	return len(r.tables)
}
