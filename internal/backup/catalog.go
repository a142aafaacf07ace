// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// catalogKeyPrefix namespaces archive records in the Badger keyspace.
const catalogKeyPrefix = "backup:archive:"

// CatalogEntry is what the engine remembers about an archive it wrote, so
// listing does not have to decode every archive.
type CatalogEntry struct {
	File      string    `json:"file"`
	Type      Type      `json:"type"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// Catalog stores CatalogEntry records by archive file name.
type Catalog interface {
	Put(ctx context.Context, entry CatalogEntry) error
	// Get returns nil, nil when the file is not cataloged.
	Get(ctx context.Context, file string) (*CatalogEntry, error)
}

// BadgerCatalog implements Catalog on BadgerDB.
type BadgerCatalog struct {
	db     *badger.DB
	ownsDB bool
}

// OpenBadgerCatalog opens (creating if needed) a catalog at path.
func OpenBadgerCatalog(path string) (*BadgerCatalog, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for backup catalog: %w", err)
	}
	return &BadgerCatalog{db: db, ownsDB: true}, nil
}

// NewBadgerCatalog uses an already open database. Close leaves it open.
func NewBadgerCatalog(db *badger.DB) *BadgerCatalog {
	return &BadgerCatalog{db: db}
}

// Put records entry, replacing any previous record for the same file.
func (c *BadgerCatalog) Put(_ context.Context, entry CatalogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal catalog entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(catalogKeyPrefix+entry.File), data)
	})
}

// Get loads the record for file.
func (c *BadgerCatalog) Get(_ context.Context, file string) (*CatalogEntry, error) {
	var (
		entry CatalogEntry
		found bool
	)
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(catalogKeyPrefix + file))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load catalog entry %s: %w", file, err)
	}
	if !found {
		return nil, nil
	}
	return &entry, nil
}

// Close closes the database if the catalog opened it.
func (c *BadgerCatalog) Close() error {
	if c.ownsDB && c.db != nil {
		return c.db.Close()
	}
	return nil
}

// MemoryCatalog implements Catalog in memory.
type MemoryCatalog struct {
	mu      sync.RWMutex
	entries map[string]CatalogEntry
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{entries: make(map[string]CatalogEntry)}
}

func (c *MemoryCatalog) Put(_ context.Context, entry CatalogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.File] = entry
	return nil
}

func (c *MemoryCatalog) Get(_ context.Context, file string) (*CatalogEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[file]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}
