// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

// Package backup snapshots the registered tables into versioned ZIP archives
// and restores them under a merge or replace policy.
//
// Backups are all-or-nothing. Restores isolate failures per table: one bad
// table is reported in RestoreResult.Errors while the others are still
// restored. Every backup or restore attempt, including rejected ones,
// writes exactly one audit entry.
//
// Usage:
//
//	engine, err := backup.NewEngine(backup.Options{
//	    Registry: registry,
//	    Data:     db,
//	    Archives: store,
//	    Auditor:  auditLogger,
//	})
//	archive, err := engine.CreateBackup(ctx, admin, "full")
//	outcome, err := engine.Restore(ctx, admin, backup.RestoreRequest{
//	    Archive: upload,
//	    Mode:    "merge",
//	})
package backup

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/logging"
)

// DefaultMaxUploadBytes bounds an uploaded archive.
const DefaultMaxUploadBytes int64 = 256 << 20

// DataStore is the relational store the engine reads and writes.
type DataStore interface {
	TableReader
	TableWriter
}

// Auditor persists audit events before returning.
type Auditor interface {
	Record(ctx context.Context, event *audit.Event) error
}

// Notifier is told about completed operations. Implementations must not
// block for long and handle their own failures.
type Notifier interface {
	BackupCreated(ctx context.Context, admin Admin, archive Archive)
	BackupRestored(ctx context.Context, admin Admin, mode Mode, result RestoreResult)
}

// Admin is the authenticated administrator behind an operation.
type Admin struct {
	ID         string
	Name       string
	Roles      []string
	AuthMethod string
	Source     audit.Source
}

func (a Admin) actor() audit.Actor {
	return audit.ActorFromUser(a.ID, a.Name, a.Roles, a.AuthMethod)
}

// Archive describes a persisted backup.
type Archive struct {
	Name        string    `json:"name"`
	File        string    `json:"file"`
	Type        Type      `json:"type"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	DownloadURL string    `json:"downloadUrl"`
}

// DownloadURL is the API path serving file.
func DownloadURL(file string) string {
	return "/api/v1/backups/" + file + "/download"
}

// Options configures an Engine. Registry, Data and Archives are required.
type Options struct {
	Registry *Registry
	Data     DataStore
	Archives ArchiveStore

	// Catalog defaults to an in-memory catalog.
	Catalog Catalog
	// Auditor may be nil, in which case nothing is audited.
	Auditor  Auditor
	Notifier Notifier
	Codec    *Codec

	MaxUploadBytes int64

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Engine runs backups and restores. Operations are serialized.
type Engine struct {
	mu sync.Mutex

	registry *Registry
	data     DataStore
	archives ArchiveStore
	catalog  Catalog
	auditor  Auditor
	notifier Notifier
	codec    *Codec

	maxUploadBytes int64
	now            func() time.Time
}

// NewEngine validates opts and builds an engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("backup engine requires a table registry")
	}
	if opts.Data == nil {
		return nil, fmt.Errorf("backup engine requires a data store")
	}
	if opts.Archives == nil {
		return nil, fmt.Errorf("backup engine requires an archive store")
	}

	e := &Engine{
		registry:       opts.Registry,
		data:           opts.Data,
		archives:       opts.Archives,
		catalog:        opts.Catalog,
		auditor:        opts.Auditor,
		notifier:       opts.Notifier,
		codec:          opts.Codec,
		maxUploadBytes: opts.MaxUploadBytes,
		now:            opts.Clock,
	}
	if e.catalog == nil {
		e.catalog = NewMemoryCatalog()
	}
	if e.codec == nil {
		e.codec = NewCodec(0)
	}
	if e.maxUploadBytes <= 0 {
		e.maxUploadBytes = DefaultMaxUploadBytes
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Registry returns the engine's table registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// OpenBackup opens an archive for download.
func (e *Engine) OpenBackup(ctx context.Context, file string) (io.ReadCloser, ArchiveInfo, error) {
	return e.archives.Open(ctx, file)
}

func (e *Engine) record(ctx context.Context, event *audit.Event) {
	if e.auditor == nil {
		return
	}
	if err := e.auditor.Record(ctx, event); err != nil {
		logging.CtxComponent(ctx, "backup").Error().Err(err).
			Str("action", event.Action).
			Msg("Failed to write audit entry")
	}
}
