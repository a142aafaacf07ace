// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package backup

import (
	"context"
	"fmt"

	"github.com/tomtom215/promptshelf/internal/logging"
	"github.com/tomtom215/promptshelf/internal/metrics"
)

// TableWriter applies rows to a table. *database.DB implements it. Each
// call is expected to be atomic on its own.
type TableWriter interface {
	DeleteAll(ctx context.Context, table string) (int64, error)
	InsertRows(ctx context.Context, table string, rows []Row) (int, error)
	MergeRows(ctx context.Context, table string, keys []string, rows []Row) (int, error)
}

// Phase is the step of a table restore that failed.
type Phase string

const (
	PhaseDelete  Phase = "delete"
	PhaseInsert  Phase = "insert"
	PhaseUnknown Phase = "unknown"
)

// TableCount is a table that was restored and how many rows it received.
type TableCount struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// TableFailure is a table that failed to restore.
type TableFailure struct {
	Table string `json:"table"`
	Error string `json:"error"`
	Phase Phase  `json:"phase"`
}

// RestoreResult is the per-table outcome of one restore, in registry order.
type RestoreResult struct {
	RestoredTables []TableCount   `json:"restoredTables"`
	Errors         []TableFailure `json:"errors"`
}

// OK reports whether every selected table was restored.
func (r *RestoreResult) OK() bool {
	return len(r.Errors) == 0
}

func newRestoreResult() RestoreResult {
	return RestoreResult{
		RestoredTables: []TableCount{},
		Errors:         []TableFailure{},
	}
}

// restoreWriter applies a manifest table by table. A failing table never
// stops the tables after it.
type restoreWriter struct {
	store    TableWriter
	registry *Registry
}

// selectTables returns the registered tables to restore, in registry order.
// With no subset every registered table present in the manifest is chosen.
// Subset names must be registered.
func (w *restoreWriter) selectTables(ctx context.Context, m *Manifest, subset []string) ([]Table, error) {
	wanted := make(map[string]bool, len(subset))
	for _, name := range subset {
		if !w.registry.Has(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
		}
		wanted[name] = true
	}

	log := logging.CtxComponent(ctx, "backup")
	for _, name := range m.tableNames() {
		if !w.registry.Has(name) {
			log.Debug().Str("table", name).Msg("Ignoring unregistered table in manifest")
		}
	}

	selected := make([]Table, 0, w.registry.Len())
	for _, t := range w.registry.Tables() {
		if len(wanted) > 0 && !wanted[t.Name] {
			continue
		}
		if _, ok := m.Tables[t.Name]; !ok {
			if wanted[t.Name] {
				log.Warn().Str("table", t.Name).Msg("Requested table is not in the archive, skipping")
			}
			continue
		}
		selected = append(selected, t)
	}
	return selected, nil
}

// apply restores the selected tables under mode.
func (w *restoreWriter) apply(ctx context.Context, m *Manifest, mode Mode, tables []Table) RestoreResult {
	result := newRestoreResult()
	log := logging.CtxComponent(ctx, "backup")

	for _, t := range tables {
		count, phase, err := w.restoreTable(ctx, mode, t, m.Tables[t.Name])
		if err != nil {
			result.Errors = append(result.Errors, TableFailure{
				Table: t.Name,
				Error: err.Error(),
				Phase: phase,
			})
			metrics.RecordRestoreTable(string(mode), string(phase))
			log.Warn().Err(err).
				Str("table", t.Name).
				Str("phase", string(phase)).
				Msg("Table restore failed")
			continue
		}

		result.RestoredTables = append(result.RestoredTables, TableCount{Table: t.Name, Count: count})
		metrics.RecordRestoreTable(string(mode), "")
		log.Debug().
			Str("table", t.Name).
			Int("count", count).
			Msg("Table restored")
	}
	return result
}

// restoreTable runs one table. A panic is reported as PhaseUnknown.
func (w *restoreWriter) restoreTable(ctx context.Context, mode Mode, t Table, rows []Row) (count int, phase Phase, err error) {
	defer func() {
		if r := recover(); r != nil {
			count, phase, err = 0, PhaseUnknown, fmt.Errorf("panic: %v", r)
		}
	}()

	switch mode {
	case ModeReplace:
		if _, err := w.store.DeleteAll(ctx, t.Name); err != nil {
			return 0, PhaseDelete, err
		}
		n, err := w.store.InsertRows(ctx, t.Name, rows)
		if err != nil {
			return 0, PhaseInsert, err
		}
		return n, "", nil

	case ModeMerge:
		n, err := w.store.MergeRows(ctx, t.Name, t.Keys, rows)
		if err != nil {
			return 0, PhaseInsert, err
		}
		return n, "", nil

	default:
		return 0, PhaseUnknown, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}
