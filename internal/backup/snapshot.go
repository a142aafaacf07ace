// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package backup

import (
	"context"
	"fmt"

	"github.com/tomtom215/promptshelf/internal/logging"
)

// TableReader reads whole tables. *database.DB implements it.
type TableReader interface {
	// ReadTable returns every row of table ordered by keys.
	ReadTable(ctx context.Context, table string, keys []string) ([]Row, error)
}

// snapshot reads every registered table in registry order. The first read
// error aborts the snapshot.
func snapshot(ctx context.Context, reader TableReader, registry *Registry) (map[string][]Row, error) {
	tables := make(map[string][]Row, registry.Len())
	for _, t := range registry.Tables() {
		rows, err := reader.ReadTable(ctx, t.Name, t.Keys)
		if err != nil {
			return nil, fmt.Errorf("snapshot table %s: %w", t.Name, err)
		}
		if rows == nil {
			rows = []Row{}
		}
		tables[t.Name] = rows

		logging.CtxComponent(ctx, "backup").Debug().
			Str("table", t.Name).
			Int("rows", len(rows)).
			Msg("Snapshot table read")
	}
	return tables, nil
}
