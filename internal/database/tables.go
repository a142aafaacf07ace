// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/promptshelf/internal/logging"
	"github.com/tomtom215/promptshelf/internal/metrics"
	"github.com/tomtom215/promptshelf/internal/validation"
)

// Row is one table row keyed by column name.
type Row = map[string]any

// column is an introspected table column.
type column struct {
	name string
	kind valueKind
}

// columns returns the table's columns keyed by name. A table that does not
// exist yields ErrUnknownTable.
func (db *DB) columns(ctx context.Context, table string) (map[string]column, error) {
	if !validation.IsTableName(table) {
		return nil, ErrUnknownTable
	}

	rows, err := db.conn.QueryContext(ctx, db.dialect.columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	defer closeWithLog(rows, "rows")

	cols := make(map[string]column)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[name] = column{name: name, kind: kindOf(dataType)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, ErrUnknownTable
	}
	return cols, nil
}

// ReadTable returns every row of table ordered by keys. Values are
// normalized to JSON-friendly Go types (strings instead of byte slices,
// UTC times).
func (db *DB) ReadTable(ctx context.Context, table string, keys []string) (result []Row, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("read", table, time.Since(start), err) }()

	cols, err := db.columns(ctx, table)
	if err != nil {
		return nil, tableErr("read", table, err)
	}

	query := "SELECT * FROM " + db.dialect.quote(table)
	if order := db.orderBy(keys, cols); order != "" {
		query += " ORDER BY " + order
	}

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, tableErr("read", table, err)
	}
	defer closeWithLog(rows, "rows")

	result, err = scanRows(rows)
	if err != nil {
		return nil, tableErr("read", table, err)
	}
	return result, nil
}

// orderBy quotes the key columns that exist in cols.
func (db *DB) orderBy(keys []string, cols map[string]column) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := cols[k]; ok {
			parts = append(parts, db.dialect.quote(k))
		}
	}
	return strings.Join(parts, ", ")
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	result := make([]Row, 0)
	values := make([]any, len(colTypes))
	ptrs := make([]any, len(colTypes))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(colTypes))
		for i, ct := range colTypes {
			row[ct.Name()] = normalizeScanned(values[i], kindOf(ct.DatabaseTypeName()))
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// DeleteAll removes every row of table.
func (db *DB) DeleteAll(ctx context.Context, table string) (deleted int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete", table, time.Since(start), err) }()

	if _, err := db.columns(ctx, table); err != nil {
		return 0, tableErr("delete", table, err)
	}

	res, err := db.conn.ExecContext(ctx, "DELETE FROM "+db.dialect.quote(table))
	if err != nil {
		return 0, tableErr("delete", table, err)
	}
	deleted, err = res.RowsAffected()
	if err != nil {
		// The delete itself succeeded.
		return 0, nil
	}
	return deleted, nil
}

// InsertRows inserts rows into table in a single transaction. Either every
// row is inserted or none is.
func (db *DB) InsertRows(ctx context.Context, table string, rows []Row) (inserted int, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", table, time.Since(start), err) }()

	if len(rows) == 0 {
		return 0, nil
	}

	cols, err := db.columns(ctx, table)
	if err != nil {
		return 0, tableErr("insert", table, err)
	}

	err = db.inTx(ctx, func(tx *sql.Tx) error {
		for i, row := range rows {
			if err := db.insertRow(ctx, tx, table, cols, row); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, tableErr("insert", table, err)
	}
	return len(rows), nil
}

// MergeRows inserts each row whose identity key is not already present.
// Rows already present count as satisfied, so the return value is
// len(rows) on success. The table is merged in one transaction.
func (db *DB) MergeRows(ctx context.Context, table string, keys []string, rows []Row) (satisfied int, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("merge", table, time.Since(start), err) }()

	if len(rows) == 0 {
		return 0, nil
	}
	if len(keys) == 0 {
		return 0, tableErr("merge", table, fmt.Errorf("no identity key configured"))
	}

	cols, err := db.columns(ctx, table)
	if err != nil {
		return 0, tableErr("merge", table, err)
	}
	for _, k := range keys {
		if _, ok := cols[k]; !ok {
			return 0, tableErr("merge", table, fmt.Errorf("%w: key %s", ErrUnknownColumn, k))
		}
	}

	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = db.dialect.quote(k) + " = ?"
	}
	existsQuery := "SELECT 1 FROM " + db.dialect.quote(table) + " WHERE " + strings.Join(conds, " AND ") + " LIMIT 1"

	inserted := 0
	err = db.inTx(ctx, func(tx *sql.Tx) error {
		for i, row := range rows {
			keyArgs := make([]any, len(keys))
			for j, k := range keys {
				v, ok := row[k]
				if !ok || v == nil {
					return fmt.Errorf("row %d: %w %s", i, ErrMissingKey, k)
				}
				cv, err := coerceValue(v, cols[k].kind)
				if err != nil {
					return fmt.Errorf("row %d: column %s: %w", i, k, err)
				}
				keyArgs[j] = cv
			}

			var one int
			switch err := tx.QueryRowContext(ctx, existsQuery, keyArgs...).Scan(&one); {
			case err == nil:
				continue
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("row %d: lookup: %w", i, err)
			}

			if err := db.insertRow(ctx, tx, table, cols, row); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, tableErr("merge", table, err)
	}

	logging.Debug().
		Str("table", table).
		Int("rows", len(rows)).
		Int("inserted", inserted).
		Msg("Merged table")
	return len(rows), nil
}

// insertRow builds an INSERT for the row's own column set, so rows with
// differing shapes are each inserted faithfully.
func (db *DB) insertRow(ctx context.Context, tx *sql.Tx, table string, cols map[string]column, row Row) error {
	names := make([]string, 0, len(row))
	for name := range row {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownColumn, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, len(names))
	for i, name := range names {
		v, err := coerceValue(row[name], cols[name].kind)
		if err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		args[i] = v
	}

	if len(names) == 0 {
		return fmt.Errorf("row has no columns")
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		db.dialect.quote(table),
		strings.Join(db.dialect.quoteAll(names), ", "),
		placeholders(len(names)))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return nil
}

func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Warn().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountRows returns the number of rows in table.
func (db *DB) CountRows(ctx context.Context, table string) (int64, error) {
	if _, err := db.columns(ctx, table); err != nil {
		return 0, tableErr("count", table, err)
	}
	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+db.dialect.quote(table)).Scan(&n); err != nil {
		return 0, tableErr("count", table, err)
	}
	return n, nil
}
