// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package database

import (
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/promptshelf/internal/logging"
)

var (
	// ErrUnknownTable means the table does not exist in the store or its
	// name is not a valid identifier.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn means a row carries a column the table does not have.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrMissingKey means a merged row lacks one of the table's key columns.
	ErrMissingKey = errors.New("row is missing identity key column")
)

// TableError ties a failure to the operation and table it happened on.
type TableError struct {
	Op    string // read, delete, insert, merge
	Table string
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func tableErr(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &TableError{Op: op, Table: table, Err: err}
}

// closeWithLog closes a resource and logs any error
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource on an error path where Close errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
