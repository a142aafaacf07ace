// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package database

import "strings"

// dialect captures the few places DuckDB and MySQL SQL differ for the
// statements this package builds. Both drivers accept ? placeholders.
type dialect struct {
	name         string
	quoteChar    string
	columnsQuery string
}

var duckDialect = dialect{
	name:      "duckdb",
	quoteChar: `"`,
	columnsQuery: `SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ? ORDER BY ordinal_position`,
}

var mysqlDialect = dialect{
	name:      "mysql",
	quoteChar: "`",
	columnsQuery: `SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position`,
}

// quote quotes an identifier. Callers validate identifiers first; doubling
// the quote character keeps it safe regardless.
func (d dialect) quote(ident string) string {
	return d.quoteChar + strings.ReplaceAll(ident, d.quoteChar, d.quoteChar+d.quoteChar) + d.quoteChar
}

func (d dialect) quoteAll(idents []string) []string {
	out := make([]string, len(idents))
	for i, id := range idents {
		out[i] = d.quote(id)
	}
	return out
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
