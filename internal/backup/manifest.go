// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package backup

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ManifestVersion is the only manifest format this engine reads and writes.
const ManifestVersion = "1.0"

// Type is the kind of backup.
type Type string

const (
	// TypeFull is meant to also capture non-tabular assets. Only the tabular
	// part is implemented, so it currently holds the same data as
	// TypeDataOnly.
	TypeFull Type = "full"

	// TypeDataOnly captures the registered tables.
	TypeDataOnly Type = "data-only"
)

// ParseType validates a backup type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeFull, TypeDataOnly:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// Mode is the restore conflict policy.
type Mode string

const (
	// ModeMerge inserts rows whose identity key is absent and leaves
	// existing rows untouched.
	ModeMerge Mode = "merge"

	// ModeReplace empties each table before inserting the archived rows.
	ModeReplace Mode = "replace"
)

// ParseMode validates a restore mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeMerge, ModeReplace:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Row is one table row keyed by column name.
type Row = map[string]any

// Manifest is the logical content of one backup.
type Manifest struct {
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version"`
	Type      Type             `json:"type"`
	Tables    map[string][]Row `json:"tables"`
}

// NewManifest returns an empty manifest stamped with now in UTC.
func NewManifest(t Type, now time.Time) *Manifest {
	return &Manifest{
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Version:   ManifestVersion,
		Type:      t,
		Tables:    make(map[string][]Row),
	}
}

// RowCount returns the total number of rows across all tables.
func (m *Manifest) RowCount() int {
	n := 0
	for _, rows := range m.Tables {
		n += len(rows)
	}
	return n
}

// Normalize rewrites the manifest into the shape Decode produces: numbers
// become json.Number, times become RFC 3339 strings, nil row lists become
// empty ones. A manifest built in code compares equal to its decoded
// archive after Normalize.
func (m *Manifest) Normalize() *Manifest {
	if m.Tables == nil {
		m.Tables = make(map[string][]Row)
	}
	for name, rows := range m.Tables {
		if rows == nil {
			m.Tables[name] = []Row{}
			continue
		}
		for i, row := range rows {
			if row == nil {
				continue
			}
			normalized := make(Row, len(row))
			for k, v := range row {
				normalized[k] = normalizeValue(v)
			}
			rows[i] = normalized
		}
	}
	return m
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return json.Number(strconv.FormatInt(int64(x), 10))
	case int8:
		return json.Number(strconv.FormatInt(int64(x), 10))
	case int16:
		return json.Number(strconv.FormatInt(int64(x), 10))
	case int32:
		return json.Number(strconv.FormatInt(int64(x), 10))
	case int64:
		return json.Number(strconv.FormatInt(x, 10))
	case uint:
		return json.Number(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return json.Number(strconv.FormatUint(uint64(x), 10))
	case uint16:
		return json.Number(strconv.FormatUint(uint64(x), 10))
	case uint32:
		return json.Number(strconv.FormatUint(uint64(x), 10))
	case uint64:
		return json.Number(strconv.FormatUint(x, 10))
	case float32:
		return json.Number(formatFloat(float64(x), 32))
	case float64:
		return json.Number(formatFloat(x, 64))
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// formatFloat matches the JSON encoder's float formatting.
func formatFloat(f float64, bits int) string {
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 {
		if bits == 64 && (abs < 1e-6 || abs >= 1e21) || bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			format = 'e'
		}
	}
	s := strconv.FormatFloat(f, format, -1, bits)
	if format == 'e' {
		// clean up e-09 to e-9
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
	}
	return s
}

// tableNames returns the manifest's table names, sorted.
func (m *Manifest) tableNames() []string {
	names := make([]string, 0, len(m.Tables))
	for name := range m.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
