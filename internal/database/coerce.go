// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package database

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
	kindJSON
)

// kindOf classifies a DuckDB or MySQL type name.
func kindOf(dataType string) valueKind {
	t := strings.ToUpper(strings.TrimSpace(dataType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}

	switch {
	case t == "BOOLEAN" || t == "BOOL":
		return kindBool
	case strings.Contains(t, "INT"):
		// INTEGER, BIGINT, SMALLINT, TINYINT, HUGEINT, UBIGINT, MEDIUMINT ...
		return kindInt
	case t == "DOUBLE" || t == "FLOAT" || t == "REAL" || t == "DECIMAL" || t == "NUMERIC":
		return kindFloat
	case strings.HasPrefix(t, "TIMESTAMP") || t == "DATETIME" || t == "DATE":
		return kindTime
	case t == "JSON":
		return kindJSON
	default:
		return kindString
	}
}

// normalizeScanned converts a scanned driver value to a type that encodes
// to JSON without loss of meaning.
func normalizeScanned(v any, kind valueKind) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		s := string(x)
		switch kind {
		case kindInt:
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		case kindFloat:
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		case kindJSON:
			var decoded any
			if err := json.Unmarshal(x, &decoded); err == nil {
				return decoded
			}
		}
		return s
	case time.Time:
		return x.UTC()
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case int8:
		if kind == kindBool {
			return x != 0
		}
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// coerceValue converts a decoded manifest value to the Go type the column
// expects before it is bound as a statement argument.
func coerceValue(v any, kind valueKind) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		return coerceNumber(x, kind)
	case float64:
		return coerceNumber(json.Number(strconv.FormatFloat(x, 'f', -1, 64)), kind)
	case int:
		return coerceNumber(json.Number(strconv.Itoa(x)), kind)
	case int64:
		return coerceNumber(json.Number(strconv.FormatInt(x, 10)), kind)
	case string:
		return coerceString(x, kind)
	case bool:
		switch kind {
		case kindInt:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case kindString:
			return strconv.FormatBool(x), nil
		default:
			return x, nil
		}
	case time.Time:
		return x, nil
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("encode nested value: %w", err)
		}
		return string(b), nil
	default:
		return v, nil
	}
}

func coerceNumber(n json.Number, kind valueKind) (any, error) {
	switch kind {
	case kindInt:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("%s is not an integer", n)
		}
		// float64(math.MaxInt64) rounds up to 2^63.
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("%s is out of range for a 64-bit integer", n)
		}
		return int64(f), nil
	case kindFloat:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s is not a number: %w", n, err)
		}
		return f, nil
	case kindBool:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s is not a boolean: %w", n, err)
		}
		return f != 0, nil
	case kindTime:
		// Unix seconds.
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s is not a unix timestamp: %w", n, err)
		}
		return time.Unix(i, 0).UTC(), nil
	default:
		return n.String(), nil
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceString(s string, kind valueKind) (any, error) {
	switch kind {
	case kindTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("cannot parse %q as a timestamp", s)
	case kindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as a boolean", s)
		}
		return b, nil
	case kindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as an integer", s)
		}
		return i, nil
	case kindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as a number", s)
		}
		return f, nil
	default:
		return s, nil
	}
}
