// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package backup

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sampleManifest() *Manifest {
	ts := time.Date(2026, 4, 1, 9, 30, 15, 123456789, time.UTC)
	m := NewManifest(TypeFull, ts)
	m.Tables = map[string][]Row{
		"users": {
			{"id": 1, "name": "ada", "active": true, "score": 1.5, "bio": nil},
			{"id": int64(9007199254740993), "name": "grace", "created_at": ts},
		},
		"prompts": {
			{"id": 7, "tags": []any{"go", 3}, "meta": map[string]any{"views": 10}},
		},
		"empty":        {},
		"not_in_regis": {{"id": "x"}},
	}
	return m
}

func TestCodec_RoundTrip(t *testing.T) {
	m := sampleManifest()

	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := sampleManifest().Normalize()
	if !reflect.DeepEqual(got, want) {
		gotJSON, _ := json.Marshal(got)
		wantJSON, _ := json.Marshal(want)
		t.Fatalf("round trip mismatch\n got: %s\nwant: %s", gotJSON, wantJSON)
	}

	// Integers beyond float64 precision survive.
	if id := got.Tables["users"][1]["id"]; id != json.Number("9007199254740993") {
		t.Errorf("large id = %v", id)
	}
	if rows, ok := got.Tables["empty"]; !ok || rows == nil || len(rows) != 0 {
		t.Errorf("empty table should decode to an empty list, got %#v", rows)
	}
}

func TestCodec_RoundTripNilTables(t *testing.T) {
	m := &Manifest{Timestamp: "2026-01-01T00:00:00Z", Version: ManifestVersion, Type: TypeDataOnly, Tables: map[string][]Row{"users": nil}}
	data, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, m.Normalize()) {
		t.Errorf("got %#v", got)
	}
}

func TestCodec_ContainerFormat(t *testing.T) {
	data, err := Encode(sampleManifest())
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip: %v", err)
	}
	if len(zr.File) != 1 {
		t.Fatalf("archive has %d entries, want 1", len(zr.File))
	}
	f := zr.File[0]
	if f.Name != ManifestEntryName {
		t.Errorf("entry name = %q", f.Name)
	}
	if f.Method != zip.Deflate {
		t.Errorf("entry method = %d, want deflate", f.Method)
	}

	rc, err := f.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	var top map[string]json.RawMessage
	if err := json.NewDecoder(rc).Decode(&top); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"timestamp", "version", "type", "tables"} {
		if _, ok := top[key]; !ok {
			t.Errorf("manifest missing top-level %q", key)
		}
	}
	if len(top) != 4 {
		t.Errorf("manifest has %d top-level fields, want 4", len(top))
	}
}

func TestCodec_DecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    func(t *testing.T) []byte
		codec   *Codec
		wantErr error
	}{
		{
			name:    "not a zip",
			data:    func(*testing.T) []byte { return []byte("definitely not a zip file") },
			wantErr: ErrMalformedArchive,
		},
		{
			name:    "empty input",
			data:    func(*testing.T) []byte { return nil },
			wantErr: ErrMalformedArchive,
		},
		{
			name: "manifest missing",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{"other.json": "{}"})
			},
			wantErr: ErrManifestMissing,
		},
		{
			name: "invalid json",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{ManifestEntryName: "{not json"})
			},
			wantErr: ErrMalformedArchive,
		},
		{
			name: "wrong version",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{ManifestEntryName: `{"timestamp":"x","version":"2.0","type":"full","tables":{}}`})
			},
			wantErr: ErrVersionIncompatible,
		},
		{
			name: "missing version",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{ManifestEntryName: `{"timestamp":"x","type":"full","tables":{}}`})
			},
			wantErr: ErrVersionIncompatible,
		},
		{
			name: "numeric version",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{ManifestEntryName: `{"timestamp":"x","version":1,"type":"full","tables":{}}`})
			},
			wantErr: ErrVersionIncompatible,
		},
		{
			name: "numeric version one point zero",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{ManifestEntryName: `{"timestamp":"x","version":1.0,"type":"full","tables":{}}`})
			},
			wantErr: ErrVersionIncompatible,
		},
		{
			name: "object version",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{ManifestEntryName: `{"timestamp":"x","version":{"major":1},"type":"full","tables":{}}`})
			},
			wantErr: ErrVersionIncompatible,
		},
		{
			name: "null version",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{ManifestEntryName: `{"timestamp":"x","version":null,"type":"full","tables":{}}`})
			},
			wantErr: ErrVersionIncompatible,
		},
		{
			name: "tables has wrong shape",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{ManifestEntryName: `{"version":"1.0","tables":{"users":"nope"}}`})
			},
			wantErr: ErrMalformedArchive,
		},
		{
			name: "manifest too large",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{ManifestEntryName: `{"version":"1.0","tables":{"users":[{"name":"` + strings.Repeat("a", 200) + `"}]}}`})
			},
			codec:   NewCodec(64),
			wantErr: ErrManifestTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.codec
			if c == nil {
				c = NewCodec(0)
			}
			_, err := c.Decode(tt.data(t))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
			}
			if !IsPrecondition(err) {
				t.Errorf("IsPrecondition(%v) = false", err)
			}
		})
	}
}

func TestCodec_IgnoresExtraEntries(t *testing.T) {
	data := buildZip(t, map[string]string{
		"README.txt":      "hello",
		ManifestEntryName: `{"timestamp":"2026-01-01T00:00:00Z","version":"1.0","type":"data-only","tables":{"users":[{"id":1}]}}`,
	})
	m, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if m.RowCount() != 1 || m.Type != TypeDataOnly {
		t.Errorf("unexpected manifest %+v", m)
	}
}

func TestEncode_NilManifest(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Error("expected error for nil manifest")
	}
}

func TestNormalize_Floats(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.5, "1.5"},
		{100, "100"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{1e21, "1e+21"},
	}
	for _, tt := range tests {
		if got := normalizeValue(tt.in); got != json.Number(tt.want) {
			t.Errorf("normalizeValue(%v) = %v, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseTypeAndMode(t *testing.T) {
	if _, err := ParseType("full"); err != nil {
		t.Error(err)
	}
	if _, err := ParseType("data-only"); err != nil {
		t.Error(err)
	}
	if _, err := ParseType("incremental"); !errors.Is(err, ErrInvalidType) {
		t.Errorf("ParseType(incremental) error = %v", err)
	}
	if _, err := ParseMode("merge"); err != nil {
		t.Error(err)
	}
	if _, err := ParseMode("upsert"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode(upsert) error = %v", err)
	}
}
