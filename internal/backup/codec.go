// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

/*
codec.go - Archive Encoding

An archive is a ZIP container whose only required entry is manifest.json:

	backup-{type}-{YYYYMMDD-HHMMSS}.zip
	└── manifest.json   {"timestamp", "version", "type", "tables"}

Entries are compressed with Deflate at the highest level. Other entries are
ignored on read. Numbers are decoded as json.Number so integer ids survive
the trip through JSON without float rounding.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// ManifestEntryName is the archive entry holding the manifest.
const ManifestEntryName = "manifest.json"

// DefaultMaxManifestBytes bounds the uncompressed manifest size.
const DefaultMaxManifestBytes int64 = 1 << 30

// Codec encodes manifests into archives and back.
type Codec struct {
	// MaxManifestBytes is the largest uncompressed manifest Decode accepts.
	MaxManifestBytes int64
}

// NewCodec returns a codec with the given manifest limit, or the default
// when max is not positive.
func NewCodec(max int64) *Codec {
	if max <= 0 {
		max = DefaultMaxManifestBytes
	}
	return &Codec{MaxManifestBytes: max}
}

var defaultCodec = NewCodec(0)

// Encode serializes m into a new archive using the default codec.
func Encode(m *Manifest) ([]byte, error) {
	return defaultCodec.Encode(m)
}

// Decode parses an archive using the default codec.
func Decode(data []byte) (*Manifest, error) {
	return defaultCodec.Decode(data)
}

// Encode serializes m into a new archive.
func (c *Codec) Encode(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodeTo(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the archive for m to w.
func (c *Codec) EncodeTo(w io.Writer, m *Manifest) (err error) {
	if m == nil {
		return fmt.Errorf("manifest cannot be nil")
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	defer func() {
		if closeErr := zw.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("finalize archive: %w", closeErr)
		}
	}()

	modified := time.Now().UTC()
	if ts, parseErr := time.Parse(time.RFC3339Nano, m.Timestamp); parseErr == nil {
		modified = ts
	}

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     ManifestEntryName,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("create manifest entry: %w", err)
	}

	out := *m
	if out.Tables == nil {
		out.Tables = map[string][]Row{}
	}

	enc := json.NewEncoder(entry)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}

// Decode parses an archive held in memory.
func (c *Codec) Decode(data []byte) (*Manifest, error) {
	return c.DecodeReader(bytes.NewReader(data), int64(len(data)))
}

// DecodeReader parses the archive in r. The manifest version is checked
// before the manifest is returned.
func (c *Codec) DecodeReader(r io.ReaderAt, size int64) (*Manifest, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == ManifestEntryName {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, ErrManifestMissing
	}

	limit := c.MaxManifestBytes
	if limit <= 0 {
		limit = DefaultMaxManifestBytes
	}
	if entry.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrManifestTooLarge, entry.UncompressedSize64, limit)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMalformedArchive, ManifestEntryName, err)
	}
	defer rc.Close()

	// The header size is not trusted.
	raw, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedArchive, ManifestEntryName, err)
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrManifestTooLarge, limit)
	}

	return parseManifest(raw)
}

func parseManifest(raw []byte) (*Manifest, error) {
	var header struct {
		Version json.RawMessage `json:"version"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	if err := checkVersion(header.Version); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: field %s: %v", ErrMalformedArchive, typeErr.Field, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	if m.Tables == nil {
		m.Tables = make(map[string][]Row)
	}
	for name, rows := range m.Tables {
		if rows == nil {
			m.Tables[name] = []Row{}
		}
	}
	return &m, nil
}

// checkVersion accepts only the JSON string ManifestVersion. Values of any
// other JSON type are reported as incompatible.
func checkVersion(v json.RawMessage) error {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return fmt.Errorf("%w: version missing", ErrVersionIncompatible)
	}
	var version string
	if err := json.Unmarshal(v, &version); err != nil || version != ManifestVersion {
		return fmt.Errorf("%w: got %s, want %q", ErrVersionIncompatible, truncateVersion(v), ManifestVersion)
	}
	return nil
}

func truncateVersion(v []byte) string {
	const max = 32
	if len(v) > max {
		return string(v[:max]) + "..."
	}
	return string(v)
}
