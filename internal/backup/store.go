// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

/*
store.go - Archive Storage

Archives are immutable once written. FileStore publishes a new archive by
writing a hidden temporary file in the backup directory, syncing it, and
hard-linking it to its final name. The link fails when the name is taken,
so two backups within the same second never overwrite each other: the
later one gets ErrArchiveExists.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/promptshelf/internal/logging"
)

// ArchiveExt is the file extension of every archive.
const ArchiveExt = ".zip"

// ArchiveInfo is storage metadata for one archive.
type ArchiveInfo struct {
	File    string
	Bytes   int64
	ModTime time.Time
}

// ArchiveStore persists archives.
type ArchiveStore interface {
	// Create stores data under file. It fails with ErrArchiveExists rather
	// than replace an archive.
	Create(ctx context.Context, file string, data []byte) (ArchiveInfo, error)
	// List returns every archive in no particular order.
	List(ctx context.Context) ([]ArchiveInfo, error)
	// Open returns the archive contents. Unknown files yield
	// ErrArchiveNotFound.
	Open(ctx context.Context, file string) (io.ReadCloser, ArchiveInfo, error)
}

// ValidateFileName rejects anything but a plain archive file name.
func ValidateFileName(file string) error {
	switch {
	case file == "",
		!strings.HasSuffix(file, ArchiveExt),
		strings.HasPrefix(file, "."),
		strings.ContainsAny(file, `/\`),
		strings.Contains(file, ".."),
		strings.ContainsRune(file, 0),
		filepath.Base(file) != file:
		return fmt.Errorf("%w: %q", ErrInvalidFileName, logging.SanitizeValue(file))
	}
	return nil
}

// FileStore keeps archives in a local directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the archive directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Create writes the archive atomically.
func (s *FileStore) Create(_ context.Context, file string, data []byte) (ArchiveInfo, error) {
	if err := ValidateFileName(file); err != nil {
		return ArchiveInfo{}, err
	}
	final := filepath.Join(s.dir, file)

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+strings.TrimSuffix(file, ArchiveExt)+"-*")
	if err != nil {
		return ArchiveInfo{}, fmt.Errorf("failed to create temporary archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logging.Warn().Err(rmErr).Str("path", tmpName).Msg("Failed to remove temporary archive")
		}
	}()

	if err := writeAndSync(tmp, data); err != nil {
		return ArchiveInfo{}, err
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		return ArchiveInfo{}, fmt.Errorf("failed to set archive permissions: %w", err)
	}

	if err := os.Link(tmpName, final); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ArchiveInfo{}, fmt.Errorf("%w: %s", ErrArchiveExists, file)
		}
		return ArchiveInfo{}, fmt.Errorf("failed to publish archive: %w", err)
	}
	syncDir(s.dir)

	fi, err := os.Stat(final)
	if err != nil {
		return ArchiveInfo{}, fmt.Errorf("failed to stat archive: %w", err)
	}
	return ArchiveInfo{File: file, Bytes: fi.Size(), ModTime: fi.ModTime().UTC()}, nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to sync archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	return nil
}

// syncDir makes the new directory entry durable. Not every platform
// supports it, so failures are only logged.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		logging.Debug().Err(err).Str("dir", dir).Msg("Directory sync not supported")
	}
}

// List returns every archive file in the directory. Temporary files and
// anything without the archive extension are skipped.
func (s *FileStore) List(_ context.Context) ([]ArchiveInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	infos := make([]ArchiveInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || ValidateFileName(e.Name()) != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		infos = append(infos, ArchiveInfo{File: e.Name(), Bytes: fi.Size(), ModTime: fi.ModTime().UTC()})
	}
	return infos, nil
}

// Open opens an archive for reading.
func (s *FileStore) Open(_ context.Context, file string) (io.ReadCloser, ArchiveInfo, error) {
	if err := ValidateFileName(file); err != nil {
		return nil, ArchiveInfo{}, err
	}

	f, err := os.Open(filepath.Join(s.dir, file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ArchiveInfo{}, fmt.Errorf("%w: %s", ErrArchiveNotFound, file)
		}
		return nil, ArchiveInfo{}, fmt.Errorf("failed to open archive: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck // Best effort cleanup on error
		return nil, ArchiveInfo{}, fmt.Errorf("failed to stat archive: %w", err)
	}
	if !fi.Mode().IsRegular() {
		f.Close() //nolint:errcheck // Best effort cleanup on error
		return nil, ArchiveInfo{}, fmt.Errorf("%w: %s", ErrArchiveNotFound, file)
	}
	return f, ArchiveInfo{File: file, Bytes: fi.Size(), ModTime: fi.ModTime().UTC()}, nil
}
