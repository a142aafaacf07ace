// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

/*
engine_backup.go - Backup Creation and Listing

A backup moves through collecting -> packaging -> persisted -> audited.
Any failure ends in failed and is returned at once; there are no partial
backups. Names have second resolution:

	backup-{type}-{YYYYMMDD-HHMMSS}.zip

A second backup of the same type in the same second is rejected with
ErrArchiveExists and the first archive is kept.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/logging"
	"github.com/tomtom215/promptshelf/internal/metrics"
)

// nameTimeLayout is the timestamp part of an archive name.
const nameTimeLayout = "20060102-150405"

// ArchiveName returns the archive name for a backup of type t taken at now.
func ArchiveName(t Type, now time.Time) string {
	return "backup-" + string(t) + "-" + now.UTC().Format(nameTimeLayout)
}

// typeFromFile recovers the backup type from an archive file name.
func typeFromFile(file string) Type {
	name := strings.TrimSuffix(file, ArchiveExt)
	for _, t := range []Type{TypeDataOnly, TypeFull} {
		if strings.HasPrefix(name, "backup-"+string(t)+"-") {
			return t
		}
	}
	return ""
}

// CreateBackup snapshots every registered table into a new archive.
func (e *Engine) CreateBackup(ctx context.Context, admin Admin, backupType string) (archive *Archive, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	log := logging.CtxComponent(ctx, "backup")
	rows := 0
	typeLabel := "invalid"
	defer func() {
		metrics.RecordBackup(typeLabel, rows, time.Since(start), err)
	}()

	t, err := ParseType(backupType)
	if err != nil {
		e.recordBackup(ctx, admin, backupType, nil, err)
		return nil, err
	}

	typeLabel = string(t)

	now := e.now().UTC()
	name := ArchiveName(t, now)
	file := name + ArchiveExt

	log.Debug().Str("state", "collecting").Str("name", name).Msg("Backup started")
	tables, err := snapshot(ctx, e.data, e.registry)
	if err != nil {
		err = fmt.Errorf("backup failed: %w", err)
		e.recordBackup(ctx, admin, backupType, &Archive{Name: name, File: file, Type: t}, err)
		return nil, err
	}

	m := NewManifest(t, now)
	m.Tables = tables
	rows = m.RowCount()

	log.Debug().Str("state", "packaging").Int("rows", rows).Msg("Encoding archive")
	data, err := e.codec.Encode(m)
	if err != nil {
		err = fmt.Errorf("backup failed: %w", err)
		e.recordBackup(ctx, admin, backupType, &Archive{Name: name, File: file, Type: t, Size: rows}, err)
		return nil, err
	}

	info, err := e.archives.Create(ctx, file, data)
	if err != nil {
		err = fmt.Errorf("backup failed: %w", err)
		e.recordBackup(ctx, admin, backupType, &Archive{Name: name, File: file, Type: t, Size: rows}, err)
		return nil, err
	}
	log.Debug().Str("state", "persisted").Int64("bytes", info.Bytes).Msg("Archive stored")

	archive = &Archive{
		Name:        name,
		File:        file,
		Type:        t,
		Size:        rows,
		CreatedAt:   info.ModTime,
		DownloadURL: DownloadURL(file),
	}

	// The catalog is an index; listing falls back to reading the archive.
	if catErr := e.catalog.Put(ctx, CatalogEntry{File: file, Type: t, Rows: rows, CreatedAt: info.ModTime}); catErr != nil {
		log.Warn().Err(catErr).Str("file", file).Msg("Failed to catalog backup archive")
	}

	e.recordBackup(ctx, admin, backupType, archive, nil)
	log.Debug().Str("state", "audited").Msg("Backup complete")

	logging.Ctx(ctx).Info().
		Str("name", name).
		Str("type", string(t)).
		Int("rows", rows).
		Int64("bytes", info.Bytes).
		Dur("duration", time.Since(start)).
		Msg("Backup created")

	if e.notifier != nil {
		e.notifier.BackupCreated(ctx, admin, *archive)
	}
	return archive, nil
}

func (e *Engine) recordBackup(ctx context.Context, admin Admin, backupType string, archive *Archive, err error) {
	meta := map[string]any{
		"type":   backupType,
		"tables": e.registry.Names(),
	}
	event := &audit.Event{
		Type:     audit.EventTypeBackupCreate,
		Severity: audit.SeverityInfo,
		Outcome:  audit.OutcomeSuccess,
		Actor:    admin.actor(),
		Source:   admin.Source,
		Action:   string(audit.EventTypeBackupCreate),
	}
	if archive != nil {
		meta["name"] = archive.Name
		meta["size"] = archive.Size
		event.Target = &audit.Target{ID: archive.File, Type: "archive", Name: archive.Name}
	}

	if err != nil {
		meta["error"] = err.Error()
		event.Severity = audit.SeverityError
		event.Outcome = audit.OutcomeFailure
		event.Description = "Backup failed: " + err.Error()
		logging.CtxComponent(ctx, "backup").Debug().Str("state", "failed").Err(err).Msg("Backup failed")
	} else {
		event.Description = fmt.Sprintf("Created %s backup %s with %d rows", archive.Type, archive.Name, archive.Size)
	}

	event.Metadata = audit.MustJSON(meta)
	e.record(ctx, event)
}

// ListBackups returns every stored archive, newest first. Archives missing
// from the catalog are read once to learn their type and size and are then
// cataloged. Unreadable archives are listed with size 0.
func (e *Engine) ListBackups(ctx context.Context) ([]Archive, error) {
	infos, err := e.archives.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	out := make([]Archive, 0, len(infos))
	for _, info := range infos {
		a := Archive{
			Name:        strings.TrimSuffix(info.File, ArchiveExt),
			File:        info.File,
			Type:        typeFromFile(info.File),
			CreatedAt:   info.ModTime,
			DownloadURL: DownloadURL(info.File),
		}

		entry, err := e.catalog.Get(ctx, info.File)
		if err != nil {
			logging.Warn().Err(err).Str("file", info.File).Msg("Failed to read backup catalog")
		}
		if entry == nil {
			entry = e.inspect(ctx, info)
		}
		if entry != nil {
			a.Size = entry.Rows
			if entry.Type != "" {
				a.Type = entry.Type
			}
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// inspect decodes an uncataloged archive and catalogs it. It returns nil
// when the archive cannot be read.
func (e *Engine) inspect(ctx context.Context, info ArchiveInfo) *CatalogEntry {
	log := logging.CtxComponent(ctx, "backup").With().Str("file", info.File).Logger()

	rc, _, err := e.archives.Open(ctx, info.File)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open uncataloged archive")
		return nil
	}
	defer rc.Close()

	data, err := readLimited(rc, e.maxUploadBytes)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read uncataloged archive")
		return nil
	}
	m, err := e.codec.Decode(data)
	if err != nil {
		log.Warn().Err(err).Msg("Uncataloged archive is unreadable")
		return nil
	}

	entry := CatalogEntry{File: info.File, Type: m.Type, Rows: m.RowCount(), CreatedAt: info.ModTime}
	if err := e.catalog.Put(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("Failed to catalog archive")
	}
	return &entry
}

// bufferedArchive is satisfied by *bytes.Buffer. Its contents are used in
// place rather than copied.
type bufferedArchive interface {
	Bytes() []byte
}

// readLimited reads r fully, failing with ErrUploadTooLarge past max bytes.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if b, ok := r.(bufferedArchive); ok {
		data := b.Bytes()
		if int64(len(data)) > max {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrUploadTooLarge, max)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrUploadTooLarge, max)
	}
	return data, nil
}
