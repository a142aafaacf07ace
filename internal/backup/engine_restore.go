// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

/*
engine_restore.go - Restore Orchestration

A restore moves through extracting -> validating -> restoring -> reporting
-> audited. Extraction and validation failures reject the whole request
before any table is touched. After that, table failures are collected in
the result and the restore keeps going, so a partially failed restore is
still a successful call with Warnings set.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/logging"
	"github.com/tomtom215/promptshelf/internal/metrics"
)

// RestoreRequest is one restore invocation.
type RestoreRequest struct {
	// Archive is read up to the engine's upload limit. A *bytes.Buffer is
	// decoded in place.
	Archive io.Reader
	// Filename is the client's name for the upload, recorded for audit.
	Filename string
	// Mode is merge or replace.
	Mode string
	// Tables optionally narrows the restore. Names must be registered.
	Tables []string
}

// RestoreOutcome is returned for every restore that got past validation.
type RestoreOutcome struct {
	Result RestoreResult
	// Warnings is set when at least one table failed.
	Warnings bool
	// ManifestTimestamp and ManifestType describe the restored archive.
	ManifestTimestamp string
	ManifestType      Type
}

// Restore applies an uploaded archive. Precondition failures are returned
// as errors matching IsPrecondition; table failures are in the outcome.
func (e *Engine) Restore(ctx context.Context, admin Admin, req RestoreRequest) (outcome *RestoreOutcome, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	log := logging.CtxComponent(ctx, "backup")
	subset := normalizeSubset(req.Tables)

	var (
		mode     Mode
		manifest *Manifest
	)
	defer func() {
		e.recordRestore(ctx, admin, req, mode, subset, manifest, outcome, err)
		metrics.RecordRestore(modeLabel(mode), restoreOutcomeLabel(outcome, err), time.Since(start))
		if err == nil && e.notifier != nil {
			e.notifier.BackupRestored(ctx, admin, mode, outcome.Result)
		}
	}()

	mode, err = ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if req.Archive == nil {
		return nil, fmt.Errorf("%w: no archive supplied", ErrMalformedArchive)
	}

	log.Debug().Str("state", "extracting").Str("mode", string(mode)).Msg("Restore started")
	data, err := readLimited(req.Archive, e.maxUploadBytes)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("state", "validating").Int("bytes", len(data)).Msg("Decoding archive")
	manifest, err = e.codec.Decode(data)
	if err != nil {
		return nil, err
	}

	writer := &restoreWriter{store: e.data, registry: e.registry}
	tables, err := writer.selectTables(ctx, manifest, subset)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("state", "restoring").Int("tables", len(tables)).Msg("Applying archive")
	result := writer.apply(ctx, manifest, mode, tables)

	log.Debug().Str("state", "reporting").
		Int("restored", len(result.RestoredTables)).
		Int("failed", len(result.Errors)).
		Msg("Restore finished")

	outcome = &RestoreOutcome{
		Result:            result,
		Warnings:          !result.OK(),
		ManifestTimestamp: manifest.Timestamp,
		ManifestType:      manifest.Type,
	}

	ev := logging.Ctx(ctx).Info()
	if outcome.Warnings {
		ev = logging.Ctx(ctx).Warn()
	}
	ev.Str("mode", string(mode)).
		Int("restored", len(result.RestoredTables)).
		Int("failed", len(result.Errors)).
		Dur("duration", time.Since(start)).
		Msg("Restore completed")
	return outcome, nil
}

// normalizeSubset trims names, splits comma lists and drops duplicates.
func normalizeSubset(tables []string) []string {
	out := make([]string, 0, len(tables))
	seen := make(map[string]bool, len(tables))
	for _, raw := range tables {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func modeLabel(m Mode) string {
	if m == "" {
		return "invalid"
	}
	return string(m)
}

func restoreOutcomeLabel(outcome *RestoreOutcome, err error) string {
	switch {
	case err != nil && IsPrecondition(err):
		return "rejected"
	case err != nil:
		return "failed"
	case outcome.Warnings:
		return "partial"
	default:
		return "success"
	}
}

func (e *Engine) recordRestore(ctx context.Context, admin Admin, req RestoreRequest, mode Mode, subset []string, m *Manifest, outcome *RestoreOutcome, err error) {
	meta := map[string]any{
		"mode":            logging.SanitizeValue(req.Mode),
		"requestedTables": subset,
	}
	if req.Filename != "" {
		meta["archive"] = logging.SanitizeValue(req.Filename)
	}
	if m != nil {
		meta["archiveTimestamp"] = m.Timestamp
		meta["archiveType"] = m.Type
	}

	event := &audit.Event{
		Type:   audit.EventTypeBackupRestore,
		Actor:  admin.actor(),
		Source: admin.Source,
		Action: string(audit.EventTypeBackupRestore),
	}
	if req.Filename != "" {
		event.Target = &audit.Target{ID: logging.SanitizeValue(req.Filename), Type: "upload"}
	}

	switch {
	case err != nil:
		meta["error"] = err.Error()
		event.Severity = audit.SeverityError
		event.Outcome = audit.OutcomeFailure
		event.Description = "Restore rejected: " + err.Error()
		if !IsPrecondition(err) {
			event.Description = "Restore failed: " + err.Error()
		}
		logging.CtxComponent(ctx, "backup").Debug().Str("state", "failed").Err(err).Msg("Restore failed")

	default:
		meta["restoredTables"] = outcome.Result.RestoredTables
		meta["errors"] = outcome.Result.Errors
		event.Severity = audit.SeverityInfo
		event.Outcome = audit.OutcomeSuccess
		event.Description = fmt.Sprintf("Restored %d tables in %s mode", len(outcome.Result.RestoredTables), mode)
		if outcome.Warnings {
			event.Severity = audit.SeverityWarning
			event.Outcome = audit.OutcomePartial
			event.Description = fmt.Sprintf("Restored %d tables in %s mode, %d failed",
				len(outcome.Result.RestoredTables), mode, len(outcome.Result.Errors))
		}
	}

	event.Metadata = audit.MustJSON(meta)
	e.record(ctx, event)
	logging.CtxComponent(ctx, "backup").Debug().Str("state", "audited").Msg("Restore audited")
}
