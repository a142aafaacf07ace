// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/auth"
	"github.com/tomtom215/promptshelf/internal/backup"
	"github.com/tomtom215/promptshelf/internal/logging"
	"github.com/tomtom215/promptshelf/internal/models"
)

// Multipart field names of POST /api/v1/backups/restore.
const (
	formFieldArchive = "archive"
	formFieldMode    = "mode"
	formFieldTables  = "tables"
)

// formOverhead is the body allowance for the non-file restore fields.
const formOverhead = 1 << 20

// adminFromRequest builds the acting administrator from the verified claims.
func (h *Handler) adminFromRequest(r *http.Request) backup.Admin {
	admin := backup.Admin{
		AuthMethod: h.authn.Mode(),
		Source:     audit.SourceFromRequest(r),
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		admin.ID = claims.Subject
		if admin.ID == "" {
			admin.ID = claims.Username
		}
		admin.Name = claims.Username
		admin.Roles = claims.Roles()
	}
	return admin
}

// CreateBackup handles POST /api/v1/backups.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var req CreateBackupRequest
	if r.Body != nil && r.ContentLength != 0 {
		body := http.MaxBytesReader(w, r.Body, 4096)
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", nil)
			return
		}
	}
	if req.Type == "" {
		req.Type = string(backup.TypeFull)
	}

	archive, err := h.backups.CreateBackup(r.Context(), h.adminFromRequest(r), req.Type)
	if err != nil {
		respondBackupError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusCreated, archive)
}

// ListBackups handles GET /api/v1/backups.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	archives, err := h.backups.ListBackups(r.Context())
	if err != nil {
		respondBackupError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, archives)
}

// DownloadBackup handles GET /api/v1/backups/{file}/download and streams
// the archive bytes unchanged.
func (h *Handler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	if err := backup.ValidateFileName(file); err != nil {
		respondBackupError(w, r, err)
		return
	}

	rc, info, err := h.backups.OpenBackup(r.Context(), file)
	if err != nil {
		respondBackupError(w, r, err)
		return
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			logging.Ctx(r.Context()).Warn().Err(cerr).Msg("Failed to close archive")
		}
	}()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.File))
	if info.Bytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Bytes, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("file", file).Msg("Archive download interrupted")
	}
}

// RestoreBackup handles POST /api/v1/backups/restore. Table failures still
// answer 200 with warnings set; precondition failures answer 400 with no
// result.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	req := h.readRestoreForm(w, r)

	outcome, err := h.backups.Restore(r.Context(), h.adminFromRequest(r), req)
	if err != nil {
		respondBackupError(w, r, err)
		return
	}

	message := "Restore completed successfully"
	if outcome.Warnings {
		message = fmt.Sprintf("Restore completed with warnings: %d of %d tables failed",
			len(outcome.Result.Errors), len(outcome.Result.Errors)+len(outcome.Result.RestoredTables))
	}
	respondSuccess(w, r, http.StatusOK, models.RestoreResponse{
		Message:  message,
		Result:   outcome.Result,
		Warnings: outcome.Warnings,
	})
}

// readRestoreForm streams the multipart body. Fields may arrive in any
// order, so the archive part is buffered up to one byte past the upload
// limit and the engine makes the size decision. A broken form is handed to
// the engine as an unreadable archive so the attempt is still audited.
func (h *Handler) readRestoreForm(w http.ResponseWriter, r *http.Request) backup.RestoreRequest {
	var req backup.RestoreRequest

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		req.Archive = failingReader{fmt.Errorf("%w: expected multipart/form-data: %v", backup.ErrMalformedArchive, err)}
		return req
	}

	var archive *bytes.Buffer
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			req.Archive = failingReader{formError(err)}
			return req
		}

		switch part.FormName() {
		case formFieldArchive:
			archive = &bytes.Buffer{}
			req.Filename = part.FileName()
			if _, err := io.Copy(archive, io.LimitReader(part, h.maxUploadBytes+1)); err != nil {
				req.Archive = failingReader{formError(err)}
				return req
			}
		case formFieldMode:
			req.Mode = readField(part)
		case formFieldTables:
			req.Tables = append(req.Tables, readField(part))
		}
		closePart(part)
	}

	if archive != nil {
		req.Archive = archive
	}
	return req
}

func readField(part *multipart.Part) string {
	b, err := io.ReadAll(io.LimitReader(part, 4096))
	if err != nil {
		return ""
	}
	return string(b)
}

func closePart(part *multipart.Part) {
	if err := part.Close(); err != nil {
		logging.Debug().Err(err).Msg("Failed to close multipart part")
	}
}

// formError classifies a multipart read failure.
func formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: request body exceeds %d bytes", backup.ErrUploadTooLarge, maxErr.Limit)
	}
	return fmt.Errorf("%w: %v", backup.ErrMalformedArchive, err)
}

// failingReader hands a form error to the engine as an archive read error.
type failingReader struct {
	err error
}

func (f failingReader) Read([]byte) (int, error) {
	return 0, f.err
}
