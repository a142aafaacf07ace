// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package backup

import (
	"errors"
)

// Precondition errors. A request failing one of these has no effect on data.
var (
	ErrMalformedArchive    = errors.New("malformed backup archive")
	ErrManifestMissing     = errors.New("backup archive has no " + ManifestEntryName)
	ErrManifestTooLarge    = errors.New("backup manifest exceeds size limit")
	ErrVersionIncompatible = errors.New("backup manifest version is incompatible")
	ErrInvalidMode         = errors.New("invalid restore mode")
	ErrInvalidType         = errors.New("invalid backup type")
	ErrUnknownTable        = errors.New("table is not registered for backup")
	ErrUploadTooLarge      = errors.New("uploaded archive exceeds size limit")
)

// Archive store errors.
var (
	ErrArchiveExists   = errors.New("backup archive already exists")
	ErrArchiveNotFound = errors.New("backup archive not found")
	ErrInvalidFileName = errors.New("invalid backup file name")
)

var preconditionErrors = []error{
	ErrMalformedArchive,
	ErrManifestMissing,
	ErrManifestTooLarge,
	ErrVersionIncompatible,
	ErrInvalidMode,
	ErrInvalidType,
	ErrUnknownTable,
	ErrUploadTooLarge,
}

// IsPrecondition reports whether err rejects a request before any data was
// read or written.
func IsPrecondition(err error) bool {
	for _, target := range preconditionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
