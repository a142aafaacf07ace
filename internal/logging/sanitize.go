// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package logging

import "strings"

const maxLoggedValue = 200

// SanitizeToken keeps the first 8 characters of a credential.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "[REDACTED]"
	}
	return token[:8] + "..."
}

// SanitizeValue strips control characters (log injection) and truncates.
func SanitizeValue(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)
	if len(cleaned) > maxLoggedValue {
		return cleaned[:maxLoggedValue] + "..."
	}
	return cleaned
}
