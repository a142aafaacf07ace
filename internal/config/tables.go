// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/promptshelf/internal/validation"
)

// TableSpec is one parsed backup.tables entry.
type TableSpec struct {
	Name string
	Keys []string
}

// ParseTableSpec parses "name" or "name:key1+key2". The key defaults to id.
func ParseTableSpec(raw string) (TableSpec, error) {
	raw = strings.TrimSpace(raw)
	name, keyPart, hasKeys := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if !validation.IsTableName(name) {
		return TableSpec{}, fmt.Errorf("invalid table name %q", name)
	}

	spec := TableSpec{Name: name, Keys: []string{"id"}}
	if !hasKeys {
		return spec, nil
	}

	keys := strings.Split(keyPart, "+")
	spec.Keys = make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if !validation.IsTableName(k) {
			return TableSpec{}, fmt.Errorf("invalid key column %q for table %s", k, name)
		}
		spec.Keys = append(spec.Keys, k)
	}
	return spec, nil
}

// TableSpecs parses every configured table, rejecting duplicates.
func (c *BackupConfig) TableSpecs() ([]TableSpec, error) {
	specs := make([]TableSpec, 0, len(c.Tables))
	seen := make(map[string]bool, len(c.Tables))
	for _, raw := range c.Tables {
		spec, err := ParseTableSpec(raw)
		if err != nil {
			return nil, err
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("table %s listed twice", spec.Name)
		}
		seen[spec.Name] = true
		specs = append(specs, spec)
	}
	return specs, nil
}
