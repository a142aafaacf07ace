// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/promptshelf/internal/logging"
)

const minJWTSecretLength = 32

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "duckdb":
		return nil
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("MYSQL_DSN is required when DB_DRIVER=mysql")
		}
		return nil
	default:
		return fmt.Errorf("DB_DRIVER must be duckdb or mysql, got %q", c.Database.Driver)
	}
}

func (c *Config) validateBackup() error {
	if c.Backup.Dir == "" {
		return fmt.Errorf("BACKUP_DIR is required")
	}
	if len(c.Backup.Tables) == 0 {
		return fmt.Errorf("BACKUP_TABLES must list at least one table")
	}
	if _, err := c.Backup.TableSpecs(); err != nil {
		return fmt.Errorf("BACKUP_TABLES is invalid: %w", err)
	}
	if c.Backup.MaxUploadBytes <= 0 {
		return fmt.Errorf("BACKUP_MAX_UPLOAD_BYTES must be positive")
	}
	if c.Backup.MaxManifestBytes <= 0 {
		return fmt.Errorf("BACKUP_MAX_MANIFEST_BYTES must be positive")
	}

	switch c.Backup.Storage {
	case "local":
		return nil
	case "s3":
		if c.Backup.S3.Bucket == "" {
			return fmt.Errorf("BACKUP_S3_BUCKET is required when BACKUP_STORAGE=s3")
		}
		if c.Backup.S3.Endpoint != "" {
			if err := validateHTTPURL(c.Backup.S3.Endpoint, "BACKUP_S3_ENDPOINT"); err != nil {
				return fmt.Errorf("BACKUP_S3_ENDPOINT is invalid: %w", err)
			}
		}
		return nil
	default:
		return fmt.Errorf("BACKUP_STORAGE must be local or s3, got %q", c.Backup.Storage)
	}
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "jwt":
		if err := c.validateJWTAuth(); err != nil {
			return err
		}
	case "none":
		if !c.IsDevelopment() {
			return fmt.Errorf("AUTH_MODE=none is only allowed when ENVIRONMENT=development")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be jwt or none, got %q", c.Security.AuthMode)
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 || c.Security.RateLimitReqs > 100000 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be between 1 and 100000")
		}
		if c.Security.RateLimitWindow < time.Second || c.Security.RateLimitWindow > time.Hour {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be between 1s and 1h")
		}
	}
	return nil
}

func (c *Config) validateJWTAuth() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLength)
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET appears to be a placeholder value")
	}
	if c.Security.AdminUsername == "" {
		return fmt.Errorf("ADMIN_USERNAME is required when AUTH_MODE=jwt")
	}
	if c.Security.AdminPassword == "" && c.Security.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required when AUTH_MODE=jwt")
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.Embedded {
		if c.Events.NATSURL != "" {
			return fmt.Errorf("NATS_URL and NATS_EMBEDDED are mutually exclusive")
		}
		if c.Events.EmbeddedPort < -1 || c.Events.EmbeddedPort > 65535 {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be -1 or between 0 and 65535, got: %d", c.Events.EmbeddedPort)
		}
		return nil
	}
	if c.Events.NATSURL == "" {
		return nil
	}
	if err := validateNATSURL(c.Events.NATSURL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

// validateHTTPURL checks for an http(s) base URL with a host and no path or query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}

func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	switch parsedURL.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}
	return nil
}

func containsPlaceholder(value string) bool {
	lower := strings.ToLower(value)
	for _, p := range []string{"changeme", "replace_with", "your_secret", "example"} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
