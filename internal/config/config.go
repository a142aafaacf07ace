// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

// Package config loads Promptshelf settings from defaults, an optional YAML
// file and the environment (in that order of precedence, lowest first).
package config

import "time"

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Backup   BackupConfig   `koanf:"backup"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Audit    AuditConfig    `koanf:"audit"`
	Events   EventsConfig   `koanf:"events"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// DatabaseConfig selects and tunes the relational store.
type DatabaseConfig struct {
	// Driver is duckdb (embedded, default) or mysql.
	Driver    string `koanf:"driver"`
	Path      string `koanf:"path"`       // duckdb file, "" for in-memory
	DSN       string `koanf:"dsn"`        // mysql only
	MaxMemory string `koanf:"max_memory"` // duckdb only
	Threads   int    `koanf:"threads"`    // duckdb only, 0 = NumCPU
	// SkipSchema disables creation of the application tables at startup.
	SkipSchema bool `koanf:"skip_schema"`
}

// BackupConfig configures the backup engine and where archives live.
type BackupConfig struct {
	// Dir holds archives when Storage is local, and the catalog by default.
	Dir string `koanf:"dir"`

	// Tables is the ordered table registry. Entries are "name" or
	// "name:key1+key2"; the key defaults to id. Order is restore order.
	Tables []string `koanf:"tables"`

	// CatalogPath is the Badger directory for archive metadata.
	// Defaults to <Dir>/.catalog.
	CatalogPath string `koanf:"catalog_path"`

	MaxUploadBytes   int64 `koanf:"max_upload_bytes"`
	MaxManifestBytes int64 `koanf:"max_manifest_bytes"`

	// Storage is local or s3.
	Storage string   `koanf:"storage"`
	S3      S3Config `koanf:"s3"`
}

// S3Config is used when Backup.Storage is s3.
type S3Config struct {
	Bucket       string `koanf:"bucket"`
	Region       string `koanf:"region"`
	Endpoint     string `koanf:"endpoint"`
	Prefix       string `koanf:"prefix"`
	UsePathStyle bool   `koanf:"use_path_style"`
}

// SecurityConfig holds authentication, authorization and HTTP hardening settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	AdminPasswordHash string        `koanf:"admin_password_hash"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	CasbinModelPath   string        `koanf:"casbin_model_path"`
	CasbinPolicyPath  string        `koanf:"casbin_policy_path"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	BufferSize    int  `koanf:"buffer_size"`
	RetentionDays int  `koanf:"retention_days"`
	LogToStdout   bool `koanf:"log_to_stdout"`
}

// EventsConfig configures backup lifecycle event publishing.
type EventsConfig struct {
	Enabled bool `koanf:"enabled"`
	// NATSURL switches from the in-process channel to NATS core when set.
	NATSURL     string `koanf:"nats_url"`
	TopicPrefix string `koanf:"topic_prefix"`
	// Embedded starts an in-process NATS server and publishes through it.
	// It is mutually exclusive with NATSURL.
	Embedded     bool   `koanf:"embedded"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development"
}

// CatalogDir returns the Badger directory for the archive catalog.
func (c *BackupConfig) CatalogDir() string {
	if c.CatalogPath != "" {
		return c.CatalogPath
	}
	return c.Dir + "/.catalog"
}
