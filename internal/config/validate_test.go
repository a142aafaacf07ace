// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package config

import (
	"reflect"
	"testing"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = testSecret
	cfg.Security.AdminPassword = "s3cret-pass"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, true},
		{"mysql without dsn", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"mysql with dsn", func(c *Config) {
			c.Database.Driver = "mysql"
			c.Database.DSN = "user:pw@tcp(localhost:3306)/promptshelf"
		}, false},
		{"empty tables", func(c *Config) { c.Backup.Tables = nil }, true},
		{"bad table name", func(c *Config) { c.Backup.Tables = []string{"users;drop"} }, true},
		{"duplicate table", func(c *Config) { c.Backup.Tables = []string{"users", "users"} }, true},
		{"s3 without bucket", func(c *Config) { c.Backup.Storage = "s3" }, true},
		{"s3 bad endpoint", func(c *Config) {
			c.Backup.Storage = "s3"
			c.Backup.S3.Bucket = "b"
			c.Backup.S3.Endpoint = "ftp://minio"
		}, true},
		{"s3 ok", func(c *Config) {
			c.Backup.Storage = "s3"
			c.Backup.S3.Bucket = "b"
			c.Backup.S3.Endpoint = "http://minio:9000"
		}, false},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }, true},
		{"placeholder jwt secret", func(c *Config) { c.Security.JWTSecret = "changeme-changeme-changeme-changeme" }, true},
		{"no admin password", func(c *Config) { c.Security.AdminPassword = "" }, true},
		{"hash only", func(c *Config) {
			c.Security.AdminPassword = ""
			c.Security.AdminPasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
		}, false},
		{"auth none in development", func(c *Config) { c.Security.AuthMode = "none" }, false},
		{"auth none in production", func(c *Config) {
			c.Security.AuthMode = "none"
			c.Server.Environment = "production"
		}, true},
		{"bad rate limit", func(c *Config) { c.Security.RateLimitReqs = 0 }, true},
		{"rate limit disabled", func(c *Config) {
			c.Security.RateLimitReqs = 0
			c.Security.RateLimitDisabled = true
		}, false},
		{"bad nats url", func(c *Config) { c.Events.NATSURL = "http://nats" }, true},
		{"embedded nats", func(c *Config) { c.Events.Embedded = true }, false},
		{"embedded with nats url", func(c *Config) {
			c.Events.Embedded = true
			c.Events.NATSURL = "nats://localhost:4222"
		}, true},
		{"embedded bad port", func(c *Config) {
			c.Events.Embedded = true
			c.Events.EmbeddedPort = 70000
		}, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTableSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    TableSpec
		wantErr bool
	}{
		{"users", TableSpec{Name: "users", Keys: []string{"id"}}, false},
		{" posts ", TableSpec{Name: "posts", Keys: []string{"id"}}, false},
		{"likes:user_id+prompt_id", TableSpec{Name: "likes", Keys: []string{"user_id", "prompt_id"}}, false},
		{"", TableSpec{}, true},
		{"1users", TableSpec{}, true},
		{"users:", TableSpec{}, true},
		{"users:id+", TableSpec{}, true},
		{"a-b", TableSpec{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTableSpec(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTableSpec(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTableSpec(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateHTTPURL(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"http://localhost:9000", "https://s3.example.org/"} {
		if err := validateHTTPURL(ok, "X"); err != nil {
			t.Errorf("validateHTTPURL(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"localhost:9000", "https://", "https://h/path", "https://h?q=1"} {
		if err := validateHTTPURL(bad, "X"); err == nil {
			t.Errorf("validateHTTPURL(%q) expected error", bad)
		}
	}
}
