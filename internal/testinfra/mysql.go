// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMySQLImage is the MySQL server image used by integration tests.
	DefaultMySQLImage = "mysql:8.4"

	// DefaultMySQLPort is the server port inside the container.
	DefaultMySQLPort = "3306"

	// DefaultMySQLDatabase is created empty at startup.
	DefaultMySQLDatabase = "promptshelf"

	defaultMySQLPassword = "promptshelf-test"

	mysqlTCPPort = DefaultMySQLPort + "/tcp"
)

// MySQLContainer is a running MySQL server.
type MySQLContainer struct {
	testcontainers.Container

	// DSN connects as root to the test database, in go-sql-driver format.
	DSN string
}

// MySQLOption configures the MySQL container.
type MySQLOption func(*mysqlConfig)

type mysqlConfig struct {
	image        string
	database     string
	startTimeout time.Duration
	logger       tclog.Logger
}

// WithMySQLImage overrides DefaultMySQLImage.
func WithMySQLImage(image string) MySQLOption {
	return func(c *mysqlConfig) {
		c.image = image
	}
}

// WithMySQLDatabase overrides DefaultMySQLDatabase.
func WithMySQLDatabase(name string) MySQLOption {
	return func(c *mysqlConfig) {
		c.database = name
	}
}

// WithMySQLStartTimeout sets how long to wait for the server to accept
// connections.
func WithMySQLStartTimeout(timeout time.Duration) MySQLOption {
	return func(c *mysqlConfig) {
		c.startTimeout = timeout
	}
}

// WithContainerLogger sends container lifecycle logs to logger.
func WithContainerLogger(logger *ContainerLogger) MySQLOption {
	return func(c *mysqlConfig) {
		c.logger = logger
	}
}

// NewMySQLContainer starts MySQL and waits until it accepts TCP connections.
func NewMySQLContainer(ctx context.Context, opts ...MySQLOption) (*MySQLContainer, error) {
	cfg := &mysqlConfig{
		image:        DefaultMySQLImage,
		database:     DefaultMySQLDatabase,
		startTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{mysqlTCPPort},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": defaultMySQLPassword,
			"MYSQL_DATABASE":      cfg.database,
			"TZ":                  "UTC",
		},
		// The entrypoint starts a temporary server for initialization
		// first, so wait for the second ready line as well as the port.
		WaitingFor: wait.ForAll(
			wait.ForLog("ready for connections").WithOccurrence(2),
			wait.ForListeningPort(mysqlTCPPort),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
		Logger:           cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create mysql container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, mysqlTCPPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MySQLContainer{
		Container: container,
		DSN: fmt.Sprintf("root:%s@tcp(%s:%s)/%s",
			defaultMySQLPassword, host, mapped.Port(), cfg.database),
	}, nil
}
