// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/promptshelf/internal/api"
	"github.com/tomtom215/promptshelf/internal/audit"
	"github.com/tomtom215/promptshelf/internal/auth"
	"github.com/tomtom215/promptshelf/internal/authz"
	"github.com/tomtom215/promptshelf/internal/backup"
	"github.com/tomtom215/promptshelf/internal/config"
	"github.com/tomtom215/promptshelf/internal/database"
	"github.com/tomtom215/promptshelf/internal/events"
	"github.com/tomtom215/promptshelf/internal/logging"
	"github.com/tomtom215/promptshelf/internal/supervisor"
	"github.com/tomtom215/promptshelf/internal/supervisor/services"
)

// app owns every long-lived component.
type app struct {
	cfg      *config.Config
	db       *database.DB
	auditLog *audit.Logger
	catalog  *backup.BadgerCatalog
	bus      *events.Bus
	engine   *backup.Engine
	server   *http.Server
	closers  []func() error
}

// newApp builds the component graph. On error everything opened so far is
// closed.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.db, err = database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.closers = append(a.closers, a.db.Close)

	auditStore := audit.NewSQLStore(a.db.Conn(), a.db.Driver())
	if err = auditStore.CreateTable(ctx); err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	auditCfg := audit.DefaultConfig()
	auditCfg.BufferSize = cfg.Audit.BufferSize
	auditCfg.RetentionDays = cfg.Audit.RetentionDays
	auditCfg.LogToStdout = cfg.Audit.LogToStdout
	a.auditLog = audit.NewLogger(auditStore, auditCfg)
	// The supervisor closes the logger on shutdown; this covers init errors.
	a.closers = append(a.closers, a.auditLog.Close)

	archives, err := openArchiveStore(ctx, &cfg.Backup)
	if err != nil {
		return nil, err
	}

	a.catalog, err = backup.OpenBadgerCatalog(cfg.Backup.CatalogDir())
	if err != nil {
		return nil, fmt.Errorf("archive catalog: %w", err)
	}
	a.closers = append(a.closers, a.catalog.Close)

	registry, err := backup.RegistryFromConfig(&cfg.Backup)
	if err != nil {
		return nil, fmt.Errorf("table registry: %w", err)
	}

	opts := backup.Options{
		Registry:       registry,
		Data:           a.db,
		Archives:       archives,
		Catalog:        a.catalog,
		Auditor:        a.auditLog,
		Codec:          backup.NewCodec(cfg.Backup.MaxManifestBytes),
		MaxUploadBytes: cfg.Backup.MaxUploadBytes,
	}

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		a.bus, err = events.NewBus(&cfg.Events, events.NewLogger())
		if err != nil {
			return nil, fmt.Errorf("event bus: %w", err)
		}
		a.closers = append(a.closers, a.bus.Close)
		publisher = events.NewPublisher(a.bus.Publisher, cfg.Events.TopicPrefix,
			events.NewCircuitBreaker("backup-events", events.DefaultBreakerConfig()))
		opts.Notifier = publisher
	}

	a.engine, err = backup.NewEngine(opts)
	if err != nil {
		return nil, err
	}

	handler, err := a.buildHTTPHandler(publisher)
	if err != nil {
		return nil, err
	}
	a.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	logging.Info().
		Int("tables", registry.Len()).
		Strs("registry", registry.Names()).
		Msg("Backup engine ready")
	return a, nil
}

func (a *app) buildHTTPHandler(publisher *events.Publisher) (http.Handler, error) {
	sec := &a.cfg.Security

	authService, err := auth.NewService(sec)
	if err != nil {
		return nil, fmt.Errorf("authentication: %w", err)
	}
	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{
		ModelPath:  sec.CasbinModelPath,
		PolicyPath: sec.CasbinPolicyPath,
	})
	if err != nil {
		return nil, fmt.Errorf("authorization: %w", err)
	}

	handler := api.NewHandler(a.engine, authService, a.db, a.cfg.Backup.MaxUploadBytes)
	handler.SetAuditor(a.auditLog)
	handler.SetAuditReader(a.auditLog)
	if publisher != nil {
		handler.SetEventsStatus(a.bus.Transport, publisher)
	}

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = sec.CORSOrigins
	mwCfg.RateLimitRequests = sec.RateLimitReqs
	mwCfg.RateLimitWindow = sec.RateLimitWindow
	mwCfg.RateLimitDisabled = sec.RateLimitDisabled

	router := api.NewRouter(handler, api.NewChiMiddleware(mwCfg),
		auth.NewMiddleware(authService, api.WriteAuthError, a.auditLog).Authenticate,
		authz.NewMiddleware(enforcer, api.WriteAuthzError, a.auditLog).AuthorizeRequest,
	)
	return router.SetupChi(), nil
}

// openArchiveStore returns the configured archive store.
func openArchiveStore(ctx context.Context, cfg *config.BackupConfig) (backup.ArchiveStore, error) {
	switch cfg.Storage {
	case "", "local":
		store, err := backup.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("archive directory: %w", err)
		}
		logging.Info().Str("dir", cfg.Dir).Msg("Storing backups on local disk")
		return store, nil
	case "s3":
		store, err := backup.NewS3Store(ctx, &cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 archive store: %w", err)
		}
		logging.Info().Str("bucket", cfg.S3.Bucket).Str("prefix", cfg.S3.Prefix).Msg("Storing backups in S3")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported backup storage %q", cfg.Storage)
	}
}

// run serves until ctx is cancelled.
func (a *app) run(ctx context.Context) error {
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	})

	tree.AddDataService(a.auditLog)
	if a.bus != nil {
		tree.AddMessagingService(events.NewListener(a.bus.Subscriber, a.cfg.Events.TopicPrefix))
	}
	tree.AddAPIService(services.NewHTTPServerService(a.server, a.cfg.Server.ShutdownTimeout))

	err := tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// close releases components in reverse order of creation.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warn().Err(err).Msg("Error during shutdown")
		}
	}
	a.closers = nil
}
