// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/promptshelf/internal/middleware"
)

// Middleware is a chi-compatible middleware.
type Middleware = func(http.Handler) http.Handler

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	authenticate  Middleware
	authorize     Middleware
}

// NewRouter creates the router. authenticate and authorize guard every
// backup route; nil leaves the routes open (tests only).
func NewRouter(handler *Handler, chiMw *ChiMiddleware, authenticate, authorize Middleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: chiMw,
		authenticate:  authenticate,
		authorize:     authorize,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitLogin)).Post("/login", router.handler.Login)
	})

	r.Route("/api/v1/backups", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(router.chiMiddleware.RateLimit())
		if router.authenticate != nil {
			r.Use(router.authenticate)
		}
		if router.authorize != nil {
			r.Use(router.authorize)
		}

		r.Get("/", router.handler.ListBackups)
		r.Post("/", router.handler.CreateBackup)
		r.Post("/restore", router.handler.RestoreBackup)
		r.Get("/audit", router.handler.ListBackupAudit)
		r.Get("/{file}/download", router.handler.DownloadBackup)
	})

	return r
}
