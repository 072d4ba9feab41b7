// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is the HTTP surface: routing, middleware, bearer
// extraction, the query and create operations, and the mapping from
// protocol errors to response bodies. All publishing semantics live
// in lib/publish; the server translates between HTTP and the
// pipeline.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nrednav/cuid2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/forgewrite/forgewrite/lib/config"
	"github.com/forgewrite/forgewrite/lib/indieauth"
	"github.com/forgewrite/forgewrite/lib/micropub"
	"github.com/forgewrite/forgewrite/lib/publish"
	"github.com/forgewrite/forgewrite/lib/syndicate"
)

// bodyLimit caps inbound request bodies. Posts are text plus photo
// references, never photo bytes, so this is generous.
const bodyLimit = "10M"

// publishesTotal counts successful publishes by site.
var publishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "forgewrite_publishes_total",
	Help: "Successful publishes by site.",
}, []string{"site"})

// Config holds the collaborators and site table the server routes to.
type Config struct {
	// Sites maps site names (the :site path parameter) to their
	// configuration. Required, non-empty.
	Sites map[string]config.SiteConfig

	// Pipeline runs publishes and source queries. Required.
	Pipeline *publish.Pipeline

	// Verifier introspects bearer tokens. Nil disables verification;
	// config validation restricts that to development environments.
	Verifier *indieauth.Verifier

	// Destinations are the configured syndication targets, reported
	// (secrets stripped) by the syndicate-to query.
	Destinations []syndicate.Destination

	// Logger is used for request logging. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Registerer receives the HTTP metrics. Defaults to
	// prometheus.DefaultRegisterer; tests pass a fresh registry so
	// repeated construction does not collide.
	Registerer prometheus.Registerer
}

// Server is the configured HTTP application.
type Server struct {
	echo   *echo.Echo
	sites  map[string]config.SiteConfig
	logger *slog.Logger

	pipeline     *publish.Pipeline
	verifier     *indieauth.Verifier
	destinations []syndicate.Destination
}

// New creates a Server from the given configuration.
func New(cfg Config) (*Server, error) {
	if len(cfg.Sites) == 0 {
		return nil, fmt.Errorf("server: Sites is required")
	}
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("server: Pipeline is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	server := &Server{
		sites:        cfg.Sites,
		logger:       logger,
		pipeline:     cfg.Pipeline,
		verifier:     cfg.Verifier,
		destinations: cfg.Destinations,
	}

	application := echo.New()
	application.HideBanner = true
	application.HidePort = true
	application.HTTPErrorHandler = server.handleError

	application.Use(middleware.BodyLimit(bodyLimit))
	application.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	application.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "forgewrite",
		Registerer: registerer,
	}))
	application.Use(middleware.Recover())
	application.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	application.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		// Run the error handler before logging so a failed request
		// logs the status it actually answered with.
		HandleError:  true,
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogRequestID: true,
		LogLatency:   true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"request_id", values.RequestID,
				"latency", values.Latency,
			)
			return nil
		},
	}))

	application.GET("/healthz", server.handleHealth)
	application.GET("/publish/:site", server.handleQuery)
	application.POST("/publish/:site", server.handleCreate)

	server.echo = application
	return server, nil
}

// ServeHTTP makes the server an http.Handler for tests and embedding.
func (server *Server) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	server.echo.ServeHTTP(writer, request)
}

// Start serves on the given address until Shutdown.
func (server *Server) Start(address string) error {
	return server.echo.Start(address)
}

// Shutdown drains in-flight requests and stops the listener.
func (server *Server) Shutdown(ctx context.Context) error {
	return server.echo.Shutdown(ctx)
}

// MetricsHandler returns the Prometheus scrape handler for the
// separate metrics listener.
func MetricsHandler() echo.HandlerFunc {
	return echoprometheus.NewHandler()
}

func (server *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// site resolves the :site path parameter against the site table.
func (server *Server) site(c echo.Context) (config.SiteConfig, error) {
	name := c.Param("site")
	site, known := server.sites[name]
	if !known {
		return config.SiteConfig{}, micropub.NotFound(fmt.Sprintf("unknown site %q", name))
	}
	return site, nil
}
