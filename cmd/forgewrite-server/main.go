// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Command forgewrite-server runs the publishing API: it verifies
// bearer tokens, turns Micropub submissions into rendered documents,
// and commits them to each site's repository.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/pflag"

	"github.com/forgewrite/forgewrite/lib/clock"
	"github.com/forgewrite/forgewrite/lib/config"
	"github.com/forgewrite/forgewrite/lib/github"
	"github.com/forgewrite/forgewrite/lib/indieauth"
	"github.com/forgewrite/forgewrite/lib/media"
	"github.com/forgewrite/forgewrite/lib/micropub"
	"github.com/forgewrite/forgewrite/lib/publish"
	"github.com/forgewrite/forgewrite/lib/render"
	"github.com/forgewrite/forgewrite/lib/syndicate"
	"github.com/forgewrite/forgewrite/lib/version"
	"github.com/forgewrite/forgewrite/server"
)

// shutdownTimeout bounds the drain of in-flight requests on exit.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "forgewrite-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "", "path to the config file (overrides FORGEWRITE_CONFIG)")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	application, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)

	metrics := echo.New()
	metrics.HideBanner = true
	metrics.HidePort = true
	metrics.GET("/metrics", server.MetricsHandler())
	go func() {
		if err := metrics.Start(cfg.MetricsListen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("metrics listener: %w", err)
		}
	}()

	go func() {
		logger.Info("serving",
			"listen", cfg.Listen,
			"metrics_listen", cfg.MetricsListen,
			"environment", string(cfg.Environment),
			"sites", len(cfg.Sites),
			"version", version.Info(),
		)
		if err := application.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("listener: %w", err)
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("draining requests: %w", err)
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stopping metrics listener: %w", err)
	}
	return nil
}

// buildServer wires the full pipeline from configuration.
func buildServer(cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	githubClient, err := newGitHubClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	var verifier *indieauth.Verifier
	if cfg.Auth.DisableVerification {
		logger.Warn("token verification is DISABLED; every request is treated as authorized")
	} else {
		verifier, err = indieauth.NewVerifier(indieauth.Config{
			Endpoint: cfg.Auth.TokenEndpoint,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		return nil, err
	}

	destinations := make([]syndicate.Destination, 0, len(cfg.Syndication))
	for _, destination := range cfg.Syndication {
		destinations = append(destinations, syndicate.Destination{
			UID:      destination.UID,
			Name:     destination.Name,
			Endpoint: destination.Endpoint,
			Secret:   destination.Secret,
		})
	}

	pipeline, err := publish.NewPipeline(publish.PipelineConfig{
		Normalizer: micropub.NewNormalizer(clock.Real()),
		Fetcher: media.NewFetcher(media.Config{
			Enabled: cfg.Media.DownloadEnabled,
			Timeout: cfg.Media.Timeout,
			Logger:  logger,
		}),
		Renderer:     renderer,
		Commits:      publish.NewCommitBuilder(githubClient, clock.Real(), logger),
		Syndicator:   syndicate.NewClient(syndicate.Config{Logger: logger}),
		Destinations: destinations,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	return server.New(server.Config{
		Sites:        cfg.Sites,
		Pipeline:     pipeline,
		Verifier:     verifier,
		Destinations: destinations,
		Logger:       logger,
	})
}

// newGitHubClient builds the API client for whichever authentication
// mode the config selects.
func newGitHubClient(cfg *config.Config, logger *slog.Logger) (*github.Client, error) {
	clientConfig := github.Config{
		BaseURL: cfg.GitHub.BaseURL,
		Clock:   clock.Real(),
		Logger:  logger,
	}
	if cfg.GitHub.AppID != 0 {
		privateKey, err := os.ReadFile(cfg.GitHub.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading GitHub App private key: %w", err)
		}
		clientConfig.AppID = cfg.GitHub.AppID
		clientConfig.PrivateKey = privateKey
		clientConfig.InstallationID = cfg.GitHub.InstallationID
	} else {
		token, err := cfg.ResolveGitHubToken()
		if err != nil {
			return nil, err
		}
		clientConfig.Token = token
	}
	return github.NewClient(clientConfig)
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel}))
}
