// Package main runs the Heimdall agent: a sidecar that keeps a flag client
// up to date and serves evaluations over HTTP to local applications.
//
// It acts as the composition root, wiring configuration, logging, the cache
// backend, the client, the evaluation API and the observability server.
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

	"github.com/rafaeljc/heimdall-sdk/internal/agentapi"
	"github.com/rafaeljc/heimdall-sdk/internal/client"
	"github.com/rafaeljc/heimdall-sdk/internal/config"
	"github.com/rafaeljc/heimdall-sdk/internal/logger"
	"github.com/rafaeljc/heimdall-sdk/internal/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration & Logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	// -------------------------------------------------------------------------
	// 2. Client & Cache Backend
	// -------------------------------------------------------------------------
	rt, err := client.NewRuntime(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to start flag client: %w", err)
	}
	defer rt.Close()
	log.Info("flag client started",
		slog.String("polling_mode", rt.Client.PollingMode().String()),
		slog.Bool("offline", rt.Client.IsOffline()),
	)

	// -------------------------------------------------------------------------
	// 3. Observability Server (probes + metrics)
	// -------------------------------------------------------------------------
	obs := observability.NewServer(log, &cfg.Observability, rt.Checkers()...)
	obs.Start()

	// -------------------------------------------------------------------------
	// 4. Evaluation API
	// -------------------------------------------------------------------------
	var api *agentapi.API
	if cfg.Agent.APIKeyHash == "" {
		log.Warn("agent API authentication is disabled; set HEIMDALL_AGENT_API_KEY_HASH to enable it")
		api = agentapi.NewAPIWithConfig(rt.Client, log, "", true)
	} else {
		api = agentapi.NewAPI(rt.Client, log, cfg.Agent.APIKeyHash)
	}

	srv := &http.Server{
		Addr:              cfg.Agent.Address(),
		Handler:           api.Router,
		ReadTimeout:       cfg.Agent.ReadTimeout,
		WriteTimeout:      cfg.Agent.WriteTimeout,
		ReadHeaderTimeout: cfg.Agent.ReadHeaderTimeout,
		IdleTimeout:       cfg.Agent.IdleTimeout,
		MaxHeaderBytes:    cfg.Agent.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("agent API listening",
			slog.String("addr", srv.Addr),
			slog.Bool("tls", cfg.Agent.TLSEnabled),
		)

		var err error
		if cfg.Agent.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Agent.TLSCert, cfg.Agent.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("agent API failed: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// 5. Graceful Shutdown
	// -------------------------------------------------------------------------
	var serveErr error
	select {
	case serveErr = <-errChan:
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("agent API shutdown failed", slog.String("error", err.Error()))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("observability server shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("agent exited")
	return serveErr
}
