// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/opentrusty/seedkeeper/internal/keystore"
	"github.com/opentrusty/seedkeeper/internal/observability/logger"
	"github.com/opentrusty/seedkeeper/internal/observability/metrics"
	"github.com/opentrusty/seedkeeper/internal/observability/tracing"
	"github.com/opentrusty/seedkeeper/internal/seed"
	"github.com/opentrusty/seedkeeper/internal/service"
	transportHTTP "github.com/opentrusty/seedkeeper/internal/transport/http"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "run the HTTP service",
	Action: runServe,
}

func runServe(cCtx *cli.Context) error {
	// Load configuration
	cfg, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	// Initialize logger
	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		Version:     cfg.Observability.ServiceVersion,
		InstanceID:  cfg.Observability.LogInstanceID,
	})
	slog.Info("starting seedkeeper", logger.String("version", cfg.Observability.ServiceVersion))

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		slog.Error("failed to initialize tracer, continuing without tracing", logger.Error(err))
		tracer, _ = tracing.New(ctx, tracing.Config{})
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			slog.Error("failed to flush spans", logger.Error(err))
		}
	}()

	// Initialize meter
	instruments, err := metrics.NewInstruments(metrics.New(metrics.Config{
		Enabled:     cfg.Observability.OTELEnabled,
		ServiceName: cfg.Observability.ServiceName,
	}))
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Key pair
	keys, err := keystore.LoadOrCreate(keystore.Config{
		PrivateKeyPath: cfg.Storage.PrivateKeyPath(),
		PublicKeyPath:  cfg.Storage.PublicKeyPath(),
		Bits:           cfg.Storage.KeyBits,
		AutoGenerate:   cfg.Storage.AutoGenerate,
	})
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}

	// Seed storage
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	store := seed.NewFileStore(cfg.Storage.SeedPath())

	svc, err := service.New(keys, store,
		service.WithTracer(tracer.Tracer()),
		service.WithInstruments(instruments),
	)
	if err != nil {
		return err
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst,
		transportHTTP.WithTrustedProxy(cfg.RateLimit.TrustProxy),
	)
	defer rateLimiter.Stop()

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(svc, cfg.Server.MaxBodyBytes)
	router := transportHTTP.NewRouter(handler, rateLimiter)

	server := transportHTTP.NewServer(transportHTTP.ServerConfig{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DrainDuration:   cfg.Server.DrainDuration,
		AdminAddr:       cfg.Server.AdminAddr,
	}, router)
	server.RunInBackground()

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
	case err := <-server.Err():
		return err
	}

	slog.Info("shutting down server")
	if err := server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
