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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentrusty/orgkeeper/internal/audit"
	"github.com/opentrusty/orgkeeper/internal/config"
	"github.com/opentrusty/orgkeeper/internal/identity"
	"github.com/opentrusty/orgkeeper/internal/observability/logger"
	"github.com/opentrusty/orgkeeper/internal/observability/metrics"
	"github.com/opentrusty/orgkeeper/internal/observability/tracing"
	"github.com/opentrusty/orgkeeper/internal/store"
	"github.com/opentrusty/orgkeeper/internal/tenant"
	"github.com/opentrusty/orgkeeper/internal/token"
	transportHTTP "github.com/opentrusty/orgkeeper/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTelEnabled: cfg.Observability.OTELEnabled,
	})
	slog.Info("starting orgkeeper", logger.StoreDriver(cfg.Store.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
		Insecure:       cfg.Observability.OTLPInsecure,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
		os.Exit(1)
	}
	defer tracer.Shutdown(context.Background())

	instruments, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.MetricsEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		instruments = metrics.NoopInstruments()
	}

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to store", logger.StoreDriver(cfg.Store.Driver), logger.Error(err))
		os.Exit(1)
	}
	defer backend.Close(context.Background())
	if err := backend.Migrate(ctx); err != nil {
		slog.Error("failed to prepare store schema", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("connected to store", logger.StoreDriver(backend.Driver))

	secret := cfg.Token.Secret
	if secret == "" {
		// only reachable with the memory driver
		secret = "orgkeeper-dev-secret"
		slog.Warn("TOKEN_SECRET is empty; using a development secret")
	}
	tokens, err := token.NewService(token.Config{Secret: secret, Algorithm: cfg.Token.Algorithm})
	if err != nil {
		slog.Error("failed to initialize token service", logger.Error(err))
		os.Exit(1)
	}

	auditLogger := audit.NewSlogLogger()
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	tenantService := tenant.NewService(
		backend.Organizations,
		backend.Admins,
		backend.Namespaces,
		passwordHasher,
		auditLogger,
		tenant.WithInstruments(instruments),
		tenant.WithTracer(tracer.Tracer()),
	)
	identityService := identity.NewService(
		backend.Admins,
		tenantService,
		passwordHasher,
		tokens,
		cfg.Token.TTL,
		auditLogger,
	)

	if created, err := tenant.NewBootstrapService(tenantService, auditLogger).Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
	} else if created {
		slog.Info("bootstrap organization created")
	}

	reconciler := tenant.NewReconciler(tenantService)
	go reconciler.Run(ctx, cfg.Reconcile.Interval, tenant.ReconcileOptions{
		Repair:      cfg.Reconcile.Repair,
		GracePeriod: cfg.Reconcile.GracePeriod,
	})

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(identityService, tenantService, tokens, instruments, backend.Health)
	router := transportHTTP.NewRouter(handler, rateLimiter, cfg.Server.RequestTimeout)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-serverErr:
		slog.Error("server error", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
