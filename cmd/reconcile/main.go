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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/opentrusty/orgkeeper/internal/audit"
	"github.com/opentrusty/orgkeeper/internal/config"
	"github.com/opentrusty/orgkeeper/internal/identity"
	"github.com/opentrusty/orgkeeper/internal/observability/logger"
	"github.com/opentrusty/orgkeeper/internal/store"
	"github.com/opentrusty/orgkeeper/internal/tenant"
	"github.com/spf13/cobra"
)

// errFindings makes the command exit non-zero without a second error line.
var errFindings = errors.New("inconsistencies found")

func main() {
	var (
		repair  bool
		grace   time.Duration
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:           "reconcile",
		Short:         "Check the organization and admin directories and namespaces for drift",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return run(ctx, tenant.ReconcileOptions{Repair: repair, GracePeriod: grace})
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "fix stale admin names and remove orphan admins")
	cmd.Flags().DurationVar(&grace, "grace", 5*time.Minute, "leave orphan admins younger than this in place")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall time limit")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, opts tenant.ReconcileOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close(context.Background())

	svc := tenant.NewService(
		backend.Organizations,
		backend.Admins,
		backend.Namespaces,
		identity.NewPasswordHasher(
			cfg.Security.Argon2Memory,
			cfg.Security.Argon2Iterations,
			cfg.Security.Argon2Parallelism,
			cfg.Security.Argon2SaltLength,
			cfg.Security.Argon2KeyLength,
		),
		audit.NewSlogLogger(),
	)

	report, err := tenant.NewReconciler(svc).Reconcile(ctx, opts)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			return encErr
		}
	}
	if err != nil {
		return err
	}
	if !report.Clean() {
		slog.Warn("reconciliation found inconsistencies", logger.Count("findings", len(report.Findings)))
		return errFindings
	}
	return nil
}
