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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Attribute keys shared by the instruments below.
const (
	AttrOperation   = "operation"
	AttrOutcome     = "outcome"
	AttrErrorKind   = "error_kind"
	AttrFindingKind = "finding_kind"
)

// Outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Instruments groups the counters recorded by the organization lifecycle,
// the reconciler and the login flow.
type Instruments struct {
	LifecycleOperations metric.Int64Counter
	LifecycleDuration   metric.Float64Histogram
	ReconcileFindings   metric.Int64Counter
	LoginAttempts       metric.Int64Counter
}

// New creates the instruments from the global meter provider. When metrics
// are disabled every instrument is a no-op.
func New(ctx context.Context, cfg Config, serviceName string) (*Instruments, error) {
	if !cfg.Enabled {
		return NoopInstruments(), nil
	}
	return newInstruments(otel.Meter(serviceName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	// noop instruments never fail to construct
	ins, _ := newInstruments(noop.NewMeterProvider().Meter("noop"))
	return ins
}

func newInstruments(m metric.Meter) (*Instruments, error) {
	ops, err := m.Int64Counter("orgkeeper.lifecycle.operations",
		metric.WithDescription("Organization lifecycle operations by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter lifecycle.operations: %w", err)
	}
	dur, err := m.Float64Histogram("orgkeeper.lifecycle.duration",
		metric.WithDescription("Organization lifecycle operation latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram lifecycle.duration: %w", err)
	}
	findings, err := m.Int64Counter("orgkeeper.reconcile.findings",
		metric.WithDescription("Inconsistencies reported by the reconciler"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter reconcile.findings: %w", err)
	}
	logins, err := m.Int64Counter("orgkeeper.login.attempts",
		metric.WithDescription("Admin login attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter login.attempts: %w", err)
	}
	return &Instruments{
		LifecycleOperations: ops,
		LifecycleDuration:   dur,
		ReconcileFindings:   findings,
		LoginAttempts:       logins,
	}, nil
}

// RecordLifecycle counts one lifecycle operation and its latency.
func (i *Instruments) RecordLifecycle(ctx context.Context, op string, ms float64, errKind string) {
	outcome := OutcomeSuccess
	if errKind != "" {
		outcome = OutcomeFailure
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrOperation, op),
		attribute.String(AttrOutcome, outcome),
		attribute.String(AttrErrorKind, errKind),
	)
	i.LifecycleOperations.Add(ctx, 1, attrs)
	i.LifecycleDuration.Record(ctx, ms, metric.WithAttributes(attribute.String(AttrOperation, op)))
}

// RecordFinding counts one reconciliation finding.
func (i *Instruments) RecordFinding(ctx context.Context, kind string) {
	i.ReconcileFindings.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrFindingKind, kind)))
}

// RecordLogin counts one login attempt.
func (i *Instruments) RecordLogin(ctx context.Context, success bool) {
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}
	i.LoginAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
}
