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

package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/audit"
	"github.com/opentrusty/orgkeeper/internal/identity"
	"github.com/opentrusty/orgkeeper/internal/observability/logger"
)

// FindingKind classifies a cross-record inconsistency.
type FindingKind string

const (
	// FindingOrphanAdmin is an admin whose organization does not exist.
	FindingOrphanAdmin FindingKind = "orphan_admin"
	// FindingMissingAdmin is an organization without an admin.
	FindingMissingAdmin FindingKind = "missing_admin"
	// FindingStaleAdminName is an admin whose denormalized organization
	// name differs from the organization's current name.
	FindingStaleAdminName FindingKind = "stale_admin_name"
	// FindingNamespaceDiverged is an organization whose namespace is not
	// the one derived from its name, left by a logical-only rename.
	FindingNamespaceDiverged FindingKind = "namespace_diverged"
	// FindingMissingNamespace is an organization whose namespace is absent.
	FindingMissingNamespace FindingKind = "missing_namespace"
	// FindingOrphanNamespace is a namespace no organization points at.
	FindingOrphanNamespace FindingKind = "orphan_namespace"
)

// Finding is one inconsistency found by the reconciler.
type Finding struct {
	Kind      FindingKind `json:"kind"`
	OrgID     string      `json:"org_id,omitempty"`
	OrgName   string      `json:"org_name,omitempty"`
	AdminID   string      `json:"admin_id,omitempty"`
	Namespace string      `json:"namespace,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	Repaired  bool        `json:"repaired,omitempty"`
}

// Report summarizes one reconciliation pass.
type Report struct {
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Organizations int       `json:"organizations"`
	Admins        int       `json:"admins"`
	Namespaces    int       `json:"namespaces"`
	Findings      []Finding `json:"findings"`
}

// Clean reports whether the pass found nothing.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}

// Count returns the number of findings of kind.
func (r *Report) Count(kind FindingKind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// ReconcileOptions controls a reconciliation pass.
type ReconcileOptions struct {
	// Repair fixes stale admin names and removes orphan admins. Namespaces
	// are never dropped.
	Repair bool
	// GracePeriod skips repairing orphan admins younger than this, since
	// they may belong to a creation still in flight on another process.
	GracePeriod time.Duration
}

// Reconciler detects, and optionally repairs, divergence between the
// organization directory, the admin directory and the namespace store.
type Reconciler struct {
	svc *Service
}

// NewReconciler creates a reconciler working on the stores of svc. Repairs
// take the same per-name locks as lifecycle operations.
func NewReconciler(svc *Service) *Reconciler {
	return &Reconciler{svc: svc}
}

// Reconcile runs one pass. The report is returned even when some repairs
// failed; the error then aggregates the failures.
func (r *Reconciler) Reconcile(ctx context.Context, opts ReconcileOptions) (*Report, error) {
	s := r.svc
	report := &Report{StartedAt: s.now().UTC()}

	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return nil, apperr.E("tenant.reconcile.list_organizations", err)
	}
	admins, err := s.admins.List(ctx)
	if err != nil {
		return nil, apperr.E("tenant.reconcile.list_admins", err)
	}
	namespaces, err := s.namespaces.List(ctx)
	if err != nil {
		return nil, apperr.E("tenant.reconcile.list_namespaces", err)
	}
	report.Organizations, report.Admins, report.Namespaces = len(orgs), len(admins), len(namespaces)

	byID := make(map[string]*Organization, len(orgs))
	for _, o := range orgs {
		byID[o.ID] = o
	}
	haveNamespace := make(map[string]bool, len(namespaces))
	for _, ns := range namespaces {
		haveNamespace[ns] = true
	}

	var errs *multierror.Error
	adminCount := make(map[string]int)
	orphanOrgs := make(map[string]bool)

	for _, a := range admins {
		org, ok := byID[a.OrgID]
		if !ok {
			f := Finding{Kind: FindingOrphanAdmin, OrgID: a.OrgID, OrgName: a.OrganizationName, AdminID: a.ID}
			if repaired, attempted := orphanOrgs[a.OrgID]; attempted {
				f.Repaired = repaired
			} else if opts.Repair && s.now().Sub(a.CreatedAt) >= opts.GracePeriod {
				repaired, err := r.removeOrphanAdmins(ctx, a)
				errs = multierror.Append(errs, err)
				orphanOrgs[a.OrgID] = repaired
				f.Repaired = repaired
			}
			report.Findings = append(report.Findings, f)
			continue
		}
		adminCount[org.ID]++
		if a.OrganizationName != org.Name {
			f := Finding{
				Kind:    FindingStaleAdminName,
				OrgID:   org.ID,
				OrgName: org.Name,
				AdminID: a.ID,
				Detail:  fmt.Sprintf("admin records organization %q", a.OrganizationName),
			}
			if opts.Repair {
				repaired, err := r.resyncAdminName(ctx, org)
				errs = multierror.Append(errs, err)
				f.Repaired = repaired
			}
			report.Findings = append(report.Findings, f)
		}
	}

	referenced := make(map[string]bool, len(orgs))
	for _, o := range orgs {
		referenced[o.Namespace] = true
		if adminCount[o.ID] == 0 {
			report.Findings = append(report.Findings, Finding{Kind: FindingMissingAdmin, OrgID: o.ID, OrgName: o.Name})
		}
		if o.Namespace != NamespaceFor(o.Name) {
			report.Findings = append(report.Findings, Finding{
				Kind:      FindingNamespaceDiverged,
				OrgID:     o.ID,
				OrgName:   o.Name,
				Namespace: o.Namespace,
				Detail:    fmt.Sprintf("expected %s", NamespaceFor(o.Name)),
			})
		}
		if !haveNamespace[o.Namespace] {
			report.Findings = append(report.Findings, Finding{Kind: FindingMissingNamespace, OrgID: o.ID, OrgName: o.Name, Namespace: o.Namespace})
		}
	}
	for _, ns := range namespaces {
		if !referenced[ns] {
			report.Findings = append(report.Findings, Finding{Kind: FindingOrphanNamespace, Namespace: ns})
		}
	}

	report.FinishedAt = s.now().UTC()
	for _, f := range report.Findings {
		s.instruments.RecordFinding(ctx, string(f.Kind))
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeReconcileFinding,
			ActorID:  audit.ActorSystemReconciler,
			TenantID: f.OrgName,
			Resource: f.OrgID,
			Metadata: map[string]any{
				audit.AttrFindingKind: string(f.Kind),
				audit.AttrNamespace:   f.Namespace,
				"repaired":            f.Repaired,
			},
		})
	}

	return report, errs.ErrorOrNil()
}

// removeOrphanAdmins deletes the admins of an organization that does not
// exist, after re-checking under the name lock the admin was created with.
func (r *Reconciler) removeOrphanAdmins(ctx context.Context, a *identity.Admin) (bool, error) {
	s := r.svc
	unlock := s.locks.Lock(a.OrganizationName)
	defer unlock()

	if _, err := s.orgs.GetByID(ctx, a.OrgID); err == nil {
		return false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return false, apperr.E("tenant.reconcile.check_orphan", err)
	}

	n, err := s.admins.DeleteByOrg(ctx, a.OrgID)
	if err != nil {
		return false, apperr.E("tenant.reconcile.delete_orphan_admins", err)
	}
	slog.InfoContext(ctx, "removed orphan admins", logger.OrgID(a.OrgID), logger.OrgName(a.OrganizationName), logger.Count("admins", int(n)))
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeReconcileRepair,
		ActorID:  audit.ActorSystemReconciler,
		TenantID: a.OrganizationName,
		Resource: a.OrgID,
		Metadata: map[string]any{audit.AttrFindingKind: string(FindingOrphanAdmin), "admins_removed": n},
	})
	return true, nil
}

// resyncAdminName rewrites the admin's denormalized name from the directory.
func (r *Reconciler) resyncAdminName(ctx context.Context, org *Organization) (bool, error) {
	s := r.svc
	unlock := s.locks.Lock(org.Name)
	defer unlock()

	current, err := s.orgs.GetByID(ctx, org.ID)
	if err != nil {
		return false, apperr.E("tenant.reconcile.reload_organization", err)
	}
	if err := s.admins.RenameOrg(ctx, current.ID, current.Name); err != nil {
		return false, apperr.E("tenant.reconcile.resync_admin_name", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeReconcileRepair,
		ActorID:  audit.ActorSystemReconciler,
		TenantID: current.Name,
		Resource: current.ID,
		Metadata: map[string]any{audit.AttrFindingKind: string(FindingStaleAdminName)},
	})
	return true, nil
}

// Run reconciles every interval until ctx is done. Non-positive intervals
// disable the loop.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration, opts ReconcileOptions) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := r.Reconcile(ctx, opts)
			if err != nil {
				slog.ErrorContext(ctx, "reconciliation failed", logger.Component("reconciler"), logger.Error(err))
			}
			if report != nil && !report.Clean() {
				slog.WarnContext(ctx, "reconciliation found inconsistencies",
					logger.Component("reconciler"),
					logger.Count("findings", len(report.Findings)),
				)
			}
		}
	}
}
