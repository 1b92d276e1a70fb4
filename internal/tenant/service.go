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
	"log/slog"
	"time"

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/audit"
	"github.com/opentrusty/orgkeeper/internal/id"
	"github.com/opentrusty/orgkeeper/internal/identity"
	"github.com/opentrusty/orgkeeper/internal/observability/logger"
	"github.com/opentrusty/orgkeeper/internal/observability/metrics"
	"github.com/opentrusty/orgkeeper/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Saga steps, reported as the Op of returned errors.
const (
	opCreateValidate        = "tenant.create.validate"
	opCreateCheckName       = "tenant.create.check_name"
	opCreateHashPassword    = "tenant.create.hash_password"
	opCreateInsertAdmin     = "tenant.create.insert_admin"
	opCreateInsertOrg       = "tenant.create.insert_organization"
	opCreateNamespace       = "tenant.create.create_namespace"
	opGetLookup             = "tenant.get.lookup"
	opGetAdmin              = "tenant.get.admin"
	opUpdateValidate        = "tenant.update.validate"
	opUpdateAuthorize       = "tenant.update.authorize"
	opUpdateLookup          = "tenant.update.lookup"
	opUpdateHashPassword    = "tenant.update.hash_password"
	opUpdateCheckName       = "tenant.update.check_name"
	opUpdateRenameNamespace = "tenant.update.rename_namespace"
	opUpdateOrg             = "tenant.update.update_organization"
	opUpdateRenameAdmin     = "tenant.update.rename_admin"
	opUpdateCredentials     = "tenant.update.update_credentials"
	opDeleteAuthorize       = "tenant.delete.authorize"
	opDeleteLookup          = "tenant.delete.lookup"
	opDeleteNamespace       = "tenant.delete.drop_namespace"
	opDeleteOrg             = "tenant.delete.delete_organization"
	opDeleteAdmins          = "tenant.delete.delete_admins"
	opResolve               = "tenant.resolve"
)

const tracerName = "github.com/opentrusty/orgkeeper/internal/tenant"

// Service is the organization lifecycle manager. It drives the organization
// directory, the admin directory and the namespace store through short
// sagas. The store is assumed to make single writes atomic and nothing more.
//
// Lifecycle operations on the same organization name are serialized within
// the process; across processes the directory's unique name constraint is the
// last line of defense.
type Service struct {
	orgs        Repository
	admins      identity.AdminRepository
	namespaces  NamespaceStore
	hasher      *identity.PasswordHasher
	auditLogger audit.Logger
	instruments *metrics.Instruments
	tracer      trace.Tracer
	locks       *keyLock
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithInstruments records lifecycle metrics on ins.
func WithInstruments(ins *metrics.Instruments) Option {
	return func(s *Service) { s.instruments = ins }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTracer overrides the tracer, which defaults to the global provider's.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService creates a new lifecycle manager
func NewService(
	orgs Repository,
	admins identity.AdminRepository,
	namespaces NamespaceStore,
	hasher *identity.PasswordHasher,
	auditLogger audit.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		orgs:        orgs,
		admins:      admins,
		namespaces:  namespaces,
		hasher:      hasher,
		auditLogger: auditLogger,
		instruments: metrics.NoopInstruments(),
		tracer:      otel.Tracer(tracerName),
		locks:       newKeyLock(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create provisions an organization: admin record first, then the directory
// record, then the namespace with its marker.
//
// The admin goes in before the organization so that a crash between the two
// leaves an orphan admin for the reconciler rather than an organization
// without credentials. When a later step fails the earlier writes are undone
// on a best-effort basis and the error names the failed step.
func (s *Service) Create(ctx context.Context, name, email, password string) (rec *OrgRecord, err error) {
	ctx, span := s.start(ctx, "tenant.Create", name)
	defer s.finish(ctx, span, "create", s.now(), &err)

	if err := ValidateName(name); err != nil {
		return nil, apperr.E(opCreateValidate, err)
	}
	email, err = identity.NormalizeEmail(email)
	if err != nil {
		return nil, apperr.E(opCreateValidate, err)
	}

	unlock := s.locks.Lock(name)
	defer unlock()

	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, apperr.E(opCreateCheckName, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.E(opCreateHashPassword, err)
	}

	now := s.now().UTC()
	org := &Organization{
		ID:        id.NewUUIDv7(),
		Name:      name,
		Namespace: NamespaceFor(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	admin := &identity.Admin{
		ID:               id.NewUUIDv7(),
		OrgID:            org.ID,
		OrganizationName: name,
		Email:            email,
		PasswordHash:     hash,
		Role:             identity.RoleAdmin,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	span.SetAttributes(attribute.String("org.id", org.ID))

	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, apperr.E(opCreateInsertAdmin, err)
	}

	if err := s.orgs.Create(ctx, org); err != nil {
		s.compensate(ctx, opCreateInsertOrg, org, func(ctx context.Context) error {
			_, err := s.admins.DeleteByOrg(ctx, org.ID)
			return err
		})
		return nil, apperr.E(opCreateInsertOrg, err)
	}

	if err := s.namespaces.Create(ctx, org.Namespace, Marker{Info: MarkerInfo, CreatedAt: now}); err != nil {
		s.compensate(ctx, opCreateNamespace, org, func(ctx context.Context) error {
			if err := s.orgs.Delete(ctx, org.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			_, err := s.admins.DeleteByOrg(ctx, org.ID)
			return err
		})
		return nil, apperr.E(opCreateNamespace, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeOrgCreated,
		TenantID: org.Name,
		ActorID:  admin.ID,
		Resource: org.ID,
		Metadata: map[string]any{audit.AttrNamespace: org.Namespace},
	})

	return &OrgRecord{
		ID:         org.ID,
		Name:       org.Name,
		Namespace:  org.Namespace,
		AdminEmail: admin.Email,
		CreatedAt:  org.CreatedAt,
	}, nil
}

// Get returns an organization joined with its admin. A missing admin yields
// a degraded view marked AdminMissing instead of an error.
func (s *Service) Get(ctx context.Context, name string) (view *OrgView, err error) {
	ctx, span := s.start(ctx, "tenant.Get", name)
	defer s.finish(ctx, span, "get", s.now(), &err)

	org, err := s.orgs.GetByName(ctx, name)
	if err != nil {
		return nil, apperr.E(opGetLookup, err)
	}

	view = &OrgView{
		ID:        org.ID,
		Name:      org.Name,
		Namespace: org.Namespace,
		CreatedAt: org.CreatedAt,
	}

	admin, err := s.admins.GetByOrg(ctx, org.ID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		slog.WarnContext(ctx, "organization has no admin record", logger.OrgName(org.Name), logger.OrgID(org.ID))
		view.AdminEmail = UnknownAdmin
		view.AdminMissing = true
	case err != nil:
		return nil, apperr.E(opGetAdmin, err)
	default:
		view.AdminEmail = admin.Email
	}
	return view, nil
}

// List returns every organization.
func (s *Service) List(ctx context.Context) ([]*Organization, error) {
	return s.orgs.List(ctx)
}

// Update renames an organization and/or changes its admin credentials.
//
// A rename moves the namespace, then the directory record, then the admin's
// denormalized name. If the namespace store cannot rename, the update still
// proceeds and the organization keeps its old physical namespace; the result
// reports NamespaceRenamed=false. Credentials are written last, addressed by
// the organization's stable ID, so they always land on the renamed record.
//
// The steps are not atomic. A crash between them leaves the directories
// disagreeing on the name, which the reconciler reports as stale_admin_name.
func (s *Service) Update(ctx context.Context, currentName string, req UpdateRequest) (*StatusRecord, error) {
	return s.update(ctx, currentName, req, nil)
}

// UpdateOrganization updates the caller's own organization, addressed by the
// name in the caller's token. The organization found under that name must
// still be the one the token was issued for; a token outliving a rename
// cannot reach a newer organization that took over the name.
func (s *Service) UpdateOrganization(ctx context.Context, caller Caller, req UpdateRequest) (*StatusRecord, error) {
	if caller.OrgID == "" || caller.OrgName == "" {
		s.denied(ctx, audit.TypeOrgUpdateDenied, opUpdateAuthorize, &caller, caller.OrgName)
		return nil, apperr.E(opUpdateAuthorize, ErrForbidden)
	}
	return s.update(ctx, caller.OrgName, req, &caller)
}

// update implements Update. A non-nil caller must own the organization.
func (s *Service) update(ctx context.Context, currentName string, req UpdateRequest, caller *Caller) (res *StatusRecord, err error) {
	ctx, span := s.start(ctx, "tenant.Update", currentName)
	defer s.finish(ctx, span, "update", s.now(), &err)

	newName := req.NewName
	if newName == "" {
		newName = currentName
	}
	if err := ValidateName(newName); err != nil {
		return nil, apperr.E(opUpdateValidate, err)
	}
	email := req.Email
	if email != "" {
		if email, err = identity.NormalizeEmail(email); err != nil {
			return nil, apperr.E(opUpdateValidate, err)
		}
	}

	unlock := s.locks.Lock(currentName, newName)
	defer unlock()

	org, err := s.orgs.GetByName(ctx, currentName)
	if err != nil {
		return nil, apperr.E(opUpdateLookup, err)
	}
	if err := s.authorize(ctx, caller, org, opUpdateAuthorize, audit.TypeOrgUpdateDenied); err != nil {
		return nil, err
	}

	var hash string
	if req.Password != "" {
		if hash, err = s.hasher.Hash(req.Password); err != nil {
			return nil, apperr.E(opUpdateHashPassword, err)
		}
	}

	res = &StatusRecord{
		Status:    StatusUpdated,
		NewName:   org.Name,
		Namespace: org.Namespace,
	}

	if newName != org.Name {
		if err := s.rename(ctx, org, newName, caller.actor(), res); err != nil {
			return nil, err
		}
	}

	update := identity.CredentialUpdate{Email: email, PasswordHash: hash}
	if !update.IsEmpty() {
		if err := s.admins.UpdateCredentials(ctx, org.ID, update); err != nil {
			return nil, apperr.E(opUpdateCredentials, err)
		}
		changed := []string{}
		if update.Email != "" {
			changed = append(changed, "email")
		}
		if update.PasswordHash != "" {
			changed = append(changed, "password")
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeCredentialsChanged,
			TenantID: org.Name,
			ActorID:  caller.actor(),
			Resource: org.ID,
			Metadata: map[string]any{"fields": changed},
		})
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeOrgUpdated,
		TenantID: org.Name,
		ActorID:  caller.actor(),
		Resource: org.ID,
	})
	return res, nil
}

// rename carries out the rename steps of Update on org and records the
// outcome in res. org is updated in place.
func (s *Service) rename(ctx context.Context, org *Organization, newName, actor string, res *StatusRecord) error {
	if err := s.ensureNameFree(ctx, newName, org.Namespace); err != nil {
		return apperr.E(opUpdateCheckName, err)
	}

	oldName, oldNamespace := org.Name, org.Namespace
	newNamespace := NamespaceFor(newName)

	// Renaming back onto a namespace kept by a logical-only rename needs no
	// physical move.
	renamed, moved := true, false
	if newNamespace != oldNamespace {
		err := s.namespaces.Rename(ctx, oldNamespace, newNamespace)
		switch {
		case err == nil:
			moved = true
		case errors.Is(err, apperr.ErrRenameUnsupported):
			slog.WarnContext(ctx, "namespace rename unsupported, renaming organization logically only",
				logger.OrgID(org.ID),
				logger.OrgName(oldName),
				logger.Namespace(oldNamespace),
				logger.Error(err),
			)
			renamed = false
			newNamespace = oldNamespace
		default:
			return apperr.E(opUpdateRenameNamespace, err)
		}
	}

	org.Name = newName
	org.Namespace = newNamespace
	org.UpdatedAt = s.now().UTC()
	if err := s.orgs.Update(ctx, org); err != nil {
		if moved {
			s.compensate(ctx, opUpdateOrg, org, func(ctx context.Context) error {
				return s.namespaces.Rename(ctx, newNamespace, oldNamespace)
			})
		}
		org.Name, org.Namespace = oldName, oldNamespace
		return apperr.E(opUpdateOrg, err)
	}

	if err := s.admins.RenameOrg(ctx, org.ID, newName); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return apperr.E(opUpdateRenameAdmin, err)
		}
		// The rename is committed; an organization without an admin is
		// reported by the reconciler as missing_admin.
		slog.WarnContext(ctx, "renamed organization has no admin record",
			logger.OrgID(org.ID),
			logger.OrgName(newName),
		)
	}

	eventType := audit.TypeOrgRenamed
	if !renamed {
		eventType = audit.TypeOrgRenamedLogicalOnly
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		TenantID: newName,
		ActorID:  actor,
		Resource: org.ID,
		Metadata: map[string]any{
			audit.AttrOldName:      oldName,
			audit.AttrNewName:      newName,
			audit.AttrOldNamespace: oldNamespace,
			audit.AttrNamespace:    newNamespace,
		},
	})

	res.NewName = newName
	res.Namespace = newNamespace
	res.NamespaceRenamed = renamed
	return nil
}

// Delete tears an organization down: namespace first, then the directory
// record, then its admins. A crash part way leaves metadata pointing at
// already dropped storage, which a retry of Delete cleans up.
func (s *Service) Delete(ctx context.Context, name string) error {
	return s.delete(ctx, name, nil)
}

// DeleteOrganization deletes name on behalf of caller. Callers may only
// delete their own organization, identified by the stable ID in their token
// rather than by name.
func (s *Service) DeleteOrganization(ctx context.Context, name string, caller Caller) error {
	if caller.OrgID == "" {
		s.denied(ctx, audit.TypeOrgDeleteDenied, opDeleteAuthorize, &caller, name)
		return apperr.E(opDeleteAuthorize, ErrForbidden)
	}
	return s.delete(ctx, name, &caller)
}

func (s *Service) delete(ctx context.Context, name string, caller *Caller) (err error) {
	ctx, span := s.start(ctx, "tenant.Delete", name)
	defer s.finish(ctx, span, "delete", s.now(), &err)

	unlock := s.locks.Lock(name)
	defer unlock()

	org, err := s.orgs.GetByName(ctx, name)
	if err != nil {
		return apperr.E(opDeleteLookup, err)
	}
	if err := s.authorize(ctx, caller, org, opDeleteAuthorize, audit.TypeOrgDeleteDenied); err != nil {
		return err
	}

	if err := s.namespaces.Drop(ctx, org.Namespace); err != nil {
		return apperr.E(opDeleteNamespace, err)
	}
	if err := s.orgs.Delete(ctx, org.ID); err != nil {
		return apperr.E(opDeleteOrg, err)
	}
	removed, err := s.admins.DeleteByOrg(ctx, org.ID)
	if err != nil {
		return apperr.E(opDeleteAdmins, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeOrgDeleted,
		TenantID: org.Name,
		ActorID:  caller.actor(),
		Resource: org.ID,
		Metadata: map[string]any{
			audit.AttrNamespace: org.Namespace,
			"admins_removed":    removed,
		},
	})
	return nil
}

// authorize rejects a caller acting on an organization other than its own.
// A nil caller is trusted.
func (s *Service) authorize(ctx context.Context, caller *Caller, org *Organization, step, eventType string) error {
	if caller == nil || org.ID == caller.OrgID {
		return nil
	}
	s.denied(ctx, eventType, step, caller, org.Name)
	return apperr.E(step, ErrForbidden)
}

func (s *Service) denied(ctx context.Context, eventType, step string, caller *Caller, target string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		TenantID: caller.OrgName,
		ActorID:  caller.actor(),
		Resource: target,
		Metadata: map[string]any{
			audit.AttrReason: "organization_mismatch",
			audit.AttrStep:   step,
		},
	})
}

// OrganizationName returns the current name of the organization with the
// given stable ID.
func (s *Service) OrganizationName(ctx context.Context, orgID string) (string, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return "", apperr.E(opResolve, err)
	}
	return org.Name, nil
}

// ensureNameFree returns a conflict if name is taken, either by an
// organization or by the namespace it would need. After a logical-only
// rename the old namespace stays in use under the new name, so the old name
// remains reserved until that organization is deleted. own is the namespace
// of the organization being renamed, if any, and never conflicts. This check
// is advisory; the directory's unique constraint decides.
func (s *Service) ensureNameFree(ctx context.Context, name, own string) error {
	_, err := s.orgs.GetByName(ctx, name)
	switch {
	case err == nil:
		return ErrOrganizationExists
	case !errors.Is(err, apperr.ErrNotFound):
		return err
	}

	namespace := NamespaceFor(name)
	if namespace == own {
		return nil
	}
	exists, err := s.namespaces.Exists(ctx, namespace)
	if err != nil {
		return err
	}
	if exists {
		return ErrNamespaceExists
	}
	return nil
}

// compensate runs undo after step failed. Failures are logged only; the
// reconciler reports whatever is left behind.
func (s *Service) compensate(ctx context.Context, step string, org *Organization, undo func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	if err := undo(ctx); err != nil {
		slog.ErrorContext(ctx, "compensation failed, records left for reconciliation",
			logger.Step(step),
			logger.OrgID(org.ID),
			logger.OrgName(org.Name),
			logger.Error(err),
		)
		return
	}
	slog.InfoContext(ctx, "compensated failed lifecycle step", logger.Step(step), logger.OrgID(org.ID))
}

func (s *Service) start(ctx context.Context, spanName, orgName string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, spanName, trace.WithAttributes(attribute.String("org.name", orgName)))
}

func (s *Service) finish(ctx context.Context, span trace.Span, op string, started time.Time, errp *error) {
	err := *errp
	var kind string
	if err != nil {
		kind = string(apperr.KindOf(err))
		span.SetAttributes(attribute.String("error.kind", kind))
		slog.DebugContext(ctx, "lifecycle operation failed",
			logger.Operation(op),
			logger.Step(apperr.OpOf(err)),
			logger.ErrorKind(kind),
			logger.Error(err),
		)
	}
	ms := float64(s.now().Sub(started)) / float64(time.Millisecond)
	s.instruments.RecordLifecycle(ctx, op, ms, kind)
	tracing.End(span, err)
}
