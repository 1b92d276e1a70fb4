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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/audit"
	"github.com/opentrusty/orgkeeper/internal/observability/logger"
)

// TokenIssuer signs bearer tokens binding a subject to an organization.
type TokenIssuer interface {
	Issue(subject, orgID, organization string, ttl time.Duration) (string, error)
}

// OrgResolver returns the current name of an organization by stable ID.
type OrgResolver interface {
	OrganizationName(ctx context.Context, orgID string) (string, error)
}

// LoginResult is returned on successful authentication
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	OrgName     string `json:"org_name"`
}

// Service authenticates organization admins and issues tokens.
type Service struct {
	admins      AdminRepository
	orgs        OrgResolver
	hasher      *PasswordHasher
	tokens      TokenIssuer
	tokenTTL    time.Duration
	auditLogger audit.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new identity service
func NewService(
	admins AdminRepository,
	orgs OrgResolver,
	hasher *PasswordHasher,
	tokens TokenIssuer,
	tokenTTL time.Duration,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		admins:      admins,
		orgs:        orgs,
		hasher:      hasher,
		tokens:      tokens,
		tokenTTL:    tokenTTL,
		auditLogger: auditLogger,
	}
}

// Login verifies an admin's email and password and issues a token scoped to
// the admin's organization.
//
// The same email may administer several organizations; candidates are tried
// oldest first and the first whose password verifies wins. The organization
// name in the token is resolved through the organization directory, never
// from the admin record's denormalized copy.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.loginFailed(ctx, email, "missing_credentials")
		return nil, ErrInvalidCredentials
	}

	candidates, err := s.admins.ListByEmail(ctx, email)
	if err != nil {
		return nil, apperr.E("identity.login.lookup", err)
	}
	if len(candidates) == 0 {
		s.verifyDummy(password)
	}

	for _, admin := range candidates {
		ok, err := s.hasher.Verify(password, admin.PasswordHash)
		if err != nil {
			slog.WarnContext(ctx, "skipping admin with unreadable password hash",
				logger.AdminID(admin.ID),
				logger.OrgID(admin.OrgID),
				logger.Error(err),
			)
			continue
		}
		if !ok {
			continue
		}

		orgName, err := s.orgs.OrganizationName(ctx, admin.OrgID)
		if errors.Is(err, apperr.ErrNotFound) {
			// Orphaned admin: its organization no longer exists.
			s.loginFailed(ctx, email, "organization_missing")
			return nil, ErrInvalidCredentials
		}
		if err != nil {
			return nil, apperr.E("identity.login.resolve_org", err)
		}

		token, err := s.tokens.Issue(admin.Email, admin.OrgID, orgName, s.tokenTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to issue token: %w", err)
		}

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginSuccess,
			TenantID: orgName,
			ActorID:  admin.ID,
			Resource: "login",
		})
		if s.hasher.NeedsRehash(admin.PasswordHash) {
			s.upgradeHash(ctx, admin, password)
		}

		return &LoginResult{
			AccessToken: token,
			TokenType:   "bearer",
			OrgName:     orgName,
		}, nil
	}

	s.loginFailed(ctx, email, "invalid_password_or_unknown_email")
	return nil, ErrInvalidCredentials
}

// verifyDummy spends one verification on a throwaway hash so an unknown
// email costs as much as a wrong password.
func (s *Service) verifyDummy(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("unknown-admin")
	})
	_, _ = s.hasher.Verify(password, s.dummyHash)
}

// upgradeHash replaces a legacy hash after a successful login. Failures are
// logged only; the old hash keeps working.
func (s *Service) upgradeHash(ctx context.Context, admin *Admin, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.admins.UpdateCredentials(ctx, admin.OrgID, CredentialUpdate{PasswordHash: newHash})
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to upgrade legacy password hash", logger.AdminID(admin.ID), logger.Error(err))
		return
	}
	slog.InfoContext(ctx, "upgraded legacy password hash", logger.AdminID(admin.ID))
}

func (s *Service) loginFailed(ctx context.Context, email, reason string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginFailed,
		Resource: email,
		Metadata: map[string]any{audit.AttrReason: reason},
	})
}
