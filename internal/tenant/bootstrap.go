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
	"os"

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/audit"
	"github.com/opentrusty/orgkeeper/internal/observability/logger"
)

const (
	EnvBootstrapOrgName       = "BOOTSTRAP_ORG_NAME"
	EnvBootstrapAdminEmail    = "BOOTSTRAP_ADMIN_EMAIL"
	EnvBootstrapAdminPassword = "BOOTSTRAP_ADMIN_PASSWORD"
)

// BootstrapService provisions the initial organization on startup
type BootstrapService struct {
	svc         *Service
	auditLogger audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(svc *Service, auditLogger audit.Logger) *BootstrapService {
	return &BootstrapService{svc: svc, auditLogger: auditLogger}
}

// Bootstrap creates the organization named by BOOTSTRAP_ORG_NAME unless it
// already exists. It does nothing when the variable is unset and reports
// whether it created anything.
func (b *BootstrapService) Bootstrap(ctx context.Context) (bool, error) {
	name := os.Getenv(EnvBootstrapOrgName)
	if name == "" {
		return false, nil
	}
	email := os.Getenv(EnvBootstrapAdminEmail)
	password := os.Getenv(EnvBootstrapAdminPassword)
	if email == "" || password == "" {
		return false, apperr.New(apperr.KindInvalid,
			EnvBootstrapAdminEmail+" and "+EnvBootstrapAdminPassword+" are required with "+EnvBootstrapOrgName)
	}

	if _, err := b.svc.orgs.GetByName(ctx, name); err == nil {
		return false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return false, apperr.E("tenant.bootstrap.lookup", err)
	}

	rec, err := b.svc.Create(ctx, name, email, password)
	if errors.Is(err, apperr.ErrConflict) && apperr.OpOf(err) == opCreateCheckName {
		// created concurrently by another instance
		return false, nil
	}
	if err != nil {
		return false, err
	}

	slog.InfoContext(ctx, "bootstrapped initial organization",
		logger.OrgName(rec.Name),
		logger.OrgID(rec.ID),
		logger.Namespace(rec.Namespace),
	)
	b.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeOrgBootstrapped,
		TenantID: rec.Name,
		ActorID:  audit.ActorSystemBootstrap,
		Resource: rec.ID,
	})
	return true, nil
}
