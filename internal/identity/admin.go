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
	"net/mail"
	"strings"
	"time"

	"github.com/opentrusty/orgkeeper/internal/apperr"
)

// RoleAdmin is the role marker stored on organization administrators.
const RoleAdmin = "admin"

// Domain errors
var (
	ErrAdminNotFound      = apperr.New(apperr.KindNotFound, "admin not found")
	ErrInvalidCredentials = apperr.New(apperr.KindInvalidCredentials, "invalid credentials")
	ErrInvalidEmail       = apperr.New(apperr.KindInvalid, "invalid email address")
	ErrInvalidPassword    = apperr.New(apperr.KindInvalid, "password must be between 1 and 1024 bytes")
)

// NormalizeEmail trims email and checks that it is a bare address.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Admin is the administrator credential record of one organization.
//
// OrgID references the organization by its stable identifier.
// OrganizationName is a denormalized copy of the organization's current name;
// it can lag behind after an interrupted rename and is re-synced by
// reconciliation. Tokens never take the organization name from here.
type Admin struct {
	ID               string
	OrgID            string
	OrganizationName string
	Email            string
	PasswordHash     string
	Role             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CredentialUpdate carries the admin fields to change. Empty fields are left
// untouched.
type CredentialUpdate struct {
	Email        string
	PasswordHash string
}

// IsEmpty reports whether the update changes nothing.
func (u CredentialUpdate) IsEmpty() bool {
	return u.Email == "" && u.PasswordHash == ""
}

// AdminRepository is the admin directory. Every method returns an error of
// kind not_found when the addressed record is absent, and store_unavailable
// when the backing store cannot be reached.
type AdminRepository interface {
	// Create inserts a new admin record.
	Create(ctx context.Context, admin *Admin) error

	// GetByOrg returns the admin of an organization.
	GetByOrg(ctx context.Context, orgID string) (*Admin, error)

	// ListByEmail returns all admins using email, oldest first.
	ListByEmail(ctx context.Context, email string) ([]*Admin, error)

	// UpdateCredentials changes the email and/or password hash of an
	// organization's admin.
	UpdateCredentials(ctx context.Context, orgID string, update CredentialUpdate) error

	// RenameOrg rewrites the denormalized organization name on the
	// organization's admin records.
	RenameOrg(ctx context.Context, orgID, newName string) error

	// DeleteByOrg deletes every admin of an organization and reports how
	// many were removed. Deleting zero records is not an error.
	DeleteByOrg(ctx context.Context, orgID string) (int64, error)

	// List returns every admin record.
	List(ctx context.Context) ([]*Admin, error)
}
