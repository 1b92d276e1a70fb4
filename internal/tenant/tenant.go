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
	"regexp"
	"time"

	"github.com/opentrusty/orgkeeper/internal/apperr"
)

// NamespacePrefix prefixes every tenant namespace.
const NamespacePrefix = "org_"

// MarkerInfo is written into every freshly created namespace.
const MarkerInfo = "Collection Initialized"

// UnknownAdmin is reported as the admin email when an organization has no
// admin record.
const UnknownAdmin = "Unknown"

// StatusUpdated is the status of a successful update.
const StatusUpdated = "updated"

// Domain errors
var (
	ErrOrganizationNotFound = apperr.New(apperr.KindNotFound, "organization not found")
	ErrOrganizationExists   = apperr.New(apperr.KindConflict, "organization already exists")
	ErrNamespaceExists      = apperr.New(apperr.KindConflict, "namespace already exists")
	ErrInvalidName          = apperr.New(apperr.KindInvalid, "organization name must be 1-56 characters of letters, digits, '_' or '-' and start with a letter or digit")
	ErrForbidden            = apperr.New(apperr.KindForbidden, "you can only manage your own organization")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,55}$`)

// Organization is the directory record of a tenant.
//
// Name is unique and renameable; ID never changes. Namespace normally equals
// NamespaceFor(Name) but keeps the old physical name after a rename the
// namespace store could not carry out.
type Organization struct {
	ID        string
	Name      string
	Namespace string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NamespaceFor returns the namespace identifier derived from an organization
// name.
func NamespaceFor(name string) string {
	return NamespacePrefix + name
}

// ValidateName checks that name can be used as an organization name and,
// prefixed, as a namespace identifier in every supported store.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}

// Marker is the record written into a namespace on creation.
type Marker struct {
	Info      string
	CreatedAt time.Time
}

// OrgRecord is returned by Create.
type OrgRecord struct {
	ID         string    `json:"organization_id"`
	Name       string    `json:"organization_name"`
	Namespace  string    `json:"collection_name"`
	AdminEmail string    `json:"admin_email"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrgView is the joined read model returned by Get. AdminMissing is set when
// the organization has no admin record; AdminEmail is then UnknownAdmin.
type OrgView struct {
	ID           string    `json:"organization_id"`
	Name         string    `json:"organization_name"`
	Namespace    string    `json:"collection_name"`
	AdminEmail   string    `json:"admin_email"`
	AdminMissing bool      `json:"admin_missing,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Caller identifies an authenticated admin acting on an organization.
// OrgID is the stable ID the caller's token was issued for; OrgName is the
// organization's name at issue time and may since have changed.
type Caller struct {
	OrgID   string
	OrgName string
	Subject string
}

func (c *Caller) actor() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// UpdateRequest lists the fields to change. Empty fields are left as they are.
type UpdateRequest struct {
	NewName  string
	Email    string
	Password string
}

// StatusRecord is returned by Update.
//
// NamespaceRenamed is false when a rename was applied to the directories only
// because the namespace store could not rename the namespace itself; Namespace
// then still carries the old physical name.
type StatusRecord struct {
	Status           string `json:"status"`
	NewName          string `json:"new_name"`
	Namespace        string `json:"collection_name"`
	NamespaceRenamed bool   `json:"namespace_renamed"`
}
