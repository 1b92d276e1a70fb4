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

package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/identity"
)

// AdminRepository implements identity.AdminRepository
type AdminRepository struct {
	db *memdb.MemDB
}

func (r *AdminRepository) Create(ctx context.Context, admin *identity.Admin) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	if raw, err := txn.First(tableAdmins, indexID, admin.ID); err != nil {
		return fmt.Errorf("failed to check admin id: %w", err)
	} else if raw != nil {
		return apperr.New(apperr.KindConflict, "admin already exists")
	}

	stored := *admin
	if err := txn.Insert(tableAdmins, &stored); err != nil {
		return fmt.Errorf("failed to insert admin: %w", err)
	}
	txn.Commit()
	return nil
}

func (r *AdminRepository) GetByOrg(ctx context.Context, orgID string) (*identity.Admin, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	admins, err := r.byOrg(txn, orgID)
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, identity.ErrAdminNotFound
	}
	a := *admins[0]
	return &a, nil
}

func (r *AdminRepository) ListByEmail(ctx context.Context, email string) ([]*identity.Admin, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableAdmins, indexEmail, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins by email: %w", err)
	}
	return collect(it), nil
}

func (r *AdminRepository) UpdateCredentials(ctx context.Context, orgID string, update identity.CredentialUpdate) error {
	return r.modify(orgID, func(a *identity.Admin) {
		if update.Email != "" {
			a.Email = update.Email
		}
		if update.PasswordHash != "" {
			a.PasswordHash = update.PasswordHash
		}
	})
}

func (r *AdminRepository) RenameOrg(ctx context.Context, orgID, newName string) error {
	return r.modify(orgID, func(a *identity.Admin) {
		a.OrganizationName = newName
	})
}

// modify applies fn to copies of the organization's admins and stores them.
func (r *AdminRepository) modify(orgID string, fn func(*identity.Admin)) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	admins, err := r.byOrg(txn, orgID)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		return identity.ErrAdminNotFound
	}
	now := time.Now().UTC()
	for _, a := range admins {
		updated := *a
		fn(&updated)
		updated.UpdatedAt = now
		if err := txn.Insert(tableAdmins, &updated); err != nil {
			return fmt.Errorf("failed to update admin: %w", err)
		}
	}
	txn.Commit()
	return nil
}

func (r *AdminRepository) DeleteByOrg(ctx context.Context, orgID string) (int64, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	n, err := txn.DeleteAll(tableAdmins, indexOrg, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete admins: %w", err)
	}
	txn.Commit()
	return int64(n), nil
}

func (r *AdminRepository) List(ctx context.Context) ([]*identity.Admin, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableAdmins, indexID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return collect(it), nil
}

func (r *AdminRepository) byOrg(txn *memdb.Txn, orgID string) ([]*identity.Admin, error) {
	it, err := txn.Get(tableAdmins, indexOrg, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get admins of organization: %w", err)
	}
	return collect(it), nil
}

// collect copies the admins behind it, oldest first.
func collect(it memdb.ResultIterator) []*identity.Admin {
	var admins []*identity.Admin
	for raw := it.Next(); raw != nil; raw = it.Next() {
		a := *raw.(*identity.Admin)
		admins = append(admins, &a)
	}
	slices.SortStableFunc(admins, func(a, b *identity.Admin) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return admins
}
