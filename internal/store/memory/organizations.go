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

	"github.com/hashicorp/go-memdb"
	"github.com/opentrusty/orgkeeper/internal/tenant"
)

// OrganizationRepository implements tenant.Repository
type OrganizationRepository struct {
	db *memdb.MemDB
}

func (r *OrganizationRepository) Create(ctx context.Context, org *tenant.Organization) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	if raw, err := txn.First(tableOrganizations, indexName, org.Name); err != nil {
		return fmt.Errorf("failed to check organization name: %w", err)
	} else if raw != nil {
		return tenant.ErrOrganizationExists
	}
	if raw, err := txn.First(tableOrganizations, indexID, org.ID); err != nil {
		return fmt.Errorf("failed to check organization id: %w", err)
	} else if raw != nil {
		return tenant.ErrOrganizationExists
	}

	stored := *org
	if err := txn.Insert(tableOrganizations, &stored); err != nil {
		return fmt.Errorf("failed to insert organization: %w", err)
	}
	txn.Commit()
	return nil
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*tenant.Organization, error) {
	return r.first(indexID, id)
}

func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*tenant.Organization, error) {
	return r.first(indexName, name)
}

func (r *OrganizationRepository) first(index, value string) (*tenant.Organization, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableOrganizations, index, value)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if raw == nil {
		return nil, tenant.ErrOrganizationNotFound
	}
	org := *raw.(*tenant.Organization)
	return &org, nil
}

func (r *OrganizationRepository) Update(ctx context.Context, org *tenant.Organization) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableOrganizations, indexID, org.ID)
	if err != nil {
		return fmt.Errorf("failed to get organization: %w", err)
	}
	if raw == nil {
		return tenant.ErrOrganizationNotFound
	}
	current := raw.(*tenant.Organization)

	if current.Name != org.Name {
		taken, err := txn.First(tableOrganizations, indexName, org.Name)
		if err != nil {
			return fmt.Errorf("failed to check organization name: %w", err)
		}
		if taken != nil {
			return tenant.ErrOrganizationExists
		}
	}

	stored := *current
	stored.Name = org.Name
	stored.Namespace = org.Namespace
	stored.UpdatedAt = org.UpdatedAt
	if err := txn.Insert(tableOrganizations, &stored); err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	txn.Commit()
	return nil
}

func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableOrganizations, indexID, id)
	if err != nil {
		return fmt.Errorf("failed to get organization: %w", err)
	}
	if raw == nil {
		return tenant.ErrOrganizationNotFound
	}
	if err := txn.Delete(tableOrganizations, raw); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	txn.Commit()
	return nil
}

func (r *OrganizationRepository) List(ctx context.Context) ([]*tenant.Organization, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableOrganizations, indexID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	var orgs []*tenant.Organization
	for raw := it.Next(); raw != nil; raw = it.Next() {
		org := *raw.(*tenant.Organization)
		orgs = append(orgs, &org)
	}
	slices.SortStableFunc(orgs, func(a, b *tenant.Organization) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return orgs, nil
}
