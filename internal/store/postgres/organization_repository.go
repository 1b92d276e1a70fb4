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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/orgkeeper/internal/tenant"
)

// OrganizationRepository implements tenant.Repository
type OrganizationRepository struct {
	db *DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create inserts a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *tenant.Organization) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO organizations (id, organization_name, collection_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, org.ID, org.Name, org.Namespace, org.CreatedAt, org.UpdatedAt)
	if pgCode(err) == codeUniqueViolation {
		return tenant.ErrOrganizationExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert organization: %w", classify(err))
	}
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*tenant.Organization, error) {
	return r.getOne(ctx, "id", id)
}

// GetByName retrieves an organization by name
func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*tenant.Organization, error) {
	return r.getOne(ctx, "organization_name", name)
}

func (r *OrganizationRepository) getOne(ctx context.Context, column, value string) (*tenant.Organization, error) {
	var org tenant.Organization
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, organization_name, collection_name, created_at, updated_at
		FROM organizations
		WHERE `+column+` = $1
	`, value).Scan(&org.ID, &org.Name, &org.Namespace, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenant.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", classify(err))
	}
	return &org, nil
}

// Update rewrites name and namespace
func (r *OrganizationRepository) Update(ctx context.Context, org *tenant.Organization) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE organizations
		SET organization_name = $2, collection_name = $3, updated_at = $4
		WHERE id = $1
	`, org.ID, org.Name, org.Namespace, org.UpdatedAt)
	if pgCode(err) == codeUniqueViolation {
		return tenant.ErrOrganizationExists
	}
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrOrganizationNotFound
	}
	return nil
}

// Delete removes an organization
func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrOrganizationNotFound
	}
	return nil
}

// List returns every organization, oldest first
func (r *OrganizationRepository) List(ctx context.Context) ([]*tenant.Organization, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, organization_name, collection_name, created_at, updated_at
		FROM organizations
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", classify(err))
	}
	defer rows.Close()

	var orgs []*tenant.Organization
	for rows.Next() {
		var org tenant.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Namespace, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, &org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", classify(err))
	}
	return orgs, nil
}

var _ tenant.Repository = (*OrganizationRepository)(nil)
