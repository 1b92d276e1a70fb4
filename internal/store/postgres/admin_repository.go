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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/orgkeeper/internal/identity"
)

const adminColumns = `id, org_id, organization_name, email, password_hash, role, created_at, updated_at`

// AdminRepository implements identity.AdminRepository
type AdminRepository struct {
	db *DB
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(db *DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Create inserts a new admin
func (r *AdminRepository) Create(ctx context.Context, admin *identity.Admin) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO admins (`+adminColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		admin.ID, admin.OrgID, admin.OrganizationName, admin.Email,
		admin.PasswordHash, admin.Role, admin.CreatedAt, admin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert admin: %w", classify(err))
	}
	return nil
}

// GetByOrg returns the oldest admin of an organization
func (r *AdminRepository) GetByOrg(ctx context.Context, orgID string) (*identity.Admin, error) {
	var a identity.Admin
	err := r.db.pool.QueryRow(ctx, `
		SELECT `+adminColumns+`
		FROM admins
		WHERE org_id = $1
		ORDER BY created_at, id
		LIMIT 1
	`, orgID).Scan(&a.ID, &a.OrgID, &a.OrganizationName, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", classify(err))
	}
	return &a, nil
}

// ListByEmail returns every admin using email, oldest first
func (r *AdminRepository) ListByEmail(ctx context.Context, email string) ([]*identity.Admin, error) {
	return r.query(ctx, `
		SELECT `+adminColumns+`
		FROM admins
		WHERE email = $1
		ORDER BY created_at, id
	`, email)
}

// List returns every admin
func (r *AdminRepository) List(ctx context.Context) ([]*identity.Admin, error) {
	return r.query(ctx, `SELECT `+adminColumns+` FROM admins ORDER BY created_at, id`)
}

func (r *AdminRepository) query(ctx context.Context, sql string, args ...any) ([]*identity.Admin, error) {
	rows, err := r.db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", classify(err))
	}
	defer rows.Close()

	var admins []*identity.Admin
	for rows.Next() {
		var a identity.Admin
		if err := rows.Scan(&a.ID, &a.OrgID, &a.OrganizationName, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", classify(err))
	}
	return admins, nil
}

// UpdateCredentials changes email and/or password hash. Empty fields keep
// their stored value.
func (r *AdminRepository) UpdateCredentials(ctx context.Context, orgID string, update identity.CredentialUpdate) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE admins
		SET email = COALESCE(NULLIF($2::text, ''), email),
		    password_hash = COALESCE(NULLIF($3::text, ''), password_hash),
		    updated_at = $4
		WHERE org_id = $1
	`, orgID, update.Email, update.PasswordHash, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update admin credentials: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrAdminNotFound
	}
	return nil
}

// RenameOrg rewrites the denormalized organization name
func (r *AdminRepository) RenameOrg(ctx context.Context, orgID, newName string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE admins SET organization_name = $2, updated_at = $3 WHERE org_id = $1
	`, orgID, newName, time.Now())
	if err != nil {
		return fmt.Errorf("failed to rename admin organization: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrAdminNotFound
	}
	return nil
}

// DeleteByOrg deletes every admin of an organization
func (r *AdminRepository) DeleteByOrg(ctx context.Context, orgID string) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM admins WHERE org_id = $1`, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete admins: %w", classify(err))
	}
	return tag.RowsAffected(), nil
}

var _ identity.AdminRepository = (*AdminRepository)(nil)
