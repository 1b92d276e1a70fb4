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

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentrusty/orgkeeper/internal/identity"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type adminDoc struct {
	ID               string    `bson:"_id"`
	OrgID            string    `bson:"org_id"`
	OrganizationName string    `bson:"organization_name"`
	Email            string    `bson:"email"`
	PasswordHash     string    `bson:"password"`
	Role             string    `bson:"role"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func (d *adminDoc) toDomain() *identity.Admin {
	return &identity.Admin{
		ID:               d.ID,
		OrgID:            d.OrgID,
		OrganizationName: d.OrganizationName,
		Email:            d.Email,
		PasswordHash:     d.PasswordHash,
		Role:             d.Role,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// AdminRepository implements identity.AdminRepository
type AdminRepository struct {
	coll *mongo.Collection
}

// Create inserts a new admin
func (r *AdminRepository) Create(ctx context.Context, admin *identity.Admin) error {
	_, err := r.coll.InsertOne(ctx, adminDoc{
		ID:               admin.ID,
		OrgID:            admin.OrgID,
		OrganizationName: admin.OrganizationName,
		Email:            admin.Email,
		PasswordHash:     admin.PasswordHash,
		Role:             admin.Role,
		CreatedAt:        admin.CreatedAt,
		UpdatedAt:        admin.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert admin: %w", classify(err))
	}
	return nil
}

// GetByOrg returns the oldest admin of an organization
func (r *AdminRepository) GetByOrg(ctx context.Context, orgID string) (*identity.Admin, error) {
	var doc adminDoc
	err := r.coll.FindOne(ctx,
		bson.M{"org_id": orgID},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, identity.ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", classify(err))
	}
	return doc.toDomain(), nil
}

// ListByEmail returns every admin using email, oldest first
func (r *AdminRepository) ListByEmail(ctx context.Context, email string) ([]*identity.Admin, error) {
	return r.find(ctx, bson.M{"email": email})
}

// List returns every admin
func (r *AdminRepository) List(ctx context.Context) ([]*identity.Admin, error) {
	return r.find(ctx, bson.M{})
}

func (r *AdminRepository) find(ctx context.Context, filter bson.M) ([]*identity.Admin, error) {
	cur, err := r.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", classify(err))
	}
	var docs []adminDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode admins: %w", classify(err))
	}
	admins := make([]*identity.Admin, len(docs))
	for i := range docs {
		admins[i] = docs[i].toDomain()
	}
	return admins, nil
}

// UpdateCredentials changes email and/or password hash
func (r *AdminRepository) UpdateCredentials(ctx context.Context, orgID string, update identity.CredentialUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Email != "" {
		set["email"] = update.Email
	}
	if update.PasswordHash != "" {
		set["password"] = update.PasswordHash
	}
	return r.updateByOrg(ctx, orgID, set)
}

// RenameOrg rewrites the denormalized organization name
func (r *AdminRepository) RenameOrg(ctx context.Context, orgID, newName string) error {
	return r.updateByOrg(ctx, orgID, bson.M{
		"organization_name": newName,
		"updated_at":        time.Now().UTC(),
	})
}

func (r *AdminRepository) updateByOrg(ctx context.Context, orgID string, set bson.M) error {
	res, err := r.coll.UpdateMany(ctx, bson.M{"org_id": orgID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update admin: %w", classify(err))
	}
	if res.MatchedCount == 0 {
		return identity.ErrAdminNotFound
	}
	return nil
}

// DeleteByOrg deletes every admin of an organization
func (r *AdminRepository) DeleteByOrg(ctx context.Context, orgID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"org_id": orgID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete admins: %w", classify(err))
	}
	return res.DeletedCount, nil
}

var _ identity.AdminRepository = (*AdminRepository)(nil)
