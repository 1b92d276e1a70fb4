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

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/tenant"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type organizationDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"organization_name"`
	Namespace string    `bson:"collection_name"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d *organizationDoc) toDomain() *tenant.Organization {
	return &tenant.Organization{
		ID:        d.ID,
		Name:      d.Name,
		Namespace: d.Namespace,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// OrganizationRepository implements tenant.Repository
type OrganizationRepository struct {
	coll *mongo.Collection
}

// Create inserts a new organization. The unique index on organization_name
// turns a concurrent duplicate into a conflict.
func (r *OrganizationRepository) Create(ctx context.Context, org *tenant.Organization) error {
	_, err := r.coll.InsertOne(ctx, organizationDoc{
		ID:        org.ID,
		Name:      org.Name,
		Namespace: org.Namespace,
		CreatedAt: org.CreatedAt,
		UpdatedAt: org.UpdatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return tenant.ErrOrganizationExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert organization: %w", classify(err))
	}
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*tenant.Organization, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByName retrieves an organization by name
func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*tenant.Organization, error) {
	return r.findOne(ctx, bson.M{"organization_name": name})
}

func (r *OrganizationRepository) findOne(ctx context.Context, filter bson.M) (*tenant.Organization, error) {
	var doc organizationDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, tenant.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", classify(err))
	}
	return doc.toDomain(), nil
}

// Update rewrites name and namespace
func (r *OrganizationRepository) Update(ctx context.Context, org *tenant.Organization) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": org.ID},
		bson.M{"$set": bson.M{
			"organization_name": org.Name,
			"collection_name":   org.Namespace,
			"updated_at":        org.UpdatedAt,
		}},
	)
	if mongo.IsDuplicateKeyError(err) {
		return tenant.ErrOrganizationExists
	}
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", classify(err))
	}
	if res.MatchedCount == 0 {
		return tenant.ErrOrganizationNotFound
	}
	return nil
}

// Delete removes an organization
func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", classify(err))
	}
	if res.DeletedCount == 0 {
		return tenant.ErrOrganizationNotFound
	}
	return nil
}

// List returns every organization, oldest first
func (r *OrganizationRepository) List(ctx context.Context) ([]*tenant.Organization, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", classify(err))
	}
	var docs []organizationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode organizations: %w", classify(err))
	}
	orgs := make([]*tenant.Organization, len(docs))
	for i := range docs {
		orgs[i] = docs[i].toDomain()
	}
	return orgs, nil
}

var _ tenant.Repository = (*OrganizationRepository)(nil)

// errNotFound is used where no domain sentinel applies.
var errNotFound = apperr.New(apperr.KindNotFound, "not found")
