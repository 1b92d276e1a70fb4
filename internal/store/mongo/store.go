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

// Package mongo stores organizations, admins and tenant namespaces in a
// MongoDB database. Each namespace is a collection of its own next to the
// organizations and admins collections.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	collOrganizations = "organizations"
	collAdmins        = "admins"
)

// Config holds MongoDB connection configuration
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Store wraps a MongoDB client and the master database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect connects to MongoDB and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", classify(err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", classify(err))
	}

	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Health checks the connection
func (s *Store) Health(ctx context.Context) error {
	return classify(s.client.Ping(ctx, readpref.Primary()))
}

// EnsureIndexes creates the indexes the directories rely on. The unique
// index on organization_name is what rejects concurrent creates of the same
// name.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(collOrganizations).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "organization_name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("organization_name_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create organization index: %w", classify(err))
	}

	_, err = s.db.Collection(collAdmins).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "org_id", Value: 1}}, Options: options.Index().SetName("org_id")},
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("email_created_at")},
	})
	if err != nil {
		return fmt.Errorf("failed to create admin indexes: %w", classify(err))
	}
	return nil
}

// DropDatabase removes the master database with every namespace in it.
func (s *Store) DropDatabase(ctx context.Context) error {
	if err := s.db.Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", s.db.Name(), classify(err))
	}
	return nil
}

// Organizations returns the organization directory.
func (s *Store) Organizations() *OrganizationRepository {
	return &OrganizationRepository{coll: s.db.Collection(collOrganizations)}
}

// Admins returns the admin directory.
func (s *Store) Admins() *AdminRepository {
	return &AdminRepository{coll: s.db.Collection(collAdmins)}
}

// Namespaces returns the namespace store.
func (s *Store) Namespaces() *NamespaceStore {
	return &NamespaceStore{client: s.client, db: s.db}
}
