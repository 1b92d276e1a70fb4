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

// Package store opens the storage engine selected by configuration.
package store

import (
	"context"
	"fmt"

	"github.com/opentrusty/orgkeeper/internal/config"
	"github.com/opentrusty/orgkeeper/internal/identity"
	"github.com/opentrusty/orgkeeper/internal/store/memory"
	"github.com/opentrusty/orgkeeper/internal/store/mongo"
	"github.com/opentrusty/orgkeeper/internal/store/postgres"
	"github.com/opentrusty/orgkeeper/internal/tenant"
)

// Backend bundles the directories and namespace store of one engine
// together with its maintenance hooks.
type Backend struct {
	Driver        string
	Organizations tenant.Repository
	Admins        identity.AdminRepository
	Namespaces    tenant.NamespaceStore

	health  func(ctx context.Context) error
	migrate func(ctx context.Context) error
	reset   func(ctx context.Context) error
	close   func(ctx context.Context) error
}

// Open connects to the engine named by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		s, err := mongo.Connect(ctx, mongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  cfg.Mongo.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return &Backend{
			Driver:        config.DriverMongo,
			Organizations: s.Organizations(),
			Admins:        s.Admins(),
			Namespaces:    s.Namespaces(),
			health:        s.Health,
			migrate:       s.EnsureIndexes,
			reset:         s.DropDatabase,
			close:         s.Close,
		}, nil

	case config.DriverPostgres:
		db, err := postgres.New(ctx, postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			Database:     cfg.Database.Database,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}
		return &Backend{
			Driver:        config.DriverPostgres,
			Organizations: db.Organizations(),
			Admins:        db.Admins(),
			Namespaces:    db.Namespaces(),
			health:        db.Health,
			migrate: func(ctx context.Context) error {
				_, err := db.Migrate(ctx)
				return err
			},
			reset: db.Reset,
			close: func(context.Context) error {
				db.Close()
				return nil
			},
		}, nil

	case config.DriverMemory:
		s, err := memory.New()
		if err != nil {
			return nil, err
		}
		return &Backend{
			Driver:        config.DriverMemory,
			Organizations: s.Organizations(),
			Admins:        s.Admins(),
			Namespaces:    s.Namespaces(),
			health:        func(context.Context) error { return nil },
			migrate:       func(context.Context) error { return nil },
			reset:         func(context.Context) error { return s.Reset() },
			close:         func(context.Context) error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// Health checks connectivity to the engine.
func (b *Backend) Health(ctx context.Context) error { return b.health(ctx) }

// Migrate prepares the schema: tables for PostgreSQL, indexes for MongoDB.
func (b *Backend) Migrate(ctx context.Context) error { return b.migrate(ctx) }

// Reset removes every organization, admin and namespace.
func (b *Backend) Reset(ctx context.Context) error { return b.reset(ctx) }

// Close releases the connection.
func (b *Backend) Close(ctx context.Context) error { return b.close(ctx) }
