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
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps the connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// New creates a new database connection
func New(ctx context.Context, cfg Config) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", classify(err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", classify(err))
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.pool.Close()
}

// Health checks the connection
func (db *DB) Health(ctx context.Context) error {
	return classify(db.pool.Ping(ctx))
}

// Migrate applies every embedded up migration in file name order. The
// statements are idempotent.
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		script, err := migrations.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if _, err := db.pool.Exec(ctx, string(script)); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", name, classify(err))
		}
	}
	return files, nil
}

// Reset drops every namespace table and empties both directories.
func (db *DB) Reset(ctx context.Context) error {
	names, err := db.Namespaces().List(ctx)
	if err != nil {
		return err
	}
	for _, ns := range names {
		if _, err := db.pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{ns}.Sanitize()); err != nil {
			return fmt.Errorf("failed to drop %s: %w", ns, classify(err))
		}
	}
	if _, err := db.pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join([]string{"admins", "organizations"}, ", ")); err != nil {
		return fmt.Errorf("failed to truncate directories: %w", classify(err))
	}
	return nil
}

// Organizations returns the organization directory.
func (db *DB) Organizations() *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Admins returns the admin directory.
func (db *DB) Admins() *AdminRepository {
	return &AdminRepository{db: db}
}

// Namespaces returns the namespace store.
func (db *DB) Namespaces() *NamespaceStore {
	return &NamespaceStore{db: db}
}
