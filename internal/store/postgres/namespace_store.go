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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/tenant"
)

// NamespaceStore implements tenant.NamespaceStore with one table per
// organization. Each table holds JSONB documents; the first is the marker.
type NamespaceStore struct {
	db *DB
}

// NewNamespaceStore creates a new namespace store
func NewNamespaceStore(db *DB) *NamespaceStore {
	return &NamespaceStore{db: db}
}

type markerDoc struct {
	Info      string    `json:"info"`
	CreatedAt time.Time `json:"created_at"`
}

// Create creates the namespace table and writes the marker in one transaction
func (n *NamespaceStore) Create(ctx context.Context, namespace string, marker tenant.Marker) error {
	doc, err := json.Marshal(markerDoc{Info: marker.Info, CreatedAt: marker.CreatedAt})
	if err != nil {
		return fmt.Errorf("failed to encode marker: %w", err)
	}

	tx, err := n.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	table := pgx.Identifier{namespace}.Sanitize()
	_, err = tx.Exec(ctx, `
		CREATE TABLE `+table+` (
			id BIGSERIAL PRIMARY KEY,
			doc JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if pgCode(err) == codeDuplicateTable {
		return tenant.ErrNamespaceExists
	}
	if err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", namespace, classify(err))
	}

	if _, err := tx.Exec(ctx, `INSERT INTO `+table+` (doc) VALUES ($1)`, doc); err != nil {
		return fmt.Errorf("failed to write marker of %s: %w", namespace, classify(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit namespace %s: %w", namespace, classify(err))
	}
	return nil
}

// Rename renames the namespace table. Anything but a connectivity failure
// is reported as rename_unsupported.
func (n *NamespaceStore) Rename(ctx context.Context, oldNamespace, newNamespace string) error {
	_, err := n.db.pool.Exec(ctx,
		"ALTER TABLE "+pgx.Identifier{oldNamespace}.Sanitize()+" RENAME TO "+pgx.Identifier{newNamespace}.Sanitize())
	if err == nil {
		return nil
	}
	if unavailable(err) {
		return apperr.Wrap(apperr.KindStoreUnavailable, "", err)
	}
	return apperr.Wrap(apperr.KindRenameUnsupported, "", err)
}

// Drop drops the namespace table if it exists
func (n *NamespaceStore) Drop(ctx context.Context, namespace string) error {
	if _, err := n.db.pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{namespace}.Sanitize()); err != nil {
		return fmt.Errorf("failed to drop namespace %s: %w", namespace, classify(err))
	}
	return nil
}

// Exists reports whether the namespace table exists in the current schema
func (n *NamespaceStore) Exists(ctx context.Context, namespace string) (bool, error) {
	var exists bool
	err := n.db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_tables
			WHERE schemaname = current_schema() AND tablename = $1
		)
	`, namespace).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check namespace %s: %w", namespace, classify(err))
	}
	return exists, nil
}

// List returns every namespace table, sorted by name
func (n *NamespaceStore) List(ctx context.Context) ([]string, error) {
	rows, err := n.db.pool.Query(ctx, `
		SELECT tablename FROM pg_tables
		WHERE schemaname = current_schema() AND tablename LIKE $1
		ORDER BY tablename
	`, likePrefix(tenant.NamespacePrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", classify(err))
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", classify(err))
	}
	return names, nil
}

// Marker reads the marker document of a namespace.
func (n *NamespaceStore) Marker(ctx context.Context, namespace string) (tenant.Marker, error) {
	var raw []byte
	err := n.db.pool.QueryRow(ctx,
		`SELECT doc FROM `+pgx.Identifier{namespace}.Sanitize()+` WHERE doc->>'info' = $1 ORDER BY id LIMIT 1`,
		tenant.MarkerInfo,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == codeUndefinedTable {
		return tenant.Marker{}, apperr.New(apperr.KindNotFound, "namespace marker not found")
	}
	if err != nil {
		return tenant.Marker{}, fmt.Errorf("failed to read marker of %s: %w", namespace, classify(err))
	}

	var doc markerDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return tenant.Marker{}, fmt.Errorf("failed to decode marker of %s: %w", namespace, err)
	}
	return tenant.Marker{Info: doc.Info, CreatedAt: doc.CreatedAt}, nil
}

// likePrefix escapes LIKE wildcards in prefix and appends %.
func likePrefix(prefix string) string {
	var b []byte
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '%', '_', '\\':
			b = append(b, '\\')
		}
		b = append(b, prefix[i])
	}
	return string(b) + "%"
}

var _ tenant.NamespaceStore = (*NamespaceStore)(nil)
