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

// Package memory implements the organization directory, the admin directory
// and the namespace store on top of go-memdb. It backs tests and
// STORE_DRIVER=memory; nothing survives a restart.
package memory

import (
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"
)

const (
	tableOrganizations = "organizations"
	tableAdmins        = "admins"
	tableNamespaces    = "namespaces"

	indexID    = "id"
	indexName  = "name"
	indexOrg   = "org"
	indexEmail = "email"
)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableOrganizations: {
				Name: tableOrganizations,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					// memdb does not enforce uniqueness on secondary indexes;
					// writers check the name inside their write txn.
					indexName: {
						Name:    indexName,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
			tableAdmins: {
				Name: tableAdmins,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					indexOrg: {
						Name:    indexOrg,
						Indexer: &memdb.StringFieldIndex{Field: "OrgID"},
					},
					indexEmail: {
						Name:    indexEmail,
						Indexer: &memdb.StringFieldIndex{Field: "Email"},
					},
				},
			},
			tableNamespaces: {
				Name: tableNamespaces,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
		},
	}
}

// Store owns the in-memory database shared by the three repositories.
type Store struct {
	db                *memdb.MemDB
	renameUnsupported atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithRenameUnsupported makes namespace renames fail with kind
// rename_unsupported, like document stores without an in-place rename.
func WithRenameUnsupported() Option {
	return func(s *Store) { s.renameUnsupported.Store(true) }
}

// New creates an empty store.
func New(opts ...Option) (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetRenameUnsupported toggles namespace rename support at runtime.
func (s *Store) SetRenameUnsupported(v bool) {
	s.renameUnsupported.Store(v)
}

// Organizations returns the organization directory.
func (s *Store) Organizations() *OrganizationRepository {
	return &OrganizationRepository{db: s.db}
}

// Admins returns the admin directory.
func (s *Store) Admins() *AdminRepository {
	return &AdminRepository{db: s.db}
}

// Namespaces returns the namespace store.
func (s *Store) Namespaces() *NamespaceStore {
	return &NamespaceStore{store: s}
}

// Reset drops every record.
func (s *Store) Reset() error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	for _, table := range []string{tableOrganizations, tableAdmins, tableNamespaces} {
		if _, err := txn.DeleteAll(table, indexID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	txn.Commit()
	return nil
}
