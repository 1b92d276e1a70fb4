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
	"sort"
	"strings"

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/tenant"
)

// namespace is one tenant partition. Documents holds whatever was written to
// it; only the marker is written here.
type namespace struct {
	Name      string
	Documents []any
}

// NamespaceStore implements tenant.NamespaceStore
type NamespaceStore struct {
	store *Store
}

func (n *NamespaceStore) Create(ctx context.Context, name string, marker tenant.Marker) error {
	txn := n.store.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableNamespaces, indexID, name)
	if err != nil {
		return fmt.Errorf("failed to check namespace: %w", err)
	}
	if raw != nil {
		return tenant.ErrNamespaceExists
	}
	if err := txn.Insert(tableNamespaces, &namespace{Name: name, Documents: []any{marker}}); err != nil {
		return fmt.Errorf("failed to create namespace: %w", err)
	}
	txn.Commit()
	return nil
}

func (n *NamespaceStore) Rename(ctx context.Context, oldName, newName string) error {
	if n.store.renameUnsupported.Load() {
		return apperr.New(apperr.KindRenameUnsupported, "namespace rename is disabled")
	}

	txn := n.store.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableNamespaces, indexID, oldName)
	if err != nil {
		return fmt.Errorf("failed to get namespace: %w", err)
	}
	if raw == nil {
		return apperr.Wrap(apperr.KindRenameUnsupported, "", fmt.Errorf("namespace %s does not exist", oldName))
	}
	if taken, err := txn.First(tableNamespaces, indexID, newName); err != nil {
		return fmt.Errorf("failed to check namespace: %w", err)
	} else if taken != nil {
		return apperr.Wrap(apperr.KindRenameUnsupported, "", fmt.Errorf("namespace %s already exists", newName))
	}

	current := raw.(*namespace)
	if err := txn.Delete(tableNamespaces, current); err != nil {
		return fmt.Errorf("failed to rename namespace: %w", err)
	}
	if err := txn.Insert(tableNamespaces, &namespace{Name: newName, Documents: current.Documents}); err != nil {
		return fmt.Errorf("failed to rename namespace: %w", err)
	}
	txn.Commit()
	return nil
}

func (n *NamespaceStore) Drop(ctx context.Context, name string) error {
	txn := n.store.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(tableNamespaces, indexID, name); err != nil {
		return fmt.Errorf("failed to drop namespace: %w", err)
	}
	txn.Commit()
	return nil
}

func (n *NamespaceStore) Exists(ctx context.Context, name string) (bool, error) {
	txn := n.store.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableNamespaces, indexID, name)
	if err != nil {
		return false, fmt.Errorf("failed to get namespace: %w", err)
	}
	return raw != nil, nil
}

func (n *NamespaceStore) List(ctx context.Context) ([]string, error) {
	txn := n.store.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableNamespaces, indexID+"_prefix", tenant.NamespacePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	var names []string
	for raw := it.Next(); raw != nil; raw = it.Next() {
		names = append(names, raw.(*namespace).Name)
	}
	sort.Strings(names)
	return names, nil
}

// Marker returns the marker record written when name was created.
func (n *NamespaceStore) Marker(ctx context.Context, name string) (tenant.Marker, error) {
	txn := n.store.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableNamespaces, indexID, name)
	if err != nil {
		return tenant.Marker{}, fmt.Errorf("failed to get namespace: %w", err)
	}
	if raw == nil {
		return tenant.Marker{}, apperr.New(apperr.KindNotFound, "namespace not found")
	}
	for _, doc := range raw.(*namespace).Documents {
		if m, ok := doc.(tenant.Marker); ok && strings.TrimSpace(m.Info) != "" {
			return m, nil
		}
	}
	return tenant.Marker{}, apperr.New(apperr.KindNotFound, "namespace has no marker")
}
