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

package tenant

import "context"

// Repository is the organization directory. Implementations must enforce name
// uniqueness themselves and report a violation with kind conflict; that
// constraint is what ultimately protects against concurrent creates.
type Repository interface {
	// Create inserts a new organization
	Create(ctx context.Context, org *Organization) error

	// GetByID retrieves an organization by its stable ID
	GetByID(ctx context.Context, id string) (*Organization, error)

	// GetByName retrieves an organization by its current name
	GetByName(ctx context.Context, name string) (*Organization, error)

	// Update rewrites the name, namespace and update time of an organization
	Update(ctx context.Context, org *Organization) error

	// Delete removes an organization
	Delete(ctx context.Context, id string) error

	// List returns all organizations ordered by creation time
	List(ctx context.Context) ([]*Organization, error)
}

// NamespaceStore manages the isolated data partition backing each
// organization.
type NamespaceStore interface {
	// Create creates an empty namespace holding only marker. An existing
	// namespace yields kind conflict.
	Create(ctx context.Context, namespace string, marker Marker) error

	// Rename renames a namespace in place. Stores that cannot do so return
	// kind rename_unsupported; connectivity failures stay store_unavailable.
	Rename(ctx context.Context, oldNamespace, newNamespace string) error

	// Drop deletes a namespace and its contents. Dropping an absent
	// namespace succeeds.
	Drop(ctx context.Context, namespace string) error

	// Exists reports whether a namespace exists.
	Exists(ctx context.Context, namespace string) (bool, error)

	// List returns every namespace carrying NamespacePrefix.
	List(ctx context.Context) ([]string, error)
}
