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
	"log/slog"
	"time"

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/observability/logger"
	"github.com/opentrusty/orgkeeper/internal/tenant"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type markerDoc struct {
	Info      string    `bson:"info"`
	CreatedAt time.Time `bson:"created_at"`
}

// NamespaceStore implements tenant.NamespaceStore with one collection per
// namespace.
type NamespaceStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Create creates the collection and writes the marker document into it.
func (n *NamespaceStore) Create(ctx context.Context, namespace string, marker tenant.Marker) error {
	if err := n.db.CreateCollection(ctx, namespace); err != nil {
		if hasCode(err, codeNamespaceExists) {
			return tenant.ErrNamespaceExists
		}
		return fmt.Errorf("failed to create collection %s: %w", namespace, classify(err))
	}

	_, err := n.db.Collection(namespace).InsertOne(ctx, markerDoc{Info: marker.Info, CreatedAt: marker.CreatedAt})
	if err != nil {
		discardNamespace(ctx, namespace, n.db.Collection(namespace).Drop)
		return fmt.Errorf("failed to write marker into %s: %w", namespace, classify(err))
	}
	return nil
}

// Rename renames the collection with the renameCollection admin command.
// Any failure other than a connectivity problem is reported as
// rename_unsupported: sharded and restricted deployments refuse the command.
func (n *NamespaceStore) Rename(ctx context.Context, oldNamespace, newNamespace string) error {
	cmd := bson.D{
		{Key: "renameCollection", Value: n.db.Name() + "." + oldNamespace},
		{Key: "to", Value: n.db.Name() + "." + newNamespace},
	}
	err := n.client.Database("admin").RunCommand(ctx, cmd).Err()
	if err == nil {
		return nil
	}
	if unavailable(err) {
		return fmt.Errorf("failed to rename collection %s: %w", oldNamespace, apperr.Wrap(apperr.KindStoreUnavailable, "", err))
	}
	reason := "rename refused"
	switch {
	case hasCode(err, codeNamespaceNotFound):
		reason = "source collection does not exist"
	case hasCode(err, codeNamespaceExists):
		reason = "target collection already exists"
	}
	return apperr.Wrap(apperr.KindRenameUnsupported, "",
		fmt.Errorf("failed to rename collection %s to %s: %s: %w", oldNamespace, newNamespace, reason, err))
}

// discardNamespace drops a namespace left empty by a failed marker write. A
// failure is logged only; the reconciler reports the namespace as orphaned.
func discardNamespace(ctx context.Context, namespace string, drop func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	if err := drop(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to drop namespace after marker write failed",
			logger.Namespace(namespace),
			logger.Error(err),
		)
	}
}

// Drop drops the collection. Dropping a missing collection succeeds.
func (n *NamespaceStore) Drop(ctx context.Context, namespace string) error {
	if err := n.db.Collection(namespace).Drop(ctx); err != nil && !hasCode(err, codeNamespaceNotFound) {
		return fmt.Errorf("failed to drop collection %s: %w", namespace, classify(err))
	}
	return nil
}

// Exists reports whether the collection exists
func (n *NamespaceStore) Exists(ctx context.Context, namespace string) (bool, error) {
	names, err := n.db.ListCollectionNames(ctx, bson.M{"name": namespace})
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", classify(err))
	}
	return len(names) > 0, nil
}

// List returns every collection named with the namespace prefix
func (n *NamespaceStore) List(ctx context.Context) ([]string, error) {
	names, err := n.db.ListCollectionNames(ctx, bson.M{"name": bson.M{"$regex": "^" + tenant.NamespacePrefix}})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", classify(err))
	}
	return names, nil
}

// Marker reads the marker document of a namespace.
func (n *NamespaceStore) Marker(ctx context.Context, namespace string) (tenant.Marker, error) {
	var doc markerDoc
	err := n.db.Collection(namespace).FindOne(ctx, bson.M{"info": tenant.MarkerInfo}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tenant.Marker{}, errNotFound
	}
	if err != nil {
		return tenant.Marker{}, fmt.Errorf("failed to read marker of %s: %w", namespace, classify(err))
	}
	return tenant.Marker{Info: doc.Info, CreatedAt: doc.CreatedAt}, nil
}

var _ tenant.NamespaceStore = (*NamespaceStore)(nil)
