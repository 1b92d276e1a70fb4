//go:build integration

package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/audit"
	"github.com/opentrusty/orgkeeper/internal/identity"
	"github.com/opentrusty/orgkeeper/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setupDB(t *testing.T) *DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := New(ctx, Config{
		Host:         envOr("POSTGRES_HOST", "localhost"),
		Port:         envOr("POSTGRES_PORT", "5432"),
		User:         envOr("POSTGRES_USER", "orgkeeper"),
		Password:     envOr("POSTGRES_PASSWORD", "orgkeeper_dev_password"),
		Database:     envOr("POSTGRES_DB", "orgkeeper_test"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	_, err = db.Migrate(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Reset(ctx))
	t.Cleanup(func() {
		_ = db.Reset(context.Background())
		db.Close()
	})
	return db
}

// TestPurpose: Validates the full organization lifecycle against PostgreSQL, including a physical namespace rename.
// Scope: Database Integration Test
// Security: Tenant data lifecycle
// Expected: Create, Update with rename, Get, Reconcile and Delete behave as with the in-memory store.
// Test Case ID: PG-01
func TestPostgres_Lifecycle(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	svc := tenant.NewService(db.Organizations(), db.Admins(), db.Namespaces(),
		identity.NewPasswordHasher(1024, 1, 1, 16, 32),
		audit.NewSlogLoggerWith(slog.New(slog.NewTextHandler(io.Discard, nil))))

	rec, err := svc.Create(ctx, "acme", "admin@acme.io", "pw123")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "acme", "admin@acme.io", "pw123")
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	marker, err := db.Namespaces().Marker(ctx, "org_acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.MarkerInfo, marker.Info)

	res, err := svc.Update(ctx, "acme", tenant.UpdateRequest{NewName: "acme2", Email: "new@acme.io"})
	require.NoError(t, err)
	assert.True(t, res.NamespaceRenamed)

	view, err := svc.Get(ctx, "acme2")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, view.ID)
	assert.Equal(t, "org_acme2", view.Namespace)
	assert.Equal(t, "new@acme.io", view.AdminEmail)

	report, err := tenant.NewReconciler(svc).Reconcile(ctx, tenant.ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, report.Clean(), report.Findings)

	require.NoError(t, svc.Delete(ctx, "acme2"))
	_, err = svc.Get(ctx, "acme2")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	names, err := db.Namespaces().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

// TestPurpose: Validates that the unique constraint on organization names is surfaced as a conflict.
// Scope: Database Integration Test
// Security: Organization name uniqueness
// Expected: The second insert with the same name fails with kind conflict.
// Test Case ID: PG-02
func TestPostgres_UniqueNameConstraint(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	repo := db.Organizations()
	require.NoError(t, repo.Create(ctx, &tenant.Organization{ID: "01920000-0000-7000-8000-000000000001", Name: "acme", Namespace: "org_acme", CreatedAt: now, UpdatedAt: now}))
	err := repo.Create(ctx, &tenant.Organization{ID: "01920000-0000-7000-8000-000000000002", Name: "acme", Namespace: "org_acme", CreatedAt: now, UpdatedAt: now})
	assert.True(t, errors.Is(err, tenant.ErrOrganizationExists))
}

// TestPurpose: Validates namespace table creation, duplicate detection, rename failure mapping and idempotent drop.
// Scope: Database Integration Test
// Security: Tenant namespace isolation
// Expected: Duplicate create is a conflict, renaming a missing table is rename_unsupported, drop is idempotent.
// Test Case ID: PG-03
func TestPostgres_NamespaceStore(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	ns := db.Namespaces()

	require.NoError(t, ns.Create(ctx, "org_a", tenant.Marker{Info: tenant.MarkerInfo, CreatedAt: time.Now()}))
	assert.True(t, errors.Is(ns.Create(ctx, "org_a", tenant.Marker{}), apperr.ErrConflict))

	err := ns.Rename(ctx, "org_missing", "org_b")
	assert.Equal(t, apperr.KindRenameUnsupported, apperr.KindOf(err))

	require.NoError(t, ns.Drop(ctx, "org_a"))
	require.NoError(t, ns.Drop(ctx, "org_a"))
	exists, err := ns.Exists(ctx, "org_a")
	require.NoError(t, err)
	assert.False(t, exists)
}
