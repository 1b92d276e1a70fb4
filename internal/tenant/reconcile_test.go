package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/opentrusty/orgkeeper/internal/identity"
	"github.com/opentrusty/orgkeeper/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findingKinds(r *tenant.Report) []tenant.FindingKind {
	kinds := make([]tenant.FindingKind, len(r.Findings))
	for i, f := range r.Findings {
		kinds[i] = f.Kind
	}
	return kinds
}

// TestPurpose: Validates that consistent state produces an empty report.
// Scope: Integration Test (in-memory store)
// Expected: no findings after create, rename and delete.
// Test Case ID: REC-01
func TestReconcile_Clean(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, "acme", "admin@acme.io", "pw123")
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, "globex", "admin@globex.io", "pw123")
	require.NoError(t, err)
	_, err = env.svc.Update(ctx, "acme", tenant.UpdateRequest{NewName: "acme2"})
	require.NoError(t, err)
	require.NoError(t, env.svc.Delete(ctx, "globex"))

	report, err := tenant.NewReconciler(env.svc).Reconcile(ctx, tenant.ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, report.Clean(), report.Findings)
	assert.Equal(t, 1, report.Organizations)
	assert.Equal(t, 1, report.Admins)
	assert.Equal(t, 1, report.Namespaces)
}

// TestPurpose: Validates detection and repair of an admin left behind by an interrupted create.
// Scope: Integration Test (in-memory store)
// Expected: orphan_admin reported; repair removes it; the next pass is clean.
// Test Case ID: REC-02
func TestReconcile_OrphanAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.Admins().Create(ctx, &identity.Admin{
		ID:               "admin-1",
		OrgID:            "org-gone",
		OrganizationName: "ghost",
		Email:            "admin@ghost.io",
		PasswordHash:     "x",
		Role:             identity.RoleAdmin,
		CreatedAt:        time.Now().Add(-time.Hour),
	}))
	rec := tenant.NewReconciler(env.svc)

	report, err := rec.Reconcile(ctx, tenant.ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, []tenant.FindingKind{tenant.FindingOrphanAdmin}, findingKinds(report))
	assert.False(t, report.Findings[0].Repaired)

	report, err = rec.Reconcile(ctx, tenant.ReconcileOptions{Repair: true})
	require.NoError(t, err)
	require.Equal(t, 1, report.Count(tenant.FindingOrphanAdmin))
	assert.True(t, report.Findings[0].Repaired)

	report, err = rec.Reconcile(ctx, tenant.ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

// TestPurpose: Validates that young orphan admins are left alone during repair.
// Scope: Integration Test (in-memory store)
// Expected: finding reported, not repaired, record kept.
// Test Case ID: REC-03
func TestReconcile_OrphanAdminGracePeriod(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.Admins().Create(ctx, &identity.Admin{
		ID: "admin-1", OrgID: "org-pending", OrganizationName: "pending",
		Email: "admin@pending.io", PasswordHash: "x", CreatedAt: time.Now(),
	}))

	report, err := tenant.NewReconciler(env.svc).Reconcile(ctx, tenant.ReconcileOptions{Repair: true, GracePeriod: time.Hour})
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.False(t, report.Findings[0].Repaired)

	admins, err := env.store.Admins().List(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 1)
}

// TestPurpose: Validates detection and repair of a rename interrupted before the admin record was updated.
// Scope: Integration Test (in-memory store)
// Expected: stale_admin_name reported; repair copies the directory name onto the admin.
// Test Case ID: REC-04
func TestReconcile_StaleAdminName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.svc.Create(ctx, "acme", "admin@acme.io", "pw123")
	require.NoError(t, err)
	require.NoError(t, env.store.Admins().RenameOrg(ctx, rec.ID, "acme-old"))

	r := tenant.NewReconciler(env.svc)
	report, err := r.Reconcile(ctx, tenant.ReconcileOptions{Repair: true})
	require.NoError(t, err)
	require.Equal(t, []tenant.FindingKind{tenant.FindingStaleAdminName}, findingKinds(report))
	assert.True(t, report.Findings[0].Repaired)

	admin, err := env.store.Admins().GetByOrg(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", admin.OrganizationName)

	report, err = r.Reconcile(ctx, tenant.ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

// TestPurpose: Validates detection of missing admins and namespace divergence.
// Scope: Integration Test (in-memory store)
// Expected: missing_admin, missing_namespace and orphan_namespace reported; namespaces are never dropped by repair.
// Test Case ID: REC-05
func TestReconcile_MissingRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.svc.Create(ctx, "acme", "admin@acme.io", "pw123")
	require.NoError(t, err)
	_, err = env.store.Admins().DeleteByOrg(ctx, rec.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.Namespaces().Drop(ctx, "org_acme"))
	require.NoError(t, env.store.Namespaces().Create(ctx, "org_stray", tenant.Marker{Info: tenant.MarkerInfo}))

	report, err := tenant.NewReconciler(env.svc).Reconcile(ctx, tenant.ReconcileOptions{Repair: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []tenant.FindingKind{
		tenant.FindingMissingAdmin,
		tenant.FindingMissingNamespace,
		tenant.FindingOrphanNamespace,
	}, findingKinds(report))

	exists, err := env.store.Namespaces().Exists(ctx, "org_stray")
	require.NoError(t, err)
	assert.True(t, exists)

	view, err := env.svc.Get(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, view.AdminMissing)
	assert.Equal(t, tenant.UnknownAdmin, view.AdminEmail)
}

func TestReconciler_RunStopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tenant.NewReconciler(env.svc).Run(ctx, 5*time.Millisecond, tenant.ReconcileOptions{})
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}

	// disabled interval returns immediately
	tenant.NewReconciler(env.svc).Run(context.Background(), 0, tenant.ReconcileOptions{})
}
