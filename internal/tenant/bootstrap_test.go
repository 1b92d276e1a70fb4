package tenant_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/audit"
	"github.com/opentrusty/orgkeeper/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates startup provisioning of the initial organization.
// Scope: Integration Test (in-memory store)
// Expected: created once; later runs are no-ops; incomplete configuration is rejected.
// Test Case ID: BOOT-01
func TestBootstrap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := tenant.NewBootstrapService(env.svc, audit.NewSlogLoggerWith(slog.New(slog.NewTextHandler(io.Discard, nil))))

	created, err := b.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, created, "no configuration")

	t.Setenv(tenant.EnvBootstrapOrgName, "acme")
	t.Setenv(tenant.EnvBootstrapAdminEmail, "admin@acme.io")
	t.Setenv(tenant.EnvBootstrapAdminPassword, "")
	_, err = b.Bootstrap(ctx)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	t.Setenv(tenant.EnvBootstrapAdminPassword, "pw123")
	created, err = b.Bootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = b.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	view, err := env.svc.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "admin@acme.io", view.AdminEmail)
}
