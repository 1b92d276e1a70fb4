package store

import (
	"context"
	"testing"

	"github.com/opentrusty/orgkeeper/internal/config"
	"github.com/opentrusty/orgkeeper/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, &config.Config{Store: config.StoreConfig{Driver: config.DriverMemory}})
	require.NoError(t, err)
	defer b.Close(ctx)

	assert.Equal(t, config.DriverMemory, b.Driver)
	require.NoError(t, b.Health(ctx))
	require.NoError(t, b.Migrate(ctx))

	require.NoError(t, b.Namespaces.Create(ctx, "org_a", tenant.Marker{Info: tenant.MarkerInfo}))
	require.NoError(t, b.Reset(ctx))
	names, err := b.Namespaces.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "sqlite"}})
	assert.ErrorContains(t, err, "sqlite")
}
