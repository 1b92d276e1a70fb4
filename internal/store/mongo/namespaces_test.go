package mongo

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates that a failed cleanup of a half-created namespace is reported.
// Scope: Unit Test
// Expected: the drop runs on a context that survives cancellation; a drop error is logged with the namespace; a clean drop logs nothing.
// Test Case ID: MNG-01
func TestDiscardNamespace(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dropCtxErr error
	discardNamespace(ctx, "org_acme", func(ctx context.Context) error {
		dropCtxErr = ctx.Err()
		return nil
	})
	assert.NoError(t, dropCtxErr)
	assert.Empty(t, buf.String())

	discardNamespace(ctx, "org_acme", func(context.Context) error {
		return errors.New("connection reset")
	})
	assert.Contains(t, buf.String(), "failed to drop namespace after marker write failed")
	assert.Contains(t, buf.String(), "org_acme")
	assert.Contains(t, buf.String(), "connection reset")
}
