//go:build integration

package inventory

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/soul-spirits/internal/types"
)

// These tests require a running Redis server.
// Set TEST_REDIS_URL environment variable to run them.
// Example: TEST_REDIS_URL=redis://localhost:6379/15

func getTestStore(t *testing.T) (*RedisStore, string) {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping integration test")
	}

	client, err := NewRedisClient(context.Background(), url)
	if err != nil {
		t.Skipf("Redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, time.Minute)
	owner := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = store.Delete(context.Background(), owner) })
	return store, owner
}

func TestIntegration_RedisRoundTrip(t *testing.T) {
	store, owner := getTestStore(t)
	ctx := context.Background()

	inv, err := store.Load(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, inv.Items)
	assert.False(t, inv.Strict)

	require.NoError(t, store.Save(ctx, owner, types.InventoryConstraint{Items: []string{"Gin", "Tonic Water", "Gin"}, Strict: true}))

	inv, err = store.Load(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gin", "Tonic Water"}, inv.Items)
	assert.True(t, inv.Strict)
}

func TestIntegration_RedisToggle(t *testing.T) {
	store, owner := getTestStore(t)
	ctx := context.Background()

	_, err := Toggle(ctx, store, owner, "Lime")
	require.NoError(t, err)
	inv, err := Toggle(ctx, store, owner, "Mint")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lime", "Mint"}, inv.Items)

	inv, err = Toggle(ctx, store, owner, "Lime")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mint"}, inv.Items)
}

func TestIntegration_RedisDelete(t *testing.T) {
	store, owner := getTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, owner, types.InventoryConstraint{Items: []string{"Rum (Dark)"}}))
	require.NoError(t, store.Delete(ctx, owner))

	inv, err := store.Load(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, inv.Items)
}
