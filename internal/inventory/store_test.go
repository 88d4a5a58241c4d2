package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/soul-spirits/internal/types"
)

func TestMemoryStore_LoadUnknownOwner(t *testing.T) {
	store := NewMemoryStore()

	inv, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, inv.Items)
	assert.False(t, inv.Strict)
}

func TestMemoryStore_SaveNormalizesAndCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	items := []string{"Gin", " Gin ", "", "Tonic Water"}
	require.NoError(t, store.Save(ctx, "alice", types.InventoryConstraint{Items: items, Strict: true}))

	inv, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Gin", "Tonic Water"}, inv.Items)
	assert.True(t, inv.Strict)

	// Mutating the loaded value must not reach the store
	inv.Items[0] = "Vodka"
	again, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Gin", again.Items[0])
}

func TestMemoryStore_EmptyOwner(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyOwner)
	assert.ErrorIs(t, store.Save(context.Background(), "", types.InventoryConstraint{}), ErrEmptyOwner)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, "alice", types.InventoryConstraint{Items: []string{"Gin"}, Strict: true}))
	require.NoError(t, store.Save(ctx, "bob", types.InventoryConstraint{Items: []string{"Rum (Dark)"}}))
	require.NoError(t, store.Delete(ctx, "alice"))

	inv, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, inv.Items)
	assert.False(t, inv.Strict)

	other, err := store.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"Rum (Dark)"}, other.Items)

	assert.NoError(t, store.Delete(ctx, "never-saved"))
	assert.ErrorIs(t, store.Delete(ctx, ""), ErrEmptyOwner)
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	inv, err := Toggle(ctx, store, "alice", "Gin")
	require.NoError(t, err)
	assert.Equal(t, []string{"Gin"}, inv.Items)

	inv, err = Toggle(ctx, store, "alice", "Lime")
	require.NoError(t, err)
	assert.Equal(t, []string{"Gin", "Lime"}, inv.Items)

	inv, err = Toggle(ctx, store, "alice", "Gin")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lime"}, inv.Items)

	inv, err = Toggle(ctx, store, "alice", "   ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lime"}, inv.Items)
}

func TestAddItem(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	inv, err := AddItem(ctx, store, "alice", "  Yuzu Liqueur ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Yuzu Liqueur"}, inv.Items)

	inv, err = AddItem(ctx, store, "alice", "Yuzu Liqueur")
	require.NoError(t, err)
	assert.Equal(t, []string{"Yuzu Liqueur"}, inv.Items)

	// Case-sensitive: a differently cased item is distinct
	inv, err = AddItem(ctx, store, "alice", "yuzu liqueur")
	require.NoError(t, err)
	assert.Len(t, inv.Items, 2)
}

func TestSetStrict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	inv, err := SetStrict(ctx, store, "alice", true)
	require.NoError(t, err)
	assert.True(t, inv.Strict)

	loaded, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, loaded.Strict)
}

type failingStore struct {
	loadErr error
	saveErr error
}

func (f failingStore) Load(context.Context, string) (types.InventoryConstraint, error) {
	return types.InventoryConstraint{}, f.loadErr
}

func (f failingStore) Save(context.Context, string, types.InventoryConstraint) error {
	return f.saveErr
}

func (f failingStore) Delete(context.Context, string) error {
	return f.saveErr
}

func TestUpdate_PropagatesErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Toggle(ctx, failingStore{loadErr: boom}, "alice", "Gin")
	assert.ErrorIs(t, err, boom)

	_, err = Toggle(ctx, failingStore{saveErr: boom}, "alice", "Gin")
	assert.ErrorIs(t, err, boom)
}

func TestUpdate_NoChangeSkipsSave(t *testing.T) {
	// failingStore would fail any Save; an unchanged inventory must not reach it
	_, err := SetStrict(context.Background(), failingStore{saveErr: errors.New("unexpected save")}, "alice", false)
	assert.NoError(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "soul-spirits-inventory:alice", ItemsKey("alice"))
	assert.Equal(t, "soul-spirits-strict:alice", StrictKey("alice"))
}
