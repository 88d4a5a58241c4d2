// Package inventory persists each owner's bar inventory and strict-mode flag.
package inventory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jonathan/soul-spirits/internal/types"
)

// ErrEmptyOwner is returned when no owner key is given.
var ErrEmptyOwner = errors.New("inventory owner is required")

// Store loads and saves inventories by owner. Loading an owner that was never
// saved, or was deleted, yields an empty, non-strict inventory.
type Store interface {
	Load(ctx context.Context, owner string) (types.InventoryConstraint, error)
	Save(ctx context.Context, owner string, inv types.InventoryConstraint) error
	Delete(ctx context.Context, owner string) error
}

// Update loads owner's inventory, applies fn and saves the result when fn
// reports a change. It returns the inventory as it stands afterwards.
// Concurrent updates for the same owner are last-writer-wins.
func Update(ctx context.Context, store Store, owner string, fn func(*types.InventoryConstraint) bool) (types.InventoryConstraint, error) {
	inv, err := store.Load(ctx, owner)
	if err != nil {
		return types.InventoryConstraint{}, err
	}
	if !fn(&inv) {
		return inv, nil
	}
	if err := store.Save(ctx, owner, inv); err != nil {
		return types.InventoryConstraint{}, err
	}
	return inv, nil
}

// Toggle adds or removes item for owner.
func Toggle(ctx context.Context, store Store, owner, item string) (types.InventoryConstraint, error) {
	return Update(ctx, store, owner, func(inv *types.InventoryConstraint) bool {
		if strings.TrimSpace(item) == "" {
			return false
		}
		inv.Toggle(item)
		return true
	})
}

// AddItem adds a trimmed custom item for owner.
func AddItem(ctx context.Context, store Store, owner, item string) (types.InventoryConstraint, error) {
	return Update(ctx, store, owner, func(inv *types.InventoryConstraint) bool {
		return inv.Add(item)
	})
}

// SetStrict sets the strict-mode flag for owner.
func SetStrict(ctx context.Context, store Store, owner string, strict bool) (types.InventoryConstraint, error) {
	return Update(ctx, store, owner, func(inv *types.InventoryConstraint) bool {
		if inv.Strict == strict {
			return false
		}
		inv.Strict = strict
		return true
	})
}

// MemoryStore keeps inventories in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]types.InventoryConstraint
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]types.InventoryConstraint)}
}

// Load returns a copy of owner's inventory.
func (s *MemoryStore) Load(_ context.Context, owner string) (types.InventoryConstraint, error) {
	if owner == "" {
		return types.InventoryConstraint{}, ErrEmptyOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv := s.data[owner]
	return types.InventoryConstraint{Items: append([]string{}, inv.Items...), Strict: inv.Strict}, nil
}

// Save stores a normalized copy of inv.
func (s *MemoryStore) Save(_ context.Context, owner string, inv types.InventoryConstraint) error {
	if owner == "" {
		return ErrEmptyOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[owner] = inv.Normalized()
	return nil
}

// Delete forgets owner's inventory.
func (s *MemoryStore) Delete(_ context.Context, owner string) error {
	if owner == "" {
		return ErrEmptyOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, owner)
	return nil
}
