package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathan/soul-spirits/internal/types"
)

// Key prefixes. Values are JSON: a string array for items, a bool for strict.
const (
	itemsKeyPrefix  = "soul-spirits-inventory:"
	strictKeyPrefix = "soul-spirits-strict:"
)

// NewRedisClient parses url, connects and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps inventories in Redis under one items key and one strict
// key per owner.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl keeps keys forever.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// ItemsKey returns the Redis key holding owner's items.
func ItemsKey(owner string) string { return itemsKeyPrefix + owner }

// StrictKey returns the Redis key holding owner's strict flag.
func StrictKey(owner string) string { return strictKeyPrefix + owner }

// Load reads owner's inventory. Missing keys read as empty and non-strict.
func (s *RedisStore) Load(ctx context.Context, owner string) (types.InventoryConstraint, error) {
	if owner == "" {
		return types.InventoryConstraint{}, ErrEmptyOwner
	}

	values, err := s.client.MGet(ctx, ItemsKey(owner), StrictKey(owner)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return types.InventoryConstraint{}, fmt.Errorf("failed to load inventory for %s: %w", owner, err)
	}

	inv := types.InventoryConstraint{Items: []string{}}
	if len(values) != 2 {
		return inv, nil
	}
	if raw, ok := values[0].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &inv.Items); err != nil {
			return types.InventoryConstraint{}, fmt.Errorf("failed to decode inventory for %s: %w", owner, err)
		}
	}
	if raw, ok := values[1].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &inv.Strict); err != nil {
			return types.InventoryConstraint{}, fmt.Errorf("failed to decode strict flag for %s: %w", owner, err)
		}
	}
	return inv, nil
}

// Save writes both keys in one transaction.
func (s *RedisStore) Save(ctx context.Context, owner string, inv types.InventoryConstraint) error {
	if owner == "" {
		return ErrEmptyOwner
	}

	normalized := inv.Normalized()
	items, err := json.Marshal(normalized.Items)
	if err != nil {
		return fmt.Errorf("failed to encode inventory: %w", err)
	}
	strict, err := json.Marshal(normalized.Strict)
	if err != nil {
		return fmt.Errorf("failed to encode strict flag: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ItemsKey(owner), items, s.ttl)
		pipe.Set(ctx, StrictKey(owner), strict, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save inventory for %s: %w", owner, err)
	}
	return nil
}

// Delete removes owner's inventory.
func (s *RedisStore) Delete(ctx context.Context, owner string) error {
	if owner == "" {
		return ErrEmptyOwner
	}
	if err := s.client.Del(ctx, ItemsKey(owner), StrictKey(owner)).Err(); err != nil {
		return fmt.Errorf("failed to delete inventory for %s: %w", owner, err)
	}
	return nil
}
