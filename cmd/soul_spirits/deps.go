package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/soul-spirits/internal/config"
	"github.com/jonathan/soul-spirits/internal/db"
	"github.com/jonathan/soul-spirits/internal/imagegen"
	"github.com/jonathan/soul-spirits/internal/inventory"
	"github.com/jonathan/soul-spirits/internal/llm"
	"github.com/jonathan/soul-spirits/internal/recipe"
)

// inventoryTTL is how long an untouched Redis inventory is kept.
const inventoryTTL = 90 * 24 * time.Hour

// generators bundles the model-backed recipe and image generators.
type generators struct {
	client  llm.Client
	recipes *recipe.Generator
	images  *imagegen.Generator
}

func (g *generators) Close() error {
	return g.client.Close()
}

// newGenerators connects to the model provider with the configured models.
func newGenerators(ctx context.Context, cfg config.Config) (*generators, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required (set %s or api_key in the config file)", config.EnvAPIKey)
	}

	llmConfig := llm.DefaultConfig().
		WithModel(llm.TierStandard, cfg.TextModel).
		WithModel(llm.TierImage, cfg.ImageModel)
	client, err := llm.NewClient(ctx, llmConfig, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return &generators{
		client:  client,
		recipes: recipe.NewGenerator(client),
		images:  imagegen.NewGenerator(client),
	}, nil
}

// openHistory connects to PostgreSQL and creates the schema. It returns nil
// when no database is configured.
func openHistory(ctx context.Context, cfg config.Config, logger *zap.Logger) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("history disabled: no database configured")
		return nil, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to prepare database schema: %w", err)
	}
	return database, nil
}

// openInventory returns the Redis store when Redis is configured, otherwise
// an in-memory store. The returned func releases the connection.
func openInventory(ctx context.Context, cfg config.Config, logger *zap.Logger) (inventory.Store, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("inventory kept in memory: no Redis configured")
		return inventory.NewMemoryStore(), func() {}, nil
	}
	client, err := inventory.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return inventory.NewRedisStore(client, inventoryTTL), func() { _ = client.Close() }, nil
}
