package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonathan/soul-spirits/internal/inventory"
	"github.com/jonathan/soul-spirits/internal/observability"
	"github.com/jonathan/soul-spirits/internal/types"
)

var inventoryOwner string

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Show or edit a saved bar inventory",
	Long:  "Reads and edits the inventory saved in Redis for an owner. The server uses the same store, keyed by the session owner.",
}

var inventoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withInventoryStore(cmd, func(ctx context.Context, store inventory.Store) (types.InventoryConstraint, error) {
			return store.Load(ctx, inventoryOwner)
		})
	},
}

var inventoryAddCmd = &cobra.Command{
	Use:   "add ITEM...",
	Short: "Add items to the inventory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInventoryStore(cmd, func(ctx context.Context, store inventory.Store) (types.InventoryConstraint, error) {
			return inventory.Update(ctx, store, inventoryOwner, func(inv *types.InventoryConstraint) bool {
				changed := false
				for _, item := range args {
					changed = inv.Add(item) || changed
				}
				return changed
			})
		})
	},
}

var inventoryRemoveCmd = &cobra.Command{
	Use:   "remove ITEM...",
	Short: "Remove items from the inventory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInventoryStore(cmd, func(ctx context.Context, store inventory.Store) (types.InventoryConstraint, error) {
			return inventory.Update(ctx, store, inventoryOwner, func(inv *types.InventoryConstraint) bool {
				changed := false
				for _, item := range args {
					if inv.Contains(item) {
						inv.Toggle(item)
						changed = true
					}
				}
				return changed
			})
		})
	},
}

var inventoryStrictCmd = &cobra.Command{
	Use:   "strict true|false",
	Short: "Turn strict mode on or off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("strict must be true or false, got %q", args[0])
		}
		return withInventoryStore(cmd, func(ctx context.Context, store inventory.Store) (types.InventoryConstraint, error) {
			return inventory.SetStrict(ctx, store, inventoryOwner, strict)
		})
	},
}

var inventoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withInventoryStore(cmd, func(ctx context.Context, store inventory.Store) (types.InventoryConstraint, error) {
			return types.InventoryConstraint{}, store.Delete(ctx, inventoryOwner)
		})
	},
}

func init() {
	inventoryCmd.PersistentFlags().StringVar(&inventoryOwner, "owner", "", "Inventory owner key (required)")
	if err := inventoryCmd.MarkPersistentFlagRequired("owner"); err != nil {
		panic(fmt.Sprintf("failed to mark owner flag as required: %v", err))
	}

	inventoryCmd.AddCommand(inventoryShowCmd, inventoryAddCmd, inventoryRemoveCmd, inventoryStrictCmd, inventoryClearCmd)
	rootCmd.AddCommand(inventoryCmd)
}

// withInventoryStore opens the Redis store, applies fn and prints the result.
func withInventoryStore(cmd *cobra.Command, fn func(context.Context, inventory.Store) (types.InventoryConstraint, error)) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.RedisURL == "" {
		return fmt.Errorf("inventory commands require REDIS_URL or redis_url in the config file")
	}

	client, err := inventory.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	inv, err := fn(ctx, inventory.NewRedisStore(client, inventoryTTL))
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintInventory(inv)
	return nil
}
