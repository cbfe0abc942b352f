package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var itemID int64

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Evaluate a single item",
	Long: `Evaluate one item from the item list against the eligible candidate
pool and print the recommendation.

Example:
  lootcouncil item --id 49623 --tmb tmb.json --items items.json`,
	RunE: runItem,
}

func init() {
	rootCmd.AddCommand(itemCmd)
	itemCmd.Flags().Int64Var(&itemID, "id", 0, "item ID to evaluate (required)")
	_ = itemCmd.MarkFlagRequired("id")
}

func runItem(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	items, err := loadItems()
	if err != nil {
		return err
	}
	target := -1
	for i := range items {
		if items[i].ID == itemID {
			target = i
			break
		}
	}
	if target < 0 {
		return fmt.Errorf("item %d not found in %s", itemID, itemsPath)
	}

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	serveMetrics(ctx)

	decision, err := orch.RunItem(ctx, items[target])
	if err != nil {
		return err
	}
	printDecision(os.Stdout, *decision)
	return nil
}
