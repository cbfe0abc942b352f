package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raidtools/lootcouncil/internal/orchestrator"
)

var zoneOutputFile string

var zoneCmd = &cobra.Command{
	Use:   "zone",
	Short: "Evaluate every item of a zone",
	Long: `Evaluate every item in the item list, higher-tier items first, with
earlier awards feeding later items' recent-loot counts. Ctrl-C cancels
between items; decisions made so far are kept.

Example:
  lootcouncil zone --tmb tmb.json --items icc25.json --output decisions.json`,
	RunE: runZone,
}

func init() {
	rootCmd.AddCommand(zoneCmd)
	zoneCmd.Flags().StringVar(&zoneOutputFile, "output", "", "write the decision sequence as JSON to this file")
}

func runZone(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	items, err := loadItems()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no items in %s", itemsPath)
	}

	progress := func(p orchestrator.Progress) {
		fmt.Fprintf(os.Stderr, "[%d/%d] %s (failed %d, skipped %d)\n",
			p.Completed+p.Failed+p.Skipped, p.Total, p.CurrentItem, p.Failed, p.Skipped)
	}
	orch, err := buildOrchestrator(cfg, orchestrator.WithProgress(progress))
	if err != nil {
		return err
	}
	serveMetrics(ctx)

	session := orchestrator.NewSession(cfg, items)
	if err := orch.Run(ctx, session); err != nil {
		return err
	}

	printResults(os.Stdout, session.Results())

	if zoneOutputFile != "" {
		if err := writeDecisionsJSON(zoneOutputFile, session.Decisions()); err != nil {
			return fmt.Errorf("write %s: %w", zoneOutputFile, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %d decisions to %s\n", len(session.Decisions()), zoneOutputFile)
	}
	return nil
}
