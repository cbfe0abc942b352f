package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/raidtools/lootcouncil/internal/config"
	"github.com/raidtools/lootcouncil/internal/domain/model"
	"github.com/raidtools/lootcouncil/internal/llm"
	"github.com/raidtools/lootcouncil/internal/orchestrator"
	"github.com/raidtools/lootcouncil/internal/source"
)

// fileItem is one entry of the item list file.
type fileItem struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slot         string `json:"slot,omitempty"`
	ItemLevel    int    `json:"item_level,omitempty"`
	Tier         string `json:"tier,omitempty"`
	TierClass    string `json:"tier_class,omitempty"`
	TierSetSize  int    `json:"tier_set_size,omitempty"`
	PriorityNote string `json:"priority_note,omitempty"`
}

type fileItemList struct {
	Items []fileItem `json:"items"`
}

// loadItems reads the item list file given by --items.
func loadItems() ([]model.Item, error) {
	if itemsPath == "" {
		return nil, fmt.Errorf("--items is required")
	}
	data, err := os.ReadFile(itemsPath)
	if err != nil {
		return nil, err
	}
	var raw fileItemList
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", itemsPath, err)
	}
	items := make([]model.Item, 0, len(raw.Items))
	for _, it := range raw.Items {
		items = append(items, model.Item{
			ID:           it.ID,
			Name:         it.Name,
			Slot:         model.Slot(it.Slot),
			ItemLevel:    it.ItemLevel,
			Tier:         it.Tier,
			TierClass:    it.TierClass,
			TierSetSize:  it.TierSetSize,
			PriorityNote: it.PriorityNote,
		})
	}
	return items, nil
}

// buildOrchestrator wires the snapshot sources and the model client.
func buildOrchestrator(cfg *config.Config, opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	if tmbPath == "" {
		return nil, fmt.Errorf("--tmb is required")
	}
	guild := &source.FileGuildSource{Path: tmbPath}

	var parses source.ParseSource
	if cfg.ShowParses {
		if parsesPath == "" {
			return nil, fmt.Errorf("--parses is required when show_parses is enabled")
		}
		parses = source.NewCachedParseSource(&source.FileParseSource{Path: parsesPath})
	}

	var gear source.GearSource
	if cfg.GearProviderEnabled {
		if gearPath == "" {
			return nil, fmt.Errorf("--gear is required when gear_provider_enabled is set")
		}
		gear = &source.FileGearSource{Path: gearPath}
	}

	client, err := llm.New(llm.Config{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		APIKey:   cfg.LLMAPIKey,
		BaseURL:  cfg.LLMBaseURL,
		Timeout:  cfg.LLMTimeout,
	})
	if err != nil {
		return nil, err
	}

	return orchestrator.New(cfg, guild, parses, gear, client, opts...), nil
}

// printDecision renders one decision for the terminal.
func printDecision(w io.Writer, d model.Decision) {
	fmt.Fprintf(w, "\n=== %s ===\n", d.Item.Name)
	fmt.Fprintf(w, "Winner: %s\n", d.Winner)
	for _, r := range d.Ranked {
		fmt.Fprintf(w, "  %d. %-24s %s\n", r.Rank, r.Identity.String(), r.Reasoning)
	}
}

// printResults renders the full session outcome, decisions first, then the
// items that failed or were skipped with their reasons.
func printResults(w io.Writer, results []orchestrator.ItemResult) {
	for _, r := range results {
		if r.Decision != nil {
			printDecision(w, *r.Decision)
		}
	}
	for _, r := range results {
		switch r.State {
		case orchestrator.StateFailed:
			fmt.Fprintf(w, "\nFAILED  %s: %v\n", r.Item.Name, r.Err)
		case orchestrator.StateSkipped:
			fmt.Fprintf(w, "\nSKIPPED %s (session cancelled)\n", r.Item.Name)
		}
	}
}

// writeDecisionsJSON emits the flat decision sequence for downstream
// tooling.
func writeDecisionsJSON(path string, decisions []model.Decision) error {
	data, err := json.MarshalIndent(decisions, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
