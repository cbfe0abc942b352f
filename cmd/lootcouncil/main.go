// Command lootcouncil evaluates loot distribution for a guild: it loads
// provider snapshot exports, ranks the eligible candidates for an item (or
// every item of a zone) against the configured guild policy, and prints the
// model-backed decisions.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raidtools/lootcouncil/internal/config"
	"github.com/raidtools/lootcouncil/pkg/logger"
	"github.com/raidtools/lootcouncil/pkg/metrics"
)

// Snapshot input flags shared by the subcommands.
var (
	tmbPath     string
	parsesPath  string
	gearPath    string
	itemsPath   string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "lootcouncil",
	Short: "AI-assisted loot council advisor",
	Long: `lootcouncil ranks raiders for contested items against the guild's
configured loot policy and produces an auditable recommendation per item.

Candidate data comes from provider snapshot exports (wishlist/attendance/
loot, parses, equipped gear) given as JSON files. Configuration is layered:
built-in defaults, then the YAML file named by LC_CONFIG, then LC_-prefixed
environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tmbPath, "tmb", "", "path to the TMB snapshot export (required)")
	rootCmd.PersistentFlags().StringVar(&parsesPath, "parses", "", "path to the parse snapshot export")
	rootCmd.PersistentFlags().StringVar(&gearPath, "gear", "", "path to the equipped-gear snapshot export")
	rootCmd.PersistentFlags().StringVar(&itemsPath, "items", "", "path to the item list (required)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers configuration and applies the log level.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// serveMetrics exposes the metrics registry while a run is in flight.
func serveMetrics(ctx context.Context) {
	if metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Default().Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Get().Warn(ctx, "metrics server failed", logger.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}
