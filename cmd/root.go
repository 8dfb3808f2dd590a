package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shoppulse/registry-cli/internal/config"
	"github.com/shoppulse/registry-cli/internal/db"
	"github.com/shoppulse/registry-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "registry-cli",
	Short: "Business registry geospatial enrichment pipeline",
	Long:  "Fetches the ACRA entity register, normalizes and stages it, geocodes postal codes via OneMap, joins against URA boundary layers, and serves the enriched table.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore connects the pool and wraps it in the pipeline store. The caller
// owns the returned close func.
func openStore(ctx context.Context) (*store.PostgresStore, func(), error) {
	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store.New(pool), pool.Close, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
