package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shoppulse/registry-cli/internal/store"
)

var rebuildIncremental bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the enriched table from staging and geo resolutions",
	Long:  "Left-joins staged entities against the geo-resolution dimension into the enriched table. Full mode truncates and regenerates everything; incremental mode regenerates one registration-month bucket at a time.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, closePool, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closePool()

		runID, err := s.StartRun(ctx, "rebuild")
		if err != nil {
			return err
		}

		var rows int64
		if rebuildIncremental {
			months, err := s.StagedMonths(ctx)
			if err != nil {
				_ = s.FinishRun(ctx, runID, store.RunFailed, map[string]string{"error": err.Error()})
				return err
			}
			rows, err = s.RefreshEnrichedMonths(ctx, months)
			if err != nil {
				_ = s.FinishRun(ctx, runID, store.RunFailed, map[string]string{"error": err.Error()})
				return err
			}
		} else {
			rows, err = s.RebuildEnriched(ctx)
			if err != nil {
				_ = s.FinishRun(ctx, runID, store.RunFailed, map[string]string{"error": err.Error()})
				return err
			}
		}

		if err := s.FinishRun(ctx, runID, store.RunSucceeded, map[string]int64{"rows": rows}); err != nil {
			return err
		}

		fmt.Printf("Rebuilt %d enriched rows\n", rows)
		return nil
	},
}

func init() {
	rebuildCmd.Flags().BoolVar(&rebuildIncremental, "incremental", false, "regenerate month buckets one at a time")
	rootCmd.AddCommand(rebuildCmd)
}
