package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shoppulse/registry-cli/internal/boundary"
	"github.com/shoppulse/registry-cli/internal/enrich"
	"github.com/shoppulse/registry-cli/internal/store"
	"github.com/shoppulse/registry-cli/pkg/onemap"
)

var enrichContinuous bool

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Geocode unresolved postal codes and assign boundary regions",
	Long:  "Finds postal codes staged but not yet in the geo-resolution table, geocodes them concurrently via OneMap, runs point-in-polygon containment against the boundary layers, and writes the results. Repeat invocations converge to zero unresolved codes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, closePool, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closePool()

		subzone, planning, err := loadBoundaryLayers()
		if err != nil {
			return err
		}

		geocoder := onemap.NewClient(geocodeOptions()...)

		engine := enrich.New(geocoder, s, subzone, planning, enrich.Config{
			Concurrency:     cfg.Geocode.Concurrency,
			BatchSize:       cfg.Geocode.BatchSize,
			SubBatchSize:    cfg.Geocode.SubBatchSize,
			InterBatchDelay: cfg.Geocode.InterBatchDelay,
			Continuous:      enrichContinuous || cfg.Geocode.ContinuousMode,
		})

		runID, err := s.StartRun(ctx, "enrich")
		if err != nil {
			return err
		}

		stats, err := engine.Run(ctx)
		if err != nil {
			_ = s.FinishRun(ctx, runID, store.RunFailed, stats)
			return err
		}
		if err := s.FinishRun(ctx, runID, store.RunSucceeded, stats); err != nil {
			return err
		}

		fmt.Printf("Resolved %d of %d codes in %d iterations\n",
			stats.Resolved, stats.Attempted, stats.Iterations)
		return nil
	},
}

// loadBoundaryLayers loads whichever boundary files are configured. Missing
// paths leave that layer nil and its region id absent in new resolutions.
func loadBoundaryLayers() (subzone, planning *boundary.Layer, err error) {
	if cfg.Boundary.SubzonePath != "" {
		subzone, err = loadLayer(cfg.Boundary.SubzonePath, "subzone", boundary.Keys{
			ID:     boundary.SubzoneIDKeys,
			Name:   boundary.SubzoneNameKeys,
			Parent: boundary.SubzoneParentKeys,
		})
		if err != nil {
			return nil, nil, err
		}
	}
	if cfg.Boundary.PlanningAreaPath != "" {
		planning, err = loadLayer(cfg.Boundary.PlanningAreaPath, "planning_area", boundary.Keys{
			ID:   boundary.PlanningIDKeys,
			Name: boundary.PlanningNameKeys,
		})
		if err != nil {
			return nil, nil, err
		}
	}
	if subzone == nil && planning == nil {
		zap.L().Warn("no boundary layers configured, resolutions will carry coordinates only")
	}
	return subzone, planning, nil
}

func init() {
	enrichCmd.Flags().BoolVar(&enrichContinuous, "continuous", false, "loop until no unresolved codes remain")
	rootCmd.AddCommand(enrichCmd)
}
