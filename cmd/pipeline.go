package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shoppulse/registry-cli/internal/enrich"
	"github.com/shoppulse/registry-cli/internal/ingest"
	"github.com/shoppulse/registry-cli/internal/store"
	"github.com/shoppulse/registry-cli/pkg/datagov"
	"github.com/shoppulse/registry-cli/pkg/onemap"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run fetch, enrich, and rebuild end to end",
	Long:  "Runs the three pipeline phases in order: fetch the register into staging, loop enrichment until every postal code is resolved, then fully rebuild the enriched table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, closePool, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closePool()

		runID, err := s.StartRun(ctx, "pipeline")
		if err != nil {
			return err
		}
		fail := func(err error) error {
			_ = s.FinishRun(ctx, runID, store.RunFailed, map[string]string{"error": err.Error()})
			return err
		}

		if err := s.Migrate(ctx); err != nil {
			return fail(err)
		}

		subzone, planning, err := loadBoundaryLayers()
		if err != nil {
			return fail(err)
		}
		if subzone != nil {
			if _, err := s.LoadSubzones(ctx, subzone); err != nil {
				return fail(err)
			}
		}
		if planning != nil {
			if _, err := s.LoadPlanningAreas(ctx, planning); err != nil {
				return fail(err)
			}
		}
		if cfg.Boundary.SSICPath != "" {
			if _, err := s.LoadSSIC(ctx, cfg.Boundary.SSICPath); err != nil {
				return fail(err)
			}
		}

		// Phase 1: acquisition.
		client := datagov.NewClient(
			datagov.WithBaseURLs(cfg.Datastore.MetadataBase, cfg.Datastore.DatastoreBase),
			datagov.WithMaxRetries(cfg.Datastore.MaxRetries),
		)
		fetcher := ingest.NewFetcher(client, s, ingest.Config{
			PageSize:      cfg.Datastore.PageSize,
			FloorPageSize: cfg.Datastore.FloorPageSize,
		})

		var report *ingest.Report
		if cfg.Datastore.InputDir != "" {
			report, err = fetcher.IngestDir(ctx, cfg.Datastore.InputDir)
		} else {
			if cfg.Datastore.CollectionID == "" {
				return fail(eris.New("no collection id configured"))
			}
			report, err = fetcher.FetchCollection(ctx, cfg.Datastore.CollectionID)
		}
		if err != nil {
			return fail(err)
		}
		if cfg.Report.Path != "" {
			if err := report.WriteMarkdown(cfg.Report.Path); err != nil {
				zap.L().Warn("report write failed", zap.Error(err))
			}
		}
		zap.L().Info("fetch phase complete",
			zap.Int("fetched", report.TotalFetched()),
			zap.Int("written", report.TotalWritten()))

		// Phase 2: enrichment, looped to convergence.
		geocoder := onemap.NewClient(geocodeOptions()...)
		engine := enrich.New(geocoder, s, subzone, planning, enrich.Config{
			Concurrency:     cfg.Geocode.Concurrency,
			BatchSize:       cfg.Geocode.BatchSize,
			SubBatchSize:    cfg.Geocode.SubBatchSize,
			InterBatchDelay: cfg.Geocode.InterBatchDelay,
			Continuous:      true,
		})
		stats, err := engine.Run(ctx)
		if err != nil {
			return fail(err)
		}
		zap.L().Info("enrich phase complete",
			zap.Int("resolved", stats.Resolved),
			zap.Int("attempted", stats.Attempted))

		// Phase 3: rebuild.
		rows, err := s.RebuildEnriched(ctx)
		if err != nil {
			return fail(err)
		}

		if err := s.FinishRun(ctx, runID, store.RunSucceeded, map[string]any{
			"fetched":  report.TotalFetched(),
			"written":  report.TotalWritten(),
			"resolved": stats.Resolved,
			"rows":     rows,
		}); err != nil {
			return err
		}

		fmt.Printf("Pipeline complete: %d fetched, %d resolved, %d enriched rows\n",
			report.TotalFetched(), stats.Resolved, rows)
		return nil
	},
}

func geocodeOptions() []onemap.Option {
	var opts []onemap.Option
	if cfg.Geocode.BaseURL != "" {
		opts = append(opts, onemap.WithBaseURL(cfg.Geocode.BaseURL))
	}
	if cfg.Geocode.MaxRetries > 0 {
		opts = append(opts, onemap.WithMaxRetries(cfg.Geocode.MaxRetries))
	}
	if cfg.Geocode.RateLimit > 0 {
		opts = append(opts, onemap.WithRateLimit(cfg.Geocode.RateLimit))
	}
	return opts
}

func init() { rootCmd.AddCommand(pipelineCmd) }
