// Package enrich resolves staged postal codes to coordinates and boundary
// regions, looping until no unresolved codes remain.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shoppulse/registry-cli/internal/boundary"
	"github.com/shoppulse/registry-cli/internal/model"
	"github.com/shoppulse/registry-cli/pkg/onemap"
)

// Geocoder resolves one postal code to coordinates. Implemented by
// onemap.Client.
type Geocoder interface {
	Geocode(ctx context.Context, postalCode string) (*onemap.Result, error)
}

// Store supplies unresolved codes and receives resolved rows. Implemented by
// store.PostgresStore.
type Store interface {
	UnresolvedPostalCodes(ctx context.Context, limit int) ([]string, error)
	InsertGeoResolutions(ctx context.Context, resolutions []model.GeoResolution) (int64, error)
}

// Config controls batching and concurrency for one engine run.
type Config struct {
	Concurrency     int
	BatchSize       int
	SubBatchSize    int
	InterBatchDelay time.Duration
	Continuous      bool
}

// Stats summarizes one engine run.
type Stats struct {
	Iterations int
	Attempted  int
	Resolved   int
	Inserted   int64
}

// Engine drives the geocode + containment convergence loop. Boundary layers
// are read-only for the engine's lifetime; either may be nil, in which case
// that region id stays absent.
type Engine struct {
	geocoder Geocoder
	store    Store
	subzone  *boundary.Layer
	planning *boundary.Layer
	cfg      Config
}

func New(geocoder Geocoder, store Store, subzone, planning *boundary.Layer, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}
	if cfg.SubBatchSize <= 0 {
		cfg.SubBatchSize = 32
	}
	return &Engine{geocoder: geocoder, store: store, subzone: subzone, planning: planning, cfg: cfg}
}

// Run executes the convergence loop. In non-continuous mode it processes one
// batch of unresolved codes and returns; in continuous mode it loops until an
// iteration finds no unresolved codes. Cancellation is honored between
// sub-batches, never mid-batch.
func (e *Engine) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	for {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "enrich: run interrupted")
		}

		codes, err := e.store.UnresolvedPostalCodes(ctx, e.cfg.BatchSize)
		if err != nil {
			return stats, eris.Wrap(err, "enrich: list unresolved codes")
		}
		if len(codes) == 0 {
			return stats, nil
		}
		stats.Iterations++

		zap.L().Info("enrichment iteration",
			zap.Int("iteration", stats.Iterations),
			zap.Int("codes", len(codes)))

		if err := e.processBatch(ctx, codes, stats); err != nil {
			return stats, err
		}

		if !e.cfg.Continuous {
			return stats, nil
		}
	}
}

func (e *Engine) processBatch(ctx context.Context, codes []string, stats *Stats) error {
	for start := 0; start < len(codes); start += e.cfg.SubBatchSize {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "enrich: batch interrupted")
		}

		end := start + e.cfg.SubBatchSize
		if end > len(codes) {
			end = len(codes)
		}

		resolved, err := e.resolveSubBatch(ctx, codes[start:end])
		if err != nil {
			return err
		}
		stats.Attempted += end - start
		stats.Resolved += len(resolved)

		if len(resolved) > 0 {
			n, err := e.store.InsertGeoResolutions(ctx, resolved)
			if err != nil {
				return eris.Wrap(err, "enrich: flush sub-batch")
			}
			stats.Inserted += n
		}

		if e.cfg.InterBatchDelay > 0 && end < len(codes) {
			select {
			case <-time.After(e.cfg.InterBatchDelay):
			case <-ctx.Done():
				return eris.Wrap(ctx.Err(), "enrich: batch interrupted")
			}
		}
	}
	return nil
}

// resolveSubBatch geocodes one sub-batch concurrently, then runs containment
// on the calling goroutine after every lookup has joined. Lookup misses and
// failures leave the code unresolved for a later run; only context
// cancellation aborts the sub-batch.
func (e *Engine) resolveSubBatch(ctx context.Context, codes []string) ([]model.GeoResolution, error) {
	results := make([]*onemap.Result, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, code := range codes {
		g.Go(func() error {
			result, err := e.geocoder.Geocode(gctx, code)
			if err != nil {
				if gctx.Err() != nil {
					return eris.Wrap(gctx.Err(), "enrich: geocode interrupted")
				}
				zap.L().Debug("geocode failed", zap.String("postal_code", code), zap.Error(err))
				return nil
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	resolutions := make([]model.GeoResolution, 0, len(codes))
	for i, result := range results {
		if result == nil {
			continue
		}
		resolution := model.GeoResolution{
			PostalCode: codes[i],
			Latitude:   result.Latitude,
			Longitude:  result.Longitude,
			ResolvedAt: now,
		}
		if e.subzone != nil {
			if id, ok := e.subzone.Contains(result.Latitude, result.Longitude); ok {
				resolution.SubzoneID = id
			}
		}
		if e.planning != nil {
			if id, ok := e.planning.Contains(result.Latitude, result.Longitude); ok {
				resolution.PlanningAreaID = id
			}
		}
		resolutions = append(resolutions, resolution)
	}
	return resolutions, nil
}
