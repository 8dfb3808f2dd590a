// Package ingest drives dataset acquisition: paginated fetching with adaptive
// page sizing, per-record normalization, and immediate upsert into staging.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shoppulse/registry-cli/internal/model"
	"github.com/shoppulse/registry-cli/internal/normalize"
	"github.com/shoppulse/registry-cli/pkg/datagov"
)

// PageFetcher retrieves one page of a remote resource. Implemented by
// datagov.Client.
type PageFetcher interface {
	ChildDatasets(ctx context.Context, collectionID string) ([]string, error)
	SearchPage(ctx context.Context, resourceID string, offset, limit int, fields []string) (*datagov.Page, int, error)
}

// Upserter merges one normalized record into staging. Implemented by
// store.PostgresStore.
type Upserter interface {
	UpsertEntity(ctx context.Context, e *model.Entity) (bool, error)
}

// Config controls pagination and shrink behavior.
type Config struct {
	PageSize      int
	FloorPageSize int
	Fields        []string
}

// Fetcher streams resources page by page. Each record is normalized and
// upserted as it arrives; nothing buffers a full resource in memory.
type Fetcher struct {
	client PageFetcher
	store  Upserter
	cfg    Config
}

func NewFetcher(client PageFetcher, store Upserter, cfg Config) *Fetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.FloorPageSize <= 0 {
		cfg.FloorPageSize = 500
	}
	return &Fetcher{client: client, store: store, cfg: cfg}
}

// FetchCollection resolves a collection's child datasets and fetches each in
// turn. Per-resource failures land in that resource's report; a collection
// with no resolvable datasets is fatal for the run.
func (f *Fetcher) FetchCollection(ctx context.Context, collectionID string) (*Report, error) {
	datasets, err := f.client.ChildDatasets(ctx, collectionID)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: resolve collection %s", collectionID)
	}
	if len(datasets) == 0 {
		return nil, eris.Errorf("ingest: collection %s has no child datasets", collectionID)
	}

	report := &Report{CollectionID: collectionID, StartedAt: time.Now().UTC()}
	for _, datasetID := range datasets {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "ingest: fetch interrupted")
		}
		report.Resources = append(report.Resources, f.FetchResource(ctx, datasetID))
	}
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// FetchResource pulls every page of one dataset. On an oversized-page response
// the page size is halved down to the floor and the fetch restarts at offset
// zero; upsert idempotence makes the discarded progress harmless. The page
// size never grows back within a fetch.
func (f *Fetcher) FetchResource(ctx context.Context, resourceID string) *ResourceReport {
	report := &ResourceReport{ResourceID: resourceID, StartedAt: time.Now().UTC()}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	log := zap.L().With(zap.String("resource", resourceID))

	offset := 0
	limit := f.cfg.PageSize
	firstPage := true
	for {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, err.Error())
			return report
		}

		page, retries, err := f.client.SearchPage(ctx, resourceID, offset, limit, f.cfg.Fields)
		report.Retries += retries
		if errors.Is(err, datagov.ErrPageTooLarge) {
			if limit <= f.cfg.FloorPageSize {
				log.Error("page too large at floor page size", zap.Int("limit", limit))
				report.Errors = append(report.Errors, "page too large at floor page size")
				return report
			}
			limit = limit / 2
			if limit < f.cfg.FloorPageSize {
				limit = f.cfg.FloorPageSize
			}
			offset = 0
			report.Shrinks++
			// The restart re-fetches everything; pre-shrink progress
			// would double-count.
			report.Fetched = 0
			report.Written = 0
			report.FirstOffset = 0
			report.LastOffset = 0
			firstPage = true
			log.Warn("oversized page, restarting with smaller limit", zap.Int("limit", limit))
			continue
		}
		if err != nil {
			log.Error("fetch failed", zap.Int("offset", offset), zap.Error(err))
			report.Errors = append(report.Errors, err.Error())
			return report
		}

		report.TotalReported = page.Total
		if firstPage {
			report.FirstOffset = offset
			firstPage = false
		}
		report.LastOffset = offset
		if len(page.Records) == 0 {
			break
		}

		for i := range page.Records {
			entity := normalize.CleanRecord(page.Records[i])
			written, err := f.store.UpsertEntity(ctx, &entity)
			if err != nil {
				report.Errors = append(report.Errors, err.Error())
				return report
			}
			report.Fetched++
			if written {
				report.Written++
			}
		}

		offset += limit
		if page.Total > 0 && offset >= page.Total {
			break
		}
	}

	log.Info("resource fetched",
		zap.Int("fetched", report.Fetched),
		zap.Int("written", report.Written),
		zap.Int("retries", report.Retries),
		zap.Int("shrinks", report.Shrinks))
	return report
}
