package enrich

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/shoppulse/registry-cli/internal/boundary"
	"github.com/shoppulse/registry-cli/internal/model"
	"github.com/shoppulse/registry-cli/pkg/onemap"
)

// fakeGeocoder resolves from a fixed map; codes in failing error out.
type fakeGeocoder struct {
	mu      sync.Mutex
	results map[string]*onemap.Result
	failing map[string]bool
	calls   int
}

func (f *fakeGeocoder) Geocode(_ context.Context, code string) (*onemap.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failing[code] {
		return nil, errors.New("geocoder down")
	}
	return f.results[code], nil
}

// memStore tracks which codes remain unresolved and collects inserted rows.
type memStore struct {
	unresolved map[string]bool
	inserted   []model.GeoResolution
	flushes    int
	listCalls  int
}

func newMemStore(codes ...string) *memStore {
	s := &memStore{unresolved: make(map[string]bool)}
	for _, c := range codes {
		s.unresolved[c] = true
	}
	return s
}

func (s *memStore) UnresolvedPostalCodes(_ context.Context, limit int) ([]string, error) {
	var codes []string
	for c := range s.unresolved {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	if limit > 0 && len(codes) > limit {
		codes = codes[:limit]
	}
	return codes, nil
}

func (s *memStore) InsertGeoResolutions(_ context.Context, resolutions []model.GeoResolution) (int64, error) {
	s.flushes++
	for _, r := range resolutions {
		delete(s.unresolved, r.PostalCode)
		s.inserted = append(s.inserted, r)
	}
	return int64(len(resolutions)), nil
}

func squareLayer(name, id string, minX, minY, maxX, maxY float64) *boundary.Layer {
	flat := []float64{minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY}
	poly := geom.NewPolygonFlat(geom.XY, flat, []int{10})
	return &boundary.Layer{
		Name:    name,
		Regions: []boundary.Region{{ID: id, Name: id, Geometry: poly}},
	}
}

func TestEngine_ResolvesAndClassifies(t *testing.T) {
	geocoder := &fakeGeocoder{results: map[string]*onemap.Result{
		"018956": {Latitude: 1.5, Longitude: 103.5},
		"238801": {Latitude: 9.0, Longitude: 9.0}, // outside both layers
	}}
	store := newMemStore("018956", "238801")
	subzone := squareLayer("subzone", "SZ1", 103.0, 1.0, 104.0, 2.0)
	planning := squareLayer("planning_area", "PA1", 103.0, 1.0, 104.0, 2.0)

	engine := New(geocoder, store, subzone, planning, Config{})
	stats, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Iterations)
	assert.Equal(t, 2, stats.Attempted)
	assert.Equal(t, 2, stats.Resolved)
	require.Len(t, store.inserted, 2)

	byCode := make(map[string]model.GeoResolution)
	for _, r := range store.inserted {
		byCode[r.PostalCode] = r
	}
	assert.Equal(t, "SZ1", byCode["018956"].SubzoneID)
	assert.Equal(t, "PA1", byCode["018956"].PlanningAreaID)
	assert.Empty(t, byCode["238801"].SubzoneID)
	assert.Empty(t, byCode["238801"].PlanningAreaID)
}

func TestEngine_ConvergesInCeilNOverBatchInvocations(t *testing.T) {
	const n, batch = 10, 4

	results := make(map[string]*onemap.Result)
	var codes []string
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("%06d", i)
		codes = append(codes, code)
		results[code] = &onemap.Result{Latitude: 1.3, Longitude: 103.8}
	}
	store := newMemStore(codes...)
	engine := New(&fakeGeocoder{results: results}, store, nil, nil, Config{BatchSize: batch})

	// ceil(10/4) = 3 invocations to drain, then one that finds nothing.
	for i := 0; i < 3; i++ {
		stats, err := engine.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Iterations)
	}
	assert.Empty(t, store.unresolved)

	stats, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Iterations)
}

func TestEngine_ContinuousModeDrainsEverything(t *testing.T) {
	results := make(map[string]*onemap.Result)
	var codes []string
	for i := 0; i < 9; i++ {
		code := fmt.Sprintf("%06d", i)
		codes = append(codes, code)
		results[code] = &onemap.Result{Latitude: 1.3, Longitude: 103.8}
	}
	store := newMemStore(codes...)
	engine := New(&fakeGeocoder{results: results}, store, nil, nil,
		Config{BatchSize: 4, Continuous: true})

	stats, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Iterations)
	assert.Empty(t, store.unresolved)
}

func TestEngine_FailedLookupsLeftUnresolved(t *testing.T) {
	geocoder := &fakeGeocoder{
		results: map[string]*onemap.Result{
			"000001": {Latitude: 1.3, Longitude: 103.8},
		},
		failing: map[string]bool{"000002": true},
	}
	// 000003 has no result: geocoder miss, also skipped.
	store := newMemStore("000001", "000002", "000003")

	engine := New(geocoder, store, nil, nil, Config{})
	stats, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Attempted)
	assert.Equal(t, 1, stats.Resolved)
	assert.True(t, store.unresolved["000002"])
	assert.True(t, store.unresolved["000003"])
	assert.False(t, store.unresolved["000001"])
}

func TestEngine_FlushPerSubBatch(t *testing.T) {
	results := make(map[string]*onemap.Result)
	var codes []string
	for i := 0; i < 10; i++ {
		code := fmt.Sprintf("%06d", i)
		codes = append(codes, code)
		results[code] = &onemap.Result{Latitude: 1.3, Longitude: 103.8}
	}
	store := newMemStore(codes...)
	engine := New(&fakeGeocoder{results: results}, store, nil, nil,
		Config{BatchSize: 10, SubBatchSize: 3})

	_, err := engine.Run(context.Background())
	require.NoError(t, err)
	// 10 codes in sub-batches of 3 flush four times.
	assert.Equal(t, 4, store.flushes)
}

func TestEngine_CancelledBeforeStart(t *testing.T) {
	store := newMemStore("000001")
	engine := New(&fakeGeocoder{}, store, nil, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, store.unresolved["000001"])
}

func TestEngine_DelayBetweenSubBatches(t *testing.T) {
	results := map[string]*onemap.Result{
		"000001": {Latitude: 1.3, Longitude: 103.8},
		"000002": {Latitude: 1.3, Longitude: 103.8},
	}
	store := newMemStore("000001", "000002")
	engine := New(&fakeGeocoder{results: results}, store, nil, nil,
		Config{SubBatchSize: 1, InterBatchDelay: 20 * time.Millisecond})

	start := time.Now()
	_, err := engine.Run(context.Background())
	require.NoError(t, err)
	// One delay between the two sub-batches, none after the last.
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
