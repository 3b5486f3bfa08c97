package detection

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/birdweather"
	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

var baseWatermark = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestStore opens a temp-dir SQLite store seeded with baseWatermark.
func newTestStore(t *testing.T, seed bool) datastore.Interface {
	t.Helper()
	store, err := datastore.New(&conf.DatabaseSettings{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "detection.db"),
	}, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	if seed {
		_, _, err = store.EnsureWatermark(t.Context(), baseWatermark)
		require.NoError(t, err)
	}
	return store
}

func watermarkOf(t *testing.T, store datastore.Interface) time.Time {
	t.Helper()
	wm, found, err := store.GetWatermark(t.Context())
	require.NoError(t, err)
	require.True(t, found)
	return wm
}

func at(hours int) time.Time {
	return baseWatermark.Add(time.Duration(hours) * time.Hour)
}

func det(species string, ts time.Time) birdweather.Detection {
	return birdweather.Detection{SpeciesID: species, Timestamp: ts}
}

// fakeAPI serves pages keyed by the cursor that requests them.
type fakeAPI struct {
	mu       sync.Mutex
	pages    map[string]*birdweather.DetectionPage
	pageErrs map[string]error
	top      []birdweather.TopSpecies
	topErr   error
	cfgErr   error
	cursors  []string
	periods  []birdweather.Period
}

func newFakeAPI(pages ...*birdweather.DetectionPage) *fakeAPI {
	api := &fakeAPI{pages: make(map[string]*birdweather.DetectionPage), pageErrs: make(map[string]error)}
	cursor := ""
	for i, p := range pages {
		api.pages[cursor] = p
		if i < len(pages)-1 {
			p.HasNextPage = true
			p.EndCursor = "c" + string(rune('1'+i))
			cursor = p.EndCursor
		}
	}
	return api
}

func (f *fakeAPI) Detections(_ context.Context, period birdweather.Period, _ int, after string) (*birdweather.DetectionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, after)
	f.periods = append(f.periods, period)
	if err, ok := f.pageErrs[after]; ok {
		return nil, err
	}
	if p, ok := f.pages[after]; ok {
		return p, nil
	}
	return &birdweather.DetectionPage{}, nil
}

func (f *fakeAPI) TopSpecies(context.Context, birdweather.Period, int) ([]birdweather.TopSpecies, error) {
	return f.top, f.topErr
}

func (f *fakeAPI) PageSize() int { return 100 }

func (f *fakeAPI) ValidateConfig(bool) error { return f.cfgErr }

func (f *fakeAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cursors)
}

// fakeEnricher records Ensure calls and fails configured ids.
type fakeEnricher struct {
	mu          sync.Mutex
	known       map[string]bool
	fail        map[string]bool
	calls       []string
	delay       time.Duration
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newFakeEnricher(known ...string) *fakeEnricher {
	e := &fakeEnricher{known: make(map[string]bool), fail: make(map[string]bool)}
	for _, id := range known {
		e.known[id] = true
	}
	return e
}

func (e *fakeEnricher) Ensure(_ context.Context, id string) (*datastore.Species, bool, error) {
	n := e.inflight.Add(1)
	defer e.inflight.Add(-1)
	for {
		peak := e.maxInflight.Load()
		if n <= peak || e.maxInflight.CompareAndSwap(peak, n) {
			break
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, id)
	if e.fail[id] {
		return nil, false, errors.Newf("lookup failed for %s", id).Category(errors.CategoryIntegration).Build()
	}
	if e.known[id] {
		return &datastore.Species{SpeciesID: id}, false, nil
	}
	e.known[id] = true
	return &datastore.Species{SpeciesID: id}, true, nil
}

func (e *fakeEnricher) callList() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
}

func newTestSyncer(api API, enricher Enricher, store Store, opts Options) *Syncer {
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	return NewSyncer(api, enricher, store, logger.NewNopLogger(), opts)
}

// fakeStation implements StationAPI.
type fakeStation struct {
	station *birdweather.Station
	err     error
	calls   int
}

func (f *fakeStation) Station(context.Context) (*birdweather.Station, error) {
	f.calls++
	return f.station, f.err
}
