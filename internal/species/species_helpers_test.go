package species

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/birdweather"
	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/httpclient"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// newTestStore opens a temp-dir SQLite store.
func newTestStore(t *testing.T) datastore.Interface {
	t.Helper()
	store, err := datastore.New(&conf.DatabaseSettings{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "species.db"),
	}, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newTestImages returns a downloader backed by a mock transport.
func newTestImages(t *testing.T) (*ImageDownloader, *httpmock.MockTransport, string) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	hc := httpclient.New(&httpclient.Config{Transport: transport, DefaultTimeout: 5 * time.Second})
	t.Cleanup(hc.Close)

	dir := t.TempDir()
	return NewImageDownloader(dir, hc, logger.NewNopLogger()), transport, dir
}

// fakeFetcher serves species info from a map and counts calls.
type fakeFetcher struct {
	infos   map[string]*birdweather.SpeciesInfo
	errs    map[string]error
	delay   time.Duration
	calls   atomic.Int32
	release chan struct{}
}

func (f *fakeFetcher) Species(ctx context.Context, id string) (*birdweather.SpeciesInfo, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	info, ok := f.infos[id]
	if !ok {
		return nil, errors.Newf("species %s not found", id).
			Category(errors.CategoryNotFound).
			Build()
	}
	return info, nil
}

func robinInfo() *birdweather.SpeciesInfo {
	return &birdweather.SpeciesInfo{
		ID:               "305",
		CommonName:       "American Robin",
		ScientificName:   "Turdus migratorius",
		Color:            "#c0392b",
		WikipediaSummary: "<p>The <b>American robin</b> is a migratory songbird.</p>",
		ImageURL:         "https://img.example.test/305.jpg",
		ThumbnailURL:     "https://img.example.test/305.thumb.jpg",
	}
}

// racingStore hides the first lookup to simulate a row inserted by another process.
type racingStore struct {
	datastore.Interface
	hidden atomic.Bool
}

func (s *racingStore) GetSpecies(ctx context.Context, id string) (*datastore.Species, error) {
	if s.hidden.CompareAndSwap(false, true) {
		return nil, errors.Newf("species not found").Category(errors.CategoryNotFound).Build()
	}
	return s.Interface.GetSpecies(ctx, id)
}

// cancelOnceFetcher blocks its first call until that caller's ctx is
// cancelled; later calls succeed.
type cancelOnceFetcher struct {
	info    *birdweather.SpeciesInfo
	entered chan struct{}
	calls   atomic.Int32
}

func (f *cancelOnceFetcher) Species(ctx context.Context, _ string) (*birdweather.SpeciesInfo, error) {
	if f.calls.Add(1) == 1 {
		close(f.entered)
		<-ctx.Done()
		return nil, errors.New(ctx.Err()).Category(errors.CategoryCancellation).Build()
	}
	return f.info, nil
}
