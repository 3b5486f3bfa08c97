package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/mqtt"
	"github.com/tphakala/birdweather-sync/internal/observability/metrics"
	"github.com/tphakala/birdweather-sync/internal/weather"
)

const testLocation = "station"

var testWatermark = time.Date(2024, 1, 3, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) datastore.Interface {
	t.Helper()
	store, err := datastore.New(&conf.DatabaseSettings{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "app.db"),
	}, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestSyncMetrics(t *testing.T) (*metrics.SyncMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewSyncMetrics(reg)
	require.NoError(t, err)
	return m, reg
}

// fakeSyncer returns canned results; block, when set, holds each call
// until it is closed.
type fakeSyncer struct {
	mu      sync.Mutex
	calls   int
	stats   detection.Stats
	err     error
	entered chan struct{}
	block   chan struct{}
	onSync  func(ctx context.Context)
}

func (f *fakeSyncer) Sync(ctx context.Context) (detection.Stats, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.onSync != nil {
		f.onSync(ctx)
	}
	return f.stats, f.err
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeWeather struct {
	status weather.Status
	calls  int
}

func (f *fakeWeather) UpdateWeather(context.Context) weather.Status {
	f.calls++
	return f.status
}

type recordingClient struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingClient) Connect(context.Context) error { return nil }

func (r *recordingClient) Publish(_ context.Context, topic string, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return nil
}

func (r *recordingClient) IsConnected() bool { return true }
func (r *recordingClient) Disconnect()       {}

func (r *recordingClient) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

func newTestPublisher() (*mqtt.Publisher, *recordingClient) {
	rc := &recordingClient{}
	return mqtt.NewPublisher(rc, "bwsync", logger.NewNopLogger()), rc
}

func float64Ptr(v float64) *float64 { return &v }
