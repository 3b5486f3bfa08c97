package observability

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/httpclient"
	"github.com/tphakala/birdweather-sync/internal/observability/metrics"
)

// NewMetrics uses a private registry, so concurrent instances must not collide.
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 20

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Sync)
			assert.NotNil(t, m.Weather)
			assert.NotNil(t, m.HTTP)
		})
	}
	wg.Wait()
}

func TestHandlerExposesSyncMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	wm := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	m.Sync.RecordRun(metrics.SyncRun{
		Status:              metrics.StatusSuccess,
		Duration:            2 * time.Second,
		DetectionsProcessed: 3,
		NewSpeciesAdded:     1,
		Pages:               1,
		Watermark:           &wm,
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `bwsync_sync_runs_total{status="success"} 1`)
	assert.Contains(t, body, "bwsync_detections_processed_total 3")
	assert.Contains(t, body, "bwsync_watermark_timestamp_seconds 1.70424e+09")
}

func TestInstrumentClient(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://api.weather.test/points/1,2",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	hc := httpclient.New(&httpclient.Config{Transport: transport})
	t.Cleanup(hc.Close)
	m.InstrumentClient(hc, "nws")

	resp, err := hc.Get(t.Context(), "https://api.weather.test/points/1,2")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	count, err := testutil.GatherAndCount(m.Registry(), "bwsync_http_client_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
