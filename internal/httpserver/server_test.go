package httpserver

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/birdweather-sync/internal/app"
	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/observability"
	"github.com/tphakala/birdweather-sync/internal/observability/metrics"
	"github.com/tphakala/birdweather-sync/internal/scheduler"
	"github.com/tphakala/birdweather-sync/internal/weather"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func busyError() error {
	return errors.New(scheduler.ErrBusy).Category(errors.CategoryConflict).Build()
}

func TestHealth(t *testing.T) {
	s := New(&fakeBackend{}, nil, nil)
	rec := serve(t, s, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	m.Sync.RecordRun(metrics.SyncRun{Status: metrics.StatusSuccess, DetectionsProcessed: 2})

	s := New(&fakeBackend{}, m.Handler(), nil)
	rec := serve(t, s, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bwsync_sync_runs_total{status="success"} 1`)

	t.Run("disabled", func(t *testing.T) {
		s := New(&fakeBackend{}, nil, nil)
		assert.Equal(t, http.StatusNotFound, serve(t, s, http.MethodGet, "/metrics").Code)
	})
}

func TestStatus(t *testing.T) {
	wm := time.Date(2024, 1, 3, 9, 30, 0, 0, time.UTC)
	report := &app.StatusReport{
		SpeciesCount: 7,
		Station:      &app.Coordinates{Latitude: 42.36, Longitude: -71.06},
		Sync:         app.SyncState{Watermark: &wm, PendingSpecies: []string{"42"}},
	}
	s := New(&fakeBackend{report: report}, nil, nil)

	rec := serve(t, s, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[app.StatusReport](t, rec)
	assert.Equal(t, int64(7), got.SpeciesCount)
	require.NotNil(t, got.Sync.Watermark)
	assert.True(t, wm.Equal(*got.Sync.Watermark))
	assert.Equal(t, []string{"42"}, got.Sync.PendingSpecies)

	t.Run("store failure", func(t *testing.T) {
		s := New(&fakeBackend{statusErr: errors.Newf("db closed").Category(errors.CategoryDatabase).Build()}, nil, nil)
		rec := serve(t, s, http.MethodGet, "/api/v1/status")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		body := decode[ErrorResponse](t, rec)
		assert.Equal(t, "db closed", body.Error)
		assert.Len(t, body.CorrelationID, 8)
	})
}

func TestSyncTrigger(t *testing.T) {
	upstream := errors.New(
		errors.Newf("connection refused").Category(errors.CategoryNetwork).Build(),
	).Category(errors.CategorySync).Build()

	tests := []struct {
		name     string
		backend  *fakeBackend
		wantCode int
	}{
		{
			name:     "success",
			backend:  &fakeBackend{stats: detection.Stats{RunID: "r1", DetectionsProcessed: 3}},
			wantCode: http.StatusOK,
		},
		{
			name:     "already running",
			backend:  &fakeBackend{syncErr: busyError()},
			wantCode: http.StatusConflict,
		},
		{
			name:     "upstream failure",
			backend:  &fakeBackend{stats: detection.Stats{RunID: "r2", Pages: 1}, syncErr: upstream},
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "database failure",
			backend:  &fakeBackend{syncErr: errors.Newf("disk full").Category(errors.CategoryDatabase).Build()},
			wantCode: http.StatusInternalServerError,
		},
		{
			name:     "cancelled",
			backend:  &fakeBackend{syncErr: errors.Newf("cancelled").Category(errors.CategoryCancellation).Build()},
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.backend, nil, nil)
			rec := serve(t, s, http.MethodPost, "/api/v1/sync")
			assert.Equal(t, tt.wantCode, rec.Code)

			if tt.wantCode == http.StatusConflict {
				assert.Equal(t, http.StatusConflict, decode[ErrorResponse](t, rec).Code)
				return
			}
			body := decode[SyncResponse](t, rec)
			assert.Equal(t, tt.backend.syncErr == nil, body.Success)
			assert.Equal(t, tt.backend.stats.RunID, body.Stats.RunID)
		})
	}
}

func TestSyncTrigger_RequiresPost(t *testing.T) {
	s := New(&fakeBackend{}, nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, s, http.MethodGet, "/api/v1/sync").Code)
}

func TestWeatherTrigger(t *testing.T) {
	tests := []struct {
		name     string
		backend  *fakeBackend
		wantCode int
	}{
		{
			name:     "success",
			backend:  &fakeBackend{status: weather.Status{Success: true, Message: weather.MsgUpdated}},
			wantCode: http.StatusOK,
		},
		{
			name:     "already running",
			backend:  &fakeBackend{weatherErr: busyError()},
			wantCode: http.StatusConflict,
		},
		{
			name:     "disabled",
			backend:  &fakeBackend{weatherErr: errors.Newf("weather integration is disabled").Category(errors.CategoryConfiguration).Build()},
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name: "update failed",
			backend: &fakeBackend{
				status:     weather.Status{Message: weather.MsgUpdateFailed},
				weatherErr: errors.Newf(weather.MsgUpdateFailed).Category(errors.CategoryWeather).Build(),
			},
			wantCode: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.backend, nil, nil)
			rec := serve(t, s, http.MethodPost, "/api/v1/weather")
			assert.Equal(t, tt.wantCode, rec.Code)

			if tt.wantCode == http.StatusOK || tt.wantCode == http.StatusBadGateway {
				body := decode[WeatherResponse](t, rec)
				assert.Equal(t, tt.backend.status.Message, body.Message)
			}
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := New(&fakeBackend{}, nil, nil)
	require.NoError(t, s.Start("127.0.0.1:0"))
	addr := s.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "ok"))

	http.DefaultClient.CloseIdleConnections()
	require.NoError(t, s.Shutdown(t.Context()))
}

func TestStart_InvalidAddress(t *testing.T) {
	s := New(&fakeBackend{}, nil, nil)
	err := s.Start("256.0.0.1:bad")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.NoError(t, s.Shutdown(t.Context()))
}
