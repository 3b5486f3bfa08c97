package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/app"
	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/weather"
)

// fakeBackend returns canned results.
type fakeBackend struct {
	stats      detection.Stats
	syncErr    error
	status     weather.Status
	weatherErr error
	report     *app.StatusReport
	statusErr  error
}

func (f *fakeBackend) RunSync(context.Context) (detection.Stats, error) {
	return f.stats, f.syncErr
}

func (f *fakeBackend) RunWeather(context.Context) (weather.Status, error) {
	return f.status, f.weatherErr
}

func (f *fakeBackend) Status(context.Context) (*app.StatusReport, error) {
	return f.report, f.statusErr
}

// serve runs one request through the server's router.
func serve(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(t.Context(), method, path, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
