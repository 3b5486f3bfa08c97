package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/errors"
)

const testDSN = "https://public@sentry.example.test/1"

// mockTransport records events in memory instead of sending them.
type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *mockTransport) Configure(sentry.ClientOptions) {} //nolint:gocritic // interface signature

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool              { return true }
func (t *mockTransport) FlushWithContext(context.Context) bool { return true }
func (t *mockTransport) Close()                                {}

func (t *mockTransport) recorded() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

// initTestSentry initializes Sentry over a mock transport and restores a
// disabled reporter afterwards.
func initTestSentry(t *testing.T) *mockTransport {
	t.Helper()
	transport := &mockTransport{}
	flush, err := initSentry(&conf.SentrySettings{
		Enabled:     true,
		DSN:         testDSN,
		Environment: "test",
		SampleRate:  1.0,
	}, "test", transport)
	require.NoError(t, err)
	t.Cleanup(func() {
		flush()
		errors.SetTelemetryReporter(nil)
	})
	return transport
}
