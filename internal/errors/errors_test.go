package errors

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reported)
}

// withReporter installs a reporter for the duration of the test.
func withReporter(t *testing.T) *recordingReporter {
	t.Helper()
	r := &recordingReporter{}
	SetTelemetryReporter(r)
	t.Cleanup(func() { SetTelemetryReporter(nil) })
	return r
}

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuilderKeepsExplicitFields(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := Newf("species %d lookup failed", 42).
		Component("species").
		Category(CategoryEnrichment).
		Priority(PriorityHigh).
		Context("species_id", 42).
		Timing("fetch_species", 1500*time.Millisecond).
		Build()

	assert.Equal(t, "species 42 lookup failed", ee.GetMessage())
	assert.Equal(t, "species", ee.GetComponent())
	assert.Equal(t, "species-enrich", ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())

	ctx := ee.GetContext()
	assert.Equal(t, 42, ctx["species_id"])
	assert.Equal(t, "fetch_species", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])

	// Returned context is a copy
	ctx["species_id"] = 7
	assert.Equal(t, 42, ee.GetContext()["species_id"])
}

func TestPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestReporterReceivesErrors(t *testing.T) {
	r := withReporter(t)

	ee := New(NewStd("boom")).Component("detection").Category(CategorySync).Build()

	assert.Equal(t, 1, r.count())
	assert.True(t, ee.IsReported())
	assert.Equal(t, "detection", ee.GetComponent())
}

func TestDetectCategoryWithReporting(t *testing.T) {
	withReporter(t)

	tests := []struct {
		name      string
		err       error
		component string
		want      ErrorCategory
	}{
		{"cancelled context", fmt.Errorf("walk: %w", context.Canceled), "detection", CategoryCancellation},
		{"timeout message", NewStd("context deadline exceeded"), "birdweather", CategoryTimeout},
		{"connection refused", NewStd("dial tcp: connection refused"), "weather", CategoryNetwork},
		{"component fallback datastore", NewStd("constraint failed"), "datastore", CategoryDatabase},
		{"component fallback species", NewStd("no usable name"), "species", CategoryEnrichment},
		{"nested enhanced error", New(NewStd("x")).Category(CategoryConflict).Build(), "scheduler", CategoryConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ee := New(tt.err).Component(tt.component).Build()
			assert.Equal(t, tt.want, ee.Category)
		})
	}
}

func TestIsCategoryAndNotFound(t *testing.T) {
	t.Parallel()

	nf := New(NewStd("species 9 not found")).Category(CategoryNotFound).Build()
	wrapped := fmt.Errorf("outer: %w", nf)

	assert.True(t, IsNotFound(wrapped))
	assert.True(t, IsCategory(wrapped, CategoryNotFound))
	assert.False(t, IsCategory(wrapped, CategoryDatabase))
	assert.False(t, IsNotFound(NewStd("plain")))
}

func TestHasCategoryWalksChain(t *testing.T) {
	t.Parallel()

	inner := New(NewStd("connection refused")).Category(CategoryNetwork).Build()
	outer := New(inner).Category(CategorySync).Build()

	assert.True(t, HasCategory(outer, CategorySync))
	assert.True(t, HasCategory(outer, CategoryNetwork))
	assert.False(t, IsCategory(outer, CategoryNetwork), "IsCategory only sees the outermost category")
	assert.False(t, HasCategory(outer, CategoryDatabase))
	assert.False(t, HasCategory(nil, CategoryNetwork))
}

func TestEnhancedErrorUnwrap(t *testing.T) {
	t.Parallel()

	base := NewStd("base")
	ee := New(fmt.Errorf("ctx: %w", base)).Category(CategoryNetwork).Build()

	assert.True(t, Is(ee, base))
	assert.True(t, Is(ee, &EnhancedError{Category: CategoryNetwork}))
	assert.False(t, Is(ee, &EnhancedError{Category: CategoryDatabase}))

	var target *EnhancedError
	require.True(t, As(fmt.Errorf("wrap: %w", ee), &target))
	assert.Equal(t, CategoryNetwork, target.Category)
}

func TestNetworkContextHidesURL(t *testing.T) {
	t.Parallel()

	ee := NetworkError(NewStd("bad gateway"), "https://app.birdweather.com/graphql", 30*time.Second)
	ctx := ee.GetContext()

	assert.Equal(t, "https-endpoint", ctx["url_category"])
	assert.InDelta(t, 30.0, ctx["timeout_seconds"], 0.001)
	assert.Equal(t, CategoryNetwork, ee.Category)
}

func TestBasicURLScrub(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         string
		want       string
		notContain []string
	}{
		{
			name: "query parameters",
			in:   "Error at https://api.example.com?api_key=secret123&token=abc",
			want: "Error at https://api.example.com?[REDACTED]",
		},
		{
			name:       "bare api key",
			in:         "Config error: api_key=secret123 is invalid",
			notContain: []string{"secret123"},
		},
		{
			name:       "token and auth",
			in:         "Auth failed with token=abc123 and auth=xyz789",
			notContain: []string{"abc123", "xyz789"},
		},
		{
			name: "bearer header",
			in:   "Authorization: Bearer s3cr3t",
			want: "Authorization: Bearer [REDACTED]",
		},
		{
			name:       "station id",
			in:         "query failed for station_id=1234",
			notContain: []string{"1234"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := basicURLScrub(tt.in)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			for _, s := range tt.notContain {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).
		Component("birdweather").
		Category(CategoryNetwork).
		Context("operation", "fetch_detections").
		Build()

	assert.Equal(t, "Birdweather Network Error Fetch Detections", generateErrorTitle(ee))
}
