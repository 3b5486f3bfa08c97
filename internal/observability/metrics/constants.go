// Package metrics provides constants used across metric definitions.
package metrics

// Status label values.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Operation label values for weather metrics.
const (
	OpResolve    = "resolve"
	OpConditions = "conditions"
	OpForecast   = "forecast"
	OpStations   = "stations"
	OpPoints     = "points"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketStart1s is the starting bucket for 1s histograms (1s to ~9 hours range).
	BucketStart1s = 1.0

	BucketFactor2 = 2

	BucketCount10 = 10
	BucketCount15 = 15
)
