package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversions(t *testing.T) {
	tests := []struct {
		name    string
		convert func(*float64) *float64
		in      float64
		want    float64
		delta   float64
	}{
		{"freezing point", CelsiusToFahrenheit, 0, 32, 1e-9},
		{"boiling point", CelsiusToFahrenheit, 100, 212, 1e-9},
		{"100 km/h", KmhToMph, 100, 62.14, 0.01},
		{"standard pressure", PascalToHPa, 100000, 1000, 1e-9},
		{"1000 m", MetersToMiles, 1000, 0.621, 0.001},
		{"one inch", MMToInches, 25.4, 1.0, 1e-4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.convert(&tt.in)
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, tt.delta)
		})
	}
}

func TestConversions_NilStaysNil(t *testing.T) {
	for _, fn := range []func(*float64) *float64{CelsiusToFahrenheit, KmhToMph, PascalToHPa, MetersToMiles, MMToInches} {
		assert.Nil(t, fn(nil))
	}
}

func TestFeelsLike(t *testing.T) {
	chill, heat, temp := float64Ptr(20), float64Ptr(95), float64Ptr(40)

	assert.Same(t, chill, FeelsLike(chill, heat, temp))
	assert.Same(t, heat, FeelsLike(nil, heat, temp))
	assert.Same(t, temp, FeelsLike(nil, nil, temp))
	assert.Nil(t, FeelsLike(nil, nil, nil))
}

func TestConvertObservation_MissingTimestamp(t *testing.T) {
	var resp observationResponse
	_, err := convertObservation(&resp)
	require.Error(t, err)
}

func TestConvertObservation_NullsStayNull(t *testing.T) {
	var resp observationResponse
	ts := "2024-01-05T11:54:00-05:00"
	resp.Properties.Timestamp = &ts

	c, err := convertObservation(&resp)
	require.NoError(t, err)
	assert.Nil(t, c.TemperatureF)
	assert.Nil(t, c.FeelsLikeF)
	assert.Nil(t, c.PressureHPa)
	assert.Equal(t, time.Date(2024, 1, 5, 16, 54, 0, 0, time.UTC), c.ObservedAt)
}

func TestConvertForecast_SkipsPeriodsWithoutTimes(t *testing.T) {
	start, end, bad := "2024-01-05T06:00:00-05:00", "2024-01-05T18:00:00-05:00", "tomorrow"

	var resp forecastResponse
	resp.Properties.Periods = []forecastPeriod{
		{Number: 1, Name: "Today", StartTime: &start, EndTime: &end},
		{Number: 2, Name: "Tonight", StartTime: &end},
		{Number: 3, Name: "Later", StartTime: &bad, EndTime: &end},
	}

	periods, skipped := convertForecast(&resp)
	require.Len(t, periods, 1)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 1, periods[0].Number)
	assert.True(t, periods[0].IsDaytime, "missing isDaytime defaults to daytime")
	assert.Equal(t, time.Date(2024, 1, 5, 11, 0, 0, 0, time.UTC), periods[0].StartTime)
}
