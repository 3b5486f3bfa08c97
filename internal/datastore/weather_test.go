package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/errors"
)

func TestLocationWeatherConfig_Upsert(t *testing.T) {
	store := createDatabase(t)
	ctx := t.Context()

	_, err := store.GetLocationWeatherConfig(ctx, "station")
	assert.True(t, errors.IsNotFound(err))

	cfg := &LocationWeatherConfig{
		Name:          "station",
		LastLatitude:  float64Ptr(40.0),
		LastLongitude: float64Ptr(-75.0),
		ForecastURL:   "https://api.weather.gov/gridpoints/PHI/1,2/forecast",
		StationID:     "KPHL",
	}
	require.NoError(t, store.SaveLocationWeatherConfig(ctx, cfg))
	firstID := cfg.ID
	require.NotZero(t, firstID)

	update := &LocationWeatherConfig{
		Name:          "station",
		LastLatitude:  float64Ptr(41.0),
		LastLongitude: float64Ptr(-75.0),
		ForecastURL:   "https://api.weather.gov/gridpoints/PHI/9,9/forecast",
	}
	require.NoError(t, store.SaveLocationWeatherConfig(ctx, update))
	assert.Equal(t, firstID, update.ID, "one row per location name")

	got, err := store.GetLocationWeatherConfig(ctx, "station")
	require.NoError(t, err)
	assert.InDelta(t, 41.0, *got.LastLatitude, 1e-9)
	assert.Empty(t, got.StationID, "station fields are overwritten, not merged")
	assert.True(t, got.HasCoordinates())
}

func TestCurrentConditions_Latest(t *testing.T) {
	store := createDatabase(t)
	ctx := t.Context()

	cfg := &LocationWeatherConfig{Name: "station"}
	require.NoError(t, store.SaveLocationWeatherConfig(ctx, cfg))

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, temp := range []float64{60, 70, 65} {
		require.NoError(t, store.SaveCurrentConditions(ctx, &CurrentConditions{
			LocationID:   cfg.ID,
			ObservedAt:   base.Add(time.Duration(i) * time.Hour),
			TemperatureF: float64Ptr(temp),
		}))
	}

	latest, err := store.LatestConditions(ctx, cfg.ID)
	require.NoError(t, err)
	require.NotNil(t, latest.TemperatureF)
	assert.InDelta(t, 65.0, *latest.TemperatureF, 1e-9)

	_, err = store.LatestConditions(ctx, cfg.ID+100)
	assert.True(t, errors.IsNotFound(err))

	require.Error(t, store.SaveCurrentConditions(ctx, &CurrentConditions{}))
}

func TestReplaceForecast_SingleGeneration(t *testing.T) {
	store := createDatabase(t)
	ctx := t.Context()

	cfg := &LocationWeatherConfig{Name: "station"}
	require.NoError(t, store.SaveLocationWeatherConfig(ctx, cfg))

	periods := func(n int) []Forecast {
		out := make([]Forecast, n)
		for i := range out {
			out[i] = Forecast{Number: i + 1, Name: "Period", StartTime: time.Now(), EndTime: time.Now().Add(time.Hour)}
		}
		return out
	}

	require.NoError(t, store.ReplaceForecast(ctx, cfg.ID, "gen-1", periods(3)))
	require.NoError(t, store.ReplaceForecast(ctx, cfg.ID, "gen-2", periods(2)))

	got, err := store.GetForecast(ctx, cfg.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, p := range got {
		assert.Equal(t, "gen-2", p.Generation)
		assert.Equal(t, i+1, p.Number)
		assert.Equal(t, cfg.ID, p.LocationID)
	}
}

func TestReplaceForecast_Validation(t *testing.T) {
	store := createDatabase(t)
	ctx := t.Context()

	require.Error(t, store.ReplaceForecast(ctx, 0, "gen", nil))
	require.Error(t, store.ReplaceForecast(ctx, 1, "", nil))
}
