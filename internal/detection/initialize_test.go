package detection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/birdweather"
	"github.com/tphakala/birdweather-sync/internal/errors"
)

func TestInitializeDatabase_FirstRun(t *testing.T) {
	store := newTestStore(t, false)
	api := &fakeStation{station: &birdweather.Station{ID: "99", Name: "Yard", Latitude: 42.36, Longitude: -71.06, HasCoords: true}}
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	res, err := InitializeDatabase(t.Context(), store, api, 60, now, nil)
	require.NoError(t, err)
	assert.True(t, res.WatermarkCreated)
	assert.True(t, res.Watermark.Equal(now.Add(-60*24*time.Hour)))
	assert.True(t, res.CoordinatesFetched)

	lat, lon, found, err := store.GetStationCoordinates(t.Context())
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 42.36, lat, 1e-9)
	assert.InDelta(t, -71.06, lon, 1e-9)
}

func TestInitializeDatabase_Idempotent(t *testing.T) {
	store := newTestStore(t, false)
	api := &fakeStation{station: &birdweather.Station{ID: "99", Latitude: 1, Longitude: 2, HasCoords: true}}
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := InitializeDatabase(t.Context(), store, api, 60, now, nil)
	require.NoError(t, err)

	second, err := InitializeDatabase(t.Context(), store, api, 10, now.Add(24*time.Hour), nil)
	require.NoError(t, err)
	assert.False(t, second.WatermarkCreated)
	assert.True(t, second.Watermark.Equal(first.Watermark))
	assert.False(t, second.CoordinatesFetched)
	assert.True(t, second.CoordinatesStored)
	assert.Equal(t, 1, api.calls, "stored coordinates are not refetched")
}

func TestInitializeDatabase_StationWithoutCoordinates(t *testing.T) {
	store := newTestStore(t, false)
	api := &fakeStation{station: &birdweather.Station{ID: "99"}}

	res, err := InitializeDatabase(t.Context(), store, api, 60, time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, res.CoordinatesStored)

	_, _, found, err := store.GetStationCoordinates(t.Context())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInitializeDatabase_StationLookupFails(t *testing.T) {
	store := newTestStore(t, false)
	api := &fakeStation{err: errors.Newf("down").Category(errors.CategoryNetwork).Build()}

	res, err := InitializeDatabase(t.Context(), store, api, 60, time.Now(), nil)
	require.Error(t, err)
	assert.True(t, res.WatermarkCreated, "watermark seeding survives a failed station lookup")
}

func TestInitializeDatabase_RejectsBadHistory(t *testing.T) {
	store := newTestStore(t, false)
	_, err := InitializeDatabase(t.Context(), store, nil, 0, time.Now(), nil)
	require.Error(t, err)
}

func TestUpdateStationCoordinates(t *testing.T) {
	store := newTestStore(t, false)
	require.NoError(t, UpdateStationCoordinates(t.Context(), store, 10.5, 20.25, nil))

	lat, lon, found, err := store.GetStationCoordinates(t.Context())
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 10.5, lat, 1e-9)
	assert.InDelta(t, 20.25, lon, 1e-9)

	require.Error(t, UpdateStationCoordinates(t.Context(), store, 100, 0, nil))
}
