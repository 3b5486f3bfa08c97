package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineMiles(t *testing.T) {
	// Boston Logan to JFK is roughly 187 miles
	d := HaversineMiles(42.3656, -71.0096, 40.6413, -73.7781)
	assert.InDelta(t, 187, d, 2)

	assert.InDelta(t, 0, HaversineMiles(10, 10, 10, 10), 1e-9)
}

func TestRoundCoord(t *testing.T) {
	assert.InDelta(t, 42.3601, RoundCoord(42.36012), 1e-12)
	assert.InDelta(t, -71.0589, RoundCoord(-71.05889), 1e-12)
	assert.InDelta(t, 1.0, RoundCoord(0.99996), 1e-12)
}

func TestNearestStation(t *testing.T) {
	lat, lon := 42.0, -71.0
	var stations []Station
	for _, f := range []stationFixture{
		northOf("FAR", lat, lon, 12.3),
		northOf("NEAR", lat, lon, 4.1),
		northOf("FARTHEST", lat, lon, 30.0),
	} {
		stations = append(stations, Station{ID: f.id, Latitude: f.lat, Longitude: f.lon})
	}

	nearest, miles, ok := NearestStation(stations, lat, lon)
	require.True(t, ok)
	assert.Equal(t, "NEAR", nearest.ID)
	assert.InDelta(t, 4.1, miles, 1e-6)

	_, _, ok = NearestStation(nil, lat, lon)
	assert.False(t, ok)
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, withinTolerance(42.0, -71.0, 42.005, -71.005))
	assert.True(t, withinTolerance(42.0, -71.0, 42.0, -71.0))
	assert.False(t, withinTolerance(42.0, -71.0, 42.02, -71.0))
	assert.False(t, withinTolerance(42.0, -71.0, 42.0, -70.98))
}
