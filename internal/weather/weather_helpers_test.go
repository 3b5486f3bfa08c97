package weather

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/httpclient"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

const (
	testBaseURL  = "https://nws.example.test"
	testLat      = 42.36012
	testLon      = -71.05889
	testPointURL = testBaseURL + "/points/42.3601,-71.0589"
	testStations = testBaseURL + "/gridpoints/BOX/71,90/stations"
	testForecast = testBaseURL + "/gridpoints/BOX/71,90/forecast"
	testLocation = "station"

	// miles per degree of latitude on the haversine sphere
	milesPerDegree = 2 * 3.141592653589793 * earthRadiusMiles / 360
)

// newTestStore opens a temp-dir SQLite store.
func newTestStore(t *testing.T) datastore.Interface {
	t.Helper()
	store, err := datastore.New(&conf.DatabaseSettings{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "weather.db"),
	}, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newTestNWS returns a client over a mock transport.
func newTestNWS(t *testing.T) (*NWSClient, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	hc := httpclient.New(&httpclient.Config{
		Transport: transport,
		UserAgent: "bwsync-test (ops@example.test)",
	})
	t.Cleanup(hc.Close)
	return NewNWSClient(testBaseURL, hc, logger.NewNopLogger(), nil), transport
}

func callsTo(transport *httpmock.MockTransport, url string) int {
	return transport.GetCallCountInfo()["GET "+url]
}

func pointJSON(stationsURL string) string {
	return fmt.Sprintf(`{"properties":{
		"cwa":"BOX","gridX":71,"gridY":90,
		"forecast":%q,
		"observationStations":%q}}`, testForecast, stationsURL)
}

type stationFixture struct {
	id       string
	lat, lon float64
}

// northOf places a station the given distance due north of lat/lon.
func northOf(id string, lat, lon, miles float64) stationFixture {
	return stationFixture{id: id, lat: lat + miles/milesPerDegree, lon: lon}
}

func stationsJSON(stations ...stationFixture) string {
	features := make([]string, 0, len(stations))
	for _, s := range stations {
		features = append(features, fmt.Sprintf(
			`{"geometry":{"type":"Point","coordinates":[%v,%v]},"properties":{"stationIdentifier":%q,"name":"%s station"}}`,
			s.lon, s.lat, s.id, s.id))
	}
	return `{"features":[` + strings.Join(features, ",") + `]}`
}

const observationJSON = `{"properties":{
	"timestamp":"2024-01-05T11:54:00+00:00",
	"textDescription":"Cloudy",
	"icon":"https://api.weather.gov/icons/land/day/ovc?size=medium",
	"temperature":{"value":0,"unitCode":"wmoUnit:degC"},
	"dewpoint":{"value":-5,"unitCode":"wmoUnit:degC"},
	"windDirection":{"value":270,"unitCode":"wmoUnit:degree_(angle)"},
	"windSpeed":{"value":100,"unitCode":"wmoUnit:km_h-1"},
	"windGust":{"value":null,"unitCode":"wmoUnit:km_h-1"},
	"barometricPressure":{"value":100000,"unitCode":"wmoUnit:Pa"},
	"visibility":{"value":1000,"unitCode":"wmoUnit:m"},
	"relativeHumidity":{"value":81.5,"unitCode":"wmoUnit:percent"},
	"windChill":{"value":-10,"unitCode":"wmoUnit:degC"},
	"heatIndex":{"value":null,"unitCode":"wmoUnit:degC"},
	"precipitationLastHour":{"value":25.4,"unitCode":"wmoUnit:mm"},
	"precipitationLast3Hours":{"value":null,"unitCode":"wmoUnit:mm"},
	"precipitationLast6Hours":{"value":null,"unitCode":"wmoUnit:mm"}}}`

const forecastJSON = `{"properties":{"periods":[
	{"number":1,"name":"Today","startTime":"2024-01-05T06:00:00-05:00","endTime":"2024-01-05T18:00:00-05:00",
	 "isDaytime":true,"temperature":38,"windSpeed":"10 mph","windDirection":"W",
	 "probabilityOfPrecipitation":{"unitCode":"wmoUnit:percent","value":20},
	 "shortForecast":"Cloudy","detailedForecast":"Cloudy, with a high near 38.","icon":"https://api.weather.gov/icons/day"},
	{"number":2,"name":"Tonight","startTime":"2024-01-05T18:00:00-05:00","endTime":"2024-01-06T06:00:00-05:00",
	 "isDaytime":false,"temperature":25,"windSpeed":"5 mph","windDirection":"NW",
	 "probabilityOfPrecipitation":{"unitCode":"wmoUnit:percent","value":null},
	 "shortForecast":"Mostly Clear","detailedForecast":"Mostly clear, with a low around 25.","icon":"https://api.weather.gov/icons/night"},
	{"number":3,"name":"Broken","startTime":null,"endTime":"2024-01-06T18:00:00-05:00"}
]}}`

// registerNWS wires the happy-path responders for testLat/testLon with a
// nearest station KBOS.
func registerNWS(transport *httpmock.MockTransport) {
	transport.RegisterResponder(http.MethodGet, testPointURL,
		httpmock.NewStringResponder(http.StatusOK, pointJSON(testStations)))
	transport.RegisterResponder(http.MethodGet, testStations,
		httpmock.NewStringResponder(http.StatusOK, stationsJSON(
			northOf("KFAR", testLat, testLon, 12.3),
			northOf("KBOS", testLat, testLon, 4.1),
		)))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/stations/KBOS/observations/latest",
		httpmock.NewStringResponder(http.StatusOK, observationJSON))
	transport.RegisterResponder(http.MethodGet, testForecast,
		httpmock.NewStringResponder(http.StatusOK, forecastJSON))
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
}

func float64Ptr(v float64) *float64 { return &v }
