package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/httpclient"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/observability/metrics"
)

const (
	// DefaultBaseURL is the public NWS API.
	DefaultBaseURL = "https://api.weather.gov"

	geoJSONContentType = "application/geo+json"
	maxResponseBytes   = 5 * 1024 * 1024
	maxBodyPreviewSize = 200
)

// quantity is an NWS quantitative value; Value is null when the sensor
// reported nothing.
type quantity struct {
	Value    *float64 `json:"value"`
	UnitCode string   `json:"unitCode"`
}

type pointResponse struct {
	Properties struct {
		CWA                 string `json:"cwa"`
		GridX               *int   `json:"gridX"`
		GridY               *int   `json:"gridY"`
		Forecast            string `json:"forecast"`
		ObservationStations string `json:"observationStations"`
	} `json:"properties"`
}

type stationsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Properties struct {
			StationIdentifier string `json:"stationIdentifier"`
			Name              string `json:"name"`
		} `json:"properties"`
	} `json:"features"`
}

type observationResponse struct {
	Properties struct {
		Timestamp               *string  `json:"timestamp"`
		TextDescription         string   `json:"textDescription"`
		Icon                    *string  `json:"icon"`
		Temperature             quantity `json:"temperature"`
		Dewpoint                quantity `json:"dewpoint"`
		WindDirection           quantity `json:"windDirection"`
		WindSpeed               quantity `json:"windSpeed"`
		WindGust                quantity `json:"windGust"`
		BarometricPressure      quantity `json:"barometricPressure"`
		Visibility              quantity `json:"visibility"`
		RelativeHumidity        quantity `json:"relativeHumidity"`
		WindChill               quantity `json:"windChill"`
		HeatIndex               quantity `json:"heatIndex"`
		PrecipitationLastHour   quantity `json:"precipitationLastHour"`
		PrecipitationLast3Hours quantity `json:"precipitationLast3Hours"`
		PrecipitationLast6Hours quantity `json:"precipitationLast6Hours"`
	} `json:"properties"`
}

type forecastPeriod struct {
	Number                     int       `json:"number"`
	Name                       string    `json:"name"`
	StartTime                  *string   `json:"startTime"`
	EndTime                    *string   `json:"endTime"`
	IsDaytime                  *bool     `json:"isDaytime"`
	Temperature                *float64  `json:"temperature"`
	WindSpeed                  string    `json:"windSpeed"`
	WindDirection              string    `json:"windDirection"`
	ProbabilityOfPrecipitation *quantity `json:"probabilityOfPrecipitation"`
	ShortForecast              string    `json:"shortForecast"`
	DetailedForecast           string    `json:"detailedForecast"`
	Icon                       string    `json:"icon"`
}

type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

// Point is the grid metadata NWS returns for a coordinate pair.
type Point struct {
	ForecastOffice         string
	GridX                  int
	GridY                  int
	ForecastURL            string
	ObservationStationsURL string
}

// Station is an observation station candidate.
type Station struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
}

// API is the NWS surface used by the resolver and service.
type API interface {
	Point(ctx context.Context, lat, lon float64) (*Point, error)
	Stations(ctx context.Context, url string) ([]Station, error)
	LatestObservation(ctx context.Context, url string) (*datastore.CurrentConditions, error)
	Forecast(ctx context.Context, url string) ([]datastore.Forecast, error)
	ConditionsURL(stationID string) string
}

// NWSClient talks to api.weather.gov over an injected httpclient.Client.
type NWSClient struct {
	baseURL string
	http    *httpclient.Client
	log     logger.Logger
	metrics *metrics.WeatherMetrics
}

var _ API = (*NWSClient)(nil)

// NewNWSClient creates a client. The httpclient should carry the
// descriptive User-Agent NWS requires.
func NewNWSClient(baseURL string, hc *httpclient.Client, log logger.Logger, m *metrics.WeatherMetrics) *NWSClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = httpclient.New(&httpclient.Config{
			Headers: map[string]string{"Accept": geoJSONContentType},
		})
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &NWSClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		log:     log.Module("weather"),
		metrics: m,
	}
}

// ConditionsURL returns the latest-observation URL for a station.
func (c *NWSClient) ConditionsURL(stationID string) string {
	return fmt.Sprintf("%s/stations/%s/observations/latest", c.baseURL, stationID)
}

// Point looks up grid metadata for coordinates already rounded by the caller.
func (c *NWSClient) Point(ctx context.Context, lat, lon float64) (*Point, error) {
	url := fmt.Sprintf("%s/points/%s,%s", c.baseURL, formatCoord(lat), formatCoord(lon))

	var resp pointResponse
	if err := c.getJSON(ctx, metrics.OpPoints, url, &resp); err != nil {
		return nil, err
	}

	p := resp.Properties
	if p.Forecast == "" || p.GridX == nil || p.GridY == nil {
		return nil, errors.Newf("point response for %s is missing grid data", url).
			Component("weather").
			Category(errors.CategoryValidation).
			Context("operation", metrics.OpPoints).
			Context("url", url).
			Build()
	}

	return &Point{
		ForecastOffice:         p.CWA,
		GridX:                  *p.GridX,
		GridY:                  *p.GridY,
		ForecastURL:            p.Forecast,
		ObservationStationsURL: p.ObservationStations,
	}, nil
}

// Stations lists observation stations. Features without two coordinates,
// with a zero coordinate or without an identifier are skipped.
func (c *NWSClient) Stations(ctx context.Context, url string) ([]Station, error) {
	var resp stationsResponse
	if err := c.getJSON(ctx, metrics.OpStations, url, &resp); err != nil {
		return nil, err
	}

	stations := make([]Station, 0, len(resp.Features))
	for _, f := range resp.Features {
		coords := f.Geometry.Coordinates
		if len(coords) < 2 {
			continue
		}
		lon, lat := coords[0], coords[1]
		id := f.Properties.StationIdentifier
		if lat == 0 || lon == 0 || id == "" {
			continue
		}
		stations = append(stations, Station{
			ID:        id,
			Name:      f.Properties.Name,
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return stations, nil
}

// LatestObservation fetches the station's latest observation converted to
// imperial units. LocationID is left for the caller.
func (c *NWSClient) LatestObservation(ctx context.Context, url string) (*datastore.CurrentConditions, error) {
	var resp observationResponse
	if err := c.getJSON(ctx, metrics.OpConditions, url, &resp); err != nil {
		return nil, err
	}
	conditions, err := convertObservation(&resp)
	if err != nil {
		return nil, errors.New(err).
			Component("weather").
			Category(errors.CategoryValidation).
			Context("operation", metrics.OpConditions).
			Context("url", url).
			Build()
	}
	return conditions, nil
}

// Forecast fetches the forecast periods of a grid. Periods without a start
// or end time are dropped.
func (c *NWSClient) Forecast(ctx context.Context, url string) ([]datastore.Forecast, error) {
	var resp forecastResponse
	if err := c.getJSON(ctx, metrics.OpForecast, url, &resp); err != nil {
		return nil, err
	}
	periods, skipped := convertForecast(&resp)
	if skipped > 0 {
		c.log.Debug("skipped forecast periods without valid times", logger.Int("skipped", skipped))
	}
	return periods, nil
}

func (c *NWSClient) getJSON(ctx context.Context, operation, url string, out any) error {
	start := time.Now()
	err := c.doGetJSON(ctx, operation, url, out)

	if c.metrics != nil {
		c.metrics.RecordWeatherFetchDuration(operation, time.Since(start).Seconds())
		if err != nil {
			c.metrics.RecordWeatherFetch(operation, metrics.StatusError)
			c.metrics.RecordWeatherFetchError(operation, string(errorCategory(err)))
		} else {
			c.metrics.RecordWeatherFetch(operation, metrics.StatusSuccess)
		}
	}
	return err
}

func (c *NWSClient) doGetJSON(ctx context.Context, operation, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return newWeatherError(err, errors.CategoryValidation, operation, url)
	}
	req.Header.Set("Accept", geoJSONContentType)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		category := errors.CategoryNetwork
		if ctx.Err() != nil {
			category = errors.CategoryCancellation
		}
		return newWeatherError(err, category, operation, url)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Debug("failed to close response body", logger.Error(closeErr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return newWeatherError(err, errors.CategoryNetwork, operation, url)
	}

	if resp.StatusCode != http.StatusOK {
		preview := truncateBodyPreview(string(body))
		c.log.Warn("received non-OK status code from NWS",
			logger.String("operation", operation),
			logger.Int("status_code", resp.StatusCode),
			logger.String("response_body", preview))

		category := errors.CategoryHTTP
		switch {
		case resp.StatusCode == http.StatusNotFound:
			category = errors.CategoryNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			category = errors.CategoryLimit
		case resp.StatusCode >= http.StatusInternalServerError:
			category = errors.CategoryNetwork
		}
		return errors.Newf("NWS %s request returned status %d", operation, resp.StatusCode).
			Component("weather").
			Category(category).
			Context("operation", operation).
			Context("url", url).
			Context("status_code", strconv.Itoa(resp.StatusCode)).
			Build()
	}

	if err := json.Unmarshal(body, out); err != nil {
		return newWeatherError(err, errors.CategoryValidation, operation, url)
	}
	return nil
}

// newWeatherError creates a standardized weather error with common fields
func newWeatherError(err error, category errors.ErrorCategory, operation, url string) error {
	return errors.New(err).
		Component("weather").
		Category(category).
		Context("operation", operation).
		Context("url", url).
		Build()
}

func errorCategory(err error) errors.ErrorCategory {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return errors.CategoryGeneric
}

func truncateBodyPreview(body string) string {
	if len(body) <= maxBodyPreviewSize {
		return body
	}
	return body[:maxBodyPreviewSize] + "..."
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
