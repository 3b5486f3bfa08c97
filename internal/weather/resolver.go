package weather

import (
	"context"
	"time"

	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/observability/metrics"
)

// Resolution results recorded in metrics.
const (
	resolutionCached   = "cached"
	resolutionResolved = "resolved"
	resolutionDegraded = "degraded"
	resolutionError    = "error"
)

// ConfigStore persists resolved location configs.
type ConfigStore interface {
	GetLocationWeatherConfig(ctx context.Context, name string) (*datastore.LocationWeatherConfig, error)
	SaveLocationWeatherConfig(ctx context.Context, cfg *datastore.LocationWeatherConfig) error
}

// Resolver maps station coordinates to a cached NWS grid and nearest
// observation station, re-resolving only when the coordinates move.
type Resolver struct {
	store   ConfigStore
	api     API
	name    string
	log     logger.Logger
	metrics *metrics.WeatherMetrics
	now     func() time.Time
}

// NewResolver creates a Resolver for the named location row.
func NewResolver(store ConfigStore, api API, name string, log logger.Logger, m *metrics.WeatherMetrics) *Resolver {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Resolver{
		store:   store,
		api:     api,
		name:    name,
		log:     log.Module("weather"),
		metrics: m,
		now:     time.Now,
	}
}

// Resolve returns the config for lat/lon. The stored row is reused while
// both coordinates stay within ResolveTolerance of the last resolution;
// otherwise the point and station lookups run and the row is rewritten.
// A failed point lookup leaves the stored row untouched.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) (*datastore.LocationWeatherConfig, error) {
	existing, err := r.store.GetLocationWeatherConfig(ctx, r.name)
	if err != nil && !errors.IsNotFound(err) {
		r.record(resolutionError)
		return nil, err
	}

	if existing.HasCoordinates() && withinTolerance(*existing.LastLatitude, *existing.LastLongitude, lat, lon) {
		r.record(resolutionCached)
		return existing, nil
	}

	log := r.log.WithContext(ctx).With(
		logger.String("location", r.name),
		logger.Float64("latitude", lat),
		logger.Float64("longitude", lon))
	if existing.HasCoordinates() {
		log.Info("station moved beyond tolerance, re-resolving weather location",
			logger.Float64("last_latitude", *existing.LastLatitude),
			logger.Float64("last_longitude", *existing.LastLongitude))
	} else {
		log.Info("resolving weather location")
	}

	point, err := r.api.Point(ctx, RoundCoord(lat), RoundCoord(lon))
	if err != nil {
		r.record(resolutionError)
		return nil, errors.New(err).
			Component("weather").
			Category(errors.CategoryWeather).
			Context("operation", metrics.OpResolve).
			Context("latitude", lat).
			Context("longitude", lon).
			Build()
	}

	cfg := &datastore.LocationWeatherConfig{Name: r.name}
	if existing != nil {
		copied := *existing
		cfg = &copied
	}
	cfg.ForecastOffice = point.ForecastOffice
	cfg.GridX = point.GridX
	cfg.GridY = point.GridY
	cfg.ForecastURL = point.ForecastURL
	cfg.ObservationStationsURL = point.ObservationStationsURL

	result := resolutionResolved
	station, miles, err := r.nearestStation(ctx, point.ObservationStationsURL, lat, lon)
	switch {
	case err != nil && ctx.Err() != nil:
		r.record(resolutionError)
		return nil, err
	case err != nil:
		log.Warn("observation station lookup failed, weather runs degraded without current conditions",
			logger.Error(err))
		cfg.StationID, cfg.ConditionsURL = "", ""
		result = resolutionDegraded
	case station == nil:
		log.Warn("no usable observation station found, weather runs degraded without current conditions")
		cfg.StationID, cfg.ConditionsURL = "", ""
		result = resolutionDegraded
	default:
		cfg.StationID = station.ID
		cfg.ConditionsURL = r.api.ConditionsURL(station.ID)
		log.Info("selected nearest observation station",
			logger.String("station_id", station.ID),
			logger.Float64("distance_miles", miles))
	}

	cfg.LastLatitude = &lat
	cfg.LastLongitude = &lon
	cfg.ResolvedAt = r.now().UTC()

	if err := r.store.SaveLocationWeatherConfig(ctx, cfg); err != nil {
		r.record(resolutionError)
		return nil, err
	}

	r.record(result)
	log.Info("weather location resolved",
		logger.String("forecast_office", cfg.ForecastOffice),
		logger.Int("grid_x", cfg.GridX),
		logger.Int("grid_y", cfg.GridY),
		logger.String("station_id", cfg.StationID))
	return cfg, nil
}

func (r *Resolver) nearestStation(ctx context.Context, url string, lat, lon float64) (*Station, float64, error) {
	if url == "" {
		return nil, 0, nil
	}
	stations, err := r.api.Stations(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	nearest, miles, ok := NearestStation(stations, lat, lon)
	if !ok {
		return nil, 0, nil
	}
	return &nearest, miles, nil
}

func (r *Resolver) record(result string) {
	if r.metrics != nil {
		r.metrics.RecordResolution(result)
	}
}
