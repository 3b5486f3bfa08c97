// Package weather keeps local NWS conditions and forecasts for the station
// coordinates: a resolver caches the grid and nearest observation station,
// and the service refreshes conditions and the forecast from them.
package weather

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/observability/metrics"
)

// Status messages returned by UpdateWeather.
const (
	MsgNoCoordinates = "No station coordinates available"
	MsgResolveFailed = "Failed to get or update weather configuration"
	MsgUpdated       = "Weather data updated successfully"
	MsgUpdateFailed  = "Failed to update weather data"
	msgErrorPrefix   = "Error updating weather data: "
)

const (
	opSaveConditions    = "save_current_conditions"
	opReplaceForecast   = "replace_forecast"
	opStationCoordinate = "get_station_coordinates"
)

// Store is the persistence the weather service needs.
type Store interface {
	ConfigStore
	GetStationCoordinates(ctx context.Context) (lat, lon float64, found bool, err error)
	SaveCurrentConditions(ctx context.Context, conditions *datastore.CurrentConditions) error
	ReplaceForecast(ctx context.Context, locationID uint, generation string, periods []datastore.Forecast) error
}

// Status reports one weather update.
type Status struct {
	Success                  bool   `json:"success"`
	Message                  string `json:"message"`
	CurrentConditionsUpdated bool   `json:"current_conditions_updated"`
	ForecastUpdated          bool   `json:"forecast_updated"`
	StationID                string `json:"station_id,omitempty"`
	ForecastGeneration       string `json:"forecast_generation,omitempty"`
}

// Service refreshes current conditions and the forecast.
type Service struct {
	store    Store
	api      API
	resolver *Resolver
	log      logger.Logger
	metrics  *metrics.WeatherMetrics
	now      func() time.Time
}

// NewService creates a Service tracking the named location.
func NewService(store Store, api API, locationName string, log logger.Logger, m *metrics.WeatherMetrics) *Service {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Service{
		store:    store,
		api:      api,
		resolver: NewResolver(store, api, locationName, log, m),
		log:      log.Module("weather"),
		metrics:  m,
		now:      time.Now,
	}
}

// UpdateWeather resolves the location for the stored station coordinates,
// then refreshes conditions and the forecast independently. It succeeds
// when either refresh did.
func (s *Service) UpdateWeather(ctx context.Context) Status {
	log := s.log.WithContext(ctx)
	var status Status

	lat, lon, found, err := s.store.GetStationCoordinates(ctx)
	if err != nil {
		log.Error("failed to read station coordinates", logger.Error(err))
		s.recordDB(opStationCoordinate, err)
		status.Message = msgErrorPrefix + err.Error()
		return status
	}
	if !found {
		log.Error("no station coordinates available for weather update")
		status.Message = MsgNoCoordinates
		return status
	}

	cfg, err := s.resolver.Resolve(ctx, lat, lon)
	if err != nil {
		log.Error("weather location resolution failed", logger.Error(err))
		status.Message = MsgResolveFailed
		return status
	}
	status.StationID = cfg.StationID

	if err := s.updateConditions(ctx, cfg); err != nil {
		log.Warn("current conditions update failed", logger.Error(err))
	} else {
		status.CurrentConditionsUpdated = true
	}

	generation, err := s.updateForecast(ctx, cfg)
	if err != nil {
		log.Warn("forecast update failed", logger.Error(err))
	} else {
		status.ForecastUpdated = true
		status.ForecastGeneration = generation
	}

	status.Success = status.CurrentConditionsUpdated || status.ForecastUpdated
	if status.Success {
		status.Message = MsgUpdated
	} else {
		status.Message = MsgUpdateFailed
	}

	log.Info("weather update finished",
		logger.Bool("success", status.Success),
		logger.Bool("current_conditions_updated", status.CurrentConditionsUpdated),
		logger.Bool("forecast_updated", status.ForecastUpdated))
	return status
}

func (s *Service) updateConditions(ctx context.Context, cfg *datastore.LocationWeatherConfig) error {
	if cfg.ConditionsURL == "" {
		return errors.Newf("no conditions URL for location %q", cfg.Name).
			Component("weather").
			Category(errors.CategoryState).
			Build()
	}

	conditions, err := s.api.LatestObservation(ctx, cfg.ConditionsURL)
	if err != nil {
		return err
	}
	conditions.LocationID = cfg.ID
	conditions.StationID = cfg.StationID
	conditions.FetchedAt = s.now().UTC()

	err = s.store.SaveCurrentConditions(ctx, conditions)
	s.recordDB(opSaveConditions, err)
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.UpdateWeatherGauges(conditions.TemperatureF, conditions.HumidityPct,
			conditions.PressureHPa, conditions.WindSpeedMph)
	}
	s.log.Debug("stored current conditions",
		logger.String("station_id", cfg.StationID),
		logger.Time("observed_at", conditions.ObservedAt))
	return nil
}

// updateForecast replaces the location's forecast with a new generation.
// An empty parse keeps the previous forecast.
func (s *Service) updateForecast(ctx context.Context, cfg *datastore.LocationWeatherConfig) (string, error) {
	if cfg.ForecastURL == "" {
		return "", errors.Newf("no forecast URL for location %q", cfg.Name).
			Component("weather").
			Category(errors.CategoryState).
			Build()
	}

	periods, err := s.api.Forecast(ctx, cfg.ForecastURL)
	if err != nil {
		return "", err
	}
	if len(periods) == 0 {
		return "", errors.Newf("forecast for location %q has no usable periods", cfg.Name).
			Component("weather").
			Category(errors.CategoryValidation).
			Context("url", cfg.ForecastURL).
			Build()
	}

	generation := uuid.New().String()
	err = s.store.ReplaceForecast(ctx, cfg.ID, generation, periods)
	s.recordDB(opReplaceForecast, err)
	if err != nil {
		return "", err
	}

	s.log.Debug("replaced forecast",
		logger.String("generation", generation),
		logger.Int("periods", len(periods)))
	return generation, nil
}

func (s *Service) recordDB(operation string, err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.RecordWeatherDbOperation(operation, metrics.StatusError)
		return
	}
	s.metrics.RecordWeatherDbOperation(operation, metrics.StatusSuccess)
}
