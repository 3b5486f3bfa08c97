package detection

import (
	"context"
	"time"

	"github.com/tphakala/birdweather-sync/internal/birdweather"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// StationAPI looks up the configured BirdWeather station.
type StationAPI interface {
	Station(ctx context.Context) (*birdweather.Station, error)
}

// InitStore is the persistence touched by first-run initialization.
type InitStore interface {
	EnsureWatermark(ctx context.Context, initial time.Time) (time.Time, bool, error)
	GetStationCoordinates(ctx context.Context) (lat, lon float64, found bool, err error)
	SetStationCoordinates(ctx context.Context, lat, lon float64) error
}

// InitResult reports what InitializeDatabase changed.
type InitResult struct {
	Watermark          time.Time
	WatermarkCreated   bool
	Latitude           float64
	Longitude          float64
	CoordinatesStored  bool
	CoordinatesFetched bool
}

// InitializeDatabase seeds the watermark to now minus historicalDays and,
// when no station coordinates are stored, fetches them from BirdWeather.
// Existing values are never overwritten, so it is safe to rerun.
func InitializeDatabase(ctx context.Context, store InitStore, api StationAPI, historicalDays int, now time.Time, log logger.Logger) (InitResult, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.Module("detection").WithContext(ctx)

	if historicalDays <= 0 {
		return InitResult{}, errors.Newf("historical days must be positive, got %d", historicalDays).
			Component("detection").
			Category(errors.CategoryValidation).
			Build()
	}

	var res InitResult
	initial := now.UTC().Add(-time.Duration(historicalDays) * 24 * time.Hour)
	wm, created, err := store.EnsureWatermark(ctx, initial)
	if err != nil {
		return res, err
	}
	res.Watermark = wm
	res.WatermarkCreated = created

	lat, lon, found, err := store.GetStationCoordinates(ctx)
	if err != nil {
		return res, err
	}
	if found {
		res.Latitude, res.Longitude, res.CoordinatesStored = lat, lon, true
		return res, nil
	}

	if api == nil {
		log.Warn("no station coordinates stored and no BirdWeather client configured")
		return res, nil
	}

	station, err := api.Station(ctx)
	if err != nil {
		return res, err
	}
	if !station.HasCoords {
		log.Warn("BirdWeather station has no coordinates", logger.String("station_id", station.ID))
		return res, nil
	}

	if err := store.SetStationCoordinates(ctx, station.Latitude, station.Longitude); err != nil {
		return res, err
	}
	res.Latitude, res.Longitude = station.Latitude, station.Longitude
	res.CoordinatesStored = true
	res.CoordinatesFetched = true

	log.Info("stored station coordinates from BirdWeather",
		logger.String("station", station.Name),
		logger.Float64("latitude", station.Latitude),
		logger.Float64("longitude", station.Longitude))
	return res, nil
}

// UpdateStationCoordinates overrides the stored station coordinates.
func UpdateStationCoordinates(ctx context.Context, store InitStore, lat, lon float64, log logger.Logger) error {
	if err := store.SetStationCoordinates(ctx, lat, lon); err != nil {
		return err
	}
	if log != nil {
		log.Module("detection").Info("station coordinates updated",
			logger.Float64("latitude", lat),
			logger.Float64("longitude", lon))
	}
	return nil
}
