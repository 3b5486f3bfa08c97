package datastore

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/birdweather-sync/internal/errors"
)

// GetLocationWeatherConfig returns the cached NWS resolution for a location.
func (ds *DataStore) GetLocationWeatherConfig(ctx context.Context, name string) (*LocationWeatherConfig, error) {
	var cfg LocationWeatherConfig
	err := ds.DB.WithContext(ctx).Where("name = ?", name).Take(&cfg).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("location weather config", name)
		}
		return nil, dbError(err, "get_location_weather_config", "", "name", name)
	}
	return &cfg, nil
}

// SaveLocationWeatherConfig inserts or updates the config keyed by Name and
// sets cfg.ID to the stored row id.
func (ds *DataStore) SaveLocationWeatherConfig(ctx context.Context, cfg *LocationWeatherConfig) error {
	if cfg == nil || cfg.Name == "" {
		return validationError("location name is required", "name", "")
	}

	return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing LocationWeatherConfig
		err := tx.Where("name = ?", cfg.Name).Take(&existing).Error
		switch {
		case err == nil:
			cfg.ID = existing.ID
			cfg.CreatedAt = existing.CreatedAt
			if err := tx.Save(cfg).Error; err != nil {
				return dbError(err, "save_location_weather_config", "", "name", cfg.Name)
			}
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			cfg.ID = 0
			if err := tx.Create(cfg).Error; err != nil {
				return dbError(err, "save_location_weather_config", "", "name", cfg.Name)
			}
		default:
			return dbError(err, "save_location_weather_config", "", "name", cfg.Name)
		}
		return nil
	})
}

// SaveCurrentConditions appends an observation.
func (ds *DataStore) SaveCurrentConditions(ctx context.Context, conditions *CurrentConditions) error {
	if conditions == nil || conditions.LocationID == 0 {
		return validationError("location id is required", "location_id", 0)
	}
	if err := ds.DB.WithContext(ctx).Create(conditions).Error; err != nil {
		return dbError(err, "save_current_conditions", "", "location_id", conditions.LocationID)
	}
	return nil
}

// LatestConditions returns the most recent observation for a location.
func (ds *DataStore) LatestConditions(ctx context.Context, locationID uint) (*CurrentConditions, error) {
	var conditions CurrentConditions
	err := ds.DB.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "observed_at"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}).
		Take(&conditions).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("current conditions", "location")
		}
		return nil, dbError(err, "latest_conditions", "", "location_id", locationID)
	}
	return &conditions, nil
}

// ReplaceForecast swaps the stored forecast of a location for periods in a
// single transaction, so readers see either the old or the new generation.
func (ds *DataStore) ReplaceForecast(ctx context.Context, locationID uint, generation string, periods []Forecast) error {
	if locationID == 0 {
		return validationError("location id is required", "location_id", 0)
	}
	if generation == "" {
		return validationError("forecast generation is required", "generation", "")
	}

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("location_id = ?", locationID).Delete(&Forecast{}).Error; err != nil {
			return err
		}
		if len(periods) == 0 {
			return nil
		}
		for i := range periods {
			periods[i].ID = 0
			periods[i].LocationID = locationID
			periods[i].Generation = generation
		}
		return tx.Create(&periods).Error
	})
	if err != nil {
		return dbError(err, "replace_forecast", errors.PriorityMedium,
			"location_id", locationID, "periods", len(periods))
	}
	return nil
}

// GetForecast returns the current forecast periods ordered by period number.
func (ds *DataStore) GetForecast(ctx context.Context, locationID uint) ([]Forecast, error) {
	var periods []Forecast
	err := ds.DB.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("number ASC").
		Find(&periods).Error
	if err != nil {
		return nil, dbError(err, "get_forecast", "", "location_id", locationID)
	}
	return periods, nil
}
