package datastore

import (
	"context"
	"time"
)

// Interface is the persistence layer shared by the sync, species and weather domains.
type Interface interface {
	Open() error
	Close() error

	// Species
	GetSpecies(ctx context.Context, id string) (*Species, error)
	CreateSpecies(ctx context.Context, species *Species) error
	UpdateSpeciesImages(ctx context.Context, id, imagePath, thumbnailPath string) error
	ListSpecies(ctx context.Context) ([]Species, error)
	CountSpecies(ctx context.Context) (int64, error)

	// Metadata
	GetMetadata(ctx context.Context, key string) (value string, found bool, err error)
	SetMetadata(ctx context.Context, key, value string) error
	GetWatermark(ctx context.Context) (time.Time, bool, error)
	EnsureWatermark(ctx context.Context, initial time.Time) (time.Time, bool, error)
	GetPendingSpecies(ctx context.Context) ([]string, error)
	CommitSyncProgress(ctx context.Context, watermark *time.Time, pending []string) (advanced bool, err error)
	GetStationCoordinates(ctx context.Context) (lat, lon float64, found bool, err error)
	SetStationCoordinates(ctx context.Context, lat, lon float64) error

	// Weather
	GetLocationWeatherConfig(ctx context.Context, name string) (*LocationWeatherConfig, error)
	SaveLocationWeatherConfig(ctx context.Context, cfg *LocationWeatherConfig) error
	SaveCurrentConditions(ctx context.Context, conditions *CurrentConditions) error
	LatestConditions(ctx context.Context, locationID uint) (*CurrentConditions, error)
	ReplaceForecast(ctx context.Context, locationID uint, generation string, periods []Forecast) error
	GetForecast(ctx context.Context, locationID uint) ([]Forecast, error)
}
