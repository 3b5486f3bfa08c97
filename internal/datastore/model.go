package datastore

import "time"

// Metadata keys
const (
	MetaLastDetectionDate = "last_detection_date"
	MetaStationLatitude   = "station_latitude"
	MetaStationLongitude  = "station_longitude"
	MetaPendingSpecies    = "pending_species"
)

// Species is a BirdWeather species materialized on first sighting.
// Rows are created once after a complete fetch and never deleted.
type Species struct {
	SpeciesID        string `gorm:"primaryKey;size:50;column:species_id"`
	CommonName       string `gorm:"size:100"`
	ScientificName   string `gorm:"size:100;index"`
	Color            string `gorm:"size:20"`
	Common           bool   `gorm:"not null;default:false"`
	BirdweatherURL   string `gorm:"size:255"`
	EbirdURL         string `gorm:"size:255"`
	WikipediaURL     string `gorm:"size:255"`
	WikipediaSummary string `gorm:"type:text"`
	ImageURL         string `gorm:"size:255"`
	ThumbnailURL     string `gorm:"size:255"`
	ImagePath        string `gorm:"size:255"` // local copy, empty until downloaded
	ThumbnailPath    string `gorm:"size:255"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Species) TableName() string { return "species" }

// Metadata is a key/value pair of engine state, e.g. the sync watermark.
type Metadata struct {
	Key   string `gorm:"primaryKey;size:50"`
	Value string `gorm:"type:text"`
}

func (Metadata) TableName() string { return "metadata" }

// LocationWeatherConfig caches the NWS grid and station resolved for a location.
type LocationWeatherConfig struct {
	ID                     uint     `gorm:"primaryKey"`
	Name                   string   `gorm:"size:100;uniqueIndex;not null"`
	LastLatitude           *float64 // requested coordinates at last resolution
	LastLongitude          *float64
	ForecastOffice         string `gorm:"size:10"` // NWS cwa
	GridX                  int
	GridY                  int
	ForecastURL            string `gorm:"size:255"`
	ObservationStationsURL string `gorm:"size:255"`
	StationID              string `gorm:"size:20"`
	ConditionsURL          string `gorm:"size:255"`
	ResolvedAt             time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// HasCoordinates reports whether the config was resolved for some coordinates.
func (c *LocationWeatherConfig) HasCoordinates() bool {
	return c != nil && c.LastLatitude != nil && c.LastLongitude != nil
}

// CurrentConditions is one observation snapshot in imperial units. Append-only.
type CurrentConditions struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	LocationID       uint      `gorm:"index:idx_conditions_location_observed,priority:1;not null" json:"location_id"`
	ObservedAt       time.Time `gorm:"index:idx_conditions_location_observed,priority:2" json:"observed_at"`
	StationID        string    `gorm:"size:20" json:"station_id"`
	TemperatureF     *float64  `json:"temperature_f,omitempty"`
	DewpointF        *float64  `json:"dewpoint_f,omitempty"`
	FeelsLikeF       *float64  `json:"feels_like_f,omitempty"`
	HumidityPct      *float64  `json:"humidity_pct,omitempty"`
	WindSpeedMph     *float64  `json:"wind_speed_mph,omitempty"`
	WindDirectionDeg *float64  `json:"wind_direction_deg,omitempty"`
	WindGustMph      *float64  `json:"wind_gust_mph,omitempty"`
	PressureHPa      *float64  `json:"pressure_hpa,omitempty"`
	VisibilityMi     *float64  `json:"visibility_mi,omitempty"`
	Precip1hIn       *float64  `json:"precip_1h_in,omitempty"`
	Precip3hIn       *float64  `json:"precip_3h_in,omitempty"`
	Precip6hIn       *float64  `json:"precip_6h_in,omitempty"`
	Description      string    `gorm:"size:255" json:"description"`
	Icon             string    `gorm:"size:255" json:"icon"`
	FetchedAt        time.Time `json:"fetched_at"`
}

// Forecast is one forecast period. All rows of a location share a generation.
type Forecast struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	LocationID               uint      `gorm:"index;not null" json:"location_id"`
	Generation               string    `gorm:"size:36;index" json:"generation"`
	Number                   int       `json:"number"`
	Name                     string    `gorm:"size:50" json:"name"`
	StartTime                time.Time `json:"start_time"`
	EndTime                  time.Time `json:"end_time"`
	IsDaytime                bool      `json:"is_daytime"`
	TemperatureF             *float64  `json:"temperature_f,omitempty"`
	WindSpeed                string    `gorm:"size:50" json:"wind_speed"`
	WindDirection            string    `gorm:"size:10" json:"wind_direction"`
	PrecipitationProbability *float64  `json:"precipitation_probability,omitempty"`
	ShortForecast            string    `gorm:"size:255" json:"short_forecast"`
	DetailedForecast         string    `gorm:"type:text" json:"detailed_forecast"`
	Icon                     string    `gorm:"size:255" json:"icon"`
	CreatedAt                time.Time `json:"created_at"`
}

// allModels lists the tables managed by AutoMigrate.
func allModels() []any {
	return []any{
		&Species{},
		&Metadata{},
		&LocationWeatherConfig{},
		&CurrentConditions{},
		&Forecast{},
	}
}
