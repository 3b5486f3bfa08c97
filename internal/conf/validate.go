package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/tphakala/birdweather-sync/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ErrorCategory implements errors.CategorizedError
func (ve ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryConfiguration
}

// ValidateSettings validates the entire Settings struct. Missing BirdWeather
// credentials are not an error here; commands that talk to BirdWeather check them.
func ValidateSettings(settings *Settings) error {
	if settings == nil {
		return errors.Newf("settings are nil").
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ve := ValidationError{}
	add := func(err error) {
		if err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	add(validateBirdweatherSettings(&settings.Birdweather))
	add(validateDatabaseSettings(&settings.Database))
	add(validateSyncSettings(&settings.Sync))
	add(validateWeatherSettings(&settings.Weather))
	add(validateStationSettings(&settings.Station))
	add(validateMQTTSettings(&settings.MQTT))
	add(validateWebServerSettings(&settings.WebServer))
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		add(fmt.Errorf("sentry.dsn is required when sentry is enabled"))
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("error_count", len(ve.Errors)).
			Build()
	}

	return nil
}

func validateBirdweatherSettings(s *BirdweatherSettings) error {
	if err := validateHTTPURL("birdweather.url", s.URL); err != nil {
		return err
	}
	if s.PageSize <= 0 {
		return fmt.Errorf("birdweather.pagesize must be greater than 0, got %d", s.PageSize)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("birdweather.timeout must be positive")
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("birdweather.ratelimit must not be negative")
	}
	return nil
}

func validateDatabaseSettings(s *DatabaseSettings) error {
	switch strings.ToLower(s.Type) {
	case "sqlite":
		if s.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "mysql", "postgres":
		if s.Host == "" || s.Name == "" {
			return fmt.Errorf("database.host and database.name are required for %s", s.Type)
		}
	default:
		return fmt.Errorf("database.type must be sqlite, mysql or postgres, got %q", s.Type)
	}
	if s.HistoricalDays <= 0 {
		return fmt.Errorf("database.historicaldays must be greater than 0, got %d", s.HistoricalDays)
	}
	return nil
}

func validateSyncSettings(s *SyncSettings) error {
	if s.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	if s.EnrichmentWorkers <= 0 {
		return fmt.Errorf("sync.enrichmentworkers must be greater than 0, got %d", s.EnrichmentWorkers)
	}
	return nil
}

func validateWeatherSettings(s *WeatherSettings) error {
	if !s.Enabled {
		return nil
	}
	if err := validateHTTPURL("weather.baseurl", s.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(s.UserAgent) == "" {
		return fmt.Errorf("weather.useragent is required by the NWS API")
	}
	if s.Location == "" {
		return fmt.Errorf("weather.location must not be empty")
	}
	if s.Interval <= 0 {
		return fmt.Errorf("weather.interval must be positive")
	}
	return nil
}

func validateStationSettings(s *StationSettings) error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("station.latitude must be between -90 and 90, got %g", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("station.longitude must be between -180 and 180, got %g", s.Longitude)
	}
	return nil
}

func validateMQTTSettings(s *MQTTSettings) error {
	if !s.Enabled {
		return nil
	}
	if s.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if s.Topic == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt is enabled")
	}
	return nil
}

func validateWebServerSettings(s *WebServerSettings) error {
	if !s.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return fmt.Errorf("webserver.listen must be host:port, got %q", s.Listen)
	}
	return nil
}

func validateHTTPURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, raw)
	}
	return nil
}
