package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with the packages that consume them.
const (
	DefaultBirdweatherURL    = "https://app.birdweather.com/graphql"
	DefaultPageSize          = 100
	DefaultHistoricalDays    = 60
	DefaultSyncInterval      = 15 * time.Minute
	DefaultWeatherInterval   = 10 * time.Minute
	DefaultEnrichmentWorkers = 4
	DefaultNWSBaseURL        = "https://api.weather.gov"
	DefaultWeatherLocation   = "station"
	DefaultUserAgent         = "bwsync/1.0 (birdweather-sync)"
)

// setDefaultConfig sets default values for every configuration key.
// Every key needs a default so environment overrides are picked up on Unmarshal.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("birdweather.url", DefaultBirdweatherURL)
	viper.SetDefault("birdweather.token", "")
	viper.SetDefault("birdweather.stationid", "")
	viper.SetDefault("birdweather.pagesize", DefaultPageSize)
	viper.SetDefault("birdweather.timeout", 30*time.Second)
	viper.SetDefault("birdweather.cachettl", 24*time.Hour)
	viper.SetDefault("birdweather.ratelimit", 5.0)

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.path", "bwsync.db")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 0)
	viper.SetDefault("database.username", "")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.name", "bwsync")
	viper.SetDefault("database.historicaldays", DefaultHistoricalDays)

	viper.SetDefault("images.dir", "images")

	viper.SetDefault("sync.enabled", true)
	viper.SetDefault("sync.interval", DefaultSyncInterval)
	viper.SetDefault("sync.enrichmentworkers", DefaultEnrichmentWorkers)

	viper.SetDefault("weather.enabled", true)
	viper.SetDefault("weather.interval", DefaultWeatherInterval)
	viper.SetDefault("weather.baseurl", DefaultNWSBaseURL)
	viper.SetDefault("weather.useragent", DefaultUserAgent)
	viper.SetDefault("weather.location", DefaultWeatherLocation)
	viper.SetDefault("weather.timeout", 30*time.Second)

	viper.SetDefault("station.latitude", 0.0)
	viper.SetDefault("station.longitude", 0.0)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "bwsync")
	viper.SetDefault("mqtt.topic", "bwsync")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", true)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", "127.0.0.1:8089")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
	viper.SetDefault("sentry.samplerate", 1.0)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/bwsync.log")
	viper.SetDefault("logging.file_output.level", "info")
	viper.SetDefault("logging.file_output.max_size", 100)
	viper.SetDefault("logging.file_output.max_age", 30)
	viper.SetDefault("logging.file_output.max_rotated_files", 10)
	viper.SetDefault("logging.file_output.compress", false)
}
