package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. BWSYNC_BIRDWEATHER_TOKEN.
const EnvPrefix = "BWSYNC"

// envBinding holds an environment variable that gets validated before use
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"birdweather.pagesize", "BWSYNC_BIRDWEATHER_PAGESIZE", validateEnvPositiveInt},
		{"database.historicaldays", "BWSYNC_DATABASE_HISTORICALDAYS", validateEnvPositiveInt},
		{"sync.enrichmentworkers", "BWSYNC_SYNC_ENRICHMENTWORKERS", validateEnvPositiveInt},
		{"station.latitude", "BWSYNC_STATION_LATITUDE", validateEnvLatitude},
		{"station.longitude", "BWSYNC_STATION_LONGITUDE", validateEnvLongitude},
		{"weather.enabled", "BWSYNC_WEATHER_ENABLED", validateEnvBool},
		{"mqtt.enabled", "BWSYNC_MQTT_ENABLED", validateEnvBool},
		{"sentry.enabled", "BWSYNC_SENTRY_ENABLED", validateEnvBool},
	}
}

// configureEnvironmentVariables enables BWSYNC_ overrides for every key and
// validates the ones whose format matters.
func configureEnvironmentVariables() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var warnings []string
	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" && binding.Validate != nil {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than 0, got %d", n)
	}
	return nil
}

func validateEnvLatitude(value string) error {
	return validateEnvRange(value, -90, 90)
}

func validateEnvLongitude(value string) error {
	return validateEnvRange(value, -180, 180)
}

func validateEnvRange(value string, minVal, maxVal float64) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if f < minVal || f > maxVal {
		return fmt.Errorf("must be between %g and %g, got %g", minVal, maxVal, f)
	}
	return nil
}
