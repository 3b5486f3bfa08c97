// Package conf loads, validates and saves the bwsync settings.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// BirdweatherSettings contains settings for the BirdWeather GraphQL API.
type BirdweatherSettings struct {
	URL       string        // GraphQL endpoint
	Token     string        // bearer token
	StationID string        // station whose detections are synced
	PageSize  int           // detections per page
	Timeout   time.Duration // per-request timeout
	CacheTTL  time.Duration // cache lifetime for species, station and aggregate lookups
	RateLimit float64       // requests per second, 0 disables limiting
}

// DatabaseSettings selects and configures the gorm backend.
type DatabaseSettings struct {
	Type           string // sqlite, mysql or postgres
	Path           string // sqlite database file
	Host           string
	Port           int
	Username       string
	Password       string
	Name           string
	HistoricalDays int // initial watermark offset on first run
}

// ImageSettings controls where species images are stored.
type ImageSettings struct {
	Dir string
}

// SyncSettings controls the detection sync scheduler.
type SyncSettings struct {
	Enabled           bool
	Interval          time.Duration
	EnrichmentWorkers int // concurrent species lookups per page
}

// WeatherSettings contains settings for the NWS weather integration.
type WeatherSettings struct {
	Enabled   bool
	Interval  time.Duration
	BaseURL   string // api.weather.gov compatible base URL
	UserAgent string // NWS requires an identifying user agent
	Location  string // name of the tracked location row
	Timeout   time.Duration
}

// StationSettings is an operator override for the station coordinates.
// Both zero means unset.
type StationSettings struct {
	Latitude  float64
	Longitude float64
}

// IsSet reports whether override coordinates are configured.
func (s StationSettings) IsSet() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

// MQTTSettings configures publishing of run summaries.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	ClientID string
	Topic    string // topic prefix, "/sync" and "/weather" are appended
	Username string
	Password string
	Retain   bool
}

// WebServerSettings configures the operator HTTP surface.
type WebServerSettings struct {
	Enabled bool
	Listen  string
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64
}

// Settings is the root configuration.
type Settings struct {
	Debug       bool
	Birdweather BirdweatherSettings
	Database    DatabaseSettings
	Images      ImageSettings
	Sync        SyncSettings
	Weather     WeatherSettings
	Station     StationSettings
	MQTT        MQTTSettings
	WebServer   WebServerSettings
	Sentry      SentrySettings
	Logging     logger.LoggingConfig
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the config file and environment overrides into Settings.
// An empty configPath searches the default config paths. A missing config
// file is not an error; defaults apply.
func Load(configPath string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	// .env is optional
	_ = godotenv.Load(".env")

	if err := initViper(configPath); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_config").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

// initViper sets defaults, binds environment variables and reads the config file.
func initViper(configPath string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment variable issues", logger.Error(err))
	}

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		switch {
		case missing && configPath != "":
			return errors.Newf("config file %s does not exist", configPath).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Build()
		case missing:
			GetLogger().Info("no config file found, using defaults")
			return nil
		default:
			return errors.New(err).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Context("operation", "read_config").
				Build()
		}
	}

	GetLogger().Debug("config file loaded", logger.String("path", viper.ConfigFileUsed()))
	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "bwsync"))
	}
	return append(paths, "/etc/bwsync")
}

// GetSettings returns the most recently loaded settings, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DefaultConfig returns the embedded default config.yaml.
func DefaultConfig() ([]byte, error) {
	return configFiles.ReadFile("config.yaml")
}

// WriteDefaultConfig writes the embedded default config to dir/config.yaml
// unless a file already exists there. It returns the file path.
func WriteDefaultConfig(dir string) (string, error) {
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	data, err := DefaultConfig()
	if err != nil {
		return "", errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.New(err).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", errors.New(err).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	return path, nil
}

// SaveSettings writes settings to configPath, or to the file viper loaded
// when configPath is empty. The write is atomic.
func SaveSettings(settings *Settings, configPath string) error {
	if configPath == "" {
		configPath = viper.ConfigFileUsed()
	}
	if configPath == "" {
		return errors.Newf("no config file to save to").
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		return errors.New(err).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Context("path", configPath).
			Build()
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	GetLogger().Info("settings saved", logger.String("path", configPath))
	return nil
}

// GetLogger returns the config package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
