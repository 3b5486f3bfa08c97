// Package metrics provides weather service metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WeatherMetrics contains Prometheus metrics for weather service operations
type WeatherMetrics struct {
	registry *prometheus.Registry

	// Weather data fetch metrics
	weatherFetchesTotal     *prometheus.CounterVec
	weatherFetchErrorsTotal *prometheus.CounterVec
	weatherFetchDuration    *prometheus.HistogramVec

	// Location resolution metrics
	weatherResolutionsTotal *prometheus.CounterVec

	// Database operations metrics
	weatherDbOperationsTotal *prometheus.CounterVec
	weatherDbErrorsTotal     *prometheus.CounterVec

	// Current conditions gauges, imperial units
	weatherTemperatureGauge prometheus.Gauge
	weatherHumidityGauge    prometheus.Gauge
	weatherPressureGauge    prometheus.Gauge
	weatherWindSpeedGauge   prometheus.Gauge
}

// NewWeatherMetrics creates and registers new weather metrics
func NewWeatherMetrics(registry *prometheus.Registry) (*WeatherMetrics, error) {
	m := &WeatherMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *WeatherMetrics) initMetrics() {
	m.weatherFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bwsync_weather_fetches_total",
			Help: "Total number of NWS fetch operations",
		},
		[]string{"operation", "status"}, // operation: points, stations, conditions, forecast
	)

	m.weatherFetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bwsync_weather_fetch_errors_total",
			Help: "Total number of NWS fetch errors",
		},
		[]string{"operation", "error_type"},
	)

	m.weatherFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bwsync_weather_fetch_duration_seconds",
			Help: "Time taken to fetch NWS data",
			// Exponential buckets: 0.1, 0.2, 0.4 ... 51.2s
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		},
		[]string{"operation"},
	)

	m.weatherResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bwsync_weather_resolutions_total",
			Help: "Total number of weather location resolutions",
		},
		[]string{"result"}, // result: cached, resolved, degraded, error
	)

	m.weatherDbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bwsync_weather_db_operations_total",
			Help: "Total number of weather database operations",
		},
		[]string{"operation", "status"},
	)

	m.weatherDbErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bwsync_weather_db_errors_total",
			Help: "Total number of weather database errors",
		},
		[]string{"operation"},
	)

	m.weatherTemperatureGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bwsync_weather_temperature_fahrenheit",
		Help: "Latest observed temperature in Fahrenheit",
	})

	m.weatherHumidityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bwsync_weather_humidity_percentage",
		Help: "Latest observed relative humidity",
	})

	m.weatherPressureGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bwsync_weather_pressure_hpa",
		Help: "Latest observed barometric pressure in hPa",
	})

	m.weatherWindSpeedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bwsync_weather_wind_speed_mph",
		Help: "Latest observed wind speed in mph",
	})
}

// Describe implements the Collector interface
func (m *WeatherMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.weatherFetchesTotal.Describe(ch)
	m.weatherFetchErrorsTotal.Describe(ch)
	m.weatherFetchDuration.Describe(ch)
	m.weatherResolutionsTotal.Describe(ch)
	m.weatherDbOperationsTotal.Describe(ch)
	m.weatherDbErrorsTotal.Describe(ch)
	m.weatherTemperatureGauge.Describe(ch)
	m.weatherHumidityGauge.Describe(ch)
	m.weatherPressureGauge.Describe(ch)
	m.weatherWindSpeedGauge.Describe(ch)
}

// Collect implements the Collector interface
func (m *WeatherMetrics) Collect(ch chan<- prometheus.Metric) {
	m.weatherFetchesTotal.Collect(ch)
	m.weatherFetchErrorsTotal.Collect(ch)
	m.weatherFetchDuration.Collect(ch)
	m.weatherResolutionsTotal.Collect(ch)
	m.weatherDbOperationsTotal.Collect(ch)
	m.weatherDbErrorsTotal.Collect(ch)
	m.weatherTemperatureGauge.Collect(ch)
	m.weatherHumidityGauge.Collect(ch)
	m.weatherPressureGauge.Collect(ch)
	m.weatherWindSpeedGauge.Collect(ch)
}

// RecordWeatherFetch records an NWS fetch operation
func (m *WeatherMetrics) RecordWeatherFetch(operation, status string) {
	m.weatherFetchesTotal.WithLabelValues(operation, status).Inc()
}

// RecordWeatherFetchError records an NWS fetch error
func (m *WeatherMetrics) RecordWeatherFetchError(operation, errorType string) {
	m.weatherFetchErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordWeatherFetchDuration records the duration of an NWS fetch
func (m *WeatherMetrics) RecordWeatherFetchDuration(operation string, seconds float64) {
	m.weatherFetchDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordResolution records the outcome of a location resolution
func (m *WeatherMetrics) RecordResolution(result string) {
	m.weatherResolutionsTotal.WithLabelValues(result).Inc()
}

// RecordWeatherDbOperation records a weather database operation
func (m *WeatherMetrics) RecordWeatherDbOperation(operation, status string) {
	m.weatherDbOperationsTotal.WithLabelValues(operation, status).Inc()
	if status == StatusError {
		m.weatherDbErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// UpdateWeatherGauges updates the current conditions gauges. Nil values
// leave the previous reading in place.
func (m *WeatherMetrics) UpdateWeatherGauges(temperatureF, humidity, pressureHPa, windSpeedMph *float64) {
	setIfPresent(m.weatherTemperatureGauge, temperatureF)
	setIfPresent(m.weatherHumidityGauge, humidity)
	setIfPresent(m.weatherPressureGauge, pressureHPa)
	setIfPresent(m.weatherWindSpeedGauge, windSpeedMph)
}

func setIfPresent(g prometheus.Gauge, v *float64) {
	if v != nil {
		g.Set(*v)
	}
}
