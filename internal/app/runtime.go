package app

import (
	"context"
	"net/http"
	"time"

	"github.com/tphakala/birdweather-sync/internal/birdweather"
	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/httpclient"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/mqtt"
	"github.com/tphakala/birdweather-sync/internal/observability"
	"github.com/tphakala/birdweather-sync/internal/species"
	"github.com/tphakala/birdweather-sync/internal/weather"
)

// Options adjust Build.
type Options struct {
	// OnPage receives sync progress, e.g. for a CLI progress bar
	OnPage func(detection.Progress)
	// SkipMQTT disables publishing even when configured
	SkipMQTT bool
	// Transport replaces the outbound HTTP transport of every client
	Transport http.RoundTripper
}

// Runtime is a fully wired App plus the resources it owns.
type Runtime struct {
	*App
	Settings    *conf.Settings
	Store       datastore.Interface
	BirdWeather *birdweather.Client
	Metrics     *observability.Metrics

	log     logger.Logger
	mqtt    mqtt.Client
	clients []*httpclient.Client
}

// Build opens the datastore and wires the BirdWeather, species, weather,
// metrics and MQTT components from settings.
func Build(ctx context.Context, settings *conf.Settings, log logger.Logger, opts Options) (*Runtime, error) {
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_metrics").
			Build()
	}

	store, err := datastore.New(&settings.Database, log)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	rt := &Runtime{Settings: settings, Store: store, Metrics: m, log: log.Module("app")}

	bwHTTP := httpclient.New(&httpclient.Config{
		DefaultTimeout: settings.Birdweather.Timeout,
		UserAgent:      settings.Weather.UserAgent,
		RateLimit:      settings.Birdweather.RateLimit,
		Transport:      opts.Transport,
	})
	m.InstrumentClient(bwHTTP, "birdweather")
	rt.clients = append(rt.clients, bwHTTP)

	rt.BirdWeather = birdweather.NewClient(birdweather.Config{
		URL:       settings.Birdweather.URL,
		Token:     settings.Birdweather.Token,
		StationID: settings.Birdweather.StationID,
		PageSize:  settings.Birdweather.PageSize,
		CacheTTL:  settings.Birdweather.CacheTTL,
	}, bwHTTP, log)
	rt.log.Debug("birdweather client configured",
		logger.String("url", settings.Birdweather.URL),
		logger.String("station_id", settings.Birdweather.StationID),
		logger.Redacted("token", settings.Birdweather.Token))

	var images *species.ImageDownloader
	if settings.Images.Dir != "" {
		imgHTTP := httpclient.New(&httpclient.Config{
			UserAgent: settings.Weather.UserAgent,
			Transport: opts.Transport,
		})
		m.InstrumentClient(imgHTTP, "images")
		rt.clients = append(rt.clients, imgHTTP)
		images = species.NewImageDownloader(settings.Images.Dir, imgHTTP, log)
	}
	enricher := species.NewEnricher(store, rt.BirdWeather, images, log)

	syncer := detection.NewSyncer(rt.BirdWeather, enricher, store, log, detection.Options{
		Workers: settings.Sync.EnrichmentWorkers,
		OnPage:  opts.OnPage,
	})

	var updater WeatherUpdater
	if settings.Weather.Enabled {
		nwsHTTP := httpclient.New(&httpclient.Config{
			DefaultTimeout: settings.Weather.Timeout,
			UserAgent:      settings.Weather.UserAgent,
			Headers:        map[string]string{"Accept": "application/geo+json"},
			Transport:      opts.Transport,
		})
		m.InstrumentClient(nwsHTTP, "nws")
		rt.clients = append(rt.clients, nwsHTTP)
		nws := weather.NewNWSClient(settings.Weather.BaseURL, nwsHTTP, log, m.Weather)
		updater = weather.NewService(store, nws, settings.Weather.Location, log, m.Weather)
	}

	var publisher *mqtt.Publisher
	if settings.MQTT.Enabled && !opts.SkipMQTT {
		publisher = rt.connectMQTT(ctx, &settings.MQTT, log)
	}

	rt.App = New(Deps{
		Syncer:          syncer,
		Weather:         updater,
		Store:           store,
		WeatherLocation: settings.Weather.Location,
		SyncMetrics:     m.Sync,
		Publisher:       publisher,
		Log:             log,
	})
	return rt, nil
}

// connectMQTT returns nil when the broker is unreachable; publishing is
// best effort and must not block syncing.
func (rt *Runtime) connectMQTT(ctx context.Context, settings *conf.MQTTSettings, log logger.Logger) *mqtt.Publisher {
	cfg := mqtt.ConfigFromSettings(settings)
	client, err := mqtt.NewClient(cfg, log)
	if err != nil {
		rt.log.Warn("mqtt disabled", logger.Error(err))
		return nil
	}
	if err := client.Connect(ctx); err != nil {
		rt.log.Warn("mqtt broker unreachable, summaries will not be published",
			logger.String("broker", cfg.Broker),
			logger.Error(err))
		return nil
	}
	rt.mqtt = client
	return mqtt.NewPublisher(client, cfg.Topic, log)
}

// Initialize seeds the watermark and station coordinates. Configured
// override coordinates replace whatever is stored.
func (rt *Runtime) Initialize(ctx context.Context) (detection.InitResult, error) {
	var api detection.StationAPI
	if rt.Settings.Birdweather.StationID != "" {
		api = rt.BirdWeather
	}
	if rt.Settings.Station.IsSet() {
		lat, lon := rt.Settings.Station.Latitude, rt.Settings.Station.Longitude
		if err := detection.UpdateStationCoordinates(ctx, rt.Store, lat, lon, rt.log); err != nil {
			return detection.InitResult{}, err
		}
	}
	return detection.InitializeDatabase(ctx, rt.Store, api, rt.Settings.Database.HistoricalDays, time.Now(), rt.log)
}

// Close releases the broker connection, idle HTTP connections and the
// datastore.
func (rt *Runtime) Close() error {
	if rt.mqtt != nil {
		rt.mqtt.Disconnect()
	}
	for _, c := range rt.clients {
		c.Close()
	}
	return rt.Store.Close()
}
