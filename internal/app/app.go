// Package app coordinates the sync and weather domains for the CLI, the
// scheduler and the HTTP triggers: runs are serialized per domain,
// recorded in metrics and published over MQTT.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/mqtt"
	"github.com/tphakala/birdweather-sync/internal/observability/metrics"
	"github.com/tphakala/birdweather-sync/internal/scheduler"
	"github.com/tphakala/birdweather-sync/internal/weather"
)

// Domain names, used for guards, scheduler tasks and logs.
const (
	DomainSync    = "sync"
	DomainWeather = "weather"
)

// Syncer runs one detection sync.
type Syncer interface {
	Sync(ctx context.Context) (detection.Stats, error)
}

// WeatherUpdater runs one weather refresh.
type WeatherUpdater interface {
	UpdateWeather(ctx context.Context) weather.Status
}

// StatusStore is the read side used by Status.
type StatusStore interface {
	GetWatermark(ctx context.Context) (time.Time, bool, error)
	GetPendingSpecies(ctx context.Context) ([]string, error)
	CountSpecies(ctx context.Context) (int64, error)
	GetStationCoordinates(ctx context.Context) (lat, lon float64, found bool, err error)
	GetLocationWeatherConfig(ctx context.Context, name string) (*datastore.LocationWeatherConfig, error)
	LatestConditions(ctx context.Context, locationID uint) (*datastore.CurrentConditions, error)
	GetForecast(ctx context.Context, locationID uint) ([]datastore.Forecast, error)
}

// Deps are the collaborators of an App. Weather, SyncMetrics and Publisher
// are optional.
type Deps struct {
	Syncer          Syncer
	Weather         WeatherUpdater
	Store           StatusStore
	WeatherLocation string
	SyncMetrics     *metrics.SyncMetrics
	Publisher       *mqtt.Publisher
	Log             logger.Logger
}

// App serializes runs per domain and fans their results out.
type App struct {
	syncer    Syncer
	weather   WeatherUpdater
	store     StatusStore
	location  string
	metrics   *metrics.SyncMetrics
	publisher *mqtt.Publisher
	log       logger.Logger

	syncGuard    *scheduler.Guard
	weatherGuard *scheduler.Guard

	mu          sync.RWMutex
	lastSync    *detection.Stats
	lastWeather *weather.Status
}

// New creates an App.
func New(deps Deps) *App {
	log := deps.Log
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &App{
		syncer:       deps.Syncer,
		weather:      deps.Weather,
		store:        deps.Store,
		location:     deps.WeatherLocation,
		metrics:      deps.SyncMetrics,
		publisher:    deps.Publisher,
		log:          log.Module("app"),
		syncGuard:    scheduler.NewGuard(DomainSync),
		weatherGuard: scheduler.NewGuard(DomainWeather),
	}
}

// SyncGuard returns the guard shared by every detection sync trigger.
func (a *App) SyncGuard() *scheduler.Guard { return a.syncGuard }

// WeatherGuard returns the guard shared by every weather trigger.
func (a *App) WeatherGuard() *scheduler.Guard { return a.weatherGuard }

// WeatherEnabled reports whether a weather updater is configured.
func (a *App) WeatherEnabled() bool { return a.weather != nil }

// RunSync runs one detection sync unless one is already running, in which
// case it returns an error matching scheduler.IsBusy.
func (a *App) RunSync(ctx context.Context) (detection.Stats, error) {
	var stats detection.Stats
	err := a.syncGuard.Run(ctx, func(ctx context.Context) error {
		var runErr error
		stats, runErr = a.syncOnce(ctx)
		return runErr
	})
	return stats, err
}

// RunWeather runs one weather update unless one is already running.
func (a *App) RunWeather(ctx context.Context) (weather.Status, error) {
	if a.weather == nil {
		return weather.Status{}, errors.Newf("weather integration is disabled").
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}

	var status weather.Status
	err := a.weatherGuard.Run(ctx, func(ctx context.Context) error {
		var runErr error
		status, runErr = a.weatherOnce(ctx)
		return runErr
	})
	return status, err
}

// Tasks returns the scheduler tasks for the enabled domains. The tasks
// share the App guards with manual triggers.
func (a *App) Tasks(syncInterval, weatherInterval time.Duration) []scheduler.Task {
	tasks := []scheduler.Task{{
		Name:       DomainSync,
		Interval:   syncInterval,
		Guard:      a.syncGuard,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			_, err := a.syncOnce(ctx)
			return err
		},
	}}

	if a.weather != nil && weatherInterval > 0 {
		tasks = append(tasks, scheduler.Task{
			Name:       DomainWeather,
			Interval:   weatherInterval,
			Guard:      a.weatherGuard,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := a.weatherOnce(ctx)
				return err
			},
		})
	}
	return tasks
}

// syncOnce runs the syncer and records the outcome. The caller holds the
// sync guard.
func (a *App) syncOnce(ctx context.Context) (detection.Stats, error) {
	stats, runErr := a.syncer.Sync(ctx)

	a.mu.Lock()
	a.lastSync = &stats
	a.mu.Unlock()

	if a.metrics != nil {
		run := metrics.SyncRun{
			Status:              syncStatus(runErr),
			Duration:            stats.Duration,
			DetectionsProcessed: stats.DetectionsProcessed,
			NewSpeciesAdded:     stats.NewSpeciesAdded,
			Pages:               stats.Pages,
			EnrichmentFailures:  stats.EnrichmentFailures,
			PendingSpecies:      len(stats.PendingSpecies),
		}
		if runErr == nil {
			if wm, ok, err := a.store.GetWatermark(ctx); err == nil && ok {
				run.Watermark = &wm
			}
		}
		a.metrics.RecordRun(run)
	}

	// Publish on a detached context so a cancelled run still reports.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := a.publisher.PublishSync(pubCtx, stats, runErr); err != nil {
		a.log.Warn("failed to publish sync summary", logger.Error(err))
	}
	return stats, runErr
}

// weatherOnce runs the weather updater and records the outcome. The caller
// holds the weather guard.
func (a *App) weatherOnce(ctx context.Context) (weather.Status, error) {
	status := a.weather.UpdateWeather(ctx)

	a.mu.Lock()
	a.lastWeather = &status
	a.mu.Unlock()

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := a.publisher.PublishWeather(pubCtx, status); err != nil {
		a.log.Warn("failed to publish weather summary", logger.Error(err))
	}

	if !status.Success {
		return status, errors.Newf("%s", status.Message).
			Component("app").
			Category(errors.CategoryWeather).
			Build()
	}
	return status, nil
}

const publishTimeout = 10 * time.Second

func syncStatus(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.IsCategory(err, errors.CategoryCancellation):
		return metrics.StatusCancelled
	default:
		return metrics.StatusError
	}
}
