package app

import (
	"context"
	"time"

	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/scheduler"
	"github.com/tphakala/birdweather-sync/internal/weather"
)

// Coordinates are the stored station coordinates.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RunState describes one domain's run history.
type RunState struct {
	Running bool               `json:"running"`
	Last    *scheduler.Outcome `json:"last,omitempty"`
}

// SyncState is the sync domain section of a StatusReport.
type SyncState struct {
	RunState
	Watermark      *time.Time       `json:"watermark,omitempty"`
	PendingSpecies []string         `json:"pending_species"`
	LastStats      *detection.Stats `json:"last_stats,omitempty"`
}

// WeatherState is the weather domain section of a StatusReport.
type WeatherState struct {
	RunState
	Enabled           bool                         `json:"enabled"`
	StationID         string                       `json:"station_id,omitempty"`
	LastStatus        *weather.Status              `json:"last_status,omitempty"`
	CurrentConditions *datastore.CurrentConditions `json:"current_conditions,omitempty"`
	Forecast          []datastore.Forecast         `json:"forecast"`
}

// StatusReport is the snapshot served on /api/v1/status.
type StatusReport struct {
	SpeciesCount int64        `json:"species_count"`
	Station      *Coordinates `json:"station,omitempty"`
	Sync         SyncState    `json:"sync"`
	Weather      WeatherState `json:"weather"`
}

// Status assembles the current state of both domains.
func (a *App) Status(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{
		Sync:    SyncState{RunState: runState(a.syncGuard), PendingSpecies: []string{}},
		Weather: WeatherState{RunState: runState(a.weatherGuard), Enabled: a.weather != nil, Forecast: []datastore.Forecast{}},
	}

	a.mu.RLock()
	report.Sync.LastStats = a.lastSync
	report.Weather.LastStatus = a.lastWeather
	a.mu.RUnlock()

	count, err := a.store.CountSpecies(ctx)
	if err != nil {
		return nil, err
	}
	report.SpeciesCount = count

	wm, ok, err := a.store.GetWatermark(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		report.Sync.Watermark = &wm
	}

	pending, err := a.store.GetPendingSpecies(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		report.Sync.PendingSpecies = pending
	}

	lat, lon, found, err := a.store.GetStationCoordinates(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		report.Station = &Coordinates{Latitude: lat, Longitude: lon}
	}

	if err := a.weatherStatus(ctx, &report.Weather); err != nil {
		return nil, err
	}
	return report, nil
}

func (a *App) weatherStatus(ctx context.Context, state *WeatherState) error {
	if a.location == "" {
		return nil
	}
	cfg, err := a.store.GetLocationWeatherConfig(ctx, a.location)
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	state.StationID = cfg.StationID

	conditions, err := a.store.LatestConditions(ctx, cfg.ID)
	switch {
	case errors.IsNotFound(err):
	case err != nil:
		return err
	default:
		state.CurrentConditions = conditions
	}

	forecast, err := a.store.GetForecast(ctx, cfg.ID)
	if err != nil {
		return err
	}
	if len(forecast) > 0 {
		state.Forecast = forecast
	}
	return nil
}

func runState(g *scheduler.Guard) RunState {
	state := RunState{Running: g.Running()}
	if last, ok := g.Last(); ok {
		state.Last = &last
	}
	return state
}
