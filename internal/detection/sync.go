// Package detection walks BirdWeather detections from the stored watermark
// forward, materializing unseen species and advancing the watermark once a
// walk completes.
package detection

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdweather-sync/internal/birdweather"
	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// DefaultWorkers bounds concurrent species enrichment within a page.
const DefaultWorkers = 4

// API is the BirdWeather surface the syncer reads.
type API interface {
	Detections(ctx context.Context, period birdweather.Period, first int, after string) (*birdweather.DetectionPage, error)
	TopSpecies(ctx context.Context, period birdweather.Period, limit int) ([]birdweather.TopSpecies, error)
	PageSize() int
	ValidateConfig(requireStation bool) error
}

// Enricher materializes species rows.
type Enricher interface {
	Ensure(ctx context.Context, id string) (*datastore.Species, bool, error)
}

// Store is the sync state persistence.
type Store interface {
	GetWatermark(ctx context.Context) (time.Time, bool, error)
	GetPendingSpecies(ctx context.Context) ([]string, error)
	CommitSyncProgress(ctx context.Context, watermark *time.Time, pending []string) (bool, error)
}

// Options tune a Syncer.
type Options struct {
	// Workers bounds parallel enrichment (default DefaultWorkers)
	Workers int
	// Now overrides the clock
	Now func() time.Time
	// OnPage is called after each page is counted
	OnPage func(Progress)
}

// Syncer runs detection sync. Callers must not run two syncs concurrently.
type Syncer struct {
	api      API
	enricher Enricher
	store    Store
	log      logger.Logger
	workers  int
	now      func() time.Time
	onPage   func(Progress)
}

// NewSyncer creates a Syncer.
func NewSyncer(api API, enricher Enricher, store Store, log logger.Logger, opts Options) *Syncer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{
		api:      api,
		enricher: enricher,
		store:    store,
		log:      log.Module("detection"),
		workers:  opts.Workers,
		now:      opts.Now,
		onPage:   opts.OnPage,
	}
}

// PeriodSince returns the day window covering since..now, one day wider
// than the whole days elapsed.
func PeriodSince(since, now time.Time) birdweather.Period {
	days := int(now.Sub(since)/(24*time.Hour)) + 1
	if days < 1 {
		days = 1
	}
	return birdweather.DayPeriod(days)
}

// run is the mutable state of one Sync call.
type run struct {
	stats     Stats
	watermark time.Time
	maxSeen   time.Time
	ensured   map[string]bool
	failed    map[string]bool
	log       logger.Logger
}

// Sync pulls every detection at or after the watermark, ensures each
// species exists locally and advances the watermark when the walk
// completes. On error the watermark is left untouched and the partial
// stats are returned.
func (s *Syncer) Sync(ctx context.Context) (Stats, error) {
	start := s.now()
	runID := uuid.New().String()
	ctx = logger.WithTraceID(ctx, runID)

	r := &run{
		stats:   Stats{RunID: runID, PerSpecies: make(map[string]int)},
		ensured: make(map[string]bool),
		failed:  make(map[string]bool),
		log:     s.log.WithContext(ctx),
	}

	err := s.sync(ctx, r, start)
	r.stats.SpeciesSeen = len(r.stats.PerSpecies)
	r.stats.Duration = s.now().Sub(start)

	if err != nil {
		r.log.Error("detection sync failed",
			logger.Int("pages", r.stats.Pages),
			logger.Int("detections_processed", r.stats.DetectionsProcessed),
			logger.Error(err))
		return r.stats, err
	}

	r.log.Info("detection sync completed",
		logger.Int("detections_processed", r.stats.DetectionsProcessed),
		logger.Int("new_species_added", r.stats.NewSpeciesAdded),
		logger.Int("pages", r.stats.Pages),
		logger.Int("pending_species", len(r.stats.PendingSpecies)),
		logger.Bool("watermark_advanced", r.stats.WatermarkAdvanced),
		logger.Duration("duration", r.stats.Duration))
	return r.stats, nil
}

func (s *Syncer) sync(ctx context.Context, r *run, now time.Time) error {
	if err := s.api.ValidateConfig(true); err != nil {
		return err
	}

	watermark, found, err := s.store.GetWatermark(ctx)
	if err != nil {
		return err
	}
	if !found {
		return errors.Newf("detection watermark is not initialized, run init first").
			Component("detection").
			Category(errors.CategoryState).
			Build()
	}
	r.watermark = watermark
	r.maxSeen = watermark
	r.stats.StartWatermark = watermark

	period := PeriodSince(watermark, now)
	r.stats.Period = period.Count
	r.log.Info("starting detection sync",
		logger.Time("watermark", watermark),
		logger.Int("period_days", period.Count))

	pending, err := s.store.GetPendingSpecies(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		r.log.Info("retrying pending species", logger.Int("count", len(pending)))
		if err := s.enrich(ctx, r, pending); err != nil {
			return err
		}
	}

	pageSize := s.api.PageSize()
	page, err := s.api.Detections(ctx, period, pageSize, "")
	if err != nil {
		return err
	}
	r.stats.TotalDetections = page.TotalCount

	top, err := s.api.TopSpecies(ctx, period, 0)
	if err != nil {
		return err
	}
	for _, ts := range top {
		r.stats.TopSpeciesTotal += ts.Count
	}

	for {
		if err := s.processPage(ctx, r, page); err != nil {
			return err
		}

		if !page.HasNextPage || len(page.Detections) == 0 {
			break
		}
		if page.EndCursor == "" {
			r.log.Warn("page reports more results without a cursor, stopping walk",
				logger.Int("page", r.stats.Pages))
			break
		}
		if err := ctx.Err(); err != nil {
			return cancelled(err, r.stats.Pages)
		}

		page, err = s.api.Detections(ctx, period, pageSize, page.EndCursor)
		if err != nil {
			if ctx.Err() != nil {
				return cancelled(err, r.stats.Pages)
			}
			return errors.New(err).
				Component("detection").
				Category(errors.CategorySync).
				Context("page", r.stats.Pages+1).
				Context("period_days", period.Count).
				Build()
		}
	}

	s.crossCheck(r)
	return s.commit(ctx, r)
}

// processPage ensures the page's unseen species, then counts its detections.
func (s *Syncer) processPage(ctx context.Context, r *run, page *birdweather.DetectionPage) error {
	var unseen []string
	for _, d := range page.Detections {
		if d.Timestamp.Before(r.watermark) {
			continue
		}
		if !r.ensured[d.SpeciesID] && !r.failed[d.SpeciesID] && !slices.Contains(unseen, d.SpeciesID) {
			unseen = append(unseen, d.SpeciesID)
		}
	}

	if err := s.enrich(ctx, r, unseen); err != nil {
		return err
	}

	for _, d := range page.Detections {
		if d.Timestamp.Before(r.watermark) {
			r.stats.SkippedBeforeWatermark++
			continue
		}
		r.stats.DetectionsProcessed++
		r.stats.PerSpecies[d.SpeciesID]++
		if d.Timestamp.After(r.maxSeen) {
			r.maxSeen = d.Timestamp
		}
	}

	r.stats.Pages++
	r.log.Debug("processed detection page",
		logger.Int("page", r.stats.Pages),
		logger.Int("detections", len(page.Detections)),
		logger.Int("processed", r.stats.DetectionsProcessed),
		logger.Int("total", r.stats.TotalDetections))

	if s.onPage != nil {
		s.onPage(Progress{
			RunID:     r.stats.RunID,
			Page:      r.stats.Pages,
			Processed: r.stats.DetectionsProcessed,
			Total:     r.stats.TotalDetections,
		})
	}
	return nil
}

// enrich ensures ids on a bounded pool. Per-species failures are recorded
// in r.failed; only cancellation aborts.
func (s *Syncer) enrich(ctx context.Context, r *run, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.workers)

	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			_, created, err := s.enricher.Ensure(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				r.ensured[id] = true
				delete(r.failed, id)
				if created {
					r.stats.NewSpeciesAdded++
				}
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				r.failed[id] = true
				r.stats.EnrichmentFailures++
				r.log.Warn("species enrichment failed, will retry next run",
					logger.String("species_id", id),
					logger.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return cancelled(err, r.stats.Pages)
	}
	return nil
}

// crossCheck compares the walked counts with the topSpecies aggregate.
// The walked per-species sums are authoritative.
func (s *Syncer) crossCheck(r *run) {
	walked := r.stats.DetectionsProcessed + r.stats.SkippedBeforeWatermark
	if r.stats.TopSpeciesTotal == walked && r.stats.TotalDetections == walked {
		return
	}
	r.log.Warn("detection counts disagree, using per-species sums",
		logger.Int("walked", walked),
		logger.Int("top_species_total", r.stats.TopSpeciesTotal),
		logger.Int("total_count", r.stats.TotalDetections))
}

func (s *Syncer) commit(ctx context.Context, r *run) error {
	var next *time.Time
	if r.maxSeen.After(r.watermark) {
		next = &r.maxSeen
	}

	pending := make([]string, 0, len(r.failed))
	for id := range r.failed {
		pending = append(pending, id)
	}
	slices.Sort(pending)

	advanced, err := s.store.CommitSyncProgress(ctx, next, pending)
	if err != nil {
		return err
	}

	r.stats.PendingSpecies = pending
	r.stats.WatermarkAdvanced = advanced
	last := r.watermark
	if advanced {
		last = r.maxSeen
	}
	r.stats.LastDetectionDate = &last
	return nil
}

func cancelled(err error, pages int) error {
	return errors.New(err).
		Component("detection").
		Category(errors.CategoryCancellation).
		Context("pages_completed", pages).
		Build()
}
