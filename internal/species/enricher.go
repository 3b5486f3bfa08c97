// Package species materializes BirdWeather species locally the first time
// they are detected.
package species

import (
	"context"
	"strings"

	"github.com/k3a/html2text"
	"golang.org/x/sync/singleflight"

	"github.com/tphakala/birdweather-sync/internal/birdweather"
	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// Fetcher looks up descriptive species data remotely.
type Fetcher interface {
	Species(ctx context.Context, id string) (*birdweather.SpeciesInfo, error)
}

// Store is the persistence needed by the enricher.
type Store interface {
	GetSpecies(ctx context.Context, id string) (*datastore.Species, error)
	CreateSpecies(ctx context.Context, species *datastore.Species) error
	UpdateSpeciesImages(ctx context.Context, id, imagePath, thumbnailPath string) error
}

// Enricher ensures species rows exist, creating each one at most once.
type Enricher struct {
	store  Store
	api    Fetcher
	images *ImageDownloader
	log    logger.Logger
	group  singleflight.Group
}

// NewEnricher creates an Enricher. images may be nil to skip downloads.
func NewEnricher(store Store, api Fetcher, images *ImageDownloader, log logger.Logger) *Enricher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Enricher{
		store:  store,
		api:    api,
		images: images,
		log:    log.Module("species"),
	}
}

type ensureResult struct {
	species *datastore.Species
	created bool
}

// Ensure returns the local species row for id, fetching and inserting it
// first when absent. created is true only for the caller whose fetch
// inserted the row; concurrent callers for the same id share one fetch.
// The shared fetch runs under the first caller's ctx. A caller that joined
// a fetch cancelled by another caller's ctx retries once with its own.
func (e *Enricher) Ensure(ctx context.Context, id string) (*datastore.Species, bool, error) {
	if id == "" {
		return nil, false, errors.Newf("species id is required").
			Component("species").
			Category(errors.CategoryValidation).
			Build()
	}

	for attempt := 0; ; attempt++ {
		executed := false
		v, err, _ := e.group.Do(id, func() (any, error) {
			executed = true
			return e.ensure(ctx, id)
		})
		if err != nil {
			if !executed && attempt == 0 && ctx.Err() == nil && isCancellation(err) {
				e.log.Debug("shared species fetch was cancelled, retrying", logger.String("species_id", id))
				// the finished call may still be registered under id
				e.group.Forget(id)
				continue
			}
			return nil, false, err
		}

		res := v.(ensureResult)
		return res.species, res.created && executed, nil
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.HasCategory(err, errors.CategoryCancellation)
}

func (e *Enricher) ensure(ctx context.Context, id string) (ensureResult, error) {
	existing, err := e.store.GetSpecies(ctx, id)
	if err == nil {
		return ensureResult{species: existing}, nil
	}
	if !errors.IsNotFound(err) {
		return ensureResult{}, err
	}

	if err := ctx.Err(); err != nil {
		return ensureResult{}, errors.New(err).
			Component("species").
			Category(errors.CategoryCancellation).
			Context("species_id", id).
			Build()
	}

	info, err := e.api.Species(ctx, id)
	if err != nil {
		e.log.Warn("species lookup failed",
			logger.String("species_id", id),
			logger.Error(err))
		return ensureResult{}, err
	}

	row := &datastore.Species{
		SpeciesID:        id,
		CommonName:       info.CommonName,
		ScientificName:   info.ScientificName,
		Color:            info.Color,
		Common:           false,
		BirdweatherURL:   info.BirdweatherURL,
		EbirdURL:         info.EbirdURL,
		WikipediaURL:     info.WikipediaURL,
		WikipediaSummary: PlainText(info.WikipediaSummary),
		ImageURL:         info.ImageURL,
		ThumbnailURL:     info.ThumbnailURL,
	}

	if err := e.store.CreateSpecies(ctx, row); err != nil {
		if !datastore.IsDuplicateKey(err) {
			return ensureResult{}, err
		}
		// another process inserted it first
		existing, getErr := e.store.GetSpecies(ctx, id)
		if getErr != nil {
			return ensureResult{}, getErr
		}
		e.log.Debug("species created concurrently", logger.String("species_id", id))
		return ensureResult{species: existing}, nil
	}

	e.downloadImages(ctx, row)

	e.log.Info("added species",
		logger.String("species_id", id),
		logger.String("common_name", row.CommonName),
		logger.String("scientific_name", row.ScientificName))
	return ensureResult{species: row, created: true}, nil
}

func (e *Enricher) downloadImages(ctx context.Context, row *datastore.Species) {
	if e.images == nil || (row.ImageURL == "" && row.ThumbnailURL == "") {
		return
	}

	imagePath, thumbPath := e.images.DownloadAll(ctx, row.SpeciesID, row.ImageURL, row.ThumbnailURL)
	if imagePath == "" && thumbPath == "" {
		return
	}

	if err := e.store.UpdateSpeciesImages(ctx, row.SpeciesID, imagePath, thumbPath); err != nil {
		e.log.Warn("failed to record species image paths",
			logger.String("species_id", row.SpeciesID),
			logger.Error(err))
		return
	}
	row.ImagePath = imagePath
	row.ThumbnailPath = thumbPath
}

// PlainText converts an HTML fragment to trimmed plain text.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html2text.HTML2Text(s))
}
