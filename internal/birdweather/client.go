// Package birdweather is a read-only client for the BirdWeather GraphQL API:
// paged detections, the topSpecies aggregate, species descriptions, daily
// counts and the station record.
package birdweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/httpclient"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

const (
	// DefaultPageSize is the detections page size when none is configured.
	DefaultPageSize = 100

	defaultCacheTTL    = time.Hour
	topSpeciesCacheTTL = time.Minute
	maxRetries         = 3
	retryBaseDelay     = 500 * time.Millisecond
	maxResponseBytes   = 10 << 20
	previewLength      = 500
)

// Interface is the BirdWeather API surface used by the sync engine.
type Interface interface {
	Detections(ctx context.Context, period Period, first int, after string) (*DetectionPage, error)
	TopSpecies(ctx context.Context, period Period, limit int) ([]TopSpecies, error)
	Species(ctx context.Context, id string) (*SpeciesInfo, error)
	DailyDetectionCounts(ctx context.Context, period Period, speciesIDs []string) ([]DailyCount, error)
	Station(ctx context.Context) (*Station, error)
	PageSize() int
	ValidateConfig(requireStation bool) error
}

// Client implements Interface over an injected httpclient.Client.
type Client struct {
	config     Config
	http       *httpclient.Client
	cache      *cache.Cache
	log        logger.Logger
	retryDelay time.Duration

	firstCallOnce sync.Once
}

var _ Interface = (*Client)(nil)

// NewClient creates a client. Credentials are checked per call so that a
// misconfigured client fails before any network request.
func NewClient(config Config, hc *httpclient.Client, log logger.Logger) *Client {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultCacheTTL
	}
	if hc == nil {
		hc = httpclient.New(nil)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		config:     config,
		http:       hc,
		cache:      cache.New(config.CacheTTL, config.CacheTTL*2),
		log:        log.Module("birdweather"),
		retryDelay: retryBaseDelay,
	}
}

// PageSize returns the configured detections page size.
func (c *Client) PageSize() int {
	return c.config.PageSize
}

// ValidateConfig returns a configuration error when the API URL, token or,
// if requireStation is set, the station id is missing.
func (c *Client) ValidateConfig(requireStation bool) error {
	var missing []string
	if c.config.URL == "" {
		missing = append(missing, "birdweather.url")
	}
	if c.config.Token == "" {
		missing = append(missing, "birdweather.token")
	}
	if requireStation && c.config.StationID == "" {
		missing = append(missing, "birdweather.stationid")
	}
	if len(missing) == 0 {
		return nil
	}

	return errors.Newf("incomplete BirdWeather configuration: missing %s", strings.Join(missing, ", ")).
		Component("birdweather").
		Category(errors.CategoryConfiguration).
		Priority(errors.PriorityHigh).
		Context("missing", missing).
		Build()
}

// Detections fetches one page of detections for the configured station.
// Nodes without a timestamp or species id are dropped and logged.
func (c *Client) Detections(ctx context.Context, period Period, first int, after string) (*DetectionPage, error) {
	if err := c.ValidateConfig(true); err != nil {
		return nil, err
	}
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	if first <= 0 {
		first = c.config.PageSize
	}

	vars := map[string]any{
		"period":     period,
		"stationIds": []string{c.config.StationID},
		"first":      first,
	}
	if after != "" {
		vars["after"] = after
	}

	var data detectionsData
	if err := c.doQuery(ctx, "detections", detectionsQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Detections == nil {
		return &DetectionPage{}, nil
	}

	page := &DetectionPage{
		HasNextPage: data.Detections.PageInfo.HasNextPage,
		EndCursor:   deref(data.Detections.PageInfo.EndCursor),
		TotalCount:  data.Detections.TotalCount,
		Detections:  make([]Detection, 0, len(data.Detections.Edges)),
	}

	dropped := 0
	for _, edge := range data.Detections.Edges {
		node := edge.Node
		if node == nil || node.Species == nil || node.Species.ID == "" || node.Timestamp == nil {
			dropped++
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, *node.Timestamp)
		if err != nil {
			dropped++
			continue
		}

		d := Detection{
			Confidence:  node.Confidence,
			Probability: node.Probability,
			Score:       node.Score,
			Timestamp:   ts.UTC(),
			SpeciesID:   node.Species.ID,
		}
		if node.Soundscape != nil {
			d.SoundscapeURL = node.Soundscape.URL
		}
		page.Detections = append(page.Detections, d)
	}

	if dropped > 0 {
		c.log.Warn("dropped malformed detection nodes",
			logger.Int("dropped", dropped),
			logger.Int("kept", len(page.Detections)))
	}
	return page, nil
}

// TopSpecies returns detection counts per species for the period. A limit
// of 0 lets the API decide.
func (c *Client) TopSpecies(ctx context.Context, period Period, limit int) ([]TopSpecies, error) {
	if err := c.ValidateConfig(true); err != nil {
		return nil, err
	}
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("top:%s:%d:%s:%d", c.config.StationID, period.Count, period.Unit, limit)
	if cached, found := c.cache.Get(cacheKey); found {
		if top, ok := cached.([]TopSpecies); ok {
			return top, nil
		}
	}

	vars := map[string]any{
		"period":     period,
		"stationIds": []string{c.config.StationID},
	}
	if limit > 0 {
		vars["limit"] = limit
	}

	var data topSpeciesData
	if err := c.doQuery(ctx, "topSpecies", topSpeciesQuery, vars, &data); err != nil {
		return nil, err
	}

	top := make([]TopSpecies, 0, len(data.TopSpecies))
	for _, row := range data.TopSpecies {
		ts := TopSpecies{
			SpeciesID:          row.SpeciesID,
			Count:              row.Count,
			AverageProbability: row.AverageProbability,
		}
		if row.Species != nil {
			if ts.SpeciesID == "" {
				ts.SpeciesID = row.Species.ID
			}
			ts.CommonName = row.Species.CommonName
			ts.ScientificName = row.Species.ScientificName
		}
		if ts.SpeciesID == "" {
			continue
		}
		top = append(top, ts)
	}

	c.cache.Set(cacheKey, top, topSpeciesCacheTTL)
	return top, nil
}

// Species fetches the descriptive record for a species. A null or nameless
// record is a CategoryNotFound error.
func (c *Client) Species(ctx context.Context, id string) (*SpeciesInfo, error) {
	if err := c.ValidateConfig(false); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.Newf("species id is required").
			Component("birdweather").
			Category(errors.CategoryValidation).
			Build()
	}

	cacheKey := "species:" + id
	if cached, found := c.cache.Get(cacheKey); found {
		if info, ok := cached.(*SpeciesInfo); ok {
			return info, nil
		}
	}

	var data speciesData
	if err := c.doQuery(ctx, "species", speciesQuery, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}

	if data.Species == nil {
		return nil, speciesNotFound(id)
	}
	s := data.Species
	info := &SpeciesInfo{
		ID:               id,
		CommonName:       deref(s.CommonName),
		ScientificName:   deref(s.ScientificName),
		Color:            deref(s.Color),
		BirdweatherURL:   deref(s.BirdweatherURL),
		EbirdURL:         deref(s.EbirdURL),
		WikipediaURL:     deref(s.WikipediaURL),
		WikipediaSummary: deref(s.WikipediaSummary),
		ImageURL:         deref(s.ImageURL),
		ThumbnailURL:     deref(s.ThumbnailURL),
	}
	if !info.Usable() {
		return nil, speciesNotFound(id)
	}

	c.cache.Set(cacheKey, info, cache.DefaultExpiration)
	return info, nil
}

// DailyDetectionCounts returns per-day totals for the station, optionally
// restricted to speciesIDs.
func (c *Client) DailyDetectionCounts(ctx context.Context, period Period, speciesIDs []string) ([]DailyCount, error) {
	if err := c.ValidateConfig(true); err != nil {
		return nil, err
	}
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	vars := map[string]any{
		"period":     period,
		"stationIds": []string{c.config.StationID},
	}
	if len(speciesIDs) > 0 {
		vars["speciesIds"] = speciesIDs
	}

	var data dailyCountsData
	if err := c.doQuery(ctx, "dailyDetectionCounts", dailyDetectionCountsQuery, vars, &data); err != nil {
		return nil, err
	}
	return data.DailyDetectionCounts, nil
}

// Station fetches the configured station record.
func (c *Client) Station(ctx context.Context) (*Station, error) {
	if err := c.ValidateConfig(true); err != nil {
		return nil, err
	}

	cacheKey := "station:" + c.config.StationID
	if cached, found := c.cache.Get(cacheKey); found {
		if st, ok := cached.(*Station); ok {
			return st, nil
		}
	}

	var data stationData
	if err := c.doQuery(ctx, "station", stationQuery, map[string]any{"id": c.config.StationID}, &data); err != nil {
		return nil, err
	}
	if data.Station == nil {
		return nil, errors.Newf("station %s not found", c.config.StationID).
			Component("birdweather").
			Category(errors.CategoryNotFound).
			Context("station_id", c.config.StationID).
			Build()
	}

	st := &Station{
		ID:       data.Station.ID,
		Name:     data.Station.Name,
		Location: deref(data.Station.Location),
		Timezone: deref(data.Station.Timezone),
	}
	if coords := data.Station.Coords; coords != nil && coords.Lat != nil && coords.Lon != nil {
		st.Latitude = *coords.Lat
		st.Longitude = *coords.Lon
		st.HasCoords = true
	}

	c.cache.Set(cacheKey, st, cache.DefaultExpiration)
	return st, nil
}

// doQuery runs a GraphQL query with retries. Every query is a read, so
// transient failures (network, 429, 5xx) are retried with linear backoff.
func (c *Client) doQuery(ctx context.Context, operation, query string, vars map[string]any, out any) error {
	var lastErr error

	for attempt := range maxRetries {
		err := c.doQueryOnce(ctx, operation, query, vars, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}

		if attempt < maxRetries-1 {
			delay := time.Duration(attempt+1) * c.retryDelay
			c.log.Warn("BirdWeather request failed, retrying",
				logger.String("operation", operation),
				logger.Int("attempt", attempt+1),
				logger.Int("max_retries", maxRetries),
				logger.Duration("delay", delay),
				logger.Error(err))

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return cancellationError(ctx.Err(), operation)
			}
		}
	}

	return lastErr
}

func (c *Client) doQueryOnce(ctx context.Context, operation, query string, vars map[string]any, out any) error {
	start := time.Now()

	req, err := c.http.NewPostRequest(ctx, c.config.URL, "application/json",
		graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return errors.New(err).
			Component("birdweather").
			Category(errors.CategoryValidation).
			Context("operation", operation).
			Build()
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return cancellationError(err, operation)
		}
		return errors.New(err).
			Component("birdweather").
			Category(errors.CategoryNetwork).
			NetworkContext(c.config.URL, 0).
			Context("operation", operation).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug("failed to close response body", logger.Error(err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.New(err).
			Component("birdweather").
			Category(errors.CategoryNetwork).
			Context("operation", operation).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Warn("BirdWeather API error response",
			logger.String("operation", operation),
			logger.Int("status_code", resp.StatusCode),
			logger.String("response_preview", preview(body)))

		return errors.Newf("BirdWeather API returned status %d", resp.StatusCode).
			Component("birdweather").
			Category(statusCategory(resp.StatusCode)).
			Context("operation", operation).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.log.Error("failed to parse BirdWeather response",
			logger.String("operation", operation),
			logger.Int("response_size", len(body)),
			logger.String("response_preview", preview(body)),
			logger.Error(err))
		return errors.New(err).
			Component("birdweather").
			Category(errors.CategoryValidation).
			Context("operation", operation).
			Context("response_size", len(body)).
			Build()
	}

	if len(envelope.Errors) > 0 {
		msg := envelope.Errors[0].Message
		if msg == "" {
			msg = "unknown GraphQL error"
		}
		c.log.Error("BirdWeather GraphQL error",
			logger.String("operation", operation),
			logger.String("message", msg))
		return errors.Newf("BirdWeather API error: %s", msg).
			Component("birdweather").
			Category(errors.CategoryIntegration).
			Context("operation", operation).
			Build()
	}

	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return errors.New(err).
				Component("birdweather").
				Category(errors.CategoryValidation).
				Context("operation", operation).
				Build()
		}
	}

	c.firstCallOnce.Do(func() {
		c.log.Info("BirdWeather API authentication successful")
	})
	c.log.Debug("BirdWeather query completed",
		logger.String("operation", operation),
		logger.Duration("duration", time.Since(start)),
		logger.Int("response_size", len(body)))
	return nil
}

func validatePeriod(p Period) error {
	if p.Count < 1 || p.Unit == "" {
		return errors.Newf("invalid period %d %q", p.Count, p.Unit).
			Component("birdweather").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func speciesNotFound(id string) error {
	return errors.Newf("species %s not found", id).
		Component("birdweather").
		Category(errors.CategoryNotFound).
		Context("species_id", id).
		Build()
}

func cancellationError(err error, operation string) error {
	return errors.New(err).
		Component("birdweather").
		Category(errors.CategoryCancellation).
		Context("operation", operation).
		Build()
}

// statusCategory maps an HTTP status to an error category.
func statusCategory(status int) errors.ErrorCategory {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return errors.CategoryConfiguration
	case status == http.StatusTooManyRequests:
		return errors.CategoryLimit
	case status == http.StatusNotFound:
		return errors.CategoryNotFound
	case status >= http.StatusInternalServerError:
		return errors.CategoryNetwork
	default:
		return errors.CategoryHTTP
	}
}

// isRetryable reports whether a failed query may be retried.
func isRetryable(err error) bool {
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return false
	}

	switch ee.Category {
	case errors.CategoryNetwork, errors.CategoryLimit, errors.CategoryTimeout:
		return true
	default:
		return false
	}
}

// preview truncates and redacts a response body for logging.
func preview(body []byte) string {
	s := string(body)
	if len(s) > previewLength {
		s = s[:previewLength] + "..."
	}
	return logger.RedactSensitiveData(s)
}
