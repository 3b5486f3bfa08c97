package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/weather"
)

// Topic suffixes under the configured prefix.
const (
	topicSync    = "sync"
	topicWeather = "weather"
)

// SyncSummary is the message published after each detection sync.
type SyncSummary struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Stats   detection.Stats `json:"stats"`
	SentAt  time.Time       `json:"sent_at"`
}

// WeatherSummary is the message published after each weather update.
type WeatherSummary struct {
	weather.Status
	SentAt time.Time `json:"sent_at"`
}

// Publisher sends run summaries under a topic prefix. A nil Publisher is a
// no-op so callers need not check whether MQTT is enabled.
type Publisher struct {
	client Client
	prefix string
	log    logger.Logger
	now    func() time.Time
}

// NewPublisher creates a Publisher over a connected client.
func NewPublisher(client Client, prefix string, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Publisher{
		client: client,
		prefix: strings.TrimRight(prefix, "/"),
		log:    log.Module("mqtt"),
		now:    time.Now,
	}
}

// PublishSync publishes a sync run summary to {prefix}/sync.
func (p *Publisher) PublishSync(ctx context.Context, stats detection.Stats, runErr error) error {
	if p == nil {
		return nil
	}
	msg := SyncSummary{Success: runErr == nil, Stats: stats, SentAt: p.now().UTC()}
	if runErr != nil {
		msg.Error = runErr.Error()
	}
	return p.publish(ctx, topicSync, msg)
}

// PublishWeather publishes a weather update status to {prefix}/weather.
func (p *Publisher) PublishWeather(ctx context.Context, status weather.Status) error {
	if p == nil {
		return nil
	}
	return p.publish(ctx, topicWeather, WeatherSummary{Status: status, SentAt: p.now().UTC()})
}

// Topic returns the full topic for a suffix.
func (p *Publisher) Topic(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "/" + suffix
}

func (p *Publisher) publish(ctx context.Context, suffix string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal_summary").
			Build()
	}

	topic := p.Topic(suffix)
	if err := p.client.Publish(ctx, topic, payload); err != nil {
		p.log.Warn("failed to publish summary",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}
	return nil
}
