// Package telemetry connects the enhanced error reporter to Sentry.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

const flushTimeout = 2 * time.Second

// Init configures the Sentry SDK and installs the error reporter when
// sentry is enabled. The returned function flushes pending events and
// must be called before exit.
func Init(settings *conf.SentrySettings, release string) (func(), error) {
	return initSentry(settings, release, nil)
}

func initSentry(settings *conf.SentrySettings, release string, transport sentry.Transport) (func(), error) {
	if settings == nil || !settings.Enabled {
		errors.SetTelemetryReporter(nil)
		return func() {}, nil
	}
	if settings.DSN == "" {
		return nil, errors.Newf("sentry.dsn is required when sentry is enabled").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sampleRate := settings.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.DSN,
		SampleRate: sampleRate,
		Debug:      false,

		AttachStacktrace: false,
		Environment:      settings.Environment,
		ServerName:       "",
		Release:          "bwsync@" + release,

		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
		Transport: transport,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	logger.Global().Module("telemetry").Info("sentry error reporting enabled",
		logger.String("environment", settings.Environment))

	return func() {
		sentry.Flush(flushTimeout)
		errors.SetTelemetryReporter(nil)
	}, nil
}

// applyPrivacyFilters strips host and user identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}
