// Package serve runs the scheduler and the operator HTTP server until the
// process is signalled.
package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdweather-sync/internal/app"
	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/httpserver"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run periodic sync and weather updates with the operator API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				settings.WebServer.Enabled = true
				settings.WebServer.Listen = listen
			}
			return Run(cmd.Context(), settings, app.Options{})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Override webserver.listen and enable the operator API")
	return cmd
}

// Run blocks until ctx is cancelled, then stops the HTTP server and waits
// for in-flight runs to finish.
func Run(ctx context.Context, settings *conf.Settings, opts app.Options) error {
	log := logger.Global().Module("serve")

	rt, err := app.Build(ctx, settings, log, opts)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if _, err := rt.Initialize(ctx); err != nil {
		return err
	}

	sched := scheduler.New(log)
	for _, task := range Tasks(rt.App, settings) {
		if err := sched.Add(task); err != nil {
			return err
		}
	}

	var srv *httpserver.Server
	if settings.WebServer.Enabled {
		srv = httpserver.New(rt.App, rt.Metrics.Handler(), log)
		if err := srv.Start(settings.WebServer.Listen); err != nil {
			return err
		}
		log.Info("operator api listening", logger.String("addr", srv.Addr()))
	}

	if err := sched.Start(ctx); err != nil {
		shutdown(srv, log)
		return err
	}
	log.Info("scheduler started",
		logger.Bool("sync", settings.Sync.Enabled),
		logger.Bool("weather", rt.WeatherEnabled()))

	rotateLogsOnHangup(ctx, log)

	<-ctx.Done()
	log.Info("shutting down")

	shutdown(srv, log)
	sched.Stop()
	return nil
}

// Tasks selects the scheduler tasks enabled in settings.
func Tasks(a *app.App, settings *conf.Settings) []scheduler.Task {
	var tasks []scheduler.Task
	for _, task := range a.Tasks(settings.Sync.Interval, settings.Weather.Interval) {
		if task.Name == app.DomainSync && !settings.Sync.Enabled {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// rotateLogsOnHangup reopens log files on SIGHUP until ctx is done.
func rotateLogsOnHangup(ctx context.Context, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := logger.Global().Rotate(); err != nil {
					log.Warn("log rotation failed", logger.Error(err))
					continue
				}
				log.Info("log files rotated")
			}
		}
	}()
}

func shutdown(srv *httpserver.Server, log logger.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("operator api shutdown", logger.Error(err))
	}
}
