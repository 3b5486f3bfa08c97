// Package cmd assembles the bwsync command tree.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	configcmd "github.com/tphakala/birdweather-sync/cmd/config"
	"github.com/tphakala/birdweather-sync/cmd/initialize"
	"github.com/tphakala/birdweather-sync/cmd/serve"
	"github.com/tphakala/birdweather-sync/cmd/species"
	"github.com/tphakala/birdweather-sync/cmd/station"
	"github.com/tphakala/birdweather-sync/cmd/syncrun"
	"github.com/tphakala/birdweather-sync/cmd/weather"
	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/telemetry"
)

// Execute runs the command tree and then flushes telemetry and closes log
// files, whether or not the command failed.
func Execute(ctx context.Context, settings *conf.Settings, version string) error {
	rootCmd, cleanup := RootCommand(settings, version)
	defer cleanup()
	return rootCmd.ExecuteContext(ctx)
}

// RootCommand creates the root command. settings is filled in from the
// config file before any subcommand runs. The returned cleanup releases
// what the bootstrap acquired.
func RootCommand(settings *conf.Settings, version string) (rootCmd *cobra.Command, cleanup func()) {
	var (
		configPath string
		debug      bool
		flush      = func() {}
		central    *logger.CentralLogger
	)

	rootCmd = &cobra.Command{
		Use:           "bwsync",
		Short:         "Mirror BirdWeather station detections and NWS weather into a local database",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations[configcmd.SkipBootstrap] != "" {
			return nil
		}
		loaded, err := conf.Load(configPath)
		if err != nil {
			return err
		}
		*settings = *loaded
		if debug {
			settings.Debug = true
			settings.Logging.DefaultLevel = "debug"
		}

		central, err = logger.NewCentralLogger(&settings.Logging)
		if err != nil {
			return errors.New(err).
				Component("cli").
				Category(errors.CategoryConfiguration).
				Context("operation", "init_logger").
				Build()
		}
		logger.SetGlobal(central)

		flush, err = telemetry.Init(&settings.Sentry, version)
		return err
	}

	rootCmd.AddCommand(
		initialize.Command(settings),
		syncrun.Command(settings),
		weather.Command(settings),
		species.Command(settings),
		station.Command(settings),
		serve.Command(settings),
		configcmd.Command(),
	)

	cleanup = func() {
		flush()
		if central != nil {
			_ = central.Close()
		}
	}
	return rootCmd, cleanup
}
