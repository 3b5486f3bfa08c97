package weather

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdweather-sync/internal/app"
	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// Command creates the weather command, a single conditions and forecast refresh.
func Command(settings *conf.Settings) *cobra.Command {
	var noMQTT bool

	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Refresh NWS current conditions and forecast once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.Build(cmd.Context(), settings, logger.Global().Module("cli"), app.Options{SkipMQTT: noMQTT})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			if _, err := rt.Initialize(cmd.Context()); err != nil {
				return err
			}

			status, err := rt.RunWeather(cmd.Context())
			out := cmd.OutOrStdout()
			if status.Message != "" {
				fmt.Fprintln(out, status.Message)
			}
			if status.StationID != "" {
				fmt.Fprintf(out, "  observation station: %s\n", status.StationID)
			}
			fmt.Fprintf(out, "  current conditions updated: %t, forecast updated: %t\n",
				status.CurrentConditionsUpdated, status.ForecastUpdated)
			return err
		},
	}

	cmd.Flags().BoolVar(&noMQTT, "no-mqtt", false, "Do not publish the update summary over MQTT")
	return cmd
}
