package initialize

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tphakala/birdweather-sync/internal/app"
	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// Command creates the init command, which creates the schema and seeds the
// watermark and station coordinates. It is safe to rerun.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database schema and seed sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.Build(cmd.Context(), settings, logger.Global().Module("cli"), app.Options{SkipMQTT: true})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			res, err := rt.Initialize(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			state := "kept"
			if res.WatermarkCreated {
				state = "created"
			}
			fmt.Fprintf(out, "Watermark %s: %s (%s)\n", state,
				res.Watermark.Format("2006-01-02 15:04:05 MST"), humanize.Time(res.Watermark))

			switch {
			case res.CoordinatesFetched:
				fmt.Fprintf(out, "Station coordinates fetched from BirdWeather: %.4f, %.4f\n", res.Latitude, res.Longitude)
			case res.CoordinatesStored:
				fmt.Fprintf(out, "Station coordinates: %.4f, %.4f\n", res.Latitude, res.Longitude)
			default:
				fmt.Fprintln(out, "Station coordinates unknown, set them with 'bwsync station set LAT LON'")
			}
			return nil
		},
	}
}
