package station

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdweather-sync/internal/app"
	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// Command creates the station command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "station",
		Short: "Show or override the stored station coordinates",
	}
	cmd.AddCommand(setCommand(settings), showCommand(settings))
	return cmd
}

func setCommand(settings *conf.Settings) *cobra.Command {
	var (
		save           bool
		latArg, lonArg string
	)

	cmd := &cobra.Command{
		Use:   "set [flags] [--] LAT LON",
		Short: "Override the station coordinates used for weather lookups",
		Long: `Override the station coordinates used for weather lookups.

Flags go before the coordinates. A negative latitude looks like a flag, so
either separate the coordinates with -- or pass them as --lat and --lon:

  bwsync station set 42.36 -71.06
  bwsync station set -- -33.87 151.21
  bwsync station set --lat -33.87 --lon 151.21`,
		Args: func(cmd *cobra.Command, args []string) error {
			byFlag := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon")
			switch {
			case byFlag && len(args) > 0:
				return fmt.Errorf("pass coordinates either as LAT LON or with --lat/--lon, not both")
			case byFlag && !(cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")):
				return fmt.Errorf("--lat and --lon must be given together")
			case byFlag:
				return nil
			default:
				return cobra.ExactArgs(2)(cmd, args)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				latArg, lonArg = args[0], args[1]
			}
			lat, lon, err := ParseCoordinates(latArg, lonArg)
			if err != nil {
				return err
			}

			log := logger.Global().Module("cli")
			rt, err := app.Build(cmd.Context(), settings, log, app.Options{SkipMQTT: true})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			if err := detection.UpdateStationCoordinates(cmd.Context(), rt.Store, lat, lon, log); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Station coordinates set to %.4f, %.4f\n", lat, lon)

			if !save {
				return nil
			}
			settings.Station = conf.StationSettings{Latitude: lat, Longitude: lon}
			return conf.SaveSettings(settings, "")
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Also write the override to the config file so it is reapplied on init")
	cmd.Flags().StringVar(&latArg, "lat", "", "Latitude in decimal degrees")
	cmd.Flags().StringVar(&lonArg, "lon", "", "Longitude in decimal degrees")
	// positional coordinates end flag parsing, so a negative LON is an argument
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored station coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.Build(cmd.Context(), settings, logger.Global().Module("cli"), app.Options{SkipMQTT: true})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			lat, lon, found, err := rt.Store.GetStationCoordinates(cmd.Context())
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "No station coordinates stored")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f, %.4f\n", lat, lon)
			return nil
		},
	}
}

// ParseCoordinates parses and range checks a latitude and longitude pair.
func ParseCoordinates(latArg, lonArg string) (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(latArg, 64)
	if err != nil || !finite(lat) || lat < -90 || lat > 90 {
		return 0, 0, coordinateError("latitude", latArg)
	}
	lon, err = strconv.ParseFloat(lonArg, 64)
	if err != nil || !finite(lon) || lon < -180 || lon > 180 {
		return 0, 0, coordinateError("longitude", lonArg)
	}
	return lat, lon, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func coordinateError(field, value string) error {
	return errors.Newf("invalid %s %q", field, value).
		Component("cli").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}
