// Package species implements the species reporting commands.
package species

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tphakala/birdweather-sync/internal/app"
	"github.com/tphakala/birdweather-sync/internal/birdweather"
	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// Command creates the species command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "species",
		Short: "Report on species detected by the station",
	}
	cmd.AddCommand(topCommand(settings), dailyCommand(settings), listCommand(settings))
	return cmd
}

func topCommand(settings *conf.Settings) *cobra.Command {
	var days, limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the most detected species over a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := build(cmd, settings)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			rows, err := rt.BirdWeather.TopSpecies(cmd.Context(), birdweather.DayPeriod(days), limit)
			if err != nil {
				return err
			}
			return writeTopSpecies(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Period in days")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of species, 0 for the API default")
	return cmd
}

func dailyCommand(settings *conf.Settings) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "daily [species-id...]",
		Short: "Show per-day detection totals, optionally for specific species",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := build(cmd, settings)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			rows, err := rt.BirdWeather.DailyDetectionCounts(cmd.Context(), birdweather.DayPeriod(days), args)
			if err != nil {
				return err
			}
			return writeDailyCounts(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Period in days")
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List species stored in the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := build(cmd, settings)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			rows, err := rt.Store.ListSpecies(cmd.Context())
			if err != nil {
				return err
			}
			return writeStoredSpecies(cmd.OutOrStdout(), rows)
		},
	}
}

func build(cmd *cobra.Command, settings *conf.Settings) (*app.Runtime, error) {
	return app.Build(cmd.Context(), settings, logger.Global().Module("cli"), app.Options{SkipMQTT: true})
}

func writeTopSpecies(w io.Writer, rows []birdweather.TopSpecies) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tCOMMON NAME\tSCIENTIFIC NAME\tCOUNT\tAVG PROB")
	for i, r := range rows {
		prob := "-"
		if r.AverageProbability != nil {
			prob = fmt.Sprintf("%.2f", *r.AverageProbability)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, r.SpeciesID, r.CommonName, r.ScientificName, humanize.Comma(int64(r.Count)), prob)
	}
	return tw.Flush()
}

func writeDailyCounts(w io.Writer, rows []birdweather.DailyCount) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTOTAL")
	var total int64
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.Date, humanize.Comma(int64(r.Total)))
		total += int64(r.Total)
	}
	fmt.Fprintf(tw, "\t%s\n", humanize.Comma(total))
	return tw.Flush()
}

func writeStoredSpecies(w io.Writer, rows []datastore.Species) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMMON NAME\tSCIENTIFIC NAME\tIMAGE\tADDED")
	for i := range rows {
		s := &rows[i]
		image := "-"
		if s.ImagePath != "" {
			image = s.ImagePath
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.SpeciesID, s.CommonName, s.ScientificName, image, humanize.Time(s.CreatedAt))
	}
	return tw.Flush()
}
