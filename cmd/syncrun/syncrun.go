// Package syncrun implements the one-shot sync command.
package syncrun

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tphakala/birdweather-sync/internal/app"
	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// Command creates the sync command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		noProgress bool
		noMQTT     bool
		top        int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one detection sync",
		Long:  "Fetch detections newer than the watermark, enrich new species and advance the watermark.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			progress := &progressBar{disabled: noProgress}
			defer progress.finish()

			rt, err := app.Build(cmd.Context(), settings, logger.Global().Module("cli"), app.Options{
				OnPage:   progress.update,
				SkipMQTT: noMQTT,
			})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			if _, err := rt.Initialize(cmd.Context()); err != nil {
				return err
			}

			stats, err := rt.RunSync(cmd.Context())
			progress.finish()
			printSummary(cmd.OutOrStdout(), &stats, top)
			return err
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	cmd.Flags().BoolVar(&noMQTT, "no-mqtt", false, "Do not publish the run summary over MQTT")
	cmd.Flags().IntVar(&top, "top", 10, "Number of species to list in the summary")

	return cmd
}

// progressBar renders sync progress on stderr. The bar is created lazily
// because the total is only known after the first page.
type progressBar struct {
	mu       sync.Mutex
	bar      *pb.ProgressBar
	disabled bool
}

func (p *progressBar) update(prog detection.Progress) {
	if p.disabled || prog.Total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		p.bar = pb.Full.New(prog.Total)
		p.bar.SetWriter(os.Stderr)
		p.bar.Set(pb.CleanOnFinish, true)
		p.bar.Start()
	}
	p.bar.SetCurrent(int64(prog.Processed))
}

func (p *progressBar) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

func printSummary(w io.Writer, stats *detection.Stats, top int) {
	if stats.RunID == "" {
		return
	}
	fmt.Fprintf(w, "Sync %s: %s detections in %d pages (%s)\n",
		stats.RunID,
		humanize.Comma(int64(stats.DetectionsProcessed)),
		stats.Pages,
		stats.Duration.Round(time.Millisecond))
	if stats.SkippedBeforeWatermark > 0 {
		fmt.Fprintf(w, "  skipped %s already synced\n", humanize.Comma(int64(stats.SkippedBeforeWatermark)))
	}
	fmt.Fprintf(w, "  species seen: %d, new: %d\n", stats.SpeciesSeen, stats.NewSpeciesAdded)
	if stats.EnrichmentFailures > 0 || len(stats.PendingSpecies) > 0 {
		fmt.Fprintf(w, "  enrichment failures: %d, pending species: %d\n",
			stats.EnrichmentFailures, len(stats.PendingSpecies))
	}
	if stats.LastDetectionDate != nil {
		fmt.Fprintf(w, "  last detection: %s\n", humanize.Time(*stats.LastDetectionDate))
	}
	if !stats.WatermarkAdvanced {
		fmt.Fprintln(w, "  watermark unchanged")
	}

	for _, row := range topSpecies(stats.PerSpecies, top) {
		fmt.Fprintf(w, "  %-12s %s\n", row.id, humanize.Comma(int64(row.count)))
	}
}

type speciesCount struct {
	id    string
	count int
}

// topSpecies orders per-species counts descending, ties by id.
func topSpecies(perSpecies map[string]int, n int) []speciesCount {
	rows := make([]speciesCount, 0, len(perSpecies))
	for id, c := range perSpecies {
		rows = append(rows, speciesCount{id: id, count: c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].id < rows[j].id
	})
	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}
