package syncrun

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/birdweather-sync/internal/detection"
)

func TestTopSpecies(t *testing.T) {
	rows := topSpecies(map[string]int{"3": 5, "1": 9, "2": 5, "4": 1}, 3)

	assert.Equal(t, []speciesCount{{"1", 9}, {"2", 5}, {"3", 5}}, rows)
	assert.Len(t, topSpecies(map[string]int{"1": 1}, 10), 1)
	assert.Empty(t, topSpecies(map[string]int{"1": 1}, 0))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &detection.Stats{
		RunID:               "run-1",
		DetectionsProcessed: 1234,
		Pages:               13,
		SpeciesSeen:         2,
		NewSpeciesAdded:     1,
		PerSpecies:          map[string]int{"42": 1000, "7": 234},
		WatermarkAdvanced:   true,
		Duration:            1500 * time.Millisecond,
	}, 5)

	out := buf.String()
	assert.Contains(t, out, "Sync run-1: 1,234 detections in 13 pages (1.5s)")
	assert.Contains(t, out, "species seen: 2, new: 1")
	assert.Contains(t, out, "1,000")
	assert.NotContains(t, out, "watermark unchanged")
	assert.NotContains(t, out, "pending species")
}

func TestPrintSummary_NoRun(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &detection.Stats{}, 5)
	assert.Empty(t, buf.String())
}

func TestProgressBarDisabled(t *testing.T) {
	p := &progressBar{disabled: true}
	p.update(detection.Progress{Total: 10, Processed: 5})
	assert.Nil(t, p.bar)
	p.finish()
}
