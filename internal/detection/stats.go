package detection

import "time"

// Stats summarizes one sync run.
type Stats struct {
	RunID                  string         `json:"run_id"`
	DetectionsProcessed    int            `json:"detections_processed"`
	NewSpeciesAdded        int            `json:"new_species_added"`
	TotalDetections        int            `json:"total_detections"`
	SpeciesSeen            int            `json:"species_seen"`
	PerSpecies             map[string]int `json:"per_species"`
	SkippedBeforeWatermark int            `json:"skipped_before_watermark"`
	EnrichmentFailures     int            `json:"enrichment_failures"`
	PendingSpecies         []string       `json:"pending_species,omitempty"`
	Pages                  int            `json:"pages"`
	TopSpeciesTotal        int            `json:"top_species_total"`
	Period                 int            `json:"period_days"`
	StartWatermark         time.Time      `json:"start_watermark"`
	LastDetectionDate      *time.Time     `json:"last_detection_date,omitempty"`
	WatermarkAdvanced      bool           `json:"watermark_advanced"`
	Duration               time.Duration  `json:"duration"`
}

// Progress is reported after each processed page.
type Progress struct {
	RunID     string
	Page      int
	Processed int
	Total     int
}
