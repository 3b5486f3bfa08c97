package birdweather

import "time"

// Config holds the BirdWeather GraphQL settings.
type Config struct {
	URL       string
	Token     string
	StationID string
	PageSize  int
	CacheTTL  time.Duration
}

// Period is the GraphQL InputDuration, e.g. {count: 7, unit: "day"}.
type Period struct {
	Count int    `json:"count"`
	Unit  string `json:"unit"`
}

// DayPeriod returns a period of n days.
func DayPeriod(n int) Period {
	return Period{Count: n, Unit: "day"}
}

// Detection is one node of the detections connection.
type Detection struct {
	Confidence    *float64  `json:"confidence"`
	Probability   *float64  `json:"probability"`
	Score         *float64  `json:"score"`
	Timestamp     time.Time `json:"timestamp"`
	SoundscapeURL string    `json:"soundscapeUrl,omitempty"`
	SpeciesID     string    `json:"speciesId"`
}

// DetectionPage is one page of the detections walk.
type DetectionPage struct {
	Detections  []Detection
	HasNextPage bool
	EndCursor   string
	TotalCount  int
}

// TopSpecies is one row of the topSpecies aggregate.
type TopSpecies struct {
	SpeciesID          string   `json:"speciesId"`
	Count              int      `json:"count"`
	AverageProbability *float64 `json:"averageProbability"`
	CommonName         string   `json:"commonName"`
	ScientificName     string   `json:"scientificName"`
}

// SpeciesInfo is the descriptive record returned by species(id).
type SpeciesInfo struct {
	ID               string `json:"id"`
	CommonName       string `json:"commonName"`
	ScientificName   string `json:"scientificName"`
	Color            string `json:"color"`
	BirdweatherURL   string `json:"birdweatherUrl"`
	EbirdURL         string `json:"ebirdUrl"`
	WikipediaURL     string `json:"wikipediaUrl"`
	WikipediaSummary string `json:"wikipediaSummary"`
	ImageURL         string `json:"imageUrl"`
	ThumbnailURL     string `json:"thumbnailUrl"`
}

// Usable reports whether the record names the species at all.
func (s *SpeciesInfo) Usable() bool {
	return s != nil && (s.CommonName != "" || s.ScientificName != "")
}

// DailyCount is one row of dailyDetectionCounts.
type DailyCount struct {
	Date  string `json:"date"`
	Total int    `json:"total"`
}

// Station is the BirdWeather station record.
type Station struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Location  string  `json:"location"`
	Timezone  string  `json:"timezone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	HasCoords bool    `json:"hasCoords"`
}

// GraphQL wire types

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type detectionsData struct {
	Detections *struct {
		Edges []struct {
			Node *struct {
				Confidence  *float64 `json:"confidence"`
				Probability *float64 `json:"probability"`
				Score       *float64 `json:"score"`
				Timestamp   *string  `json:"timestamp"`
				Soundscape  *struct {
					URL string `json:"url"`
				} `json:"soundscape"`
				Species *struct {
					ID string `json:"id"`
				} `json:"species"`
			} `json:"node"`
		} `json:"edges"`
		PageInfo struct {
			HasNextPage bool    `json:"hasNextPage"`
			EndCursor   *string `json:"endCursor"`
		} `json:"pageInfo"`
		TotalCount int `json:"totalCount"`
	} `json:"detections"`
}

type topSpeciesData struct {
	TopSpecies []struct {
		Count              int      `json:"count"`
		SpeciesID          string   `json:"speciesId"`
		AverageProbability *float64 `json:"averageProbability"`
		Species            *struct {
			ID             string `json:"id"`
			CommonName     string `json:"commonName"`
			ScientificName string `json:"scientificName"`
		} `json:"species"`
	} `json:"topSpecies"`
}

type speciesData struct {
	Species *struct {
		ID               string  `json:"id"`
		CommonName       *string `json:"commonName"`
		ScientificName   *string `json:"scientificName"`
		Color            *string `json:"color"`
		BirdweatherURL   *string `json:"birdweatherUrl"`
		EbirdURL         *string `json:"ebirdUrl"`
		WikipediaURL     *string `json:"wikipediaUrl"`
		WikipediaSummary *string `json:"wikipediaSummary"`
		ImageURL         *string `json:"imageUrl"`
		ThumbnailURL     *string `json:"thumbnailUrl"`
	} `json:"species"`
}

type dailyCountsData struct {
	DailyDetectionCounts []DailyCount `json:"dailyDetectionCounts"`
}

type stationData struct {
	Station *struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Location *string `json:"location"`
		Timezone *string `json:"timezone"`
		Coords   *struct {
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
		} `json:"coords"`
	} `json:"station"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
