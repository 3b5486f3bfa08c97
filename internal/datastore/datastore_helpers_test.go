package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// createDatabase opens a file-backed SQLite store in a temp dir and closes it on cleanup.
func createDatabase(t *testing.T) Interface {
	t.Helper()

	settings := &conf.DatabaseSettings{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "test.db"),
	}

	store, err := New(settings, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, store.Open(), "Failed to open database")

	t.Cleanup(func() {
		assert.NoError(t, store.Close(), "Failed to close datastore")
	})
	return store
}

func float64Ptr(v float64) *float64 { return &v }

func testSpecies(id string) *Species {
	return &Species{
		SpeciesID:      id,
		CommonName:     "Species " + id,
		ScientificName: "Genus " + id,
		Color:          "#aabbcc",
	}
}
