package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdweather-sync/internal/conf"
	"github.com/tphakala/birdweather-sync/internal/errors"
)

func TestNew_SelectsBackend(t *testing.T) {
	tests := []struct {
		dbType string
		want   any
	}{
		{"", &SQLiteStore{}},
		{"sqlite", &SQLiteStore{}},
		{"MySQL", &MySQLStore{}},
		{"postgres", &PostgresStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			store, err := New(&conf.DatabaseSettings{Type: tt.dbType}, nil)
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
		})
	}
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	_, err := New(&conf.DatabaseSettings{Type: "oracle"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = New(nil, nil)
	require.Error(t, err)
}

func TestSQLiteStore_OpenCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	store, err := New(&conf.DatabaseSettings{Type: "sqlite", Path: dir + "/nested/db/test.db"}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	count, err := store.CountSpecies(t.Context())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestClose_WithoutOpen(t *testing.T) {
	store, err := New(&conf.DatabaseSettings{Type: "sqlite", Path: "unused.db"}, nil)
	require.NoError(t, err)
	require.Error(t, store.Close())
}

func TestIsDuplicateKey(t *testing.T) {
	assert.False(t, IsDuplicateKey(nil))
	assert.False(t, IsDuplicateKey(errors.NewStd("boom")))
	assert.True(t, IsDuplicateKey(conflictError(errors.NewStd("exists"), "create", "duplicate_key")))
}
