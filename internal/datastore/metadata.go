package datastore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

// GetMetadata returns the value stored under key.
func (ds *DataStore) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	return getMetadata(ds.DB.WithContext(ctx), key)
}

func getMetadata(db *gorm.DB, key string) (string, bool, error) {
	var row Metadata
	err := db.Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).Take(&row).Error
	if err == nil {
		return row.Value, true, nil
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	return "", false, dbError(err, "get_metadata", "", "key", key)
}

// SetMetadata inserts or overwrites key.
func (ds *DataStore) SetMetadata(ctx context.Context, key, value string) error {
	return setMetadata(ds.DB.WithContext(ctx), key, value)
}

func setMetadata(db *gorm.DB, key, value string) error {
	row := Metadata{Key: key, Value: value}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
	if err != nil {
		return dbError(err, "set_metadata", "", "key", key)
	}
	return nil
}

// GetWatermark returns the last processed detection timestamp.
func (ds *DataStore) GetWatermark(ctx context.Context) (time.Time, bool, error) {
	return getWatermark(ds.DB.WithContext(ctx))
}

func getWatermark(db *gorm.DB) (time.Time, bool, error) {
	value, found, err := getMetadata(db, MetaLastDetectionDate)
	if err != nil || !found {
		return time.Time{}, false, err
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, errors.New(err).
			Component("datastore").
			Category(errors.CategoryState).
			Priority(errors.PriorityHigh).
			Context("key", MetaLastDetectionDate).
			Context("value", value).
			Build()
	}
	return t.UTC(), true, nil
}

// EnsureWatermark seeds the watermark with initial if it is absent and
// returns the stored value. created reports whether initial was written.
func (ds *DataStore) EnsureWatermark(ctx context.Context, initial time.Time) (time.Time, bool, error) {
	var (
		result  time.Time
		created bool
	)

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, found, err := getWatermark(tx)
		if err != nil {
			return err
		}
		if found {
			result = current
			return nil
		}

		row := Metadata{Key: MetaLastDetectionDate, Value: formatWatermark(initial)}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return dbError(err, "ensure_watermark", "")
		}

		// A concurrent writer may have won the insert
		current, _, err = getWatermark(tx)
		if err != nil {
			return err
		}
		result = current
		created = current.Equal(initial.UTC())
		return nil
	})
	if err != nil {
		return time.Time{}, false, err
	}

	if created {
		ds.log.Info("initialized detection watermark", logger.Time("watermark", result))
	}
	return result, created, nil
}

// GetPendingSpecies returns species ids whose enrichment failed on a previous run.
func (ds *DataStore) GetPendingSpecies(ctx context.Context) ([]string, error) {
	value, found, err := ds.GetMetadata(ctx, MetaPendingSpecies)
	if err != nil || !found || value == "" {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryState).
			Context("key", MetaPendingSpecies).
			Build()
	}
	return ids, nil
}

// CommitSyncProgress stores the pending species set and, when watermark is
// non-nil and later than the stored value, advances the watermark. Both writes
// happen in one transaction. The watermark never moves backwards.
func (ds *DataStore) CommitSyncProgress(ctx context.Context, watermark *time.Time, pending []string) (bool, error) {
	if pending == nil {
		pending = []string{}
	}
	pendingJSON, err := json.Marshal(pending)
	if err != nil {
		return false, dbError(err, "commit_sync_progress", "")
	}

	var advanced bool
	err = ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if watermark != nil {
			current, found, err := getWatermark(tx)
			if err != nil {
				return err
			}
			if !found || watermark.After(current) {
				if err := setMetadata(tx, MetaLastDetectionDate, formatWatermark(*watermark)); err != nil {
					return err
				}
				advanced = true
			}
		}
		return setMetadata(tx, MetaPendingSpecies, string(pendingJSON))
	})
	if err != nil {
		return false, err
	}
	return advanced, nil
}

// GetStationCoordinates returns the coordinates stored by SetStationCoordinates.
func (ds *DataStore) GetStationCoordinates(ctx context.Context) (lat, lon float64, found bool, err error) {
	db := ds.DB.WithContext(ctx)

	latStr, latFound, err := getMetadata(db, MetaStationLatitude)
	if err != nil {
		return 0, 0, false, err
	}
	lonStr, lonFound, err := getMetadata(db, MetaStationLongitude)
	if err != nil {
		return 0, 0, false, err
	}
	if !latFound || !lonFound {
		return 0, 0, false, nil
	}

	lat, latErr := strconv.ParseFloat(latStr, 64)
	lon, lonErr := strconv.ParseFloat(lonStr, 64)
	if latErr != nil || lonErr != nil {
		return 0, 0, false, errors.Newf("invalid station coordinates in metadata: %q, %q", latStr, lonStr).
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return lat, lon, true, nil
}

// SetStationCoordinates stores both coordinates atomically.
func (ds *DataStore) SetStationCoordinates(ctx context.Context, lat, lon float64) error {
	if !finite(lat) || lat < -90 || lat > 90 {
		return validationError("latitude out of range", "latitude", lat)
	}
	if !finite(lon) || lon < -180 || lon > 180 {
		return validationError("longitude out of range", "longitude", lon)
	}

	return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := setMetadata(tx, MetaStationLatitude, strconv.FormatFloat(lat, 'f', -1, 64)); err != nil {
			return err
		}
		return setMetadata(tx, MetaStationLongitude, strconv.FormatFloat(lon, 'f', -1, 64))
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatWatermark(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
