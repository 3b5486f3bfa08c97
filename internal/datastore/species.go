package datastore

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/tphakala/birdweather-sync/internal/errors"
)

// GetSpecies returns the species with the given BirdWeather id.
func (ds *DataStore) GetSpecies(ctx context.Context, id string) (*Species, error) {
	var species Species
	err := ds.DB.WithContext(ctx).Where("species_id = ?", id).Take(&species).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("species", id)
		}
		return nil, dbError(err, "get_species", "", "species_id", id)
	}
	return &species, nil
}

// CreateSpecies inserts a new species row. An existing id yields a
// CategoryConflict error that IsDuplicateKey recognizes.
func (ds *DataStore) CreateSpecies(ctx context.Context, species *Species) error {
	if species == nil || species.SpeciesID == "" {
		return validationError("species id is required", "species_id", "")
	}

	if err := ds.DB.WithContext(ctx).Create(species).Error; err != nil {
		if IsDuplicateKey(err) {
			return conflictError(err, "create_species", "duplicate_key", "species_id", species.SpeciesID)
		}
		return dbError(err, "create_species", errors.PriorityMedium, "species_id", species.SpeciesID)
	}
	return nil
}

// UpdateSpeciesImages records the local image paths for a species.
func (ds *DataStore) UpdateSpeciesImages(ctx context.Context, id, imagePath, thumbnailPath string) error {
	result := ds.DB.WithContext(ctx).Model(&Species{}).
		Where("species_id = ?", id).
		Updates(map[string]any{
			"image_path":     imagePath,
			"thumbnail_path": thumbnailPath,
		})
	if result.Error != nil {
		return dbError(result.Error, "update_species_images", "", "species_id", id)
	}
	if result.RowsAffected == 0 {
		return notFoundError("species", id)
	}
	return nil
}

// ListSpecies returns all species ordered by common name.
func (ds *DataStore) ListSpecies(ctx context.Context) ([]Species, error) {
	var species []Species
	if err := ds.DB.WithContext(ctx).Order("common_name ASC").Find(&species).Error; err != nil {
		return nil, dbError(err, "list_species", "")
	}
	return species, nil
}

// CountSpecies returns the number of stored species.
func (ds *DataStore) CountSpecies(ctx context.Context) (int64, error) {
	var count int64
	if err := ds.DB.WithContext(ctx).Model(&Species{}).Count(&count).Error; err != nil {
		return 0, dbError(err, "count_species", "")
	}
	return count, nil
}
