package approaches

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repository decouples the quota-enforcement logic from the persistence
// mechanism. Load returns (nil, nil) when the user has no collection.
type Repository interface {
	Load(ctx context.Context, userID string) (*Collection, error)
	LoadAll(ctx context.Context) ([]*Collection, error)
	// Save inserts new collections and updates existing ones. Updates match
	// the loaded version and fail with ErrVersionConflict when the row
	// changed underneath the caller. On success the in-memory version is
	// advanced.
	Save(ctx context.Context, collection *Collection) error
	// Delete removes the collection row, again guarded by the loaded version.
	Delete(ctx context.Context, collection *Collection) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a Repository backed by the provided GORM handle.
func NewRepository(db *gorm.DB) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("approaches: database handle is required")
	}
	return &gormRepository{db: db}, nil
}

func (r *gormRepository) Load(ctx context.Context, userID string) (*Collection, error) {
	var record CollectionRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return collectionFromRecord(record)
}

func (r *gormRepository) LoadAll(ctx context.Context) ([]*Collection, error) {
	var records []CollectionRecord
	if err := r.db.WithContext(ctx).
		Order("user_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	collections := make([]*Collection, 0, len(records))
	for _, record := range records {
		collection, err := collectionFromRecord(record)
		if err != nil {
			return nil, err
		}
		collections = append(collections, collection)
	}
	return collections, nil
}

func (r *gormRepository) Save(ctx context.Context, collection *Collection) error {
	record, err := recordFromCollection(collection)
	if err != nil {
		return err
	}

	if collection.Version == 0 {
		record.Version = 1
		if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrVersionConflict
			}
			return err
		}
		collection.Version = 1
		return nil
	}

	nextVersion := collection.Version + 1
	result := r.db.WithContext(ctx).
		Model(&CollectionRecord{}).
		Where("user_id = ? AND version = ?", collection.UserID, collection.Version).
		Updates(map[string]interface{}{
			"display_name":    record.DisplayName,
			"document_json":   record.DocumentJSON,
			"total_count":     record.TotalCount,
			"last_modified_s": record.LastModifiedSeconds,
			"version":         nextVersion,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	collection.Version = nextVersion
	return nil
}

func (r *gormRepository) Delete(ctx context.Context, collection *Collection) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND version = ?", collection.UserID, collection.Version).
		Delete(&CollectionRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}
