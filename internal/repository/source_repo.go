package repository

import (
	"context"
	"errors"
	"fmt"

	"dealpilot/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// SourceRepositoryImpl handles database operations for knowledge sources.
type SourceRepositoryImpl struct {
	db *gorm.DB
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(db *gorm.DB) *SourceRepositoryImpl {
	return &SourceRepositoryImpl{db: db}
}

// Create inserts a new source record. The KSUID is generated in the
// BeforeCreate hook; the caller reads it back from the struct.
func (r *SourceRepositoryImpl) Create(ctx context.Context, source *models.KnowledgeSource) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		return fmt.Errorf("failed to create knowledge source: %w", err)
	}
	return nil
}

// GetByID retrieves a source by its KSUID.
func (r *SourceRepositoryImpl) GetByID(ctx context.Context, id string) (*models.KnowledgeSource, error) {
	var source models.KnowledgeSource

	err := r.db.WithContext(ctx).First(&source, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("knowledge source %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge source: %w", err)
	}

	return &source, nil
}

// List returns sources newest first. KSUIDs are time-ordered, so sorting by
// ID sorts by creation time.
func (r *SourceRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.KnowledgeSource, error) {
	var sources []*models.KnowledgeSource

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&sources).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge sources: %w", err)
	}

	return sources, nil
}

// Update applies a partial update; nil fields are left untouched.
func (r *SourceRepositoryImpl) Update(ctx context.Context, id string, update *models.SourceUpdate) error {
	updates := make(map[string]interface{})
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if update.ChunksCount != nil {
		updates["chunks_count"] = *update.ChunksCount
	}
	if update.ErrorMessage != nil {
		updates["error_message"] = *update.ErrorMessage
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.KnowledgeSource{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update knowledge source: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("knowledge source %s: %w", id, ErrNotFound)
	}

	return nil
}

// Delete permanently removes a source record.
func (r *SourceRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.KnowledgeSource{}, "id = ?", id)

	if result.Error != nil {
		return fmt.Errorf("failed to delete knowledge source: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("knowledge source %s: %w", id, ErrNotFound)
	}

	return nil
}
