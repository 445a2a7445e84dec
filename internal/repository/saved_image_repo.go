package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/timmy/picgallery/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no saved image matches.
var ErrNotFound = errors.New("saved image not found")

// SavedImageRepository handles saved image rows.
type SavedImageRepository struct {
	db *gorm.DB
}

// NewSavedImageRepository creates a new SavedImageRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *SavedImageRepository: repository instance bound to db.
func NewSavedImageRepository(db *gorm.DB) *SavedImageRepository {
	return &SavedImageRepository{db: db}
}

// Upsert creates or updates the row keyed by (image_id, kind) and reloads it,
// so img carries the stored ID and CreatedAt afterwards.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - img: row to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *SavedImageRepository) Upsert(ctx context.Context, img *domain.SavedImage) error {
	if img.ID == "" {
		img.ID = uuid.New().String()
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "image_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"author", "source_url", "storage_key", "url",
			"width", "height", "format", "file_size", "md5_hash", "updated_at",
		}),
	}).Create(img).Error
	if err != nil {
		return err
	}

	stored, err := r.GetByImageID(ctx, img.ImageID, img.Kind)
	if err != nil {
		return err
	}
	*img = *stored
	return nil
}

// GetByImageID retrieves the row for an image and kind.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imageID: listing image ID.
//   - kind: save or share.
// Returns:
//   - *domain.SavedImage: row if found.
//   - error: ErrNotFound when missing, otherwise the query error.
func (r *SavedImageRepository) GetByImageID(ctx context.Context, imageID string, kind domain.SavedKind) (*domain.SavedImage, error) {
	var img domain.SavedImage
	err := r.db.WithContext(ctx).
		Where("image_id = ? AND kind = ?", imageID, kind).
		First(&img).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &img, nil
}

// List returns rows newest first. An empty kind lists both kinds.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - kind: filter, or empty for all.
//   - limit: maximum rows.
//   - offset: rows to skip.
// Returns:
//   - []domain.SavedImage: matching rows.
//   - error: non-nil if the query fails.
func (r *SavedImageRepository) List(ctx context.Context, kind domain.SavedKind, limit, offset int) ([]domain.SavedImage, error) {
	var images []domain.SavedImage
	query := r.db.WithContext(ctx)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	err := query.Order("created_at DESC").Order("id").Limit(limit).Offset(offset).Find(&images).Error
	return images, err
}

// Count returns the number of rows, optionally filtered by kind.
func (r *SavedImageRepository) Count(ctx context.Context, kind domain.SavedKind) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.SavedImage{})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	err := query.Count(&count).Error
	return count, err
}
