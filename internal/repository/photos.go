package repository

import (
	"context"

	"github.com/amora/dating-service/internal/domain"
)

var photosConfig = EntityConfig{
	TableName:             "photos",
	Columns:               []string{"id", "user_id", "url", "is_primary", "position", "created_at"},
	AutoManagedColumns:    []string{"id", "created_at"},
	DefaultOrderBy:        "position",
	DefaultOrderDirection: "ASC",
}

// MaxPhotosPerUser caps the gallery size of a profile.
const MaxPhotosPerUser = 5

// PhotoRepository stores profile photos.
type PhotoRepository struct {
	*BaseRepository[domain.Photo]
}

// NewPhotoRepository creates a PhotoRepository on db.
func NewPhotoRepository(db DBTX, opts ...Option) *PhotoRepository {
	return &PhotoRepository{BaseRepository: NewBaseRepository[domain.Photo](db, photosConfig, opts...)}
}

// ListByUser returns the user's photos in gallery order.
func (r *PhotoRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Photo, error) {
	return r.FindBy(ctx, Criteria{"user_id": userID}, 0, 0)
}

// CountByUser returns the number of photos the user has.
func (r *PhotoRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	return r.Count(ctx, Criteria{"user_id": userID})
}

// SetPrimary makes photoID the user's only primary photo in one statement.
// It returns a NotFoundError when the photo does not belong to the user.
func (r *PhotoRepository) SetPrimary(ctx context.Context, userID, photoID int64) error {
	query := `UPDATE photos SET is_primary = (id = $2)
		WHERE user_id = $1 AND EXISTS (SELECT 1 FROM photos p WHERE p.id = $2 AND p.user_id = $1)`
	affected, err := r.Exec(ctx, "set_primary", query, userID, photoID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NewNotFoundError("photo", domain.FormatID(photoID))
	}
	return nil
}
