package repository

import (
	"context"
	"fmt"
	"net/url"

	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/pagination"
)

var likesConfig = EntityConfig{
	TableName:          "likes",
	Columns:            []string{"id", "liker_id", "liked_id", "created_at"},
	AutoManagedColumns: []string{"id", "created_at"},
	DefaultOrderBy:     "created_at",
}

// LikeRepository stores one-way likes.
type LikeRepository struct {
	*BaseRepository[domain.Like]
}

// NewLikeRepository creates a LikeRepository on db.
func NewLikeRepository(db DBTX, opts ...Option) *LikeRepository {
	return &LikeRepository{BaseRepository: NewBaseRepository[domain.Like](db, likesConfig, opts...)}
}

// Like records that likerID likes likedID. It reports created=false and
// returns the stored row when the like already existed.
func (r *LikeRepository) Like(ctx context.Context, likerID, likedID int64) (like *domain.Like, created bool, err error) {
	query := `INSERT INTO likes (liker_id, liked_id) VALUES ($1, $2)
		ON CONFLICT (liker_id, liked_id) DO NOTHING
		RETURNING *`
	like, err = r.QueryOne(ctx, "like", query, likerID, likedID)
	if err != nil {
		return nil, false, err
	}
	if like != nil {
		return like, true, nil
	}

	like, err = r.FindOneBy(ctx, Criteria{"liker_id": likerID, "liked_id": likedID})
	if err != nil {
		return nil, false, err
	}
	if like == nil {
		return nil, false, fmt.Errorf("failed to like: like between %d and %d vanished after conflict", likerID, likedID)
	}
	return like, false, nil
}

// HasLiked reports whether likerID likes likedID.
func (r *LikeRepository) HasLiked(ctx context.Context, likerID, likedID int64) (bool, error) {
	return r.Exists(ctx, Criteria{"liker_id": likerID, "liked_id": likedID})
}

// Unlike removes the like and reports whether one existed.
func (r *LikeRepository) Unlike(ctx context.Context, likerID, likedID int64) (bool, error) {
	affected, err := r.Exec(ctx, "unlike", "DELETE FROM likes WHERE liker_id = $1 AND liked_id = $2", likerID, likedID)
	return affected > 0, err
}

// DeleteBetween removes likes in both directions and returns how many went.
func (r *LikeRepository) DeleteBetween(ctx context.Context, a, b int64) (int64, error) {
	query := `DELETE FROM likes WHERE (liker_id = $1 AND liked_id = $2) OR (liker_id = $2 AND liked_id = $1)`
	return r.Exec(ctx, "delete_between", query, a, b)
}

// ReceivedPaginated pages through the likes userID received, newest first.
func (r *LikeRepository) ReceivedPaginated(ctx context.Context, userID int64, req pagination.Request, baseURL string) (pagination.Response[*domain.Like], error) {
	return r.SearchPaginated(ctx, Criteria{"liked_id": userID}, req, baseURL, SearchOptions{LinkQuery: url.Values{}})
}
