package repository

import (
	"context"

	"github.com/amora/dating-service/internal/domain"
)

var hashtagsConfig = EntityConfig{
	TableName:             "hashtags",
	Columns:               []string{"id", "name", "created_at"},
	AutoManagedColumns:    []string{"id", "created_at"},
	DefaultTextFields:     []string{"name"},
	DefaultOrderBy:        "name",
	DefaultOrderDirection: "ASC",
}

// DefaultPopularHashtags is the size of the popular list when none is given.
const DefaultPopularHashtags = 20

// HashtagRepository stores interest tags and their assignment to users.
type HashtagRepository struct {
	*BaseRepository[domain.Hashtag]
}

// NewHashtagRepository creates a HashtagRepository on db.
func NewHashtagRepository(db DBTX, opts ...Option) *HashtagRepository {
	return &HashtagRepository{BaseRepository: NewBaseRepository[domain.Hashtag](db, hashtagsConfig, opts...)}
}

// FindOrCreate returns the hashtag with the normalized form of name,
// creating it when missing. A single INSERT...ON CONFLICT...RETURNING
// covers both cases.
func (r *HashtagRepository) FindOrCreate(ctx context.Context, name string) (*domain.Hashtag, error) {
	normalized := domain.NormalizeHashtag(name)
	if normalized == "" {
		return nil, domain.NewValidationError("name", "hashtag cannot be empty or whitespace-only")
	}

	query := `INSERT INTO hashtags (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = hashtags.name
		RETURNING *`
	return r.QueryOne(ctx, "find_or_create", query, normalized)
}

// ListForUser returns the user's hashtags by name.
func (r *HashtagRepository) ListForUser(ctx context.Context, userID int64) ([]*domain.Hashtag, error) {
	return r.FindByUserID(ctx, userID, UserHashtagsTable, "hashtag_id")
}

// AttachToUser links the hashtag to the user. Attaching twice is a no-op.
func (r *HashtagRepository) AttachToUser(ctx context.Context, userID, hashtagID int64) error {
	_, err := r.AddUserRelationship(ctx, userID, hashtagID, UserHashtagsTable, "hashtag_id")
	return err
}

// DetachFromUser unlinks the hashtag and reports whether it was linked.
func (r *HashtagRepository) DetachFromUser(ctx context.Context, userID, hashtagID int64) (bool, error) {
	return r.RemoveUserRelationship(ctx, userID, hashtagID, UserHashtagsTable, "hashtag_id")
}

// Popular returns the most used hashtags with their usage counts.
func (r *HashtagRepository) Popular(ctx context.Context, limit int) ([]*domain.HashtagUsage, error) {
	if limit <= 0 {
		limit = DefaultPopularHashtags
	}
	query := `SELECT h.id, h.name, COUNT(uh.user_id) AS usage_count
		FROM hashtags h
		INNER JOIN user_hashtags uh ON uh.hashtag_id = h.id
		GROUP BY h.id, h.name
		ORDER BY usage_count DESC, h.name ASC
		LIMIT $1`
	return queryMany[domain.HashtagUsage](ctx, r.BaseRepository, "popular", query, limit)
}
