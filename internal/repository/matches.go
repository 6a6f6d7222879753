package repository

import (
	"context"
	"fmt"
	"net/url"

	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/pagination"
)

var matchesConfig = EntityConfig{
	TableName:          "matches",
	Columns:            []string{"id", "user_one_id", "user_two_id", "created_at"},
	AutoManagedColumns: []string{"id", "created_at"},
	DefaultOrderBy:     "created_at",
}

// MatchRepository stores mutual likes. Pairs are stored low id first.
type MatchRepository struct {
	*BaseRepository[domain.Match]
}

// NewMatchRepository creates a MatchRepository on db.
func NewMatchRepository(db DBTX, opts ...Option) *MatchRepository {
	return &MatchRepository{BaseRepository: NewBaseRepository[domain.Match](db, matchesConfig, opts...)}
}

// CreateForPair records a match between a and b in either argument order.
// It reports created=false when the pair was already matched.
func (r *MatchRepository) CreateForPair(ctx context.Context, a, b int64) (match *domain.Match, created bool, err error) {
	if a == b {
		return nil, false, domain.NewValidationError("user_id", "a user cannot match themselves")
	}
	one, two := domain.OrderedPair(a, b)
	query := `INSERT INTO matches (user_one_id, user_two_id) VALUES ($1, $2)
		ON CONFLICT (user_one_id, user_two_id) DO NOTHING
		RETURNING *`
	match, err = r.QueryOne(ctx, "create_for_pair", query, one, two)
	if err != nil {
		return nil, false, err
	}
	if match != nil {
		return match, true, nil
	}

	match, err = r.FindForPair(ctx, one, two)
	if err != nil {
		return nil, false, err
	}
	if match == nil {
		return nil, false, fmt.Errorf("failed to create match: match between %d and %d vanished after conflict", one, two)
	}
	return match, false, nil
}

// FindForPair returns the match between a and b, or nil.
func (r *MatchRepository) FindForPair(ctx context.Context, a, b int64) (*domain.Match, error) {
	one, two := domain.OrderedPair(a, b)
	return r.FindOneBy(ctx, Criteria{"user_one_id": one, "user_two_id": two})
}

// ListForUser pages through the matches userID takes part in.
func (r *MatchRepository) ListForUser(ctx context.Context, userID int64, req pagination.Request, baseURL string) (pagination.Response[*domain.Match], error) {
	criteria := AdvancedCriteria{
		"user_one_id": {Value: userID},
		"user_two_id": {Value: userID},
	}
	return r.AdvancedSearchPaginated(ctx, criteria, req, baseURL, SearchOptions{LogicalOperator: Or, LinkQuery: url.Values{}})
}

// DeleteForPair removes the match between a and b and reports whether one existed.
func (r *MatchRepository) DeleteForPair(ctx context.Context, a, b int64) (bool, error) {
	one, two := domain.OrderedPair(a, b)
	affected, err := r.Exec(ctx, "delete_for_pair", "DELETE FROM matches WHERE user_one_id = $1 AND user_two_id = $2", one, two)
	return affected > 0, err
}
