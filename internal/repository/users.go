package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/pagination"
)

var usersConfig = EntityConfig{
	TableName: "users",
	Columns: []string{
		"id", "email", "username", "first_name", "last_name", "password_hash",
		"gender", "sexual_preference", "biography", "birth_date",
		"latitude", "longitude", "city", "fame_rating",
		"is_verified", "is_online", "last_seen_at", "created_at", "updated_at",
	},
	// fame_rating is derived from likes; presence and verification have
	// dedicated statements.
	AutoManagedColumns: []string{
		"id", "created_at", "updated_at", "fame_rating", "is_verified", "is_online", "last_seen_at",
	},
	DefaultTextFields: []string{"username", "first_name", "last_name", "city"},
	DefaultOrderBy:    "created_at",
}

// UserRepository stores member profiles.
type UserRepository struct {
	*BaseRepository[domain.User]
}

// NewUserRepository creates a UserRepository on db.
func NewUserRepository(db DBTX, opts ...Option) *UserRepository {
	return &UserRepository{BaseRepository: NewBaseRepository[domain.User](db, usersConfig, opts...)}
}

// FindByEmail looks a user up by email, case-insensitively. Emails are
// stored lowercase.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required")
	}
	return r.FindOneBy(ctx, Criteria{"email": email})
}

// FindByUsername looks a user up by exact username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, domain.NewValidationError("username", "username is required")
	}
	return r.FindOneBy(ctx, Criteria{"username": username})
}

// SetOnline records presence and refreshes last_seen_at.
func (r *UserRepository) SetOnline(ctx context.Context, userID int64, online bool) error {
	query := `UPDATE users SET is_online = $2, last_seen_at = NOW(), updated_at = NOW() WHERE id = $1`
	affected, err := r.Exec(ctx, "set_online", query, userID, online)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NewNotFoundError("user", domain.FormatID(userID))
	}
	return nil
}

// MarkVerified flags the account as having confirmed its email.
func (r *UserRepository) MarkVerified(ctx context.Context, userID int64) error {
	query := `UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`
	affected, err := r.Exec(ctx, "mark_verified", query, userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NewNotFoundError("user", domain.FormatID(userID))
	}
	return nil
}

// RefreshFameRating recomputes fame_rating as the number of likes received.
func (r *UserRepository) RefreshFameRating(ctx context.Context, userID int64) error {
	query := `UPDATE users SET fame_rating = (SELECT COUNT(*) FROM likes WHERE liked_id = $1), updated_at = NOW() WHERE id = $1`
	_, err := r.Exec(ctx, "refresh_fame_rating", query, userID)
	return err
}

// DiscoverFilter narrows the discovery feed. Zero values disable a filter.
type DiscoverFilter struct {
	Gender string
	MinAge int
	MaxAge int
	// Now anchors the age computation. Zero means time.Now().
	Now time.Time
}

// Discover returns candidate profiles for userID: everyone except the user,
// users blocked in either direction and users already liked. Results are
// ordered by fame_rating, highest first.
func (r *UserRepository) Discover(ctx context.Context, userID int64, filter DiscoverFilter, params pagination.Params) ([]*domain.User, int64, error) {
	conditions := []string{
		"u.id <> $1",
		`NOT EXISTS (SELECT 1 FROM blocks b WHERE (b.blocker_id = $1 AND b.blocked_id = u.id) OR (b.blocker_id = u.id AND b.blocked_id = $1))`,
		"NOT EXISTS (SELECT 1 FROM likes l WHERE l.liker_id = $1 AND l.liked_id = u.id)",
	}
	args := []any{userID}
	argIndex := 2

	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	if filter.Gender != "" {
		conditions = append(conditions, fmt.Sprintf("u.gender = $%d", argIndex))
		args = append(args, filter.Gender)
		argIndex++
	}
	if filter.MinAge > 0 {
		conditions = append(conditions, fmt.Sprintf("u.birth_date <= $%d", argIndex))
		args = append(args, now.AddDate(-filter.MinAge, 0, 0))
		argIndex++
	}
	if filter.MaxAge > 0 {
		// Someone is MaxAge until the day before their (MaxAge+1)th birthday.
		conditions = append(conditions, fmt.Sprintf("u.birth_date > $%d", argIndex))
		args = append(args, now.AddDate(-(filter.MaxAge + 1), 0, 0))
		argIndex++
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM users u" + where
	if err := r.scalar(ctx, "discover_count", countQuery, args, &total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT u.* FROM users u%s ORDER BY u.fame_rating DESC, u.id ASC LIMIT $%d OFFSET $%d",
		where, argIndex, argIndex+1)
	users, err := r.QueryMany(ctx, "discover", query, append(args, params.Limit, params.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
