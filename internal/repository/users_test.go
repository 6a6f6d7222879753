package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/pagination"
)

func userRows(users ...domain.User) *pgxmock.Rows {
	rows := pgxmock.NewRows(usersConfig.Columns)
	for _, u := range users {
		rows.AddRow(u.ID, u.Email, u.Username, u.FirstName, u.LastName, u.PasswordHash,
			u.Gender, u.SexualPreference, u.Biography, u.BirthDate,
			u.Latitude, u.Longitude, u.City, u.FameRating,
			u.IsVerified, u.IsOnline, u.LastSeenAt, u.CreatedAt, u.UpdatedAt)
	}
	return rows
}

func newUserRepo(t *testing.T) (pgxmock.PgxPoolIface, *UserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewUserRepository(mock)
}

func TestUserRepository_FindByEmail(t *testing.T) {
	t.Run("lowercases the address", func(t *testing.T) {
		mock, repo := newUserRepo(t)
		now := time.Now().UTC()
		mock.ExpectQuery(q("SELECT * FROM users WHERE email = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3")).
			WithArgs("ann@example.com", 1, 0).
			WillReturnRows(userRows(domain.User{ID: 4, Email: "ann@example.com", Username: "ann", CreatedAt: now, UpdatedAt: now}))

		user, err := repo.FindByEmail(context.Background(), "  Ann@Example.com ")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, int64(4), user.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil for unknown address", func(t *testing.T) {
		mock, repo := newUserRepo(t)
		mock.ExpectQuery(q("SELECT * FROM users WHERE email = $1")).
			WithArgs("nobody@example.com", 1, 0).
			WillReturnRows(userRows())

		user, err := repo.FindByEmail(context.Background(), "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("rejects empty address", func(t *testing.T) {
		_, repo := newUserRepo(t)
		_, err := repo.FindByEmail(context.Background(), "  ")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestUserRepository_Create(t *testing.T) {
	mock, repo := newUserRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(q("INSERT INTO users (email, first_name, last_name, password_hash, username) VALUES ($1, $2, $3, $4, $5) RETURNING *")).
		WithArgs("ann@example.com", "Ann", "Lee", "hash", "ann").
		WillReturnRows(userRows(domain.User{ID: 1, Email: "ann@example.com", Username: "ann", CreatedAt: now, UpdatedAt: now}))

	user, err := repo.Create(context.Background(), Record{
		"email":         "ann@example.com",
		"username":      "ann",
		"first_name":    "Ann",
		"last_name":     "Lee",
		"password_hash": "hash",
		"fame_rating":   999,
		"is_verified":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, 0, user.FameRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SetOnline(t *testing.T) {
	t.Run("updates presence", func(t *testing.T) {
		mock, repo := newUserRepo(t)
		mock.ExpectExec(q("UPDATE users SET is_online = $2, last_seen_at = NOW(), updated_at = NOW() WHERE id = $1")).
			WithArgs(int64(3), true).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.SetOnline(context.Background(), 3, true))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		mock, repo := newUserRepo(t)
		mock.ExpectExec(q("UPDATE users SET is_online")).
			WithArgs(int64(3), false).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetOnline(context.Background(), 3, false)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestUserRepository_RefreshFameRating(t *testing.T) {
	mock, repo := newUserRepo(t)
	mock.ExpectExec(q("UPDATE users SET fame_rating = (SELECT COUNT(*) FROM likes WHERE liked_id = $1)")).
		WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.RefreshFameRating(context.Background(), 8))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Discover(t *testing.T) {
	const exclusions = "WHERE u.id <> $1 AND NOT EXISTS (SELECT 1 FROM blocks b WHERE (b.blocker_id = $1 AND b.blocked_id = u.id) OR (b.blocker_id = u.id AND b.blocked_id = $1)) AND NOT EXISTS (SELECT 1 FROM likes l WHERE l.liker_id = $1 AND l.liked_id = u.id)"

	t.Run("without filters", func(t *testing.T) {
		mock, repo := newUserRepo(t)
		now := time.Now().UTC()
		mock.ExpectQuery(q("SELECT COUNT(*) FROM users u " + exclusions)).
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
		mock.ExpectQuery(q("SELECT u.* FROM users u " + exclusions + " ORDER BY u.fame_rating DESC, u.id ASC LIMIT $2 OFFSET $3")).
			WithArgs(int64(1), 10, 0).
			WillReturnRows(userRows(
				domain.User{ID: 2, Username: "bo", FameRating: 9, CreatedAt: now, UpdatedAt: now},
				domain.User{ID: 3, Username: "cy", FameRating: 4, CreatedAt: now, UpdatedAt: now},
			))

		users, total, err := repo.Discover(context.Background(), 1, DiscoverFilter{}, pagination.Params{Offset: 0, Limit: 10, Page: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, users, 2)
		assert.Equal(t, "bo", users[0].Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gender and age range", func(t *testing.T) {
		mock, repo := newUserRepo(t)
		now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
		filter := DiscoverFilter{Gender: domain.GenderFemale, MinAge: 25, MaxAge: 30, Now: now}
		oldest := time.Date(1995, 6, 15, 12, 0, 0, 0, time.UTC)
		youngest := time.Date(2001, 6, 15, 12, 0, 0, 0, time.UTC)

		mock.ExpectQuery(q("AND u.gender = $2 AND u.birth_date <= $3 AND u.birth_date > $4")).
			WithArgs(int64(1), "female", youngest, oldest).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectQuery(q("AND u.birth_date > $4 ORDER BY u.fame_rating DESC, u.id ASC LIMIT $5 OFFSET $6")).
			WithArgs(int64(1), "female", youngest, oldest, 10, 10).
			WillReturnRows(userRows())

		users, total, err := repo.Discover(context.Background(), 1, filter, pagination.Params{Offset: 10, Limit: 10, Page: 2})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.NotNil(t, users)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
