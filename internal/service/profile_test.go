package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/pagination"
	"github.com/amora/dating-service/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func TestProfileService_Get(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(q("SELECT * FROM users WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := NewProfileService(f.deps).Get(context.Background(), 5)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "5", nf.ID)
}

func TestProfileService_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("maps query filters onto the paginated search", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectQuery(q("SELECT COUNT(*) FROM users WHERE city ILIKE $1 AND is_online = $2")).
			WithArgs("%par%", true).
			WillReturnRows(countRows(1))
		f.mock.ExpectQuery(q("SELECT * FROM users WHERE city ILIKE $1 AND is_online = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
			WithArgs("%par%", true, 5, 0).
			WillReturnRows(userRow(3, "ann"))

		query := url.Values{"city": {"par"}, "is_online": {"true"}, "limit": {"5"}, "page": {"1"}}
		resp, err := NewProfileService(f.deps).Search(ctx, query, "/api/users")
		require.NoError(t, err)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, int64(1), resp.Meta.TotalItems)
		assert.Contains(t, resp.Links.Self, "city=par")
		assert.Contains(t, resp.Links.Self, "limit=5")
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("private columns cannot be filtered", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewProfileService(f.deps).Search(ctx, url.Values{"password_hash": {"x"}}, "/api/users")
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "password_hash", ve.Field)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("private columns cannot be sorted on", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewProfileService(f.deps).Search(ctx, url.Values{"sort": {"email"}}, "/api/users")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("boolean filters must parse", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewProfileService(f.deps).Search(ctx, url.Values{"is_verified": {"maybe"}}, "/api/users")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestProfileService_UpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("applies set fields only", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectQuery(q("UPDATE users SET city = $2, updated_at = NOW() WHERE id = $1 RETURNING *")).
			WithArgs(int64(5), "Lyon").
			WillReturnRows(userRow(5, "ann"))

		user, err := NewProfileService(f.deps).UpdateProfile(ctx, 5, ProfilePatch{City: ptr(" Lyon ")})
		require.NoError(t, err)
		assert.Equal(t, int64(5), user.ID)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("missing user is not found", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectQuery(q("UPDATE users SET")).
			WillReturnRows(pgxmock.NewRows([]string{"id"}))

		_, err := NewProfileService(f.deps).UpdateProfile(ctx, 5, ProfilePatch{City: ptr("Lyon")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("taken username is reported as already existing", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectQuery(q("UPDATE users SET username = $2, updated_at = NOW()")).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

		_, err := NewProfileService(f.deps).UpdateProfile(ctx, 5, ProfilePatch{Username: ptr("ann")})
		var ae *domain.AlreadyExistsError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "ann", ae.ID)
	})

	t.Run("invalid values are rejected before any query", func(t *testing.T) {
		f := newFixture(t)
		svc := NewProfileService(f.deps)

		_, err := svc.UpdateProfile(ctx, 5, ProfilePatch{Gender: ptr("robot")})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "gender", ve.Field)

		_, err = svc.UpdateProfile(ctx, 5, ProfilePatch{Latitude: ptr(123.0)})
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "latitude", ve.Field)

		svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
		_, err = svc.UpdateProfile(ctx, 5, ProfilePatch{BirthDate: ptr(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))})
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "birth_date", ve.Field)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestProfilePatch_Record(t *testing.T) {
	birth := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := ProfilePatch{FirstName: ptr("Ann"), BirthDate: &birth, Latitude: ptr(48.85)}.Record()

	assert.Equal(t, repository.Record{
		"first_name": "Ann",
		"birth_date": birth,
		"latitude":   48.85,
	}, rec)
	assert.Empty(t, ProfilePatch{}.Record())
}

func TestProfileService_Discover(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("filters and links carry the discover parameters", func(t *testing.T) {
		f := newFixture(t)
		svc := NewProfileService(f.deps)
		svc.now = func() time.Time { return now }

		minBirth := now.AddDate(-20, 0, 0)
		maxBirth := now.AddDate(-31, 0, 0)
		f.mock.ExpectQuery(q("SELECT COUNT(*) FROM users u WHERE u.id <> $1")).
			WithArgs(int64(1), "female", minBirth, maxBirth).
			WillReturnRows(countRows(12))
		f.mock.ExpectQuery(q("ORDER BY u.fame_rating DESC, u.id ASC LIMIT $5 OFFSET $6")).
			WithArgs(int64(1), "female", minBirth, maxBirth, 10, 0).
			WillReturnRows(userRow(4, "cat"))

		resp, err := svc.Discover(ctx, 1, DiscoverQuery{Gender: "female", MinAge: 20, MaxAge: 30}, pagination.Request{}, "/api/discover")
		require.NoError(t, err)
		assert.Equal(t, int64(12), resp.Meta.TotalItems)
		assert.Equal(t, 2, resp.Meta.TotalPages)
		assert.Equal(t, "/api/discover?gender=female&limit=10&max_age=30&min_age=20&page=2", resp.Links.Next)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("inverted age range is rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewProfileService(f.deps).Discover(ctx, 1, DiscoverQuery{MinAge: 40, MaxAge: 30}, pagination.Request{}, "/api/discover")
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "min_age", ve.Field)
	})
}

func TestProfileService_Hashtags(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(q("INSERT INTO hashtags (name) VALUES ($1)")).
		WithArgs("rock_climbing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}).AddRow(int64(8), "rock_climbing", time.Now()))
	f.mock.ExpectQuery(q("INSERT INTO user_hashtags (user_id, hashtag_id) VALUES ($1, $2)")).
		WithArgs(int64(5), int64(8)).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "hashtag_id"}).AddRow(int64(5), int64(8)))
	f.mock.ExpectCommit()

	f.mock.ExpectExec(q("DELETE FROM user_hashtags WHERE user_id = $1 AND hashtag_id = $2")).
		WithArgs(int64(5), int64(8)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	f.mock.ExpectExec(q("DELETE FROM user_hashtags WHERE user_id = $1 AND hashtag_id = $2")).
		WithArgs(int64(5), int64(8)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	svc := NewProfileService(f.deps)
	ctx := context.Background()
	tag, err := svc.AddHashtag(ctx, 5, "#Rock Climbing")
	require.NoError(t, err)
	assert.Equal(t, "rock_climbing", tag.Name)

	removed, err := svc.RemoveHashtag(ctx, 5, tag.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = svc.RemoveHashtag(ctx, 5, tag.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProfileService_AddPhoto(t *testing.T) {
	ctx := context.Background()

	expectLockAndCount := func(f *fixture, count int64) {
		f.mock.ExpectBegin()
		f.mock.ExpectExec(q("SELECT pg_advisory_xact_lock")).
			WithArgs("photos:5").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		f.mock.ExpectQuery(q("SELECT COUNT(*) FROM photos WHERE user_id = $1")).
			WithArgs(int64(5)).
			WillReturnRows(countRows(count))
	}

	t.Run("first photo becomes primary", func(t *testing.T) {
		f := newFixture(t)
		expectLockAndCount(f, 0)
		f.mock.ExpectQuery(q("INSERT INTO photos (is_primary, position, url, user_id) VALUES ($1, $2, $3, $4) RETURNING *")).
			WithArgs(true, 0, "https://cdn.example.com/1.jpg", int64(5)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "url", "is_primary", "position", "created_at"}).
				AddRow(int64(1), int64(5), "https://cdn.example.com/1.jpg", true, 0, time.Now()))
		f.mock.ExpectCommit()

		photo, err := NewProfileService(f.deps).AddPhoto(ctx, 5, "https://cdn.example.com/1.jpg")
		require.NoError(t, err)
		assert.True(t, photo.IsPrimary)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		f := newFixture(t)
		expectLockAndCount(f, 0)
		f.mock.ExpectQuery(q("INSERT INTO photos")).
			WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "photos_user_id_fkey"})
		f.mock.ExpectRollback()

		_, err := NewProfileService(f.deps).AddPhoto(ctx, 5, "https://cdn.example.com/1.jpg")
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "user", nf.Entity)
	})

	t.Run("full gallery is rejected", func(t *testing.T) {
		f := newFixture(t)
		expectLockAndCount(f, repository.MaxPhotosPerUser)
		f.mock.ExpectRollback()

		_, err := NewProfileService(f.deps).AddPhoto(ctx, 5, "https://cdn.example.com/6.jpg")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}
