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

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func likeRows(likes ...domain.Like) *pgxmock.Rows {
	rows := pgxmock.NewRows(likesConfig.Columns)
	for _, l := range likes {
		rows.AddRow(l.ID, l.LikerID, l.LikedID, l.CreatedAt)
	}
	return rows
}

func matchRows(matches ...domain.Match) *pgxmock.Rows {
	rows := pgxmock.NewRows(matchesConfig.Columns)
	for _, m := range matches {
		rows.AddRow(m.ID, m.UserOneID, m.UserTwoID, m.CreatedAt)
	}
	return rows
}

func blockRows(blocks ...domain.Block) *pgxmock.Rows {
	rows := pgxmock.NewRows(blocksConfig.Columns)
	for _, b := range blocks {
		rows.AddRow(b.ID, b.BlockerID, b.BlockedID, b.CreatedAt)
	}
	return rows
}

func TestLikeRepository_Like(t *testing.T) {
	now := time.Now().UTC()

	t.Run("inserts a new like", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewLikeRepository(mock)
		mock.ExpectQuery(q("INSERT INTO likes (liker_id, liked_id) VALUES ($1, $2) ON CONFLICT (liker_id, liked_id) DO NOTHING RETURNING *")).
			WithArgs(int64(1), int64(2)).
			WillReturnRows(likeRows(domain.Like{ID: 10, LikerID: 1, LikedID: 2, CreatedAt: now}))

		like, created, err := repo.Like(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(10), like.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("re-fetches on conflict", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewLikeRepository(mock)
		mock.ExpectQuery(q("INSERT INTO likes")).
			WithArgs(int64(1), int64(2)).
			WillReturnRows(likeRows())
		mock.ExpectQuery(q("SELECT * FROM likes WHERE liked_id = $1 AND liker_id = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
			WithArgs(int64(2), int64(1), 1, 0).
			WillReturnRows(likeRows(domain.Like{ID: 10, LikerID: 1, LikedID: 2, CreatedAt: now}))

		like, created, err := repo.Like(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(10), like.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLikeRepository_HasLikedAndUnlike(t *testing.T) {
	mock := newMockPool(t)
	repo := NewLikeRepository(mock)
	mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM likes WHERE liked_id = $1 AND liker_id = $2)")).
		WithArgs(int64(2), int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(q("DELETE FROM likes WHERE liker_id = $1 AND liked_id = $2")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(q("DELETE FROM likes WHERE (liker_id = $1 AND liked_id = $2) OR (liker_id = $2 AND liked_id = $1)")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ctx := context.Background()
	liked, err := repo.HasLiked(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, liked)

	removed, err := repo.Unlike(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, removed)

	n, err := repo.DeleteBetween(ctx, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_ReceivedPaginated(t *testing.T) {
	mock := newMockPool(t)
	repo := NewLikeRepository(mock)
	now := time.Now().UTC()
	mock.ExpectQuery(q("SELECT COUNT(*) FROM likes WHERE liked_id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(q("SELECT * FROM likes WHERE liked_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs(int64(5), 2, 2).
		WillReturnRows(likeRows(domain.Like{ID: 1, LikerID: 9, LikedID: 5, CreatedAt: now}))

	page, limit := 2, 2
	resp, err := repo.ReceivedPaginated(context.Background(), 5, pagination.Request{Page: &page, Limit: &limit}, "/api/likes/received")
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Meta.TotalItems)
	assert.Equal(t, 2, resp.Meta.TotalPages)
	assert.False(t, resp.Meta.HasNext)
	assert.NotContains(t, resp.Links.Self, "liked_id")
	assert.Equal(t, "/api/likes/received?limit=2&page=2", resp.Links.Self)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepository_CreateForPair(t *testing.T) {
	now := time.Now().UTC()

	t.Run("stores the pair low id first", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewMatchRepository(mock)
		mock.ExpectQuery(q("INSERT INTO matches (user_one_id, user_two_id) VALUES ($1, $2) ON CONFLICT (user_one_id, user_two_id) DO NOTHING RETURNING *")).
			WithArgs(int64(3), int64(8)).
			WillReturnRows(matchRows(domain.Match{ID: 1, UserOneID: 3, UserTwoID: 8, CreatedAt: now}))

		match, created, err := repo.CreateForPair(context.Background(), 8, 3)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(8), match.Other(3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing pair", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewMatchRepository(mock)
		mock.ExpectQuery(q("INSERT INTO matches")).
			WithArgs(int64(3), int64(8)).
			WillReturnRows(matchRows())
		mock.ExpectQuery(q("SELECT * FROM matches WHERE user_one_id = $1 AND user_two_id = $2")).
			WithArgs(int64(3), int64(8), 1, 0).
			WillReturnRows(matchRows(domain.Match{ID: 1, UserOneID: 3, UserTwoID: 8, CreatedAt: now}))

		_, created, err := repo.CreateForPair(context.Background(), 3, 8)
		require.NoError(t, err)
		assert.False(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects self match", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewMatchRepository(mock)
		_, _, err := repo.CreateForPair(context.Background(), 4, 4)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestMatchRepository_ListForUser(t *testing.T) {
	mock := newMockPool(t)
	repo := NewMatchRepository(mock)
	mock.ExpectQuery(q("SELECT COUNT(*) FROM matches WHERE user_one_id = $1 OR user_two_id = $2")).
		WithArgs(int64(3), int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(q("SELECT * FROM matches WHERE user_one_id = $1 OR user_two_id = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs(int64(3), int64(3), 10, 0).
		WillReturnRows(matchRows())

	resp, err := repo.ListForUser(context.Background(), 3, pagination.Request{}, "/api/matches")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
	assert.Equal(t, 0, resp.Meta.TotalPages)
	assert.Equal(t, "/api/matches?limit=10&page=1", resp.Links.Last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepository_DeleteForPair(t *testing.T) {
	mock := newMockPool(t)
	repo := NewMatchRepository(mock)
	mock.ExpectExec(q("DELETE FROM matches WHERE user_one_id = $1 AND user_two_id = $2")).
		WithArgs(int64(2), int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	removed, err := repo.DeleteForPair(context.Background(), 9, 2)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockRepository(t *testing.T) {
	now := time.Now().UTC()

	t.Run("block is idempotent", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewBlockRepository(mock)
		mock.ExpectQuery(q("INSERT INTO blocks (blocker_id, blocked_id) VALUES ($1, $2) ON CONFLICT (blocker_id, blocked_id) DO NOTHING RETURNING *")).
			WithArgs(int64(1), int64(2)).
			WillReturnRows(blockRows())
		mock.ExpectQuery(q("SELECT * FROM blocks WHERE blocked_id = $1 AND blocker_id = $2")).
			WithArgs(int64(2), int64(1), 1, 0).
			WillReturnRows(blockRows(domain.Block{ID: 6, BlockerID: 1, BlockedID: 2, CreatedAt: now}))

		block, err := repo.Block(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(6), block.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self block rejected", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewBlockRepository(mock)
		_, err := repo.Block(context.Background(), 1, 1)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("checks both directions", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewBlockRepository(mock)
		mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM blocks WHERE (blocker_id = $1 AND blocked_id = $2) OR (blocker_id = $2 AND blocked_id = $1))")).
			WithArgs(int64(2), int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		blocked, err := repo.IsBlockedEitherWay(context.Background(), 2, 1)
		require.NoError(t, err)
		assert.True(t, blocked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unblock and list", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewBlockRepository(mock)
		mock.ExpectExec(q("DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2")).
			WithArgs(int64(1), int64(2)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectQuery(q("SELECT * FROM blocks WHERE blocker_id = $1 ORDER BY created_at DESC")).
			WithArgs(int64(1)).
			WillReturnRows(blockRows())

		removed, err := repo.Unblock(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.False(t, removed)

		blocks, err := repo.ListBlocked(context.Background(), 1)
		require.NoError(t, err)
		assert.Empty(t, blocks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
