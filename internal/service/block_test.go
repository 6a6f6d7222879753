package service

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/events"
)

func TestBlockService_Block(t *testing.T) {
	ctx := context.Background()

	t.Run("severs likes and match in one transaction", func(t *testing.T) {
		f := newFixture(t)
		f.deps.InlineFameRefresh = true
		f.mock.ExpectBegin()
		f.expectPairLock(1, 2)
		f.mock.ExpectQuery(q("INSERT INTO blocks (blocker_id, blocked_id)")).
			WithArgs(int64(1), int64(2)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "blocker_id", "blocked_id", "created_at"}).
				AddRow(int64(3), int64(1), int64(2), time.Now()))
		f.mock.ExpectExec(q("DELETE FROM likes WHERE (liker_id = $1 AND liked_id = $2) OR (liker_id = $2 AND liked_id = $1)")).
			WithArgs(int64(1), int64(2)).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		f.mock.ExpectExec(q("DELETE FROM matches")).
			WithArgs(int64(1), int64(2)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		f.mock.ExpectExec(q("UPDATE users SET fame_rating")).
			WithArgs(int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		f.mock.ExpectExec(q("UPDATE users SET fame_rating")).
			WithArgs(int64(2)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		f.mock.ExpectCommit()

		result, err := NewBlockService(f.deps).Block(ctx, PairCommand{UserID: 1, TargetID: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.Block.ID)
		assert.Equal(t, int64(2), result.LikesRemoved)
		assert.True(t, result.MatchRemoved)
		assert.NoError(t, f.mock.ExpectationsWereMet())

		assert.Equal(t, []string{events.TypeBlockCreated}, f.publisher.types())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BlocksTotal))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MatchesRemoved))
	})

	t.Run("failure rolls back and publishes nothing", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectBegin()
		f.expectPairLock(1, 2)
		f.mock.ExpectQuery(q("INSERT INTO blocks")).
			WillReturnRows(pgxmock.NewRows([]string{"id", "blocker_id", "blocked_id", "created_at"}).
				AddRow(int64(3), int64(1), int64(2), time.Now()))
		f.mock.ExpectExec(q("DELETE FROM likes")).
			WillReturnError(assert.AnError)
		f.mock.ExpectRollback()

		_, err := NewBlockService(f.deps).Block(ctx, PairCommand{UserID: 1, TargetID: 2})
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, f.mock.ExpectationsWereMet())
		assert.Empty(t, f.publisher.types())
	})

	t.Run("self block is invalid", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewBlockService(f.deps).Block(ctx, PairCommand{UserID: 1, TargetID: 1})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestBlockService_Unblock(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectExec(q("DELETE FROM blocks")).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	removed, err := NewBlockService(f.deps).Unblock(context.Background(), PairCommand{UserID: 1, TargetID: 2})
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
