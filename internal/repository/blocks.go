package repository

import (
	"context"
	"fmt"

	"github.com/amora/dating-service/internal/domain"
)

var blocksConfig = EntityConfig{
	TableName:          "blocks",
	Columns:            []string{"id", "blocker_id", "blocked_id", "created_at"},
	AutoManagedColumns: []string{"id", "created_at"},
	DefaultOrderBy:     "created_at",
}

// BlockRepository stores blocks between users.
type BlockRepository struct {
	*BaseRepository[domain.Block]
}

// NewBlockRepository creates a BlockRepository on db.
func NewBlockRepository(db DBTX, opts ...Option) *BlockRepository {
	return &BlockRepository{BaseRepository: NewBaseRepository[domain.Block](db, blocksConfig, opts...)}
}

// Block records that blockerID blocks blockedID. Blocking twice returns the
// existing row.
func (r *BlockRepository) Block(ctx context.Context, blockerID, blockedID int64) (*domain.Block, error) {
	if blockerID == blockedID {
		return nil, domain.NewValidationError("blocked_id", "a user cannot block themselves")
	}
	query := `INSERT INTO blocks (blocker_id, blocked_id) VALUES ($1, $2)
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING
		RETURNING *`
	block, err := r.QueryOne(ctx, "block", query, blockerID, blockedID)
	if err != nil || block != nil {
		return block, err
	}

	block, err = r.FindOneBy(ctx, Criteria{"blocker_id": blockerID, "blocked_id": blockedID})
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, fmt.Errorf("failed to block: block of %d by %d vanished after conflict", blockedID, blockerID)
	}
	return block, nil
}

// Unblock removes the block and reports whether one existed.
func (r *BlockRepository) Unblock(ctx context.Context, blockerID, blockedID int64) (bool, error) {
	affected, err := r.Exec(ctx, "unblock", "DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2", blockerID, blockedID)
	return affected > 0, err
}

// IsBlockedEitherWay reports whether a blocked b or b blocked a.
func (r *BlockRepository) IsBlockedEitherWay(ctx context.Context, a, b int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM blocks WHERE (blocker_id = $1 AND blocked_id = $2) OR (blocker_id = $2 AND blocked_id = $1))`
	var blocked bool
	if err := r.scalar(ctx, "is_blocked", query, []any{a, b}, &blocked); err != nil {
		return false, err
	}
	return blocked, nil
}

// ListBlocked returns the blocks issued by blockerID, newest first.
func (r *BlockRepository) ListBlocked(ctx context.Context, blockerID int64) ([]*domain.Block, error) {
	return r.FindBy(ctx, Criteria{"blocker_id": blockerID}, 0, 0)
}
