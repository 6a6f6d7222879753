package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/amora/dating-service/internal/database"
	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/events"
	"github.com/amora/dating-service/internal/observability"
)

// BlockResult describes what a block changed.
type BlockResult struct {
	Block        *domain.Block `json:"block"`
	LikesRemoved int64         `json:"likes_removed"`
	MatchRemoved bool          `json:"match_removed"`
}

// BlockService manages blocks. A block severs every like and match between
// the two users.
type BlockService struct {
	deps     Dependencies
	validate *Validator
	logger   zerolog.Logger
}

// NewBlockService creates a block service.
func NewBlockService(deps Dependencies) *BlockService {
	return &BlockService{
		deps:     deps,
		validate: NewValidator(),
		logger:   deps.Logger.With().Str("component", "block_service").Logger(),
	}
}

// Block records that cmd.UserID blocks cmd.TargetID and removes likes in both
// directions and any match, all in one transaction. Blocking twice keeps the
// original block.
func (s *BlockService) Block(ctx context.Context, cmd PairCommand) (*BlockResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}
	logger := observability.WithPairContext(observability.LoggerFromContext(ctx, s.logger), cmd.UserID, cmd.TargetID)

	var result BlockResult
	err := s.deps.Tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := database.LockXact(ctx, tx, pairLockKey(pairScope, cmd.UserID, cmd.TargetID)); err != nil {
			return err
		}
		repos := s.deps.Repos.WithDB(tx)

		block, err := repos.Blocks.Block(ctx, cmd.UserID, cmd.TargetID)
		if err != nil {
			return err
		}
		result.Block = block

		if result.LikesRemoved, err = repos.Likes.DeleteBetween(ctx, cmd.UserID, cmd.TargetID); err != nil {
			return err
		}
		if result.MatchRemoved, err = repos.Matches.DeleteForPair(ctx, cmd.UserID, cmd.TargetID); err != nil {
			return err
		}

		if s.deps.InlineFameRefresh && result.LikesRemoved > 0 {
			for _, id := range []int64{cmd.UserID, cmd.TargetID} {
				if err := repos.Users.RefreshFameRating(ctx, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.RecordBlock(result.MatchRemoved)
	logger.Info().
		Int64("likes_removed", result.LikesRemoved).
		Bool("match_removed", result.MatchRemoved).
		Msg("user blocked")

	s.deps.publish(ctx, logger, events.New(events.TypeBlockCreated, cmd.TargetID, cmd.UserID, map[string]any{
		"likes_removed": result.LikesRemoved,
		"match_removed": result.MatchRemoved,
	}))
	return &result, nil
}

// Unblock lifts cmd.UserID's block of cmd.TargetID. Removed likes and
// matches are not restored.
func (s *BlockService) Unblock(ctx context.Context, cmd PairCommand) (bool, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return false, err
	}
	return s.deps.Repos.Blocks.Unblock(ctx, cmd.UserID, cmd.TargetID)
}

// ListBlocked returns the blocks userID has placed.
func (s *BlockService) ListBlocked(ctx context.Context, userID int64) ([]*domain.Block, error) {
	return s.deps.Repos.Blocks.ListBlocked(ctx, userID)
}
