package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/amora/dating-service/internal/database"
	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/events"
	"github.com/amora/dating-service/internal/observability"
	"github.com/amora/dating-service/internal/pagination"
)

// pairScope is the advisory lock scope shared by every write about two users.
const pairScope = "pair"

// Notification texts.
const (
	messageLiked   = "Someone liked your profile"
	messageMatched = "You have a new match"
	messageUnliked = "A match unliked you"
)

// LikeResult describes what a like changed.
type LikeResult struct {
	Like *domain.Like `json:"like"`
	// Created is false when the like already existed; nothing else changed then.
	Created bool `json:"created"`
	// Match and Room are set when the like was reciprocated.
	Match *domain.Match    `json:"match,omitempty"`
	Room  *domain.ChatRoom `json:"room,omitempty"`
}

// UnlikeResult describes what an unlike changed.
type UnlikeResult struct {
	Removed      bool `json:"removed"`
	MatchRemoved bool `json:"match_removed"`
}

// LikeService records likes and turns mutual likes into matches.
type LikeService struct {
	deps     Dependencies
	validate *Validator
	logger   zerolog.Logger
}

// NewLikeService creates a like service.
func NewLikeService(deps Dependencies) *LikeService {
	return &LikeService{
		deps:     deps,
		validate: NewValidator(),
		logger:   deps.Logger.With().Str("component", "like_service").Logger(),
	}
}

// Like records that cmd.UserID likes cmd.TargetID. When the target already
// likes the user back, the match, its chat room and both match notifications
// are created in the same transaction as the like. Liking twice is a no-op.
func (s *LikeService) Like(ctx context.Context, cmd PairCommand) (*LikeResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}
	logger := observability.WithPairContext(observability.LoggerFromContext(ctx, s.logger), cmd.UserID, cmd.TargetID)

	var (
		result        LikeResult
		notifications []*domain.Notification
	)
	err := s.deps.Tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := database.LockXact(ctx, tx, pairLockKey(pairScope, cmd.UserID, cmd.TargetID)); err != nil {
			return err
		}
		repos := s.deps.Repos.WithDB(tx)

		target, err := repos.Users.FindByID(ctx, cmd.TargetID)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.NewNotFoundError("user", domain.FormatID(cmd.TargetID))
		}

		blocked, err := repos.Blocks.IsBlockedEitherWay(ctx, cmd.UserID, cmd.TargetID)
		if err != nil {
			return err
		}
		if blocked {
			return fmt.Errorf("%w: users %d and %d have a block between them", domain.ErrConflict, cmd.UserID, cmd.TargetID)
		}

		like, created, err := repos.Likes.Like(ctx, cmd.UserID, cmd.TargetID)
		if err != nil {
			return err
		}
		result = LikeResult{Like: like, Created: created}
		if !created {
			return nil
		}

		if s.deps.InlineFameRefresh {
			if err := repos.Users.RefreshFameRating(ctx, cmd.TargetID); err != nil {
				return err
			}
		}

		reciprocal, err := repos.Likes.HasLiked(ctx, cmd.TargetID, cmd.UserID)
		if err != nil {
			return err
		}
		if !reciprocal {
			n, err := repos.Notifications.Notify(ctx, cmd.TargetID, actor(cmd.UserID), domain.NotificationLike, messageLiked)
			if err != nil {
				return err
			}
			notifications = append(notifications, n)
			return nil
		}

		match, _, err := repos.Matches.CreateForPair(ctx, cmd.UserID, cmd.TargetID)
		if err != nil {
			return err
		}
		room, err := repos.ChatRooms.FindOrCreateForPair(ctx, cmd.UserID, cmd.TargetID)
		if err != nil {
			return err
		}
		result.Match, result.Room = match, room

		for _, pair := range [][2]int64{{cmd.TargetID, cmd.UserID}, {cmd.UserID, cmd.TargetID}} {
			n, err := repos.Notifications.Notify(ctx, pair[0], actor(pair[1]), domain.NotificationMatch, messageMatched)
			if err != nil {
				return err
			}
			notifications = append(notifications, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Created {
		logger.Debug().Msg("like already recorded")
		return &result, nil
	}

	s.deps.Metrics.RecordLike()
	evts := []events.Event{
		events.New(events.TypeLikeCreated, cmd.TargetID, cmd.UserID, map[string]any{"like_id": result.Like.ID}),
	}
	if result.Match != nil {
		s.deps.Metrics.RecordMatch()
		payload := map[string]any{"match_id": result.Match.ID, "room_id": result.Room.ID}
		evts = append(evts,
			events.New(events.TypeMatchCreated, cmd.TargetID, cmd.UserID, payload),
			events.New(events.TypeMatchCreated, cmd.UserID, cmd.TargetID, payload),
		)
		logger.Info().Int64("match_id", result.Match.ID).Msg("match created")
	}
	evts = append(evts, notificationEvents(s.deps.Metrics, notifications)...)
	s.deps.publish(ctx, logger, evts...)

	return &result, nil
}

// Unlike withdraws cmd.UserID's like of cmd.TargetID. A match between the two
// is dissolved and the other side is notified.
func (s *LikeService) Unlike(ctx context.Context, cmd PairCommand) (*UnlikeResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}
	logger := observability.WithPairContext(observability.LoggerFromContext(ctx, s.logger), cmd.UserID, cmd.TargetID)

	var (
		result        UnlikeResult
		notifications []*domain.Notification
	)
	err := s.deps.Tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := database.LockXact(ctx, tx, pairLockKey(pairScope, cmd.UserID, cmd.TargetID)); err != nil {
			return err
		}
		repos := s.deps.Repos.WithDB(tx)

		removed, err := repos.Likes.Unlike(ctx, cmd.UserID, cmd.TargetID)
		if err != nil {
			return err
		}
		result.Removed = removed
		if !removed {
			return nil
		}

		if s.deps.InlineFameRefresh {
			if err := repos.Users.RefreshFameRating(ctx, cmd.TargetID); err != nil {
				return err
			}
		}

		matchRemoved, err := repos.Matches.DeleteForPair(ctx, cmd.UserID, cmd.TargetID)
		if err != nil {
			return err
		}
		result.MatchRemoved = matchRemoved
		if !matchRemoved {
			return nil
		}

		n, err := repos.Notifications.Notify(ctx, cmd.TargetID, actor(cmd.UserID), domain.NotificationUnlike, messageUnliked)
		if err != nil {
			return err
		}
		notifications = append(notifications, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.Removed {
		return &result, nil
	}

	s.deps.Metrics.RecordUnlike(result.MatchRemoved)
	evts := []events.Event{events.New(events.TypeLikeRemoved, cmd.TargetID, cmd.UserID, nil)}
	if result.MatchRemoved {
		evts = append(evts,
			events.New(events.TypeMatchRemoved, cmd.TargetID, cmd.UserID, nil),
			events.New(events.TypeMatchRemoved, cmd.UserID, cmd.TargetID, nil),
		)
		logger.Info().Msg("match dissolved by unlike")
	}
	evts = append(evts, notificationEvents(s.deps.Metrics, notifications)...)
	s.deps.publish(ctx, logger, evts...)

	return &result, nil
}

// ListReceived pages through the likes userID has received.
func (s *LikeService) ListReceived(ctx context.Context, userID int64, req pagination.Request, baseURL string) (pagination.Response[*domain.Like], error) {
	return s.deps.Repos.Likes.ReceivedPaginated(ctx, userID, req, baseURL)
}

// ListMatches pages through userID's matches.
func (s *LikeService) ListMatches(ctx context.Context, userID int64, req pagination.Request, baseURL string) (pagination.Response[*domain.Match], error) {
	return s.deps.Repos.Matches.ListForUser(ctx, userID, req, baseURL)
}

// notificationEvents records and converts committed notifications.
func notificationEvents(metrics *observability.Metrics, notifications []*domain.Notification) []events.Event {
	out := make([]events.Event, 0, len(notifications))
	for _, n := range notifications {
		metrics.RecordNotification(n.Type)
		var actorID int64
		if n.ActorID != nil {
			actorID = *n.ActorID
		}
		out = append(out, events.New(events.TypeNotificationNew, n.UserID, actorID, map[string]any{
			"notification_id": n.ID,
			"kind":            n.Type,
		}))
	}
	return out
}

