package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/amora/dating-service/internal/events"
)

// FameRefresher is the subset of the user repository FameHandler needs.
type FameRefresher interface {
	RefreshFameRating(ctx context.Context, userID int64) error
}

// FameHandler recomputes fame ratings from like and block events. It runs in
// the worker when the server does not refresh ratings inline.
type FameHandler struct {
	users  FameRefresher
	logger zerolog.Logger
}

// NewFameHandler creates a fame handler.
func NewFameHandler(users FameRefresher, logger zerolog.Logger) *FameHandler {
	return &FameHandler{
		users:  users,
		logger: logger.With().Str("component", "fame_handler").Logger(),
	}
}

// Handle implements events.Handler. Unrelated event types are ignored.
func (h *FameHandler) Handle(ctx context.Context, event events.Event) error {
	var targets []int64
	switch event.Type {
	case events.TypeLikeCreated, events.TypeLikeRemoved:
		targets = []int64{event.UserID}
	case events.TypeBlockCreated:
		// A block deletes likes in both directions.
		targets = []int64{event.UserID, event.ActorID}
	default:
		return nil
	}

	for _, id := range targets {
		if err := h.users.RefreshFameRating(ctx, id); err != nil {
			return err
		}
	}
	h.logger.Debug().Str("event_type", event.Type).Ints64("user_ids", targets).Msg("fame ratings refreshed")
	return nil
}

var _ events.Handler = (*FameHandler)(nil)
