package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/amora/dating-service/internal/config"
	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/events"
	"github.com/amora/dating-service/internal/observability"
	"github.com/amora/dating-service/internal/pagination"
)

const messageReceived = "You have a new message"

// SendMessageCommand is a chat message to store.
type SendMessageCommand struct {
	RoomID   int64  `json:"room_id" validate:"gt=0"`
	SenderID int64  `json:"sender_id" validate:"gt=0"`
	Content  string `json:"content" validate:"required"`
}

// ChatService handles chat rooms and messages between matched users.
type ChatService struct {
	deps     Dependencies
	cfg      config.ChatConfig
	validate *Validator
	logger   zerolog.Logger
}

// NewChatService creates a chat service.
func NewChatService(deps Dependencies, cfg config.ChatConfig) *ChatService {
	return &ChatService{
		deps:     deps,
		cfg:      cfg,
		validate: NewValidator(),
		logger:   deps.Logger.With().Str("component", "chat_service").Logger(),
	}
}

// SendMessage stores a message from a room participant, bumps the room's
// last activity and notifies the other participant. Messages between users
// with a block between them are refused.
func (s *ChatService) SendMessage(ctx context.Context, cmd SendMessageCommand) (*domain.ChatMessage, error) {
	cmd.Content = strings.TrimSpace(cmd.Content)
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(cmd.Content); n > s.cfg.MaxMessageLength {
		return nil, domain.NewValidationError("content", fmt.Sprintf("must be at most %d characters, got %d", s.cfg.MaxMessageLength, n))
	}
	logger := observability.WithRoomContext(observability.LoggerFromContext(ctx, s.logger), cmd.RoomID, cmd.SenderID)

	var (
		msg          *domain.ChatMessage
		notification *domain.Notification
	)
	err := s.deps.Tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		repos := s.deps.Repos.WithDB(tx)

		room, err := repos.ChatRooms.FindByID(ctx, cmd.RoomID)
		if err != nil {
			return err
		}
		if room == nil {
			return domain.NewNotFoundError("chat room", domain.FormatID(cmd.RoomID))
		}
		if !room.HasParticipant(cmd.SenderID) {
			return fmt.Errorf("%w: user %d is not in chat room %d", domain.ErrForbidden, cmd.SenderID, cmd.RoomID)
		}
		recipient := room.UserOneID
		if recipient == cmd.SenderID {
			recipient = room.UserTwoID
		}

		blocked, err := repos.Blocks.IsBlockedEitherWay(ctx, cmd.SenderID, recipient)
		if err != nil {
			return err
		}
		if blocked {
			return fmt.Errorf("%w: users %d and %d have a block between them", domain.ErrConflict, cmd.SenderID, recipient)
		}

		if msg, err = repos.ChatMessages.Send(ctx, cmd.RoomID, cmd.SenderID, cmd.Content); err != nil {
			return err
		}
		if err := repos.ChatRooms.TouchLastMessage(ctx, cmd.RoomID, msg.CreatedAt); err != nil {
			return err
		}
		notification, err = repos.Notifications.Notify(ctx, recipient, actor(cmd.SenderID), domain.NotificationMessage, messageReceived)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.RecordMessage(utf8.RuneCountInString(msg.Content))
	evts := append([]events.Event{
		events.New(events.TypeMessageSent, notification.UserID, cmd.SenderID, map[string]any{
			"room_id":    cmd.RoomID,
			"message_id": msg.ID,
		}),
	}, notificationEvents(s.deps.Metrics, []*domain.Notification{notification})...)
	s.deps.publish(ctx, logger, evts...)

	logger.Debug().Int64("message_id", msg.ID).Msg("message sent")
	return msg, nil
}

// ListMessages pages through a room's messages, oldest first unless the
// request orders otherwise. Only participants may read a room.
func (s *ChatService) ListMessages(ctx context.Context, roomID, userID int64, req pagination.Request, baseURL string) (pagination.Response[*domain.ChatMessage], error) {
	if err := s.requireParticipant(ctx, roomID, userID); err != nil {
		return pagination.Response[*domain.ChatMessage]{}, err
	}
	return s.deps.Repos.ChatMessages.ListByRoomPaginated(ctx, roomID, req, baseURL)
}

// MarkRead marks every message userID received in the room as read and
// returns how many changed.
func (s *ChatService) MarkRead(ctx context.Context, roomID, userID int64) (int64, error) {
	if err := s.requireParticipant(ctx, roomID, userID); err != nil {
		return 0, err
	}
	return s.deps.Repos.ChatMessages.MarkRoomRead(ctx, roomID, userID)
}

// ListRooms returns userID's rooms, most recently active first.
func (s *ChatService) ListRooms(ctx context.Context, userID int64) ([]*domain.ChatRoomSummary, error) {
	return s.deps.Repos.ChatRooms.ListForUser(ctx, userID, s.cfg.PlaceholderPhotoURL)
}

// UnreadCount returns how many messages userID has not read across all rooms.
func (s *ChatService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.deps.Repos.ChatMessages.UnreadCount(ctx, userID)
}

func (s *ChatService) requireParticipant(ctx context.Context, roomID, userID int64) error {
	ok, err := s.deps.Repos.ChatRooms.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d is not in chat room %d", domain.ErrForbidden, userID, roomID)
	}
	return nil
}
