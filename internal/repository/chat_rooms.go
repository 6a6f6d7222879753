package repository

import (
	"context"
	"time"

	"github.com/amora/dating-service/internal/domain"
)

var chatRoomsConfig = EntityConfig{
	TableName:          "chat_rooms",
	Columns:            []string{"id", "user_one_id", "user_two_id", "last_message_at", "created_at", "updated_at"},
	AutoManagedColumns: []string{"id", "created_at", "updated_at", "last_message_at"},
	DefaultOrderBy:     "updated_at",
}

// ChatRoomRepository stores conversations. Pairs are stored low id first.
type ChatRoomRepository struct {
	*BaseRepository[domain.ChatRoom]
}

// NewChatRoomRepository creates a ChatRoomRepository on db.
func NewChatRoomRepository(db DBTX, opts ...Option) *ChatRoomRepository {
	return &ChatRoomRepository{BaseRepository: NewBaseRepository[domain.ChatRoom](db, chatRoomsConfig, opts...)}
}

// FindOrCreateForPair returns the room of a and b, creating it when missing.
func (r *ChatRoomRepository) FindOrCreateForPair(ctx context.Context, a, b int64) (*domain.ChatRoom, error) {
	if a == b {
		return nil, domain.NewValidationError("user_id", "a chat room needs two different users")
	}
	one, two := domain.OrderedPair(a, b)
	query := `INSERT INTO chat_rooms (user_one_id, user_two_id) VALUES ($1, $2)
		ON CONFLICT (user_one_id, user_two_id) DO UPDATE SET user_one_id = chat_rooms.user_one_id
		RETURNING *`
	return r.QueryOne(ctx, "find_or_create_for_pair", query, one, two)
}

// FindForPair returns the room of a and b, or nil.
func (r *ChatRoomRepository) FindForPair(ctx context.Context, a, b int64) (*domain.ChatRoom, error) {
	one, two := domain.OrderedPair(a, b)
	return r.FindOneBy(ctx, Criteria{"user_one_id": one, "user_two_id": two})
}

// IsParticipant reports whether userID is a member of roomID. A missing room
// returns a NotFoundError.
func (r *ChatRoomRepository) IsParticipant(ctx context.Context, roomID, userID int64) (bool, error) {
	room, err := r.FindByID(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room == nil {
		return false, domain.NewNotFoundError("chat room", domain.FormatID(roomID))
	}
	return room.HasParticipant(userID), nil
}

// TouchLastMessage records that a message was sent in the room at at.
func (r *ChatRoomRepository) TouchLastMessage(ctx context.Context, roomID int64, at time.Time) error {
	query := `UPDATE chat_rooms SET last_message_at = $2, updated_at = NOW() WHERE id = $1`
	affected, err := r.Exec(ctx, "touch_last_message", query, roomID, at)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NewNotFoundError("chat room", domain.FormatID(roomID))
	}
	return nil
}

const listRoomsQuery = `SELECT r.id, r.created_at, r.last_message_at,
		other.id AS other_user_id,
		other.username AS other_username,
		other.first_name AS other_first_name,
		other.is_online AS other_is_online,
		COALESCE(photo.url, $2) AS other_photo_url,
		last_msg.content AS last_message,
		(SELECT COUNT(*) FROM chat_messages m
			WHERE m.room_id = r.id AND m.sender_id <> $1 AND NOT m.is_read) AS unread_count
	FROM chat_rooms r
	INNER JOIN users other
		ON other.id = CASE WHEN r.user_one_id = $1 THEN r.user_two_id ELSE r.user_one_id END
	LEFT JOIN LATERAL (
		SELECT p.url FROM photos p
		WHERE p.user_id = other.id AND p.is_primary
		LIMIT 1
	) photo ON TRUE
	LEFT JOIN LATERAL (
		SELECT m.content FROM chat_messages m
		WHERE m.room_id = r.id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT 1
	) last_msg ON TRUE
	WHERE (r.user_one_id = $1 OR r.user_two_id = $1)
		AND NOT EXISTS (
			SELECT 1 FROM blocks b
			WHERE (b.blocker_id = r.user_one_id AND b.blocked_id = r.user_two_id)
				OR (b.blocker_id = r.user_two_id AND b.blocked_id = r.user_one_id)
		)
	ORDER BY COALESCE(r.last_message_at, r.created_at) DESC, r.id DESC`

// ListForUser returns userID's rooms, most recently active first, each with
// the other participant's primary photo or placeholderURL when they have
// none. Rooms between blocked users are hidden.
func (r *ChatRoomRepository) ListForUser(ctx context.Context, userID int64, placeholderURL string) ([]*domain.ChatRoomSummary, error) {
	return queryMany[domain.ChatRoomSummary](ctx, r.BaseRepository, "list_for_user", listRoomsQuery, userID, placeholderURL)
}
