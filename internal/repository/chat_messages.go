package repository

import (
	"context"
	"net/url"

	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/pagination"
)

var chatMessagesConfig = EntityConfig{
	TableName:          "chat_messages",
	Columns:            []string{"id", "room_id", "sender_id", "content", "is_read", "created_at"},
	AutoManagedColumns: []string{"id", "created_at", "is_read"},
	DefaultTextFields:  []string{"content"},
	DefaultOrderBy:     "created_at",
}

// ChatMessageRepository stores messages exchanged in chat rooms.
type ChatMessageRepository struct {
	*BaseRepository[domain.ChatMessage]
}

// NewChatMessageRepository creates a ChatMessageRepository on db.
func NewChatMessageRepository(db DBTX, opts ...Option) *ChatMessageRepository {
	return &ChatMessageRepository{BaseRepository: NewBaseRepository[domain.ChatMessage](db, chatMessagesConfig, opts...)}
}

// Send stores a message from senderID in roomID.
func (r *ChatMessageRepository) Send(ctx context.Context, roomID, senderID int64, content string) (*domain.ChatMessage, error) {
	return r.Create(ctx, Record{"room_id": roomID, "sender_id": senderID, "content": content})
}

// ListByRoomPaginated pages through a room's messages, newest first unless
// the request asks otherwise.
func (r *ChatMessageRepository) ListByRoomPaginated(ctx context.Context, roomID int64, req pagination.Request, baseURL string) (pagination.Response[*domain.ChatMessage], error) {
	return r.SearchPaginated(ctx, Criteria{"room_id": roomID}, req, baseURL, SearchOptions{LinkQuery: url.Values{}})
}

// MarkRoomRead marks every message readerID received in roomID as read and
// returns how many changed.
func (r *ChatMessageRepository) MarkRoomRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	query := `UPDATE chat_messages SET is_read = TRUE WHERE room_id = $1 AND sender_id <> $2 AND NOT is_read`
	return r.Exec(ctx, "mark_room_read", query, roomID, readerID)
}

// UnreadCount returns the number of unread messages userID received across
// all rooms.
func (r *ChatMessageRepository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM chat_messages m
		INNER JOIN chat_rooms r ON r.id = m.room_id
		WHERE (r.user_one_id = $1 OR r.user_two_id = $1) AND m.sender_id <> $1 AND NOT m.is_read`
	var total int64
	if err := r.scalar(ctx, "unread_count", query, []any{userID}, &total); err != nil {
		return 0, err
	}
	return total, nil
}
