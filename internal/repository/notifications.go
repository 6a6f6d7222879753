package repository

import (
	"context"
	"net/url"

	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/pagination"
)

var notificationsConfig = EntityConfig{
	TableName:          "notifications",
	Columns:            []string{"id", "user_id", "actor_id", "type", "message", "is_read", "created_at"},
	AutoManagedColumns: []string{"id", "created_at", "is_read"},
	DefaultOrderBy:     "created_at",
}

// NotificationRepository stores in-app notifications.
type NotificationRepository struct {
	*BaseRepository[domain.Notification]
}

// NewNotificationRepository creates a NotificationRepository on db.
func NewNotificationRepository(db DBTX, opts ...Option) *NotificationRepository {
	return &NotificationRepository{BaseRepository: NewBaseRepository[domain.Notification](db, notificationsConfig, opts...)}
}

// Notify stores a notification for userID. actorID may be nil for system
// notices.
func (r *NotificationRepository) Notify(ctx context.Context, userID int64, actorID *int64, kind, message string) (*domain.Notification, error) {
	return r.Create(ctx, Record{
		"user_id":  userID,
		"actor_id": actorID,
		"type":     kind,
		"message":  message,
	})
}

// ListForUserPaginated pages through userID's notifications, newest first.
// With unreadOnly set, read notifications are skipped and the links carry
// unread=true.
func (r *NotificationRepository) ListForUserPaginated(ctx context.Context, userID int64, unreadOnly bool, req pagination.Request, baseURL string) (pagination.Response[*domain.Notification], error) {
	criteria := Criteria{"user_id": userID}
	links := url.Values{}
	if unreadOnly {
		criteria["is_read"] = false
		links.Set("unread", "true")
	}
	return r.SearchPaginated(ctx, criteria, req, baseURL, SearchOptions{LinkQuery: links})
}

// MarkRead marks one of userID's notifications as read and reports whether
// it exists.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID int64) (bool, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	affected, err := r.Exec(ctx, "mark_read", query, notificationID, userID)
	return affected > 0, err
}

// MarkAllRead marks every unread notification of userID as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`
	return r.Exec(ctx, "mark_all_read", query, userID)
}

// UnreadCount returns the number of unread notifications of userID.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return r.Count(ctx, Criteria{"user_id": userID, "is_read": false})
}
