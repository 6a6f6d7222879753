package service

import (
	"context"

	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/pagination"
	"github.com/amora/dating-service/internal/repository"
)

// NotificationService reads and acknowledges in-app notifications.
type NotificationService struct {
	notifications *repository.NotificationRepository
}

// NewNotificationService creates a notification service.
func NewNotificationService(deps Dependencies) *NotificationService {
	return &NotificationService{notifications: deps.Repos.Notifications}
}

// List pages through userID's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool, req pagination.Request, baseURL string) (pagination.Response[*domain.Notification], error) {
	return s.notifications.ListForUserPaginated(ctx, userID, unreadOnly, req, baseURL)
}

// MarkRead acknowledges one notification. Notifications of other users are
// reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	ok, err := s.notifications.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewNotFoundError("notification", domain.FormatID(notificationID))
	}
	return nil
}

// MarkAllRead acknowledges every notification of userID.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

// UnreadCount returns how many notifications userID has not read.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.notifications.UnreadCount(ctx, userID)
}
