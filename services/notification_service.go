package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snapybara-server/models"
	"snapybara-server/utils/errors"
)

type NotificationService struct {
	notifications NotificationRepository
	logger        *zap.Logger
}

func NewNotificationService(notifications NotificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{notifications: notifications, logger: logger.Named("notifications")}
}

// Notify stores n for its recipient as unread.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) error {
	if n.RecipientID == "" {
		return errors.InvalidInput("notification without recipient")
	}
	n.ID = uuid.NewString()
	n.Read = false
	n.ReadAt = nil
	n.CreatedAt = time.Now().UTC()
	return s.notifications.Insert(ctx, &n)
}

func (s *NotificationService) List(ctx context.Context, recipientID string, unreadOnly bool, page, limit int) (*Page[models.Notification], error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.notifications.List(ctx, recipientID, unreadOnly, page, limit)
	if err != nil {
		return nil, err
	}
	return &Page[models.Notification]{Data: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.InvalidInput("invalid notification id %q", id)
	}
	return s.notifications.MarkRead(ctx, recipientID, id, time.Now().UTC())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return s.notifications.MarkAllRead(ctx, recipientID, time.Now().UTC())
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	return s.notifications.UnreadCount(ctx, recipientID)
}

// PurgeOlderThan deletes notifications created more than age ago.
func (s *NotificationService) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, errors.InvalidInput("retention must be positive")
	}
	n, err := s.notifications.DeleteOlderThan(ctx, time.Now().UTC().Add(-age))
	if err != nil {
		return 0, err
	}
	s.logger.Info("notifications purged", zap.Int64("deleted", n), zap.Duration("older_than", age))
	return n, nil
}
