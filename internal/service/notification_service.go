package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"chirp/internal/middleware"
	"chirp/internal/models"
	"chirp/internal/notifications"
	"chirp/internal/observability"
	"chirp/internal/repository"
)

// NotificationService provides notification business logic and realtime fan-out.
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	notifier         *notifications.Notifier
}

// NewNotificationService returns a new NotificationService. notifier may be
// nil when Redis is unavailable; notifications are then stored but not pushed.
func NewNotificationService(notificationRepo repository.NotificationRepository, notifier *notifications.Notifier) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		notifier:         notifier,
	}
}

// Emit stores the notification and pushes it to the recipient's realtime
// channel. Self-notifications are silently skipped. Failures are logged, not
// propagated: the social mutation that triggered the notification has already
// committed and must not be rolled back by fan-out trouble.
func (s *NotificationService) Emit(ctx context.Context, notification *models.Notification) {
	if notification.RecipientID == notification.SenderID {
		return
	}
	defer observability.TrackFanout(string(notification.Kind))()

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to store notification",
			slog.String("kind", string(notification.Kind)),
			slog.Any("recipient_id", notification.RecipientID),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.notifier == nil {
		return
	}

	event := map[string]interface{}{
		"type": "notification",
		"payload": map[string]interface{}{
			"id":           notification.ID,
			"kind":         notification.Kind,
			"sender_id":    notification.SenderID,
			"tweet_id":     notification.TweetID,
			"comment_id":   notification.CommentID,
			"created_at":   notification.CreatedAt,
			"read":         notification.Read,
			"recipient_id": notification.RecipientID,
		},
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal notification event",
			slog.String("error", err.Error()))
		return
	}
	if err := s.notifier.PublishUser(ctx, notification.RecipientID, string(eventJSON)); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to publish notification event",
			slog.Any("recipient_id", notification.RecipientID),
			slog.String("error", err.Error()),
		)
	}
}

// List returns the user's notifications, newest first, capped at 50 per page.
func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]*models.Notification, error) {
	return s.notificationRepo.GetByRecipient(ctx, userID, limit, offset)
}

// UnreadCount returns how many of the user's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}

// MarkRead marks a single notification as read and returns the updated
// record. Marking an already-read notification succeeds. Only the recipient
// may mark it.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) (*models.Notification, error) {
	notification, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if notification.RecipientID != userID {
		return nil, models.NewForbiddenError("You can only mark your own notifications as read")
	}
	if err := s.notificationRepo.MarkRead(ctx, notificationID); err != nil {
		return nil, err
	}
	notification.Read = true
	return notification, nil
}

// MarkAllRead marks every unread notification for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}

// Delete removes a notification. Only the recipient may delete it.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID uint) error {
	notification, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.RecipientID != userID {
		return models.NewForbiddenError("You can only delete your own notifications")
	}
	return s.notificationRepo.Delete(ctx, notificationID)
}
