package services

import (
	"context"
	"errors"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"

	"go.uber.org/zap"
)

// ReadTracker records that an admin has seen or snoozed a notification.
type ReadTracker struct {
	notifications *NotificationService
	logger        *zap.Logger
}

func NewReadTracker(notifications *NotificationService, logger *zap.Logger) *ReadTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadTracker{notifications: notifications, logger: logger}
}

func (t *ReadTracker) MarkAsRead(ctx context.Context, id string) (*models.Notification, error) {
	return t.notifications.MarkRead(ctx, id)
}

func (t *ReadTracker) MarkAsWatching(ctx context.Context, id string) (*models.Notification, error) {
	return t.notifications.MarkWatching(ctx, id)
}

// MarkEntityViewed marks the first unread notification raised for the entity
// as read. No match means the entity was never notified on or was already
// seen, and is not an error. Two concurrent viewers may both mark the same
// notification, which is harmless.
func (t *ReadTracker) MarkEntityViewed(ctx context.Context, originalID string, originType models.OriginType) error {
	n, err := t.notifications.findMatching(ctx, originalID, originType, true)
	if err != nil {
		return err
	}
	if n == nil {
		t.logger.Debug("No unread notification for viewed entity",
			zap.String("original_id", originalID),
			zap.String("origin_type", string(originType)),
		)
		return nil
	}

	if _, err := t.notifications.MarkRead(ctx, n.ID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}
