package repository

import (
	"context"
	"errors"
	"marketplace-service/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict means the row exists but its status no longer matches
	// the expected one, i.e. a concurrent transition won.
	ErrStatusConflict = errors.New("refund status changed concurrently")
	// ErrOpenRefundExists means the order already has a pending or approved
	// refund.
	ErrOpenRefundExists = errors.New("order already has an open refund")
)

// NotificationRepository defines data-access operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	// FindMatching returns the earliest notification for the pair, or
	// ErrNotFound.
	FindMatching(ctx context.Context, originalID string, originType models.OriginType, unreadOnly bool) (*models.Notification, error)
	MarkRead(ctx context.Context, id string) (*models.Notification, error)
	MarkWatching(ctx context.Context, id string) (*models.Notification, error)
	Update(ctx context.Context, id string, patch models.NotificationPatch) (*models.Notification, error)
	Delete(ctx context.Context, id string) error
	// FindUnread lists unread notifications newest first. An empty originType
	// means every type.
	FindUnread(ctx context.Context, originType models.OriginType) ([]models.Notification, error)
	CountUnread(ctx context.Context, originType models.OriginType) (int64, error)
	FindForUser(ctx context.Context, userID string) ([]models.Notification, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Notification, int64, error)
}

// RefundRepository defines data-access operations for refund requests.
type RefundRepository interface {
	// Create returns ErrOpenRefundExists when the order already has a
	// pending or approved refund.
	Create(ctx context.Context, r *models.Refund) error
	FindByID(ctx context.Context, id string) (*models.Refund, error)
	FindAll(ctx context.Context, filter models.RefundFilter) ([]models.Refund, int64, error)
	// Transition applies t only if the refund's status is still from, in one
	// conditional write. It returns ErrStatusConflict when the status moved.
	Transition(ctx context.Context, id string, from models.RefundStatus, t models.RefundTransition) (*models.Refund, error)
	// DeletePending removes a refund owned by userID while it is pending.
	DeletePending(ctx context.Context, id, userID string) error
}

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
