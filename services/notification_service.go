package services

import (
	"context"
	"errors"
	"strings"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"
	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/repository"

	"go.uber.org/zap"
)

// UnreadCache holds the last computed unread summary. Implementations must
// make a summary stored under an older version unreachable once Invalidate
// returns.
type UnreadCache interface {
	Version(ctx context.Context) (int64, error)
	Get(ctx context.Context, version int64) (*models.UnreadSummary, bool)
	Set(ctx context.Context, version int64, summary *models.UnreadSummary)
	Invalidate(ctx context.Context) error
}

type NotificationService struct {
	repo    repository.NotificationRepository
	cache   UnreadCache
	metrics MetricsRecorder
	logger  *zap.Logger
}

// NewNotificationService wires the store. cache and metrics may be nil.
func NewNotificationService(repo repository.NotificationRepository, cache UnreadCache, metrics MetricsRecorder, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

func (s *NotificationService) Create(ctx context.Context, req models.CreateNotificationRequest) (*models.Notification, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperrors.Validation("message is required")
	}
	if strings.TrimSpace(req.OriginalID) == "" {
		return nil, apperrors.Validation("originalId is required")
	}
	if !req.OriginType.Valid() {
		return nil, apperrors.Validation("unknown originType %q", req.OriginType)
	}

	n := &models.Notification{
		Message:    req.Message,
		OriginalID: req.OriginalID,
		OriginType: req.OriginType,
	}
	if req.UserID != nil && *req.UserID != "" {
		uid := *req.UserID
		n.UserID = &uid
	}

	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("Failed to create notification", zap.Error(err), zap.String("original_id", req.OriginalID))
		return nil, apperrors.Storage("failed to create notification", err)
	}
	s.invalidate(ctx, n.ID)

	recordAsync(s.metrics, s.logger, awspkg.MetricNotificationsCreated, map[string]string{"OriginType": string(n.OriginType)})
	s.logger.Info("Notification created",
		zap.String("notification_id", n.ID),
		zap.String("origin_type", string(n.OriginType)),
		zap.String("original_id", n.OriginalID),
	)
	return n, nil
}

func (s *NotificationService) Get(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "notification", id)
	}
	return n, nil
}

// FindMatching returns the earliest notification raised for the entity, or
// nil when there is none.
func (s *NotificationService) FindMatching(ctx context.Context, originalID string, originType models.OriginType) (*models.Notification, error) {
	return s.findMatching(ctx, originalID, originType, false)
}

func (s *NotificationService) findMatching(ctx context.Context, originalID string, originType models.OriginType, unreadOnly bool) (*models.Notification, error) {
	if originalID == "" {
		return nil, apperrors.Validation("originalId is required")
	}
	if !originType.Valid() {
		return nil, apperrors.Validation("unknown originType %q", originType)
	}

	n, err := s.repo.FindMatching(ctx, originalID, originType, unreadOnly)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Storage("failed to look up notification", err)
	}
	return n, nil
}

// MarkRead is idempotent.
func (s *NotificationService) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.repo.MarkRead(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "notification", id)
	}
	s.invalidate(ctx, id)
	return n, nil
}

// MarkWatching is idempotent and leaves isRead alone.
func (s *NotificationService) MarkWatching(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.repo.MarkWatching(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "notification", id)
	}
	s.invalidate(ctx, id)
	return n, nil
}

func (s *NotificationService) Update(ctx context.Context, id string, patch models.NotificationPatch) (*models.Notification, error) {
	if patch.OriginType != nil && !patch.OriginType.Valid() {
		return nil, apperrors.Validation("unknown originType %q", *patch.OriginType)
	}
	if patch.OriginalID != nil && strings.TrimSpace(*patch.OriginalID) == "" {
		return nil, apperrors.Validation("originalId cannot be empty")
	}
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	n, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, translateRepoError(err, "notification", id)
	}
	s.invalidate(ctx, id)
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return translateRepoError(err, "notification", id)
	}
	s.invalidate(ctx, id)
	return nil
}

// ListUnread returns every unread notification, newest first.
func (s *NotificationService) ListUnread(ctx context.Context) ([]models.Notification, error) {
	list, err := s.repo.FindUnread(ctx, "")
	if err != nil {
		return nil, apperrors.Storage("failed to load unread notifications", err)
	}
	return list, nil
}

// ListForUser returns the user's notification history: read, not snoozed,
// and never comment notifications.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	if userID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	list, err := s.repo.FindForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Storage("failed to load notifications", err)
	}
	return list, nil
}

func (s *NotificationService) List(ctx context.Context, page, limit int) ([]models.Notification, int64, error) {
	list, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		return nil, 0, apperrors.Storage("failed to list notifications", err)
	}
	return list, total, nil
}

func (s *NotificationService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Error("CRITICAL: Failed to invalidate unread cache", zap.Error(err), zap.String("notification_id", id))
	}
}
