package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/events"
	"marketplace-service/models"
	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RefundListResponse struct {
	Refunds []models.Refund `json:"refunds"`
	Meta    MetaData        `json:"meta"`
}

type MetaData struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

func newMeta(page, limit int, total int64) MetaData {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	pages := (total + int64(limit) - 1) / int64(limit)
	return MetaData{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasMore:    int64(page) < pages,
	}
}

// RefundService drives the refund lifecycle:
//
//	pending -> approved -> completed
//	pending -> rejected
//
// Every transition is a conditional write on the expected current status, so
// of two concurrent decisions on one refund exactly one succeeds.
type RefundService struct {
	repo          repository.RefundRepository
	notifications *NotificationService
	publisher     events.Publisher
	metrics       MetricsRecorder
	logger        *zap.Logger
	now           func() time.Time
}

func NewRefundService(repo repository.RefundRepository, notifications *NotificationService, publisher events.Publisher, metrics MetricsRecorder, logger *zap.Logger) *RefundService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefundService{
		repo:          repo,
		notifications: notifications,
		publisher:     publisher,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// Submit files a pending refund and raises a refund notification for the
// admin dashboard keyed on the order. An order has at most one open
// (pending or approved) refund, so the order's unread refund notification
// always belongs to that refund.
func (s *RefundService) Submit(ctx context.Context, userID string, req models.SubmitRefundRequest) (*models.Refund, error) {
	if userID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, apperrors.Validation("orderId is required")
	}
	if req.Amount <= 0 {
		return nil, apperrors.Validation("amount must be positive")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, apperrors.Validation("description is required")
	}
	if utf8.RuneCountInString(description) > models.MaxRefundDescriptionLength {
		return nil, apperrors.Validation("description must be at most %d characters", models.MaxRefundDescriptionLength)
	}

	refund := &models.Refund{
		UserID:      userID,
		OrderID:     orderID,
		Amount:      req.Amount,
		Status:      models.RefundPending,
		Description: description,
		Images:      cleanList(req.Images),
	}
	if err := s.repo.Create(ctx, refund); err != nil {
		if errors.Is(err, repository.ErrOpenRefundExists) {
			return nil, apperrors.InvalidTransition("order %s already has an open refund", orderID)
		}
		s.logger.Error("Failed to create refund", zap.Error(err), zap.String("order_id", orderID))
		return nil, apperrors.Storage("failed to create refund", err)
	}

	if err := s.notifySubmitted(ctx, refund); err != nil {
		s.notificationSyncFailed(refund, err)
	}

	recordAsync(s.metrics, s.logger, awspkg.MetricRefundsSubmitted, nil)
	s.publish(ctx, models.EventRefundSubmitted, refund)
	s.logger.Info("Refund submitted",
		zap.String("refund_id", refund.ID),
		zap.String("order_id", orderID),
		zap.String("user_id", userID),
		zap.Int64("amount", refund.Amount),
	)
	return refund, nil
}

func (s *RefundService) Get(ctx context.Context, id string) (*models.Refund, error) {
	refund, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "refund", id)
	}
	return refund, nil
}

func (s *RefundService) ListMine(ctx context.Context, userID string, page, limit int) (*RefundListResponse, error) {
	if userID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	return s.List(ctx, models.RefundFilter{UserID: userID, Page: page, Limit: limit})
}

func (s *RefundService) List(ctx context.Context, filter models.RefundFilter) (*RefundListResponse, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Validation("unknown status %q", filter.Status)
	}
	refunds, total, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, apperrors.Storage("failed to list refunds", err)
	}
	return &RefundListResponse{Refunds: refunds, Meta: newMeta(filter.Page, filter.Limit, total)}, nil
}

func (s *RefundService) Approve(ctx context.Context, id, adminID string, decision models.RefundDecision) (*models.Refund, error) {
	return s.decide(ctx, id, adminID, models.RefundApproved, decision)
}

// Reject requires a reason for the customer in AdminNotes.
func (s *RefundService) Reject(ctx context.Context, id, adminID string, decision models.RefundDecision) (*models.Refund, error) {
	if strings.TrimSpace(decision.AdminNotes) == "" {
		return nil, apperrors.Validation("adminNotes is required to reject a refund")
	}
	return s.decide(ctx, id, adminID, models.RefundRejected, decision)
}

func (s *RefundService) decide(ctx context.Context, id, adminID string, to models.RefundStatus, decision models.RefundDecision) (*models.Refund, error) {
	if adminID == "" {
		return nil, apperrors.Validation("admin id is required")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, apperrors.InvalidTransition("refund %s is %s and cannot be %s", id, current.Status, to)
	}

	now := s.now().UTC()
	processedBy := adminID
	t := models.RefundTransition{
		To:            to,
		ProcessedAt:   &now,
		ProcessedBy:   &processedBy,
		Attachments:   cleanList(decision.Attachments),
		ImagesByAdmin: cleanList(decision.ImagesByAdmin),
	}
	if notes := strings.TrimSpace(decision.AdminNotes); notes != "" {
		t.AdminNotes = &notes
	}

	updated, err := s.transition(ctx, id, models.RefundPending, t)
	if err != nil {
		return nil, err
	}

	s.syncNotification(ctx, updated)

	metric, eventType := awspkg.MetricRefundsApproved, models.EventRefundApproved
	if to == models.RefundRejected {
		metric, eventType = awspkg.MetricRefundsRejected, models.EventRefundRejected
	}
	recordAsync(s.metrics, s.logger, metric, nil)
	s.publish(ctx, eventType, updated)
	s.logger.Info("Refund processed",
		zap.String("refund_id", id),
		zap.String("status", string(to)),
		zap.String("processed_by", adminID),
	)
	return updated, nil
}

// Complete records that the balance service has credited the user. It does
// not move money.
func (s *RefundService) Complete(ctx context.Context, id, transactionID string) (*models.Refund, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(models.RefundCompleted) {
		return nil, apperrors.InvalidTransition("refund %s is %s and cannot be completed", id, current.Status)
	}

	t := models.RefundTransition{To: models.RefundCompleted}
	if tx := strings.TrimSpace(transactionID); tx != "" {
		t.TransactionID = &tx
	}

	updated, err := s.transition(ctx, id, models.RefundApproved, t)
	if err != nil {
		return nil, err
	}

	recordAsync(s.metrics, s.logger, awspkg.MetricRefundsCompleted, nil)
	s.publish(ctx, models.EventRefundCompleted, updated)
	s.logger.Info("Refund completed", zap.String("refund_id", id), zap.String("transaction_id", transactionID))
	return updated, nil
}

// Process dispatches the dashboard's status update onto the explicit
// transitions.
func (s *RefundService) Process(ctx context.Context, id, adminID string, req models.ProcessRefundRequest) (*models.Refund, error) {
	decision := models.RefundDecision{
		AdminNotes:    req.AdminNotes,
		Attachments:   req.Attachments,
		ImagesByAdmin: req.ImagesByAdmin,
	}
	switch req.Status {
	case models.RefundApproved:
		return s.Approve(ctx, id, adminID, decision)
	case models.RefundRejected:
		return s.Reject(ctx, id, adminID, decision)
	case models.RefundCompleted:
		return s.Complete(ctx, id, req.TransactionID)
	}
	return nil, apperrors.Validation("status must be one of approved, rejected, completed")
}

// Cancel lets the owner withdraw a refund that has not been decided yet.
func (s *RefundService) Cancel(ctx context.Context, id, userID string) error {
	err := s.repo.DeletePending(ctx, id, userID)
	switch {
	case err == nil:
		s.logger.Info("Refund cancelled", zap.String("refund_id", id), zap.String("user_id", userID))
		return nil
	case errors.Is(err, repository.ErrStatusConflict):
		return apperrors.InvalidTransition("only pending refunds can be cancelled")
	default:
		return translateRepoError(err, "refund", id)
	}
}

func (s *RefundService) transition(ctx context.Context, id string, from models.RefundStatus, t models.RefundTransition) (*models.Refund, error) {
	updated, err := s.repo.Transition(ctx, id, from, t)
	if err == nil {
		return updated, nil
	}
	if errors.Is(err, repository.ErrStatusConflict) {
		recordAsync(s.metrics, s.logger, awspkg.MetricRefundTransitionConflicts, map[string]string{"To": string(t.To)})
		s.logger.Warn("Refund transition lost to a concurrent update",
			zap.String("refund_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(t.To)),
		)
		return nil, apperrors.InvalidTransition("refund %s is no longer %s", id, from)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Failed to transition refund", zap.Error(err), zap.String("refund_id", id))
	}
	return nil, translateRepoError(err, "refund", id)
}

// syncNotification marks the refund's dashboard notification read and hands
// it to the owner's history. The refund decision already stands, so a failure
// here is logged and counted rather than returned.
func (s *RefundService) syncNotification(ctx context.Context, refund *models.Refund) {
	read := true
	owner := refund.UserID

	n, err := s.decisionNotification(ctx, refund.OrderID)
	switch {
	case err != nil:
	case n != nil:
		_, err = s.notifications.Update(ctx, n.ID, models.NotificationPatch{IsRead: &read, UserID: &owner})
	default:
		n, err = s.notifications.Create(ctx, models.CreateNotificationRequest{
			Message:    fmt.Sprintf("Refund request for order %s %s", refund.OrderID, refund.Status),
			OriginalID: refund.OrderID,
			OriginType: models.OriginRefund,
			UserID:     &owner,
		})
		if err == nil {
			_, err = s.notifications.MarkRead(ctx, n.ID)
		}
	}
	if err != nil {
		s.notificationSyncFailed(refund, err)
	}
}

// notifySubmitted reuses an unread refund notification already raised for the
// order (e.g. by an escalation event) instead of stacking a second one.
func (s *RefundService) notifySubmitted(ctx context.Context, refund *models.Refund) error {
	owner := refund.UserID
	existing, err := s.notifications.findMatching(ctx, refund.OrderID, models.OriginRefund, true)
	if err != nil {
		s.logger.Warn("Refund notification lookup failed, creating a new one",
			zap.Error(err),
			zap.String("order_id", refund.OrderID),
		)
	}
	if existing != nil {
		_, err = s.notifications.Update(ctx, existing.ID, models.NotificationPatch{UserID: &owner})
		return err
	}
	_, err = s.notifications.Create(ctx, models.CreateNotificationRequest{
		Message:    fmt.Sprintf("New refund request for order %s", refund.OrderID),
		OriginalID: refund.OrderID,
		OriginType: models.OriginRefund,
		UserID:     &owner,
	})
	return err
}

// decisionNotification finds the notification of the order's open refund:
// the unread match if there is one, otherwise the earliest match.
func (s *RefundService) decisionNotification(ctx context.Context, orderID string) (*models.Notification, error) {
	n, err := s.notifications.findMatching(ctx, orderID, models.OriginRefund, true)
	if err != nil || n != nil {
		return n, err
	}
	return s.notifications.FindMatching(ctx, orderID, models.OriginRefund)
}

func (s *RefundService) notificationSyncFailed(refund *models.Refund, err error) {
	s.logger.Error("Failed to sync refund notification",
		zap.Error(err),
		zap.String("refund_id", refund.ID),
		zap.String("order_id", refund.OrderID),
		zap.String("status", string(refund.Status)),
	)
	recordAsync(s.metrics, s.logger, awspkg.MetricNotificationSyncFailures, nil)
}

func (s *RefundService) publish(ctx context.Context, eventType string, refund *models.Refund) {
	event := models.RefundEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		RefundID:  refund.ID,
		UserID:    refund.UserID,
		OrderID:   refund.OrderID,
		Amount:    refund.Amount,
		Status:    refund.Status,
		Timestamp: s.now().UTC(),
	}
	if refund.ProcessedBy != nil {
		event.ProcessedBy = *refund.ProcessedBy
	}
	if refund.TransactionID != nil {
		event.TransactionID = *refund.TransactionID
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish refund event",
			zap.Error(err),
			zap.String("event_type", eventType),
			zap.String("refund_id", refund.ID),
		)
	}
}

func cleanList(in []string) models.StringList {
	out := make(models.StringList, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
