package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"marketplace-service/models"
	awspkg "marketplace-service/pkg/aws"

	"go.uber.org/zap"
)

type NotificationCreator interface {
	Create(ctx context.Context, req models.CreateNotificationRequest) (*models.Notification, error)
}

// Deduper is satisfied by *dynamodb.IdempotencyStore.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// EventHandler turns upstream domain events delivered through SNS and SQS
// into dashboard notifications.
type EventHandler struct {
	notifications NotificationCreator
	dedupe        Deduper
	metrics       MetricsRecorder
	logger        *zap.Logger
}

// NewEventHandler wires the handler. dedupe and metrics may be nil; without
// dedupe a redelivered event creates a second notification.
func NewEventHandler(notifications NotificationCreator, dedupe Deduper, metrics MetricsRecorder, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{notifications: notifications, dedupe: dedupe, metrics: metrics, logger: logger}
}

// snsEnvelope unwraps the SNS → SQS message wrapper
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// Handle processes one message body. A nil return deletes the message, so
// malformed or irrelevant events return nil and only retryable failures
// return an error.
func (h *EventHandler) Handle(ctx context.Context, body string) error {
	event, err := decodeEvent(body)
	if err != nil {
		h.logger.Error("Dropping unparseable message", zap.Error(err))
		h.count(ctx, "dropped")
		return nil
	}

	originType, ok := models.OriginTypeForEvent(event.EventType)
	if !ok {
		h.logger.Debug("Ignoring event", zap.String("event_type", event.EventType))
		h.count(ctx, "ignored")
		return nil
	}
	if event.OriginalID == "" {
		h.logger.Error("Dropping event without original_id",
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID),
		)
		h.count(ctx, "dropped")
		return nil
	}

	if h.dedupe != nil && event.EventID != "" {
		claimed, err := h.dedupe.Claim(ctx, event.EventID)
		if err != nil {
			return fmt.Errorf("claim event %s: %w", event.EventID, err)
		}
		if !claimed {
			h.logger.Info("Skipping duplicate event", zap.String("event_id", event.EventID))
			h.count(ctx, "duplicate")
			return nil
		}
	}

	req := models.CreateNotificationRequest{
		Message:    messageFor(event, originType),
		OriginalID: event.OriginalID,
		OriginType: originType,
	}
	if event.UserID != "" {
		uid := event.UserID
		req.UserID = &uid
	}

	if _, err := h.notifications.Create(ctx, req); err != nil {
		if h.dedupe != nil && event.EventID != "" {
			if relErr := h.dedupe.Release(ctx, event.EventID); relErr != nil {
				h.logger.Error("Failed to release event claim", zap.Error(relErr), zap.String("event_id", event.EventID))
			}
		}
		return fmt.Errorf("create notification for %s: %w", event.EventType, err)
	}

	h.count(ctx, "processed")
	return nil
}

func decodeEvent(body string) (*models.DomainEvent, error) {
	payload := body
	var envelope snsEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	// Raw delivery skips the envelope.
	if envelope.Type == "Notification" && envelope.Message != "" {
		payload = envelope.Message
	}

	var event models.DomainEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("unmarshal event payload: %w", err)
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("event has no event_type")
	}
	return &event, nil
}

func messageFor(event *models.DomainEvent, originType models.OriginType) string {
	if msg := strings.TrimSpace(event.Message); msg != "" {
		return msg
	}
	switch originType {
	case models.OriginSupport:
		return "New support ticket"
	case models.OriginComment:
		return "New comment"
	case models.OriginRefund:
		return "Refund request escalated"
	}
	return "New notification"
}

func (h *EventHandler) count(ctx context.Context, outcome string) {
	if h.metrics == nil {
		return
	}
	if err := h.metrics.RecordCount(ctx, awspkg.MetricSQSMessages, map[string]string{"Outcome": outcome}); err != nil {
		h.logger.Warn("Failed to record metric", zap.Error(err))
	}
}
