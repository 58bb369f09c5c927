package models

import "time"

const (
	EventRefundSubmitted = "refund_submitted"
	EventRefundApproved  = "refund_approved"
	EventRefundRejected  = "refund_rejected"
	EventRefundCompleted = "refund_completed"
)

// RefundEvent is published after every successful refund transition so the
// balance ledger and mailers can react.
type RefundEvent struct {
	EventID       string       `json:"event_id"`
	EventType     string       `json:"event_type"`
	RefundID      string       `json:"refund_id"`
	UserID        string       `json:"user_id"`
	OrderID       string       `json:"order_id"`
	Amount        int64        `json:"amount"`
	Status        RefundStatus `json:"status"`
	ProcessedBy   string       `json:"processed_by,omitempty"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// Upstream events consumed from the notification queue.
const (
	EventSupportTicketCreated = "support_ticket_created"
	EventCommentPosted        = "comment_posted"
	EventRefundEscalated      = "refund_escalated"
)

type DomainEvent struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	OriginalID string `json:"original_id"`
	UserID     string `json:"user_id,omitempty"`
	Message    string `json:"message"`
}

// OriginTypeForEvent maps an upstream event type onto the notification origin
// it raises. ok is false for events this service does not notify on.
func OriginTypeForEvent(eventType string) (origin OriginType, ok bool) {
	switch eventType {
	case EventSupportTicketCreated:
		return OriginSupport, true
	case EventCommentPosted:
		return OriginComment, true
	case EventRefundEscalated:
		return OriginRefund, true
	}
	return "", false
}
