package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundApproved  RefundStatus = "approved"
	RefundRejected  RefundStatus = "rejected"
	RefundCompleted RefundStatus = "completed"
)

const MaxRefundDescriptionLength = 500

func (s RefundStatus) Valid() bool {
	switch s {
	case RefundPending, RefundApproved, RefundRejected, RefundCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
// pending -> approved | rejected, approved -> completed; rejected and
// completed are terminal.
func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	switch s {
	case RefundPending:
		return next == RefundApproved || next == RefundRejected
	case RefundApproved:
		return next == RefundCompleted
	case RefundRejected, RefundCompleted:
		return false
	}
	return false
}

// IsOpen reports whether the refund still blocks a new refund on its order.
func (s RefundStatus) IsOpen() bool {
	switch s {
	case RefundPending, RefundApproved:
		return true
	case RefundRejected, RefundCompleted:
		return false
	}
	return false
}

func (s RefundStatus) IsTerminal() bool {
	switch s {
	case RefundRejected, RefundCompleted:
		return true
	case RefundPending, RefundApproved:
		return false
	}
	return false
}

// StringList is a list of URLs persisted as a jsonb column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

type Refund struct {
	ID            string       `json:"id" gorm:"type:varchar(36);primaryKey" bson:"_id"`
	UserID        string       `json:"userId" gorm:"type:varchar(64);not null;index" bson:"userId"`
	OrderID       string       `json:"orderId" gorm:"type:varchar(64);not null;index;uniqueIndex:idx_refunds_open_order,where:status <> 'rejected' AND status <> 'completed'" bson:"orderId"`
	TransactionID *string      `json:"transactionId,omitempty" gorm:"type:varchar(128)" bson:"transactionId,omitempty"`
	Amount        int64        `json:"amount" gorm:"not null" bson:"amount"`
	Status        RefundStatus `json:"status" gorm:"type:varchar(20);not null;index" bson:"status"`
	Description   string       `json:"description" gorm:"type:varchar(500);not null" bson:"description"`
	Images        StringList   `json:"images" gorm:"type:jsonb" bson:"images"`
	AdminNotes    string       `json:"adminNotes" gorm:"type:text" bson:"adminNotes"`
	Attachments   StringList   `json:"attachments" gorm:"type:jsonb" bson:"attachments"`
	ImagesByAdmin StringList   `json:"imagesByAdmin" gorm:"type:jsonb" bson:"imagesByAdmin"`
	ProcessedAt   *time.Time   `json:"processedAt,omitempty" bson:"processedAt,omitempty"`
	ProcessedBy   *string      `json:"processedBy,omitempty" gorm:"type:varchar(64)" bson:"processedBy,omitempty"`
	CreatedAt     time.Time    `json:"createdAt" gorm:"autoCreateTime" bson:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt" gorm:"autoUpdateTime" bson:"updatedAt"`
}

// RefundTransition is the set of fields written together with a status
// change. Nil and empty fields are not written.
type RefundTransition struct {
	To            RefundStatus
	ProcessedAt   *time.Time
	ProcessedBy   *string
	AdminNotes    *string
	Attachments   StringList
	ImagesByAdmin StringList
	TransactionID *string
}

// Apply copies the transition onto r. Stores that cannot express the
// conditional write natively use it after checking the expected status.
func (t RefundTransition) Apply(r *Refund, now time.Time) {
	r.Status = t.To
	if t.ProcessedAt != nil {
		at := *t.ProcessedAt
		r.ProcessedAt = &at
	}
	if t.ProcessedBy != nil {
		by := *t.ProcessedBy
		r.ProcessedBy = &by
	}
	if t.AdminNotes != nil {
		r.AdminNotes = *t.AdminNotes
	}
	if len(t.Attachments) > 0 {
		r.Attachments = append(StringList(nil), t.Attachments...)
	}
	if len(t.ImagesByAdmin) > 0 {
		r.ImagesByAdmin = append(StringList(nil), t.ImagesByAdmin...)
	}
	if t.TransactionID != nil {
		tx := *t.TransactionID
		r.TransactionID = &tx
	}
	r.UpdatedAt = now
}

type RefundFilter struct {
	UserID string
	Status RefundStatus
	Page   int
	Limit  int
}

type SubmitRefundRequest struct {
	OrderID     string   `json:"orderId" form:"orderId"`
	Amount      int64    `json:"amount" form:"amount"`
	Description string   `json:"description" form:"description"`
	Images      []string `json:"images,omitempty" form:"images[]"`
}

// RefundDecision is the admin input attached to an approval or rejection.
type RefundDecision struct {
	AdminNotes    string
	Attachments   []string
	ImagesByAdmin []string
}

// ProcessRefundRequest is the body of PATCH /refunds/:id, sent either as JSON
// or as a multipart form by the dashboard.
type ProcessRefundRequest struct {
	Status        RefundStatus `json:"status" form:"status" binding:"required"`
	AdminNotes    string       `json:"adminNotes" form:"adminNotes"`
	Attachments   []string     `json:"attachments,omitempty" form:"attachments[]"`
	ImagesByAdmin []string     `json:"imagesByAdmin,omitempty" form:"imagesByAdmin[]"`
	TransactionID string       `json:"transactionId,omitempty" form:"transactionId"`
}

type CompleteRefundRequest struct {
	TransactionID string `json:"transactionId"`
}
