package models

import (
	"fmt"
	"time"
)

// OriginType identifies the kind of entity that raised a notification.
type OriginType string

const (
	OriginSupport OriginType = "support"
	OriginRefund  OriginType = "refund"
	OriginComment OriginType = "comment"
)

// TrackedOriginTypes is the set of origin types the unread summary reports on.
var TrackedOriginTypes = []OriginType{OriginSupport, OriginRefund, OriginComment}

func (o OriginType) Valid() bool {
	switch o {
	case OriginSupport, OriginRefund, OriginComment:
		return true
	}
	return false
}

// CountsTowardTotal reports whether unread notifications of this type are
// summed into the badge total. Comment notifications are counted and listed
// separately but never added to the total.
func (o OriginType) CountsTowardTotal() bool {
	switch o {
	case OriginSupport, OriginRefund:
		return true
	case OriginComment:
		return false
	}
	return false
}

func ParseOriginType(s string) (OriginType, error) {
	o := OriginType(s)
	if !o.Valid() {
		return "", fmt.Errorf("unknown origin type %q", s)
	}
	return o, nil
}

type Notification struct {
	ID         string     `json:"id" gorm:"type:varchar(36);primaryKey" bson:"_id"`
	Message    string     `json:"message" gorm:"type:text;not null" bson:"message"`
	OriginalID string     `json:"originalId" gorm:"type:varchar(64);not null;index:idx_notifications_origin,priority:1" bson:"originalId"`
	OriginType OriginType `json:"originType" gorm:"type:varchar(20);not null;index:idx_notifications_origin,priority:2" bson:"originType"`
	UserID     *string    `json:"userId,omitempty" gorm:"type:varchar(64);index" bson:"userId,omitempty"`
	IsRead     bool       `json:"isRead" gorm:"not null;index" bson:"isRead"`
	IsWatching bool       `json:"isWatching" gorm:"not null" bson:"isWatching"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"autoCreateTime" bson:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"autoUpdateTime" bson:"updatedAt"`
}

type CreateNotificationRequest struct {
	Message    string     `json:"message" binding:"required"`
	OriginalID string     `json:"originalId" binding:"required"`
	OriginType OriginType `json:"originType" binding:"required"`
	UserID     *string    `json:"userId,omitempty"`
}

// NotificationPatch carries an administrative correction. Nil fields are left
// untouched. The message is immutable and therefore absent.
type NotificationPatch struct {
	OriginalID *string     `json:"originalId,omitempty"`
	OriginType *OriginType `json:"originType,omitempty"`
	UserID     *string     `json:"userId,omitempty"`
	IsRead     *bool       `json:"isRead,omitempty"`
	IsWatching *bool       `json:"isWatching,omitempty"`
}

func (p NotificationPatch) Empty() bool {
	return p.OriginalID == nil && p.OriginType == nil && p.UserID == nil && p.IsRead == nil && p.IsWatching == nil
}

// WatchingOnly reports whether the patch is the dashboard's "snooze" call,
// i.e. a body of exactly {"isWatching": true}.
func (p NotificationPatch) WatchingOnly() bool {
	return p.IsWatching != nil && *p.IsWatching &&
		p.OriginalID == nil && p.OriginType == nil && p.UserID == nil && p.IsRead == nil
}

// UnreadSummary is the badge payload polled by the admin dashboard.
type UnreadSummary struct {
	Support     int64          `json:"support"`
	Refund      int64          `json:"refund"`
	Total       int64          `json:"total"`
	SupportNoti []Notification `json:"supportNoti"`
	RefundNoti  []Notification `json:"refundNoti"`
	CommentNoti []Notification `json:"commentNoti"`
	Comment     int64          `json:"comment"`
}
