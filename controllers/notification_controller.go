package controllers

import (
	"context"
	"net/http"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationService interface {
	Create(ctx context.Context, req models.CreateNotificationRequest) (*models.Notification, error)
	Get(ctx context.Context, id string) (*models.Notification, error)
	FindMatching(ctx context.Context, originalID string, originType models.OriginType) (*models.Notification, error)
	Update(ctx context.Context, id string, patch models.NotificationPatch) (*models.Notification, error)
	Delete(ctx context.Context, id string) error
	ListUnread(ctx context.Context) ([]models.Notification, error)
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
	List(ctx context.Context, page, limit int) ([]models.Notification, int64, error)
}

type ReadTracker interface {
	MarkAsRead(ctx context.Context, id string) (*models.Notification, error)
	MarkAsWatching(ctx context.Context, id string) (*models.Notification, error)
}

type UnreadSummarizer interface {
	Summary(ctx context.Context) (*models.UnreadSummary, error)
}

// NotificationController serves the admin dashboard's notification bell and
// the storefront's per-user history.
type NotificationController struct {
	notifications NotificationService
	tracker       ReadTracker
	summary       UnreadSummarizer
	logger        *zap.Logger
}

func NewNotificationController(notifications NotificationService, tracker ReadTracker, summary UnreadSummarizer, logger *zap.Logger) *NotificationController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationController{notifications: notifications, tracker: tracker, summary: summary, logger: logger}
}

// UnreadCount handles GET /notifications/unread/count.
func (nc *NotificationController) UnreadCount(ctx *gin.Context) {
	summary, err := nc.summary.Summary(ctx.Request.Context())
	if err != nil {
		nc.logger.Error("Failed to build unread summary", zap.Error(err))
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// Unread handles GET /notifications/unread.
func (nc *NotificationController) Unread(ctx *gin.Context) {
	list, err := nc.notifications.ListUnread(ctx.Request.Context())
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notifications": list})
}

// List handles GET /notifications.
func (nc *NotificationController) List(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)

	list, total, err := nc.notifications.List(ctx.Request.Context(), page, limit)
	if err != nil {
		ctx.Error(err)
		return
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	ctx.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"meta": gin.H{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
			"hasMore":    total > int64(page*limit),
		},
	})
}

// Mine handles GET /notifications/me.
func (nc *NotificationController) Mine(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	list, err := nc.notifications.ListForUser(ctx.Request.Context(), userID)
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notifications": list})
}

// Match handles GET /notifications/match?originalId=&originType=. No match
// is a normal answer and renders a null notification.
func (nc *NotificationController) Match(ctx *gin.Context) {
	originalID := ctx.Query("originalId")
	originType := models.OriginType(ctx.Query("originType"))

	n, err := nc.notifications.FindMatching(ctx.Request.Context(), originalID, originType)
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notification": n})
}

// Get handles GET /notifications/:id.
func (nc *NotificationController) Get(ctx *gin.Context) {
	n, err := nc.notifications.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notification": n})
}

// Create handles POST /notifications.
func (nc *NotificationController) Create(ctx *gin.Context) {
	var req models.CreateNotificationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	n, err := nc.notifications.Create(ctx.Request.Context(), req)
	if err != nil {
		ctx.Error(err)
		return
	}
	nc.logger.Info("Notification created by admin",
		zap.String("notification_id", n.ID),
		zap.String("origin_type", string(n.OriginType)),
	)
	ctx.JSON(http.StatusCreated, gin.H{"notification": n})
}

// MarkAsRead handles PATCH /notifications/mark-as-read/:id.
func (nc *NotificationController) MarkAsRead(ctx *gin.Context) {
	n, err := nc.tracker.MarkAsRead(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notification": n})
}

// MarkAsWatching handles PATCH /notifications/mark-as-watching/:id.
func (nc *NotificationController) MarkAsWatching(ctx *gin.Context) {
	n, err := nc.tracker.MarkAsWatching(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notification": n})
}

// Update handles PATCH /notifications/:id. The dashboard snoozes a
// notification by sending exactly {"isWatching": true}.
func (nc *NotificationController) Update(ctx *gin.Context) {
	var patch models.NotificationPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		bindError(ctx, err)
		return
	}

	id := ctx.Param("id")
	var (
		n   *models.Notification
		err error
	)
	if patch.WatchingOnly() {
		n, err = nc.tracker.MarkAsWatching(ctx.Request.Context(), id)
	} else {
		n, err = nc.notifications.Update(ctx.Request.Context(), id, patch)
	}
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notification": n})
}

// Delete handles DELETE /notifications/:id.
func (nc *NotificationController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		ctx.Error(apperrors.Validation("notification id is required"))
		return
	}
	if err := nc.notifications.Delete(ctx.Request.Context(), id); err != nil {
		ctx.Error(err)
		return
	}
	nc.logger.Info("Notification deleted", zap.String("notification_id", id))
	ctx.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}
