package controllers

import (
	"context"
	"net/http"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/middleware"
	"marketplace-service/models"
	"marketplace-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RefundService interface {
	Submit(ctx context.Context, userID string, req models.SubmitRefundRequest) (*models.Refund, error)
	Get(ctx context.Context, id string) (*models.Refund, error)
	ListMine(ctx context.Context, userID string, page, limit int) (*services.RefundListResponse, error)
	List(ctx context.Context, filter models.RefundFilter) (*services.RefundListResponse, error)
	Process(ctx context.Context, id, adminID string, req models.ProcessRefundRequest) (*models.Refund, error)
	Complete(ctx context.Context, id, transactionID string) (*models.Refund, error)
	Cancel(ctx context.Context, id, userID string) error
}

// EntityViewTracker marks the dashboard notification for an entity as seen.
type EntityViewTracker interface {
	MarkEntityViewed(ctx context.Context, originalID string, originType models.OriginType) error
}

// RefundController handles HTTP requests for refund operations.
type RefundController struct {
	refunds RefundService
	tracker EntityViewTracker
	logger  *zap.Logger
}

func NewRefundController(refunds RefundService, tracker EntityViewTracker, logger *zap.Logger) *RefundController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefundController{refunds: refunds, tracker: tracker, logger: logger}
}

// Submit handles POST /refunds. The body may be JSON or a form.
func (rc *RefundController) Submit(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req models.SubmitRefundRequest
	if err := ctx.ShouldBind(&req); err != nil {
		bindError(ctx, err)
		return
	}

	refund, err := rc.refunds.Submit(ctx.Request.Context(), userID, req)
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"refund": refund})
}

// ListMine handles GET /refunds/my-refunds.
func (rc *RefundController) ListMine(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)

	resp, err := rc.refunds.ListMine(ctx.Request.Context(), userID, page, limit)
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// List handles GET /refunds (admin only).
func (rc *RefundController) List(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	filter := models.RefundFilter{
		Status: models.RefundStatus(ctx.Query("status")),
		UserID: ctx.Query("userId"),
		Page:   page,
		Limit:  limit,
	}

	resp, err := rc.refunds.List(ctx.Request.Context(), filter)
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Get handles GET /refunds/:id. Owners see their own refunds; an admin view
// also clears the refund's unread dashboard notification.
func (rc *RefundController) Get(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	refund, err := rc.refunds.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.Error(err)
		return
	}

	admin := middleware.IsAdmin(ctx)
	if !admin && refund.UserID != userID {
		// Hide existence from other users.
		ctx.Error(apperrors.NotFound("refund %s not found", refund.ID))
		return
	}

	// Decided refunds already had their notification read; viewing one must
	// not clear a later refund raised on the same order.
	if admin && rc.tracker != nil && refund.Status == models.RefundPending {
		if err := rc.tracker.MarkEntityViewed(ctx.Request.Context(), refund.OrderID, models.OriginRefund); err != nil {
			rc.logger.Warn("Failed to mark refund notification as viewed",
				zap.Error(err),
				zap.String("refund_id", refund.ID),
			)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"refund": refund})
}

// Process handles PATCH /refunds/:id (admin only).
func (rc *RefundController) Process(ctx *gin.Context) {
	adminID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req models.ProcessRefundRequest
	if err := ctx.ShouldBind(&req); err != nil {
		bindError(ctx, err)
		return
	}

	refund, err := rc.refunds.Process(ctx.Request.Context(), ctx.Param("id"), adminID, req)
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"refund": refund})
}

// Complete handles POST /refunds/:id/complete (admin only).
func (rc *RefundController) Complete(ctx *gin.Context) {
	var req models.CompleteRefundRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			bindError(ctx, err)
			return
		}
	}

	refund, err := rc.refunds.Complete(ctx.Request.Context(), ctx.Param("id"), req.TransactionID)
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"refund": refund})
}

// Cancel handles DELETE /refunds/:id. Only the owner may cancel, and only
// while the refund is pending.
func (rc *RefundController) Cancel(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	if err := rc.refunds.Cancel(ctx.Request.Context(), ctx.Param("id"), userID); err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Refund cancelled"})
}
