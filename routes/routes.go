package routes

import (
	"marketplace-service/controllers"
	"marketplace-service/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRefundRoutes sets up all refund-related routes.
func RegisterRefundRoutes(r *gin.Engine, rc *controllers.RefundController, ac *controllers.AttachmentController, authCfg middleware.AuthConfig) {
	refundRoutes := r.Group("/refunds")
	refundRoutes.Use(middleware.AuthMiddleware(authCfg))

	refundRoutes.POST("", rc.Submit)
	refundRoutes.GET("/my-refunds", rc.ListMine)
	refundRoutes.POST("/attachments/presign", ac.Presign)
	refundRoutes.GET("/:id", rc.Get)
	refundRoutes.DELETE("/:id", rc.Cancel)

	// Admin-only routes
	adminRoutes := refundRoutes.Group("")
	adminRoutes.Use(middleware.AdminOnly())
	adminRoutes.GET("", rc.List)
	adminRoutes.PATCH("/:id", rc.Process)
	adminRoutes.POST("/:id/complete", rc.Complete)
}

// RegisterNotificationRoutes sets up the dashboard bell and user history.
func RegisterNotificationRoutes(r *gin.Engine, nc *controllers.NotificationController, authCfg middleware.AuthConfig) {
	notificationRoutes := r.Group("/notifications")
	notificationRoutes.Use(middleware.AuthMiddleware(authCfg))

	notificationRoutes.GET("/me", nc.Mine)

	adminRoutes := notificationRoutes.Group("")
	adminRoutes.Use(middleware.AdminOnly())
	adminRoutes.GET("/unread/count", nc.UnreadCount)
	adminRoutes.GET("/unread", nc.Unread)
	adminRoutes.GET("/match", nc.Match)
	adminRoutes.GET("", nc.List)
	adminRoutes.GET("/:id", nc.Get)
	adminRoutes.POST("", nc.Create)
	adminRoutes.PATCH("/mark-as-read/:id", nc.MarkAsRead)
	adminRoutes.PATCH("/mark-as-watching/:id", nc.MarkAsWatching)
	adminRoutes.PATCH("/:id", nc.Update)
	adminRoutes.DELETE("/:id", nc.Delete)
}
