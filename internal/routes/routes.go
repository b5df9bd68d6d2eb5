package routes

import (
	"carnotify/internal/auth"
	"carnotify/internal/handlers"

	"github.com/labstack/echo/v4"
)

func SetupRoutes(api *echo.Group, h *handlers.Handler) {
	// Public routes
	api.GET("/health", h.HealthCheck)

	// Webhook from the database change trigger, signed with the
	// service role.
	api.POST("/notifications/dispatch", h.DispatchNotification,
		auth.RateLimitMiddleware, auth.ServiceAuthMiddleware)

	// Protected routes
	api.Use(auth.JWTMiddleware)

	tokens := api.Group("/push-tokens")
	tokens.POST("", h.RegisterToken)
	tokens.DELETE("", h.RemoveToken)

	notifications := api.Group("/notifications")
	notifications.GET("", h.ListNotifications)
	notifications.PATCH("/:id/read", h.MarkNotificationRead)
	notifications.POST("/read-all", h.MarkAllNotificationsRead)
}
