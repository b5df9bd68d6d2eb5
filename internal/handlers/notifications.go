package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"carnotify/internal/db"
)

// ListNotifications returns the authenticated user's notifications,
// newest first, with the unread count alongside.
func (h *Handler) ListNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	uid := userID(c)

	unreadOnly := c.QueryParam("unread") == "true"
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	notifications, err := h.Store.ListNotifications(ctx, uid, unreadOnly, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch notifications"})
	}

	unread, err := h.Store.UnreadCount(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch notifications"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data":         notifications,
		"unread_count": unread,
	})
}

func (h *Handler) MarkNotificationRead(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Notification id is required"})
	}

	err := h.Store.MarkNotificationRead(c.Request().Context(), userID(c), id)
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Notification not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update notification"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (h *Handler) MarkAllNotificationsRead(c echo.Context) error {
	updated, err := h.Store.MarkAllNotificationsRead(c.Request().Context(), userID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update notifications"})
	}

	return c.JSON(http.StatusOK, map[string]any{"updated": updated})
}
