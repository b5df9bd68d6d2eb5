package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"carnotify/internal/auth"
	"carnotify/internal/dispatch"
	"carnotify/internal/expo"
)

// DispatchRequest is the webhook body delivered by the database
// change trigger.
type DispatchRequest struct {
	Record dispatch.PendingEvent `json:"record" validate:"required"`
}

// DispatchNotification handles one pending-notification event. The
// pipeline's terminal non-dispatch states (already processed,
// duplicate, nothing to send) all answer success; only a failed
// durable write answers 500 so the trigger can redeliver.
func (h *Handler) DispatchNotification(c echo.Context) error {
	var req DispatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
	}
	if err := auth.Validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
	}

	ctx := c.Request().Context()

	result, err := h.Proc.Process(ctx, &req.Record)
	if err != nil {
		slog.Error("Failed to process notification",
			"event_id", req.Record.ID, "user_id", req.Record.UserID, "error", err)

		entry := &dispatch.ErrorEntry{
			UserID:  req.Record.UserID,
			Type:    req.Record.Type,
			Detail:  err.Error(),
			Payload: req.Record.Data,
		}
		if auditErr := h.Errs.Record(ctx, entry); auditErr != nil {
			slog.Warn("Failed to record pipeline error", "user_id", req.Record.UserID, "error", auditErr)
		}

		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error":   "Failed to process notification",
			"details": err.Error(),
		})
	}

	switch result.Status {
	case dispatch.StatusAlreadyProcessed:
		return c.JSON(http.StatusOK, map[string]string{"message": "Notification already processed"})
	case dispatch.StatusDuplicate:
		return c.JSON(http.StatusOK, map[string]string{"message": "Duplicate notification skipped (logged)"})
	case dispatch.StatusNoDestinations:
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No push tokens found"})
	case dispatch.StatusNoValidMessages:
		return c.JSON(http.StatusOK, map[string]string{"message": "No valid push tokens found"})
	}

	tickets := result.Tickets
	if tickets == nil {
		tickets = []expo.Ticket{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":        true,
		"tickets":        tickets,
		"notificationId": result.NotificationID,
	})
}
