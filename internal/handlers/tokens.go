package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"carnotify/internal/auth"
	"carnotify/internal/dispatch"
	"carnotify/internal/expo"
)

type RegisterTokenRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android"`
	Timezone string `json:"timezone"`
}

type RemoveTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// RegisterToken stores a device's push destination for the
// authenticated user. Re-registering the same token refreshes its
// platform and timezone.
func (h *Handler) RegisterToken(c echo.Context) error {
	var req RegisterTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := auth.Validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if !expo.IsExpoPushToken(req.Token) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid push token format"})
	}

	token := &dispatch.PushToken{
		UserID:   userID(c),
		Token:    req.Token,
		Platform: req.Platform,
		Timezone: req.Timezone,
	}
	if err := h.Store.UpsertToken(c.Request().Context(), token); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to store push token"})
	}

	return c.JSON(http.StatusCreated, map[string]string{"message": "Push token registered"})
}

// RemoveToken unregisters a device, e.g. on logout.
func (h *Handler) RemoveToken(c echo.Context) error {
	var req RemoveTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := auth.Validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.Store.DeleteToken(c.Request().Context(), userID(c), req.Token); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete push token"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Push token removed"})
}
