package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"carnotify/internal/db"
	"carnotify/internal/dispatch"
)

// Processor runs the notification pipeline for one event.
type Processor interface {
	Process(ctx context.Context, event *dispatch.PendingEvent) (*dispatch.Result, error)
}

type Handler struct {
	Proc  Processor
	Errs  dispatch.ErrorLog
	Store *db.Store
}

func NewHandler(proc Processor, errs dispatch.ErrorLog, store *db.Store) *Handler {
	return &Handler{Proc: proc, Errs: errs, Store: store}
}

func (h *Handler) HealthCheck(c echo.Context) error {
	if db.DB != nil {
		if err := db.DB.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func userID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}
