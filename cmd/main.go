package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"carnotify/internal/auth"
	"carnotify/internal/config"
	"carnotify/internal/db"
	"carnotify/internal/dispatch"
	"carnotify/internal/expo"
	"carnotify/internal/handlers"
	"carnotify/internal/migrations"
	"carnotify/internal/queue"
	"carnotify/internal/routes"
	"carnotify/internal/worker"
)

func main() {
	config.Load()

	db.InitDB()

	if err := migrations.Up(); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	if err := queue.InitQueue(); err != nil {
		slog.Error("Failed to initialize task queue", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	auth.InitSecurity()

	store := db.NewStore(db.DB)
	gateway := expo.NewClient(expo.WithAccessToken(config.ExpoAccessToken()))
	receipts := queue.NewReceiptScheduler(config.ReceiptCheckDelay())

	dispatcher := dispatch.New(store, store, store, store, gateway, receipts)
	reconciler := dispatch.NewReconciler(store, store, gateway)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := worker.NewWorker(reconciler)
	go func() {
		if err := w.Start(ctx); err != nil {
			slog.Error("Worker failed", "error", err)
			stop()
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	h := handlers.NewHandler(dispatcher, store, store)
	routes.SetupRoutes(e.Group("/api"), h)

	go func() {
		if err := e.Start(config.ServerAddr()); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
