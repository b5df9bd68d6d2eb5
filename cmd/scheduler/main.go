package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"carnotify/internal/config"
	"carnotify/internal/db"
	"carnotify/internal/scheduler"
)

func main() {
	config.Load()

	db.InitDB()

	store := db.NewStore(db.DB)
	s := scheduler.New(store, config.ReminderHour(), config.InactiveAfter())

	if err := s.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	s.Stop()
}
