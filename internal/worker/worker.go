package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"carnotify/internal/dispatch"
	"carnotify/internal/queue"
)

type Worker struct {
	server     *asynq.Server
	reconciler *dispatch.Reconciler
}

func NewWorker(reconciler *dispatch.Reconciler) *Worker {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisOpt := asynq.RedisClientOpt{
		Addr: redisAddr,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				queue.QueueReceipts: 10,
			},
		},
	)

	return &Worker{
		server:     server,
		reconciler: reconciler,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(queue.TaskReceiptCheck, w.handleReceiptCheck)

	slog.Info("Starting worker",
		"queues", []string{queue.QueueReceipts},
		"concurrency", 10)

	if err := w.server.Start(mux); err != nil {
		return err
	}

	slog.Info("Worker started successfully")

	<-ctx.Done()

	w.server.Stop()
	slog.Info("Worker stopped")
	return nil
}

// handleReceiptCheck runs the deferred receipt reconciliation. It
// always returns nil: the originating request has long since been
// answered, so failures are logged and never resurface.
func (w *Worker) handleReceiptCheck(ctx context.Context, t *asynq.Task) error {
	var job dispatch.ReceiptJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		slog.Error("Failed to decode receipt check payload", "error", err)
		return nil
	}

	w.reconciler.Reconcile(ctx, &job)

	slog.Info("Receipt check completed",
		"user_id", job.UserID,
		"notification_id", job.NotificationID,
		"receipts", len(job.ReceiptIDs))
	return nil
}
