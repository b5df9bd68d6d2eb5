package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"carnotify/internal/dispatch"
)

const (
	TaskReceiptCheck = "receipt:check"

	QueueReceipts = "receipts"
)

var client *asynq.Client

// InitQueue initializes the Redis connection for Asynq
func InitQueue() error {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisOpt := asynq.RedisClientOpt{
		Addr: redisAddr,
	}

	client = asynq.NewClient(redisOpt)

	// Test connection
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	// Recreate client after test
	client = asynq.NewClient(redisOpt)

	slog.Info("Successfully initialized task queue")
	return nil
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// ReceiptScheduler defers receipt checks onto the task queue so they
// run well after the dispatch response has been sent.
type ReceiptScheduler struct {
	delay time.Duration
}

func NewReceiptScheduler(delay time.Duration) *ReceiptScheduler {
	return &ReceiptScheduler{delay: delay}
}

func (s *ReceiptScheduler) ScheduleReceiptCheck(ctx context.Context, job *dispatch.ReceiptJob) error {
	payloadBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	task := asynq.NewTask(TaskReceiptCheck, payloadBytes)

	// Receipts are best-effort cleanup; a lost check is accepted, so
	// no retries beyond the single deferred attempt.
	_, err = client.Enqueue(task,
		asynq.Queue(QueueReceipts),
		asynq.ProcessIn(s.delay),
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue receipt check: %v", err)
	}

	return nil
}
