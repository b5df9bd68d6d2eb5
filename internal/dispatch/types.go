package dispatch

import (
	"context"
	"time"

	"carnotify/internal/expo"
)

type EventType string

const (
	TypeDailyReminder    EventType = "daily_reminder"
	TypePriceDrop        EventType = "price_drop"
	TypeCarSold          EventType = "car_sold"
	TypeViewMilestone    EventType = "view_milestone"
	TypeInactiveReminder EventType = "inactive_reminder"
	TypeGeneric          EventType = "generic"
)

// Recurring reports whether events of this type are emitted on a
// schedule and therefore go through duplicate suppression. One-shot
// types (price_drop, car_sold, view_milestone) deliberately do not:
// they are emitted at most once at the source.
func (t EventType) Recurring() bool {
	return t == TypeDailyReminder || t == TypeInactiveReminder
}

// PendingEvent is the durable record the marketplace database emits
// whenever something notification-worthy happens. The webhook delivers
// it as {"record": {...}}.
type PendingEvent struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id" validate:"required"`
	Type      EventType      `json:"type" validate:"required"`
	Data      map[string]any `json:"data"`
	Processed bool           `json:"processed"`
}

func (e *PendingEvent) dataString(key string) string {
	if e.Data == nil {
		return ""
	}
	s, _ := e.Data[key].(string)
	return s
}

func (e *PendingEvent) Title() string   { return e.dataString("title") }
func (e *PendingEvent) Message() string { return e.dataString("message") }

// PushToken is one registered device channel for a user.
type PushToken struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is the one durable row written per dispatched event,
// shared by every device the event fanned out to.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      EventType      `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
}

// ErrorEntry is one append-only audit row describing a ticket, receipt
// or pipeline failure together with the payload it relates to.
type ErrorEntry struct {
	UserID  string         `json:"user_id"`
	Type    EventType      `json:"type"`
	Detail  string         `json:"error"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Metric is one best-effort telemetry row per dispatched event.
type Metric struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Type           EventType `json:"type"`
	Status         string    `json:"status"`
	Platform       string    `json:"platform"`
	ScheduledFor   string    `json:"scheduled_for,omitempty"`
	Timezone       string    `json:"timezone,omitempty"`
}

// ReceiptJob carries everything the deferred reconciler needs: which
// receipts to look up and which token each ticket targeted, so a
// DeviceNotRegistered receipt can be traced back to its destination.
type ReceiptJob struct {
	UserID         string            `json:"user_id"`
	NotificationID string            `json:"notification_id"`
	Type           EventType         `json:"type"`
	ReceiptIDs     []string          `json:"receipt_ids"`
	TokensByID     map[string]string `json:"tokens_by_id"`
	Payload        map[string]any    `json:"payload,omitempty"`
}

type TokenStore interface {
	TokensForUser(ctx context.Context, userID string) ([]PushToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
}

type NotificationStore interface {
	HasRecentNotification(ctx context.Context, userID string, t EventType, since time.Time) (bool, error)
	InsertNotification(ctx context.Context, n *Notification) error
	MarkEventProcessed(ctx context.Context, eventID int64) error
}

type ErrorLog interface {
	Record(ctx context.Context, e *ErrorEntry) error
}

type MetricsStore interface {
	RecordMetric(ctx context.Context, m *Metric) error
}

// Gateway is the push provider contract: synchronous tickets on send,
// asynchronous receipts afterwards. Chunking policy belongs to the
// gateway client, not the pipeline.
type Gateway interface {
	Chunk(messages []expo.Message) [][]expo.Message
	Send(ctx context.Context, messages []expo.Message) ([]expo.Ticket, error)
	ChunkReceiptIDs(ids []string) [][]string
	GetReceipts(ctx context.Context, ids []string) (map[string]expo.Receipt, error)
}

// ReceiptScheduler defers a receipt check to run after the response has
// been sent. Implementations must not block the dispatch path.
type ReceiptScheduler interface {
	ScheduleReceiptCheck(ctx context.Context, job *ReceiptJob) error
}

type Status int

const (
	StatusDispatched Status = iota
	StatusAlreadyProcessed
	StatusDuplicate
	StatusNoDestinations
	StatusNoValidMessages
)

// Result is the terminal state of one pipeline invocation. Every
// status is a success from the caller's point of view except that
// StatusNoDestinations maps to a 404 at the HTTP layer.
type Result struct {
	Status         Status
	NotificationID string
	Tickets        []expo.Ticket
}
