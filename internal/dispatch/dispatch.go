package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"carnotify/internal/expo"
)

// DefaultDuplicateWindow is the trailing window inside which a second
// recurring notification of the same type for the same user counts as
// a duplicate.
const DefaultDuplicateWindow = 60 * time.Minute

// Dispatcher runs the notification pipeline for one PendingEvent at a
// time: duplicate check, token resolution, fan-out, batch send, ticket
// processing, persistence, processed flag, metrics, deferred receipt
// check. All collaborators are injected so tests can substitute them.
type Dispatcher struct {
	tokens   TokenStore
	store    NotificationStore
	errs     ErrorLog
	metrics  MetricsStore
	gateway  Gateway
	receipts ReceiptScheduler
	window   time.Duration
}

func New(tokens TokenStore, store NotificationStore, errs ErrorLog, metrics MetricsStore, gateway Gateway, receipts ReceiptScheduler) *Dispatcher {
	return &Dispatcher{
		tokens:   tokens,
		store:    store,
		errs:     errs,
		metrics:  metrics,
		gateway:  gateway,
		receipts: receipts,
		window:   DefaultDuplicateWindow,
	}
}

// Process runs the pipeline for one event. A non-nil error means the
// durable write path failed and the caller should answer 500; the
// event stays unprocessed so the upstream trigger can redeliver it.
func (d *Dispatcher) Process(ctx context.Context, event *PendingEvent) (*Result, error) {
	if event.Processed {
		slog.Info("Notification already processed", "event_id", event.ID, "user_id", event.UserID)
		return &Result{Status: StatusAlreadyProcessed}, nil
	}

	// Duplicate suppression only applies to schedule-driven types.
	// The upstream scheduler may emit the same logical reminder more
	// than once; skipping is the success path, not an error.
	if event.Type.Recurring() {
		dup, err := d.store.HasRecentNotification(ctx, event.UserID, event.Type, time.Now().Add(-d.window))
		if err != nil {
			return nil, fmt.Errorf("failed to check for duplicate notification: %w", err)
		}
		if dup {
			slog.Info("Duplicate notification skipped",
				"event_id", event.ID, "user_id", event.UserID, "type", event.Type)
			return &Result{Status: StatusDuplicate}, nil
		}
	}

	tokens, err := d.tokens.TokensForUser(ctx, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch push tokens: %w", err)
	}
	if len(tokens) == 0 {
		slog.Info("No push tokens registered", "event_id", event.ID, "user_id", event.UserID)
		return &Result{Status: StatusNoDestinations}, nil
	}

	notificationID := uuid.New().String()

	messages, kept := d.buildMessages(ctx, event, tokens, notificationID)
	if len(messages) == 0 {
		slog.Info("No valid push tokens after filtering", "event_id", event.ID, "user_id", event.UserID)
		return &Result{Status: StatusNoValidMessages}, nil
	}

	sent, tickets := d.sendChunks(ctx, event, messages)

	d.processTickets(ctx, event, sent, tickets)

	if err := d.persist(ctx, event, notificationID, tickets); err != nil {
		return nil, err
	}

	d.recordMetric(ctx, event, notificationID, kept, tickets)

	d.scheduleReceiptCheck(ctx, event, notificationID, sent, tickets)

	slog.Info("Notification dispatched",
		"event_id", event.ID,
		"user_id", event.UserID,
		"type", event.Type,
		"notification_id", notificationID,
		"devices", len(sent))

	return &Result{
		Status:         StatusDispatched,
		NotificationID: notificationID,
		Tickets:        tickets,
	}, nil
}

// sendChunks dispatches messages in gateway-sized batches. A failing
// chunk is logged to the error audit and skipped; the remaining chunks
// still go out. The returned message slice is index-aligned with the
// tickets so errors can be traced back to tokens.
func (d *Dispatcher) sendChunks(ctx context.Context, event *PendingEvent, messages []expo.Message) ([]expo.Message, []expo.Ticket) {
	var (
		sent    []expo.Message
		tickets []expo.Ticket
	)

	for _, chunk := range d.gateway.Chunk(messages) {
		chunkTickets, err := d.gateway.Send(ctx, chunk)
		if err != nil {
			slog.Error("Failed to send push chunk",
				"event_id", event.ID, "user_id", event.UserID, "size", len(chunk), "error", err)
			d.audit(ctx, event, fmt.Sprintf("push chunk send failed: %v", err))
			continue
		}
		sent = append(sent, chunk...)
		tickets = append(tickets, chunkTickets...)
	}

	return sent, tickets
}

// processTickets handles immediate gateway errors: every error ticket
// is logged to the audit table, and destinations the gateway reports
// as permanently invalid are deleted.
func (d *Dispatcher) processTickets(ctx context.Context, event *PendingEvent, sent []expo.Message, tickets []expo.Ticket) {
	for i, ticket := range tickets {
		if ticket.Status != expo.StatusError {
			continue
		}

		detail := fmt.Sprintf("push ticket error: %s", ticket.Message)
		if ticket.Details != nil && ticket.Details.Error != "" {
			detail = fmt.Sprintf("push ticket error [%s]: %s", ticket.Details.Error, ticket.Message)
		}
		slog.Error("Push ticket reported error",
			"event_id", event.ID, "user_id", event.UserID, "detail", detail)
		d.audit(ctx, event, detail)

		if ticket.Details == nil || !expo.IsPermanentTokenError(ticket.Details.Error) {
			continue
		}
		if i >= len(sent) {
			continue
		}
		token := sent[i].To
		slog.Warn("Removing unregistered push token", "user_id", event.UserID, "token", token)
		if err := d.tokens.DeleteToken(ctx, event.UserID, token); err != nil {
			slog.Error("Failed to delete unregistered push token",
				"user_id", event.UserID, "error", err)
		}
	}
}

// persist writes the single durable notification row, then flips the
// event's processed flag. Failures here are fatal to the invocation:
// the event stays unprocessed so a redelivery can retry.
func (d *Dispatcher) persist(ctx context.Context, event *PendingEvent, notificationID string, tickets []expo.Ticket) error {
	data := make(map[string]any, len(event.Data)+2)
	for k, v := range event.Data {
		data[k] = v
	}
	data["notificationId"] = notificationID
	// Raw tickets are kept on the row for postmortem debugging.
	data["tickets"] = tickets

	notification := &Notification{
		ID:      notificationID,
		UserID:  event.UserID,
		Type:    event.Type,
		Title:   event.Title(),
		Message: event.Message(),
		Data:    data,
	}

	if err := d.store.InsertNotification(ctx, notification); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	if err := d.store.MarkEventProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark notification processed: %w", err)
	}

	return nil
}

func (d *Dispatcher) recordMetric(ctx context.Context, event *PendingEvent, notificationID string, tokens []PushToken, tickets []expo.Ticket) {
	// No tickets means every chunk failed; the notification row exists
	// but nothing reached the gateway.
	status := "sent"
	if len(tickets) == 0 {
		status = "failed"
	}

	metric := &Metric{
		NotificationID: notificationID,
		UserID:         event.UserID,
		Type:           event.Type,
		Status:         status,
		Platform:       summarizePlatforms(tokens),
		ScheduledFor:   event.dataString("scheduledFor"),
		Timezone:       event.dataString("userTimezone"),
	}
	if err := d.metrics.RecordMetric(ctx, metric); err != nil {
		slog.Warn("Failed to record notification metric",
			"notification_id", notificationID, "error", err)
	}
}

func (d *Dispatcher) scheduleReceiptCheck(ctx context.Context, event *PendingEvent, notificationID string, sent []expo.Message, tickets []expo.Ticket) {
	var ids []string
	tokensByID := make(map[string]string)
	for i, ticket := range tickets {
		if ticket.Status != expo.StatusOK || ticket.ID == "" {
			continue
		}
		ids = append(ids, ticket.ID)
		if i < len(sent) {
			tokensByID[ticket.ID] = sent[i].To
		}
	}
	if len(ids) == 0 {
		return
	}

	job := &ReceiptJob{
		UserID:         event.UserID,
		NotificationID: notificationID,
		Type:           event.Type,
		ReceiptIDs:     ids,
		TokensByID:     tokensByID,
		Payload:        event.Data,
	}
	if err := d.receipts.ScheduleReceiptCheck(ctx, job); err != nil {
		slog.Error("Failed to schedule receipt check",
			"notification_id", notificationID, "error", err)
	}
}

// audit appends a NotificationError row; the audit log itself is
// best-effort.
func (d *Dispatcher) audit(ctx context.Context, event *PendingEvent, detail string) {
	entry := &ErrorEntry{
		UserID:  event.UserID,
		Type:    event.Type,
		Detail:  detail,
		Payload: event.Data,
	}
	if err := d.errs.Record(ctx, entry); err != nil {
		slog.Warn("Failed to record notification error", "user_id", event.UserID, "error", err)
	}
}
