package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"carnotify/internal/dispatch"
)

// Store is the slice of the database the scheduler needs: registered
// destinations, the pending-event backlog, and each user's last
// notification time.
type Store interface {
	AllTokens(ctx context.Context) ([]dispatch.PushToken, error)
	HasUnprocessedEvent(ctx context.Context, userID string, t dispatch.EventType) (bool, error)
	InsertPendingEvent(ctx context.Context, e *dispatch.PendingEvent) (int64, error)
	LastNotificationAt(ctx context.Context, userID string) (time.Time, error)
}

// Scheduler emits reminder pending events once per user per day, at
// the user's local reminder hour. Users who have not been notified for
// the inactivity window get an inactive_reminder instead of the daily
// digest. It only writes pending_notifications rows; the database
// trigger delivers them to the dispatch webhook like any other event.
type Scheduler struct {
	store         Store
	cron          *cron.Cron
	reminderHour  int
	inactiveAfter time.Duration
}

func New(store Store, reminderHour int, inactiveAfter time.Duration) *Scheduler {
	return &Scheduler{
		store:         store,
		cron:          cron.New(),
		reminderHour:  reminderHour,
		inactiveAfter: inactiveAfter,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.emitReminders); err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}
	s.cron.Start()
	slog.Info("Reminder scheduler started",
		"reminder_hour", s.reminderHour, "inactive_after", s.inactiveAfter)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("Reminder scheduler stopped")
}

func (s *Scheduler) emitReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s.sweep(ctx, time.Now())
}

func (s *Scheduler) sweep(ctx context.Context, now time.Time) {
	tokens, err := s.store.AllTokens(ctx)
	if err != nil {
		slog.Error("Failed to fetch push tokens for reminders", "error", err)
		return
	}

	emitted := 0
	seen := make(map[string]bool)

	for _, tok := range tokens {
		if seen[tok.UserID] {
			continue
		}
		seen[tok.UserID] = true

		hour := localHour(now, tok.Timezone)
		if hour != s.reminderHour {
			continue
		}

		eventType := s.reminderType(ctx, tok.UserID, now)

		// Don't pile reminders behind an undelivered one.
		pending, err := s.store.HasUnprocessedEvent(ctx, tok.UserID, eventType)
		if err != nil || pending {
			continue
		}

		event := &dispatch.PendingEvent{
			UserID: tok.UserID,
			Type:   eventType,
			Data:   reminderData(eventType, hour, now, tok.Timezone),
		}
		if _, err := s.store.InsertPendingEvent(ctx, event); err != nil {
			slog.Error("Failed to emit reminder",
				"user_id", tok.UserID, "type", eventType, "error", err)
			continue
		}
		emitted++
	}

	slog.Info("Reminder sweep completed", "users", len(seen), "emitted", emitted)
}

// reminderType picks between the daily digest and the inactivity
// nudge. A user whose newest notification is older than the inactivity
// window gets inactive_reminder; users with no notifications at all
// are new, not lapsed, and get the daily digest.
func (s *Scheduler) reminderType(ctx context.Context, userID string, now time.Time) dispatch.EventType {
	last, err := s.store.LastNotificationAt(ctx, userID)
	if err != nil {
		slog.Warn("Failed to fetch last notification time, assuming active",
			"user_id", userID, "error", err)
		return dispatch.TypeDailyReminder
	}
	if !last.IsZero() && now.Sub(last) >= s.inactiveAfter {
		return dispatch.TypeInactiveReminder
	}
	return dispatch.TypeDailyReminder
}

func reminderData(t dispatch.EventType, hour int, now time.Time, timezone string) map[string]any {
	title := "Time to check your listings"
	message := "See how your cars performed today."
	if t == dispatch.TypeInactiveReminder {
		title = "We miss you!"
		message = "Buyers are still browsing. Come back and check your listings."
	}
	return map[string]any{
		"title":        title,
		"message":      message,
		"hour":         hour,
		"scheduledFor": now.Format(time.RFC3339),
		"userTimezone": timezone,
	}
}

// localHour resolves the hour of day in the user's timezone. An empty
// or unknown timezone falls back to UTC.
func localHour(now time.Time, timezone string) int {
	loc := time.UTC
	if timezone != "" {
		parsed, err := time.LoadLocation(timezone)
		if err != nil {
			slog.Warn("Unknown timezone, using UTC", "timezone", timezone)
		} else {
			loc = parsed
		}
	}
	return now.In(loc).Hour()
}
