package dispatch

import (
	"context"
	"log/slog"

	"carnotify/internal/expo"
)

type messageTemplate struct {
	title     string
	body      string
	sound     string
	channelID string
	priority  string
}

// templates maps each event type to its push presentation. The body
// falls back to these defaults when the event carries no message of
// its own.
var templates = map[EventType]messageTemplate{
	TypeDailyReminder: {
		title:     "Time to check your listings",
		body:      "See how your cars performed today.",
		sound:     "default",
		channelID: "reminders",
		priority:  "default",
	},
	TypePriceDrop: {
		title:     "Price Drop Alert!",
		body:      "A car you follow just dropped in price.",
		sound:     "default",
		channelID: "alerts",
		priority:  "high",
	},
	TypeCarSold: {
		title:     "Car Sold!",
		body:      "One of the cars you follow has been sold.",
		sound:     "default",
		channelID: "alerts",
		priority:  "high",
	},
	TypeViewMilestone: {
		title:     "Your listing is getting noticed",
		body:      "Your listing just hit a new views milestone.",
		sound:     "default",
		channelID: "activity",
		priority:  "default",
	},
	TypeInactiveReminder: {
		title:     "We miss you!",
		body:      "Buyers are still browsing. Come back and check your listings.",
		sound:     "default",
		channelID: "reminders",
		priority:  "default",
	},
	TypeGeneric: {
		sound:     "default",
		channelID: "general",
		priority:  "default",
	},
}

// buildMessages fans one event out into one push message per valid
// destination. Tokens failing format validation are deleted from the
// store and skipped; an unknown event type skips the token with a
// logged error. Neither aborts the event. The returned token slice is
// index-aligned with the messages.
func (d *Dispatcher) buildMessages(ctx context.Context, event *PendingEvent, tokens []PushToken, notificationID string) ([]expo.Message, []PushToken) {
	var (
		messages []expo.Message
		kept     []PushToken
	)

	for _, tok := range tokens {
		if !expo.IsExpoPushToken(tok.Token) {
			slog.Warn("Removing malformed push token", "user_id", tok.UserID, "token", tok.Token)
			if err := d.tokens.DeleteToken(ctx, tok.UserID, tok.Token); err != nil {
				slog.Error("Failed to delete malformed push token", "user_id", tok.UserID, "error", err)
			}
			continue
		}

		tmpl, ok := templates[event.Type]
		if !ok {
			slog.Error("Unknown notification type, skipping token",
				"type", event.Type, "user_id", event.UserID, "token", tok.Token)
			continue
		}

		messages = append(messages, buildMessage(event, tok, tmpl, notificationID))
		kept = append(kept, tok)
	}

	return messages, kept
}

func buildMessage(event *PendingEvent, tok PushToken, tmpl messageTemplate, notificationID string) expo.Message {
	title := tmpl.title
	if title == "" {
		title = event.Title()
	}
	body := event.Message()
	if body == "" {
		body = tmpl.body
	}

	data := make(map[string]any, len(event.Data)+2)
	for k, v := range event.Data {
		data[k] = v
	}
	// Every device reports against the same logical notification.
	data["notificationId"] = notificationID
	data["type"] = string(event.Type)

	return expo.Message{
		To:        tok.Token,
		Title:     title,
		Body:      body,
		Data:      data,
		Sound:     tmpl.sound,
		ChannelID: tmpl.channelID,
		Priority:  tmpl.priority,
	}
}

func summarizePlatforms(tokens []PushToken) string {
	platform := ""
	for _, tok := range tokens {
		if tok.Platform == "" {
			continue
		}
		if platform == "" {
			platform = tok.Platform
			continue
		}
		if platform != tok.Platform {
			return "multiple"
		}
	}
	if platform == "" {
		return "unknown"
	}
	return platform
}
