package dispatch

import (
	"context"
	"testing"
)

func TestBuildMessagesTemplatesByType(t *testing.T) {
	tests := []struct {
		eventType EventType
		wantTitle string
	}{
		{TypeDailyReminder, "Time to check your listings"},
		{TypePriceDrop, "Price Drop Alert!"},
		{TypeCarSold, "Car Sold!"},
		{TypeViewMilestone, "Your listing is getting noticed"},
		{TypeInactiveReminder, "We miss you!"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			p := newPipeline()
			event := &PendingEvent{UserID: "user-1", Type: tt.eventType}
			tokens := []PushToken{validToken("user-1", "aaa")}

			messages, kept := p.d.buildMessages(context.Background(), event, tokens, "nid-1")
			if len(messages) != 1 || len(kept) != 1 {
				t.Fatalf("expected 1 message, got %d", len(messages))
			}
			if messages[0].Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", messages[0].Title, tt.wantTitle)
			}
			if messages[0].Data["notificationId"] != "nid-1" {
				t.Errorf("notificationId missing from data payload")
			}
		})
	}
}

func TestBuildMessagesGenericUsesEventTitle(t *testing.T) {
	p := newPipeline()
	event := &PendingEvent{
		UserID: "user-1",
		Type:   TypeGeneric,
		Data:   map[string]any{"title": "Welcome aboard", "message": "Thanks for joining"},
	}
	tokens := []PushToken{validToken("user-1", "aaa")}

	messages, _ := p.d.buildMessages(context.Background(), event, tokens, "nid-1")
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Title != "Welcome aboard" {
		t.Errorf("title = %q, want event-provided title", messages[0].Title)
	}
	if messages[0].Body != "Thanks for joining" {
		t.Errorf("body = %q, want event-provided message", messages[0].Body)
	}
}

func TestBuildMessagesEventMessageOverridesTemplateBody(t *testing.T) {
	p := newPipeline()
	event := &PendingEvent{
		UserID: "user-1",
		Type:   TypePriceDrop,
		Data:   map[string]any{"message": "Audi A4 now $21,000"},
	}
	tokens := []PushToken{validToken("user-1", "aaa")}

	messages, _ := p.d.buildMessages(context.Background(), event, tokens, "nid-1")
	if messages[0].Body != "Audi A4 now $21,000" {
		t.Errorf("body = %q, want the event message", messages[0].Body)
	}
}

func TestBuildMessagesUnknownTypeSkipsTokens(t *testing.T) {
	p := newPipeline()
	event := &PendingEvent{UserID: "user-1", Type: EventType("mystery")}
	tokens := []PushToken{validToken("user-1", "aaa"), validToken("user-1", "bbb")}

	messages, _ := p.d.buildMessages(context.Background(), event, tokens, "nid-1")
	if len(messages) != 0 {
		t.Fatalf("unknown type must produce no messages, got %d", len(messages))
	}
	if len(p.tokens.deleted) != 0 {
		t.Fatal("unknown type must not delete well-formed tokens")
	}
}

func TestBuildMessagesMixedTokens(t *testing.T) {
	p := newPipeline()
	event := priceDropEvent()
	tokens := []PushToken{
		{UserID: "user-1", Token: "garbage"},
		validToken("user-1", "bbb"),
	}

	messages, kept := p.d.buildMessages(context.Background(), event, tokens, "nid-1")
	if len(messages) != 1 {
		t.Fatalf("expected only the valid token to produce a message, got %d", len(messages))
	}
	if kept[0].Token != "ExponentPushToken[bbb]" {
		t.Fatalf("kept = %v", kept)
	}
	if len(p.tokens.deleted) != 1 || p.tokens.deleted[0] != "garbage" {
		t.Fatalf("malformed token must be deleted, got %v", p.tokens.deleted)
	}
}

func TestSummarizePlatforms(t *testing.T) {
	tests := []struct {
		name   string
		tokens []PushToken
		want   string
	}{
		{"empty", nil, "unknown"},
		{"single", []PushToken{{Platform: "ios"}}, "ios"},
		{"same", []PushToken{{Platform: "android"}, {Platform: "android"}}, "android"},
		{"mixed", []PushToken{{Platform: "ios"}, {Platform: "android"}}, "multiple"},
		{"blank ignored", []PushToken{{Platform: ""}, {Platform: "ios"}}, "ios"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summarizePlatforms(tt.tokens); got != tt.want {
				t.Errorf("summarizePlatforms() = %q, want %q", got, tt.want)
			}
		})
	}
}
