package expo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsExpoPushToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]", true},
		{"ExpoPushToken[yyyy]", true},
		{"ExponentPushToken[]", false},
		{"ExponentPushToken[abc", false},
		{"abc]", false},
		{"", false},
		{"fcm-token-123", false},
		{"APA91bHun4MxP5egoKMwt2KZFBaFUH-1RYqx", false},
	}
	for _, tt := range tests {
		if got := IsExpoPushToken(tt.token); got != tt.want {
			t.Errorf("IsExpoPushToken(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestChunk(t *testing.T) {
	c := NewClient()

	messages := make([]Message, 250)
	chunks := c.Chunk(messages)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 250 messages, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
		t.Fatalf("unexpected chunk sizes: %d/%d/%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}

	if got := c.Chunk(nil); got != nil {
		t.Fatalf("chunking no messages should produce no chunks, got %v", got)
	}
}

func TestChunkReceiptIDs(t *testing.T) {
	c := NewClient()

	ids := make([]string, 301)
	chunks := c.ChunkReceiptIDs(ids)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks for 301 ids, got %d", len(chunks))
	}
	if len(chunks[0]) != 300 || len(chunks[1]) != 1 {
		t.Fatalf("unexpected chunk sizes: %d/%d", len(chunks[0]), len(chunks[1]))
	}
}

func TestSendReturnsTicketsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/push/send" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var messages []Message
		if err := json.NewDecoder(r.Body).Decode(&messages); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		tickets := make([]Ticket, 0, len(messages))
		for i := range messages {
			tickets = append(tickets, Ticket{ID: fmt.Sprintf("id-%d", i), Status: StatusOK})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": tickets})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	tickets, err := c.Send(context.Background(), []Message{
		{To: "ExponentPushToken[aaa]", Title: "hi"},
		{To: "ExponentPushToken[bbb]", Title: "hi"},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(tickets) != 2 || tickets[0].ID != "id-0" || tickets[1].ID != "id-1" {
		t.Fatalf("unexpected tickets: %+v", tickets)
	}
}

func TestSendTicketCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []Ticket{}})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(), []Message{{To: "ExponentPushToken[aaa]"}})
	if err == nil {
		t.Fatal("expected an error when ticket count does not match message count")
	}
}

func TestSendGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream error")
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(), []Message{{To: "ExponentPushToken[aaa]"}})
	if err == nil {
		t.Fatal("expected an error on non-200 response")
	}
}

func TestSendRequestLevelErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]string{{"code": "PUSH_TOO_MANY_EXPERIENCE_IDS", "message": "bad batch"}},
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(), []Message{{To: "ExponentPushToken[aaa]"}})
	if err == nil {
		t.Fatal("expected request-level errors to surface")
	}
}

func TestGetReceipts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/push/getReceipts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.IDs) != 2 {
			t.Errorf("expected 2 ids, got %d", len(req.IDs))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]Receipt{
				"id-0": {Status: StatusOK},
				"id-1": {
					Status:  StatusError,
					Message: "not registered",
					Details: &ErrorDetails{Error: ErrDeviceNotRegistered},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	receipts, err := c.GetReceipts(context.Background(), []string{"id-0", "id-1"})
	if err != nil {
		t.Fatalf("GetReceipts returned error: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(receipts))
	}
	if receipts["id-1"].Details == nil || receipts["id-1"].Details.Error != ErrDeviceNotRegistered {
		t.Fatalf("unexpected receipt: %+v", receipts["id-1"])
	}
}

func TestAccessTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []Ticket{{ID: "id-0", Status: StatusOK}}})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithAccessToken("secret-token"))
	if _, err := c.Send(context.Background(), []Message{{To: "ExponentPushToken[aaa]"}}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
}

func TestIsPermanentTokenError(t *testing.T) {
	if !IsPermanentTokenError(ErrDeviceNotRegistered) {
		t.Error("DeviceNotRegistered must be permanent")
	}
	for _, code := range []string{ErrMessageTooBig, ErrMessageRateExceeded, ErrInvalidCredentials, ""} {
		if IsPermanentTokenError(code) {
			t.Errorf("%q must not be treated as permanent", code)
		}
	}
}
