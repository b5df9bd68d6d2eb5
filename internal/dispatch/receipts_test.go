package dispatch

import (
	"context"
	"errors"
	"testing"

	"carnotify/internal/expo"
)

func newReconciler() (*Reconciler, *fakeTokenStore, *fakeErrorLog, *fakeGateway) {
	tokens := &fakeTokenStore{}
	errs := &fakeErrorLog{}
	gateway := &fakeGateway{}
	return NewReconciler(tokens, errs, gateway), tokens, errs, gateway
}

func receiptJob() *ReceiptJob {
	return &ReceiptJob{
		UserID:         "user-1",
		NotificationID: "nid-1",
		Type:           TypePriceDrop,
		ReceiptIDs:     []string{"ticket-1", "ticket-2"},
		TokensByID: map[string]string{
			"ticket-1": "ExponentPushToken[aaa]",
			"ticket-2": "ExponentPushToken[bbb]",
		},
		Payload: map[string]any{"carId": "car-9"},
	}
}

func TestReconcileOKReceiptsIgnored(t *testing.T) {
	r, tokens, errs, gateway := newReconciler()
	gateway.receipts = map[string]expo.Receipt{
		"ticket-1": {Status: expo.StatusOK},
		"ticket-2": {Status: expo.StatusOK},
	}

	r.Reconcile(context.Background(), receiptJob())

	if len(errs.entries) != 0 {
		t.Fatalf("ok receipts must not be audited, got %d entries", len(errs.entries))
	}
	if len(tokens.deleted) != 0 {
		t.Fatalf("ok receipts must not delete tokens, got %v", tokens.deleted)
	}
}

func TestReconcileDeviceNotRegisteredDeletesToken(t *testing.T) {
	r, tokens, errs, gateway := newReconciler()
	gateway.receipts = map[string]expo.Receipt{
		"ticket-1": {Status: expo.StatusOK},
		"ticket-2": {
			Status:  expo.StatusError,
			Message: "device is not registered",
			Details: &expo.ErrorDetails{Error: expo.ErrDeviceNotRegistered},
		},
	}

	r.Reconcile(context.Background(), receiptJob())

	if len(tokens.deleted) != 1 || tokens.deleted[0] != "ExponentPushToken[bbb]" {
		t.Fatalf("exactly the dead destination must be deleted, got %v", tokens.deleted)
	}
	if len(errs.entries) != 1 {
		t.Fatalf("receipt error must be audited, got %d entries", len(errs.entries))
	}
	if errs.entries[0].Payload["carId"] != "car-9" {
		t.Fatal("audit entry must carry the original event payload")
	}
}

func TestReconcileTransientErrorLoggedOnly(t *testing.T) {
	r, tokens, errs, gateway := newReconciler()
	gateway.receipts = map[string]expo.Receipt{
		"ticket-1": {
			Status:  expo.StatusError,
			Message: "rate exceeded",
			Details: &expo.ErrorDetails{Error: expo.ErrMessageRateExceeded},
		},
	}

	r.Reconcile(context.Background(), receiptJob())

	if len(tokens.deleted) != 0 {
		t.Fatalf("transient errors must not delete tokens, got %v", tokens.deleted)
	}
	if len(errs.entries) != 1 {
		t.Fatalf("transient errors are still audited, got %d entries", len(errs.entries))
	}
}

func TestReconcileFetchFailureDoesNotPanicOrPropagate(t *testing.T) {
	r, tokens, errs, gateway := newReconciler()
	gateway.receiptsErr = errors.New("gateway timeout")

	r.Reconcile(context.Background(), receiptJob())

	if len(tokens.deleted) != 0 || len(errs.entries) != 0 {
		t.Fatal("fetch failure must be contained to the log")
	}
}

func TestReconcileChunksReceiptIDs(t *testing.T) {
	r, _, _, gateway := newReconciler()
	gateway.chunkSize = 1
	gateway.receipts = map[string]expo.Receipt{}

	r.Reconcile(context.Background(), receiptJob())

	if len(gateway.receiptCalls) != 2 {
		t.Fatalf("expected 2 receipt lookups, got %d", len(gateway.receiptCalls))
	}
}
