package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"carnotify/internal/expo"
)

// Reconciler fetches delayed delivery receipts for previously sent
// tickets. It runs after the originating request has completed, so
// nothing here may propagate an error back to a caller: failures are
// logged, receipt errors are audited, and permanently dead tokens are
// pruned.
type Reconciler struct {
	tokens  TokenStore
	errs    ErrorLog
	gateway Gateway
}

func NewReconciler(tokens TokenStore, errs ErrorLog, gateway Gateway) *Reconciler {
	return &Reconciler{
		tokens:  tokens,
		errs:    errs,
		gateway: gateway,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, job *ReceiptJob) {
	for _, chunk := range r.gateway.ChunkReceiptIDs(job.ReceiptIDs) {
		receipts, err := r.gateway.GetReceipts(ctx, chunk)
		if err != nil {
			slog.Error("Failed to fetch push receipts",
				"user_id", job.UserID, "notification_id", job.NotificationID, "error", err)
			continue
		}

		for id, receipt := range receipts {
			if receipt.Status != expo.StatusError {
				continue
			}
			r.handleErrorReceipt(ctx, job, id, receipt)
		}
	}
}

func (r *Reconciler) handleErrorReceipt(ctx context.Context, job *ReceiptJob, ticketID string, receipt expo.Receipt) {
	detail := fmt.Sprintf("push receipt error: %s", receipt.Message)
	if receipt.Details != nil && receipt.Details.Error != "" {
		detail = fmt.Sprintf("push receipt error [%s]: %s", receipt.Details.Error, receipt.Message)
	}

	slog.Error("Push receipt reported error",
		"user_id", job.UserID,
		"notification_id", job.NotificationID,
		"ticket_id", ticketID,
		"detail", detail)

	entry := &ErrorEntry{
		UserID:  job.UserID,
		Type:    job.Type,
		Detail:  detail,
		Payload: job.Payload,
	}
	if err := r.errs.Record(ctx, entry); err != nil {
		slog.Warn("Failed to record receipt error", "user_id", job.UserID, "error", err)
	}

	if receipt.Details == nil || !expo.IsPermanentTokenError(receipt.Details.Error) {
		return
	}

	token, ok := job.TokensByID[ticketID]
	if !ok {
		slog.Warn("Receipt has no matching token", "ticket_id", ticketID, "user_id", job.UserID)
		return
	}
	slog.Warn("Removing unregistered push token", "user_id", job.UserID, "token", token)
	if err := r.tokens.DeleteToken(ctx, job.UserID, token); err != nil {
		slog.Error("Failed to delete unregistered push token", "user_id", job.UserID, "error", err)
	}
}
