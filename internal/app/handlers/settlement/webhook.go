package settlement

import (
	"context"
	"errors"
	"log/slog"

	"cspace/internal/app/commands"
	"cspace/internal/app/policies"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/fault"
)

// WebhookIngestor verifies gateway callbacks and feeds completed checkouts into
// the settlement pipeline exactly once per gateway event.
type WebhookIngestor struct {
	Verifier policies.WebhookVerifier
	Inbox    policies.Inbox
	Commands commands.Bus
	Logger   *slog.Logger
}

// Ingest returns nil when the event was applied, ignored, or rejected for a
// reason redelivery cannot fix. It returns an error when the gateway should
// retry, or policies.ErrInvalidSignature for forged payloads.
func (w *WebhookIngestor) Ingest(ctx context.Context, payload []byte, signature string) error {
	if w.Verifier == nil {
		return policies.ErrGatewayDisabled
	}
	event, err := w.Verifier.ParseSettlement(payload, signature)
	if err != nil {
		return err
	}
	logger := w.logger().With("event_id", event.EventID, "event_type", event.Type)
	if !event.Completed {
		logger.Debug("gateway event ignored")
		return nil
	}
	if event.PaymentID == "" || event.PayerID == "" {
		logger.Warn("gateway event missing payment metadata")
		return nil
	}

	if w.Inbox != nil && event.EventID != "" {
		done, err := w.Inbox.Processed(ctx, event.EventID)
		if err != nil {
			return err
		}
		if done {
			logger.Info("duplicate gateway event skipped")
			return nil
		}
	}

	_, err = commands.Dispatch[HandleGatewaySettlementCommand, *Outcome](ctx, w.Commands, HandleGatewaySettlementCommand{
		PaymentID: event.PaymentID,
		PayerID:   event.PayerID,
		EventID:   event.EventID,
	})
	if err != nil && !permanent(err) {
		return err
	}
	if err != nil {
		logger.Error("gateway settlement rejected", "payment_id", event.PaymentID, "error", err)
	}
	w.markProcessed(ctx, logger, event.EventID)
	return nil
}

// markProcessed runs after the settlement committed, even if the gateway has
// already hung up. A lost mark only costs a redelivery that finds the record paid.
func (w *WebhookIngestor) markProcessed(ctx context.Context, logger *slog.Logger, eventID string) {
	if w.Inbox == nil || eventID == "" {
		return
	}
	if err := w.Inbox.Mark(context.WithoutCancel(ctx), eventID); err != nil {
		logger.Warn("gateway event not marked processed", "error", err)
	}
}

// permanent reports failures that a redelivery of the same event would hit again.
func permanent(err error) bool {
	switch fault.Kind(err) {
	case fault.ErrNotFound, fault.ErrInvalidInput, fault.ErrDuplicate, fault.ErrInvariantViolation:
		return true
	case fault.ErrInvalidTransition:
		// A location may connect its payout account after the checkout.
		return !errors.Is(err, fault.ErrConcurrentUpdate) &&
			!errors.Is(err, policies.ErrLockHeld) &&
			!errors.Is(err, directory.ErrNoPayoutAccount)
	default:
		return false
	}
}

func (w *WebhookIngestor) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
