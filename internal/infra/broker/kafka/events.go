package kafka

import (
	"context"
	"log/slog"

	"github.com/IBM/sarama"

	appoutbox "cspace/internal/app/outbox"
	"cspace/internal/app/policies"
	"cspace/internal/infra/outbox"
)

// EventHandler feeds CloudEvents from the billing topic into an in-process
// sink, skipping ids the inbox has already recorded as processed.
type EventHandler struct {
	Sink   appoutbox.Sink
	Inbox  policies.Inbox
	Logger *slog.Logger
}

func (h EventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	rec, err := outbox.DecodeCloudEvent(msg.Value)
	if err != nil {
		// poison message; acknowledge so the partition keeps moving
		h.logger().Error("kafka: undecodable event dropped", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if h.Inbox != nil && rec.ID != "" {
		done, err := h.Inbox.Processed(ctx, rec.ID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	if err := h.Sink.Handle(ctx, rec); err != nil {
		return err
	}
	if h.Inbox != nil && rec.ID != "" {
		// the sink already ran; a lost mark means at most one repeated delivery
		if err := h.Inbox.Mark(context.WithoutCancel(ctx), rec.ID); err != nil {
			h.logger().Warn("kafka: event not marked processed", "event_id", rec.ID, "error", err)
		}
	}
	return nil
}

func (h EventHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var _ MessageHandler = EventHandler{}
