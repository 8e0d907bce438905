package firebase

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"cspace/internal/app/policies"
	"cspace/internal/domain/shared/fault"
)

// fcmBatchLimit is the most messages SendEach accepts per call.
const fcmBatchLimit = 500

// TokenResolver maps user ids to device registration tokens. Users without a
// token are omitted.
type TokenResolver func(ctx context.Context, userIDs []string) ([]string, error)

type Config struct {
	CredentialsPath string
	ProjectID       string
}

type Notifier struct {
	client  *messaging.Client
	resolve TokenResolver
	logger  *slog.Logger
}

func NewNotifier(ctx context.Context, cfg Config, resolve TokenResolver, logger *slog.Logger) (*Notifier, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("firebase: init app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: messaging client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, resolve: resolve, logger: logger}, nil
}

func (n *Notifier) Notify(ctx context.Context, userIDs []string, title, body, correlationID string) error {
	tokens, err := n.resolve(ctx, userIDs)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	messages := make([]*messaging.Message, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, &messaging.Message{
			Token:        token,
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         map[string]string{"correlation_id": correlationID},
			Android:      &messaging.AndroidConfig{Priority: "high"},
		})
	}
	for start := 0; start < len(messages); start += fcmBatchLimit {
		end := min(start+fcmBatchLimit, len(messages))
		resp, err := n.client.SendEach(ctx, messages[start:end])
		if err != nil {
			return fault.External("firebase", err)
		}
		if resp.FailureCount > 0 {
			// stale tokens are common; they are logged rather than retried
			n.logger.Warn("push partially failed", "correlation_id", correlationID, "failed", resp.FailureCount, "sent", resp.SuccessCount)
		}
	}
	return nil
}

var _ policies.Notifier = (*Notifier)(nil)
