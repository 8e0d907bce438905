package policies

import "context"

type Notifier interface {
	Notify(ctx context.Context, userIDs []string, title, body, correlationID string) error
}

type Mailer interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}
