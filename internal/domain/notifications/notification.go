package notifications

import (
	"context"
	"time"

	"cspace/internal/domain/directory"
)

type ID string

type Kind string

const (
	KindCyclePublished  Kind = "CYCLE_PUBLISHED"
	KindPaymentReceipt  Kind = "PAYMENT_RECEIPT"
	KindPaymentReceived Kind = "PAYMENT_RECEIVED"
	KindCycleCompleted  Kind = "CYCLE_COMPLETED"
)

// Notification is one recipient's copy of a message shown in the in-app inbox.
type Notification struct {
	ID         ID
	UserID     directory.UserID
	LocationID directory.LocationID
	Title      string
	Body       string
	Kind       Kind
	DataID     string
	AdminOnly  bool
	Read       bool
	CreatedAt  time.Time
}

type Repository interface {
	Add(ctx context.Context, items ...*Notification) error
	ListByUser(ctx context.Context, user directory.UserID, limit int) ([]*Notification, error)
}
