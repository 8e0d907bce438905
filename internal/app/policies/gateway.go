package policies

import (
	"context"
	"errors"

	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/money"
)

var (
	ErrInvalidSignature = fault.Invalid("gateway: webhook signature rejected")
	ErrGatewayDisabled  = fault.External("gateway", errors.New("payment gateway not configured"))
)

type CheckoutRequest struct {
	PaymentID   string
	PayerID     string
	Description string
	Amount      money.Money
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PaymentGateway is the card processor that collects rent and forwards it to
// the location's connected account.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	TransferFunds(ctx context.Context, destination string, amount money.Money, idempotencyKey string) (string, error)
	ExchangeAuthorizationCode(ctx context.Context, code string) (string, error)
}

// SettlementEvent is the part of a gateway callback the engine cares about.
type SettlementEvent struct {
	EventID   string
	Type      string
	Completed bool
	PaymentID string
	PayerID   string
}

type WebhookVerifier interface {
	// ParseSettlement checks the signature and decodes the event. It returns
	// ErrInvalidSignature when the payload was not signed by the gateway.
	ParseSettlement(payload []byte, signature string) (SettlementEvent, error)
}

// Inbox remembers external message ids whose effects are committed. Callers
// check before handling and mark only after the handling succeeded, so a
// failure or crash in between leaves the message eligible for redelivery.
type Inbox interface {
	Processed(ctx context.Context, id string) (bool, error)
	// Mark is idempotent.
	Mark(ctx context.Context, id string) error
}
