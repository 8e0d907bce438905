package stripe

import (
	"encoding/json"
	"fmt"
	"strings"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"cspace/internal/app/policies"
)

const (
	eventSessionCompleted    = "checkout.session.completed"
	eventAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
)

// Verifier checks Stripe-Signature headers against the endpoint secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) Verifier {
	return Verifier{secret: strings.TrimSpace(secret)}
}

func (v Verifier) ParseSettlement(payload []byte, signature string) (policies.SettlementEvent, error) {
	if v.secret == "" {
		return policies.SettlementEvent{}, policies.ErrGatewayDisabled
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return policies.SettlementEvent{}, fmt.Errorf("%w: %v", policies.ErrInvalidSignature, err)
	}
	out := policies.SettlementEvent{EventID: event.ID, Type: string(event.Type)}
	if out.Type != eventSessionCompleted && out.Type != eventAsyncPaymentSuccess {
		return out, nil
	}
	var sess stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return policies.SettlementEvent{}, fmt.Errorf("%w: checkout session body: %v", policies.ErrInvalidSignature, err)
	}
	// delayed methods complete the session before the money arrives
	out.Completed = sess.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid
	out.PaymentID = sess.Metadata[metaPaymentID]
	out.PayerID = sess.Metadata[metaPayerID]
	return out, nil
}

var _ policies.WebhookVerifier = Verifier{}
