package stripe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"cspace/internal/app/policies"
	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/money"
)

const secret = "whsec_test"

func signed(t *testing.T, eventType, paymentStatus string) ([]byte, string) {
	t.Helper()
	body := fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "type": %q,
  "data": {"object": {
    "id": "cs_1",
    "object": "checkout.session",
    "payment_status": %q,
    "metadata": {"payment_id": "rec-1", "payer_id": "u-1"}
  }}
}`, eventType, paymentStatus)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestVerifierParsesCompletedCheckout(t *testing.T) {
	payload, header := signed(t, "checkout.session.completed", "paid")

	ev, err := NewVerifier(secret).ParseSettlement(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.EventID)
	assert.True(t, ev.Completed)
	assert.Equal(t, "rec-1", ev.PaymentID)
	assert.Equal(t, "u-1", ev.PayerID)
}

func TestVerifierLeavesUnpaidSessionsIncomplete(t *testing.T) {
	payload, header := signed(t, "checkout.session.completed", "unpaid")

	ev, err := NewVerifier(secret).ParseSettlement(payload, header)
	require.NoError(t, err)
	assert.False(t, ev.Completed)
}

func TestVerifierIgnoresOtherEventTypes(t *testing.T) {
	payload, header := signed(t, "customer.created", "paid")

	ev, err := NewVerifier(secret).ParseSettlement(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "customer.created", ev.Type)
	assert.False(t, ev.Completed)
	assert.Empty(t, ev.PaymentID)
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	payload, header := signed(t, "checkout.session.completed", "paid")

	_, err := NewVerifier("whsec_other").ParseSettlement(payload, header)
	assert.ErrorIs(t, err, policies.ErrInvalidSignature)
	assert.ErrorIs(t, err, fault.ErrInvalidInput)
}

func TestVerifierWithoutSecretIsDisabled(t *testing.T) {
	payload, header := signed(t, "checkout.session.completed", "paid")

	_, err := NewVerifier("  ").ParseSettlement(payload, header)
	assert.ErrorIs(t, err, policies.ErrGatewayDisabled)
}

func TestDisabledGatewayRefusesEverything(t *testing.T) {
	ctx := context.Background()
	_, err := Disabled{}.CreateCheckoutSession(ctx, policies.CheckoutRequest{})
	assert.ErrorIs(t, err, policies.ErrGatewayDisabled)
	_, err = Disabled{}.TransferFunds(ctx, "acct_1", money.Money{}, "rec-1")
	assert.ErrorIs(t, err, fault.ErrExternalService)
	_, err = Disabled{}.ExchangeAuthorizationCode(ctx, "code")
	assert.ErrorIs(t, err, policies.ErrGatewayDisabled)
}
