package stripe

import (
	"context"
	"errors"
	"strings"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"cspace/internal/app/policies"
	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/money"
)

const (
	metaPaymentID = "payment_id"
	metaPayerID   = "payer_id"
)

// Gateway collects rent through Stripe Checkout and forwards it to the
// location's Connect account.
type Gateway struct {
	api *client.API
}

func NewGateway(secretKey string) (*Gateway, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{api: api}, nil
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req policies.CheckoutRequest) (policies.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{
		Params:            stripego.Params{Context: ctx},
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL:        stripego.String(req.SuccessURL),
		CancelURL:         stripego.String(req.CancelURL),
		ClientReferenceID: stripego.String(req.PaymentID),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripego.String(req.Amount.LowerCurrency()),
				UnitAmount: stripego.Int64(req.Amount.Amount),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(req.Description),
				},
			},
			Quantity: stripego.Int64(1),
		}},
	}
	params.AddMetadata(metaPaymentID, req.PaymentID)
	params.AddMetadata(metaPayerID, req.PayerID)
	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return policies.CheckoutSession{}, fault.External("stripe", err)
	}
	return policies.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// TransferFunds moves amount to the connected account. Stripe replays the
// first response for a repeated idempotency key, so retries never pay twice.
func (g *Gateway) TransferFunds(ctx context.Context, destination string, amount money.Money, idempotencyKey string) (string, error) {
	params := &stripego.TransferParams{
		Params:      stripego.Params{Context: ctx, IdempotencyKey: stripego.String(idempotencyKey)},
		Amount:      stripego.Int64(amount.Amount),
		Currency:    stripego.String(amount.LowerCurrency()),
		Destination: stripego.String(destination),
	}
	tr, err := g.api.Transfers.New(params)
	if err != nil {
		return "", fault.External("stripe", err)
	}
	return tr.ID, nil
}

func (g *Gateway) ExchangeAuthorizationCode(ctx context.Context, code string) (string, error) {
	token, err := g.api.OAuth.New(&stripego.OAuthTokenParams{
		Params:    stripego.Params{Context: ctx},
		GrantType: stripego.String("authorization_code"),
		Code:      stripego.String(code),
	})
	if err != nil {
		var serr *stripego.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == 400 {
			return "", fault.Invalid("stripe: authorization code rejected: %s", serr.Msg)
		}
		return "", fault.External("stripe", err)
	}
	return token.StripeUserID, nil
}

// Disabled stands in when no Stripe key is configured.
type Disabled struct{}

func (Disabled) CreateCheckoutSession(context.Context, policies.CheckoutRequest) (policies.CheckoutSession, error) {
	return policies.CheckoutSession{}, policies.ErrGatewayDisabled
}

func (Disabled) TransferFunds(context.Context, string, money.Money, string) (string, error) {
	return "", policies.ErrGatewayDisabled
}

func (Disabled) ExchangeAuthorizationCode(context.Context, string) (string, error) {
	return "", policies.ErrGatewayDisabled
}

var _ policies.PaymentGateway = (*Gateway)(nil)
var _ policies.PaymentGateway = Disabled{}
