package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"cspace/internal/app/commands"
	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/middleware"
	"cspace/internal/app/policies"
	"cspace/internal/app/uow"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/money"
)

const initiateCheckoutKey = "settlement.checkout"

type InitiateCheckoutCommand struct {
	PaymentID       string `validate:"required"`
	PayerID         string `validate:"required"`
	SuccessURL      string `validate:"required,url"`
	CancelURL       string `validate:"required,url"`
	IdempotencyKeyV string
}

func (c InitiateCheckoutCommand) Key() string { return initiateCheckoutKey }

// ManagesUnit keeps the gateway call outside any write unit.
func (c InitiateCheckoutCommand) ManagesUnit() bool { return true }

func (c InitiateCheckoutCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c InitiateCheckoutCommand) ResultPrototype() any { return &policies.CheckoutSession{} }

// InitiateCheckoutHandler opens a hosted payment page for an unpaid record.
// The record is settled later, when the gateway reports completion.
type InitiateCheckoutHandler struct {
	UoWFactory uow.UoWFactory
	Gateway    policies.PaymentGateway
	Logger     *slog.Logger
}

func (h *InitiateCheckoutHandler) Handle(ctx context.Context, cmd InitiateCheckoutCommand) (*policies.CheckoutSession, error) {
	if h.Gateway == nil {
		return nil, policies.ErrGatewayDisabled
	}
	req, err := h.prepare(ctx, cmd)
	if err != nil {
		return nil, err
	}
	session, err := h.Gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, fault.External("gateway", err)
	}

	if h.Logger != nil {
		h.Logger.Info("checkout session created", "record_id", cmd.PaymentID, "payer_id", cmd.PayerID, "session_id", session.ID)
	}
	return &session, nil
}

func (h *InitiateCheckoutHandler) prepare(ctx context.Context, cmd InitiateCheckoutCommand) (policies.CheckoutRequest, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return policies.CheckoutRequest{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	record, err := unit.Records().ByID(execCtx, domainbilling.RecordID(cmd.PaymentID))
	if err != nil {
		return policies.CheckoutRequest{}, err
	}
	if !record.Payable() {
		return policies.CheckoutRequest{}, fmt.Errorf("%w: record is %s", domainbilling.ErrInvalidState, record.Status)
	}
	if _, err := unit.Users().ByID(execCtx, directory.UserID(cmd.PayerID)); err != nil {
		return policies.CheckoutRequest{}, err
	}
	cycle, err := unit.Cycles().ByID(execCtx, record.CycleID)
	if err != nil {
		return policies.CheckoutRequest{}, err
	}
	location, err := unit.Locations().ByID(execCtx, record.LocationID)
	if err != nil {
		return policies.CheckoutRequest{}, err
	}
	if !location.HasPayoutDestination() {
		return policies.CheckoutRequest{}, directory.ErrNoPayoutAccount
	}
	amount, err := money.New(record.BilledAmount, record.Currency)
	if err != nil {
		return policies.CheckoutRequest{}, err
	}
	if !amount.IsPositive() {
		return policies.CheckoutRequest{}, fault.Invalid("settlement: nothing to collect for record %s", record.ID)
	}
	return policies.CheckoutRequest{
		PaymentID:   string(record.ID),
		PayerID:     cmd.PayerID,
		Description: fmt.Sprintf("%s rent for %s", location.Name, cycle.Period().Key()),
		Amount:      amount,
		SuccessURL:  cmd.SuccessURL,
		CancelURL:   cmd.CancelURL,
	}, nil
}

var _ commands.Handler[InitiateCheckoutCommand, *policies.CheckoutSession] = (*InitiateCheckoutHandler)(nil)
var _ middleware.SelfManagedCommand = InitiateCheckoutCommand{}
