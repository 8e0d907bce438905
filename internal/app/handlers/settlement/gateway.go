package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

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

const gatewaySettlementKey = "settlement.gateway"

// HandleGatewaySettlementCommand is dispatched when the gateway confirms a
// completed checkout.
type HandleGatewaySettlementCommand struct {
	PaymentID string `validate:"required"`
	PayerID   string `validate:"required"`
	EventID   string
}

func (c HandleGatewaySettlementCommand) Key() string { return gatewaySettlementKey }

func (c HandleGatewaySettlementCommand) LockKey() string { return paymentLockKey(c.PaymentID) }

// ManagesUnit keeps the funds transfer outside the write unit.
func (c HandleGatewaySettlementCommand) ManagesUnit() bool { return true }

// GatewaySettlementHandler forwards collected funds to the location's payout
// account and then runs the completion routine.
type GatewaySettlementHandler struct {
	handlersupport.Publisher
	UoWFactory uow.UoWFactory
	Gateway    policies.PaymentGateway
	Logger     *slog.Logger
}

type transferPlan struct {
	alreadyPaid bool
	destination string
	amount      money.Money
}

func (h *GatewaySettlementHandler) Handle(ctx context.Context, cmd HandleGatewaySettlementCommand) (*Outcome, error) {
	if h.Gateway == nil {
		return nil, policies.ErrGatewayDisabled
	}
	plan, err := h.plan(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if plan.alreadyPaid {
		h.log("gateway settlement already applied", cmd)
		return &Outcome{RecordID: cmd.PaymentID, AlreadyPaid: true}, nil
	}

	transferID, err := h.Gateway.TransferFunds(ctx, plan.destination, plan.amount, "settle-"+cmd.PaymentID)
	if err != nil {
		return nil, fault.External("gateway", err)
	}

	var out Outcome
	err = handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		record, err := unit.Records().ByID(ctx, domainbilling.RecordID(cmd.PaymentID))
		if err != nil {
			return err
		}
		out, err = complete(ctx, unit, h.Publisher, record, domainbilling.SettledByGateway, directory.UserID(cmd.PayerID), time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	out.TransferID = transferID

	if h.Logger != nil {
		h.Logger.Info("gateway payment settled",
			"record_id", cmd.PaymentID, "payer_id", cmd.PayerID, "event_id", cmd.EventID,
			"transfer_id", transferID, "cycle_completed", out.CycleCompleted)
	}
	return &out, nil
}

// plan re-resolves every entity the settlement touches. Missing entities are
// reported instead of skipped.
func (h *GatewaySettlementHandler) plan(ctx context.Context, cmd HandleGatewaySettlementCommand) (transferPlan, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return transferPlan{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	record, err := unit.Records().ByID(execCtx, domainbilling.RecordID(cmd.PaymentID))
	if err != nil {
		return transferPlan{}, err
	}
	if record.Status == domainbilling.RecordPaid {
		return transferPlan{alreadyPaid: true}, nil
	}
	if !record.Payable() {
		return transferPlan{}, fmt.Errorf("%w: record is %s", domainbilling.ErrInvalidState, record.Status)
	}
	if _, err := unit.Users().ByID(execCtx, directory.UserID(cmd.PayerID)); err != nil {
		return transferPlan{}, err
	}
	if _, err := unit.Cycles().ByID(execCtx, record.CycleID); err != nil {
		return transferPlan{}, err
	}
	location, err := unit.Locations().ByID(execCtx, record.LocationID)
	if err != nil {
		return transferPlan{}, err
	}
	if !location.HasPayoutDestination() {
		return transferPlan{}, directory.ErrNoPayoutAccount
	}
	amount, err := money.New(record.BilledAmount, record.Currency)
	if err != nil {
		return transferPlan{}, err
	}
	return transferPlan{destination: location.PayoutDestination, amount: amount}, nil
}

func (h *GatewaySettlementHandler) log(msg string, cmd HandleGatewaySettlementCommand) {
	if h.Logger != nil {
		h.Logger.Info(msg, "record_id", cmd.PaymentID, "event_id", cmd.EventID)
	}
}

var _ commands.Handler[HandleGatewaySettlementCommand, *Outcome] = (*GatewaySettlementHandler)(nil)
var _ middleware.LockedCommand = HandleGatewaySettlementCommand{}
var _ middleware.SelfManagedCommand = HandleGatewaySettlementCommand{}
