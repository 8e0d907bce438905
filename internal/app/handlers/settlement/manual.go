package settlement

import (
	"context"
	"log/slog"
	"time"

	"cspace/internal/app/commands"
	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/middleware"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
)

const manualPayKey = "settlement.manual"

// ManualPayCommand records a payment collected outside the gateway, such as
// cash handed to the location admin.
type ManualPayCommand struct {
	PaymentID       string `validate:"required"`
	PayerID         string `validate:"required"`
	IdempotencyKeyV string
}

func (c ManualPayCommand) Key() string { return manualPayKey }

func (c ManualPayCommand) LockKey() string { return paymentLockKey(c.PaymentID) }

func (c ManualPayCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c ManualPayCommand) ResultPrototype() any { return &Outcome{} }

type ManualPayHandler struct {
	handlersupport.Publisher
	Logger *slog.Logger
}

func (h *ManualPayHandler) Handle(ctx context.Context, cmd ManualPayCommand) (*Outcome, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	record, err := unit.Records().ByID(ctx, domainbilling.RecordID(cmd.PaymentID))
	if err != nil {
		return nil, err
	}
	payer, err := unit.Users().ByID(ctx, directory.UserID(cmd.PayerID))
	if err != nil {
		return nil, err
	}
	out, err := complete(ctx, unit, h.Publisher, record, domainbilling.SettledManually, payer.ID, now)
	if err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("manual payment recorded",
			"record_id", record.ID, "payer_id", payer.ID, "settled", out.Settled, "cycle_completed", out.CycleCompleted)
	}
	return &out, nil
}

func paymentLockKey(id string) string {
	return "payment:" + id
}

var _ commands.Handler[ManualPayCommand, *Outcome] = (*ManualPayHandler)(nil)
var _ middleware.LockedCommand = ManualPayCommand{}
var _ middleware.IdempotentCommand = ManualPayCommand{}
