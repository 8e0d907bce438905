package payments

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	domainbilling "cspace/internal/domain/billing"
	domainledger "cspace/internal/domain/ledger"
)

const cancelRecordKey = "payments.cancel"

type CancelRecordCommand struct {
	RecordID string `validate:"required"`
}

func (c CancelRecordCommand) Key() string { return cancelRecordKey }

// CancelRecordHandler removes a record from its cycle. A manually paid record
// is reverted and the reversal is booked; gateway-paid records are refused.
type CancelRecordHandler struct {
	handlersupport.Publisher
	Logger *slog.Logger
}

func (h *CancelRecordHandler) Handle(ctx context.Context, cmd CancelRecordCommand) (*dto.Record, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	record, err := unit.Records().ByID(ctx, domainbilling.RecordID(cmd.RecordID))
	if err != nil {
		return nil, err
	}
	cycle, err := unit.Cycles().ByID(ctx, record.CycleID)
	if err != nil {
		return nil, err
	}
	if err := cycle.EnsureEditable(); err != nil {
		return nil, err
	}
	wasPaid, payer := record.Status == domainbilling.RecordPaid, record.PaidBy
	if err := record.Cancel(now); err != nil {
		return nil, err
	}
	if err := unit.Records().Save(ctx, record); err != nil {
		return nil, err
	}
	if wasPaid {
		entry, err := domainledger.Reversal(domainledger.EntryID(uuid.NewString()), record, payer, domainledger.ReasonCanceled, cycle.Period().Key(), now)
		if err != nil {
			return nil, err
		}
		if err := unit.Ledger().Append(ctx, entry); err != nil {
			return nil, err
		}
	}
	if err := reconcile(ctx, h.Publisher, cycle, now); err != nil {
		return nil, err
	}
	if err := h.Publish(ctx, record); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("payment record canceled", "record_id", record.ID, "cycle_id", cycle.ID, "reversed", wasPaid)
	}
	out := dto.MapRecord(record)
	return &out, nil
}

var _ commands.Handler[CancelRecordCommand, *dto.Record] = (*CancelRecordHandler)(nil)
