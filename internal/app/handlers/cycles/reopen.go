package cycles

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

const reopenCycleKey = "cycles.reopen"

type ReopenCycleCommand struct {
	CycleID string `validate:"required"`
}

func (c ReopenCycleCommand) Key() string { return reopenCycleKey }

// ReopenCycleHandler returns a published cycle to draft. Manual settlements
// are reverted and booked as reversals; gateway settlements stay paid.
type ReopenCycleHandler struct {
	handlersupport.Publisher
	Logger *slog.Logger
}

func (h *ReopenCycleHandler) Handle(ctx context.Context, cmd ReopenCycleCommand) (*dto.CycleDetail, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	cycle, err := unit.Cycles().ByID(ctx, domainbilling.CycleID(cmd.CycleID))
	if err != nil {
		return nil, err
	}
	if err := cycle.Reopen(now); err != nil {
		return nil, err
	}
	records, err := unit.Records().ListByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	reverted := make([]*domainbilling.Record, 0)
	for _, record := range records {
		if record.Status != domainbilling.RecordPaid || record.SettledVia != domainbilling.SettledManually {
			continue
		}
		payer := record.PaidBy
		if err := record.MarkUnpaid(now); err != nil {
			return nil, err
		}
		if err := unit.Records().Save(ctx, record); err != nil {
			return nil, err
		}
		entry, err := domainledger.Reversal(domainledger.EntryID(uuid.NewString()), record, payer, domainledger.ReasonReopened, cycle.Period().Key(), now)
		if err != nil {
			return nil, err
		}
		if err := unit.Ledger().Append(ctx, entry); err != nil {
			return nil, err
		}
		reverted = append(reverted, record)
	}

	if _, err := RecomputeAggregates(ctx, unit, cycle, now); err != nil {
		return nil, err
	}
	if err := SaveAndRefresh(ctx, unit, cycle, now); err != nil {
		return nil, err
	}
	if err := h.Publish(ctx, append(handlersupport.RecordSources(reverted), cycle)...); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("billing cycle reopened", "cycle_id", cycle.ID, "reverted", len(reverted))
	}
	return &dto.CycleDetail{Cycle: dto.MapCycle(cycle), Records: dto.MapRecords(records)}, nil
}

var _ commands.Handler[ReopenCycleCommand, *dto.CycleDetail] = (*ReopenCycleHandler)(nil)
