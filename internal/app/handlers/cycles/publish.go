package cycles

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
)

const publishCycleKey = "cycles.publish"

type PublishCycleCommand struct {
	CycleID string `validate:"required"`
}

func (c PublishCycleCommand) Key() string { return publishCycleKey }

// PublishCycleHandler makes a draft cycle's records payable and tells the
// occupants about their bills.
type PublishCycleHandler struct {
	handlersupport.Publisher
	Logger *slog.Logger
}

func (h *PublishCycleHandler) Handle(ctx context.Context, cmd PublishCycleCommand) (*dto.CycleDetail, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	cycle, err := unit.Cycles().ByID(ctx, domainbilling.CycleID(cmd.CycleID))
	if err != nil {
		return nil, err
	}
	if cycle.Status != domainbilling.CycleDraft {
		return nil, domainbilling.ErrInvalidState
	}
	records, err := unit.Records().ListByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	var recipients []directory.UserID
	for _, record := range records {
		if record.Status == domainbilling.RecordCanceled {
			continue
		}
		if record.Issue(now) {
			if err := unit.Records().Save(ctx, record); err != nil {
				return nil, err
			}
		}
		recipients = append(recipients, record.Occupants...)
	}
	if err := cycle.Publish(lo.Uniq(recipients), now); err != nil {
		return nil, err
	}
	if _, err := RecomputeAggregates(ctx, unit, cycle, now); err != nil {
		return nil, err
	}
	if err := SaveAndRefresh(ctx, unit, cycle, now); err != nil {
		return nil, err
	}
	if err := h.Publish(ctx, cycle); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("billing cycle published", "cycle_id", cycle.ID, "status", cycle.Status, "recipients", len(recipients))
	}
	return &dto.CycleDetail{Cycle: dto.MapCycle(cycle), Records: dto.MapRecords(records)}, nil
}

var _ commands.Handler[PublishCycleCommand, *dto.CycleDetail] = (*PublishCycleHandler)(nil)
