package cycles

import (
	"context"
	"time"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	domainbilling "cspace/internal/domain/billing"
)

const inspectCycleKey = "cycles.inspect"

// InspectCycleCommand reads a cycle with fresh aggregates. It is a command
// because a stale cycle is brought up to date and may complete on read.
type InspectCycleCommand struct {
	CycleID string `validate:"required"`
}

func (c InspectCycleCommand) Key() string { return inspectCycleKey }

type InspectCycleHandler struct {
	handlersupport.Publisher
}

func (h *InspectCycleHandler) Handle(ctx context.Context, cmd InspectCycleCommand) (*dto.CycleDetail, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	cycle, err := unit.Cycles().ByID(ctx, domainbilling.CycleID(cmd.CycleID))
	if err != nil {
		return nil, err
	}
	changed, err := RecomputeAggregates(ctx, unit, cycle, now)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := SaveAndRefresh(ctx, unit, cycle, now); err != nil {
			return nil, err
		}
		if err := h.Publish(ctx, cycle); err != nil {
			return nil, err
		}
	}
	records, err := unit.Records().ListByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	return &dto.CycleDetail{Cycle: dto.MapCycle(cycle), Records: dto.MapRecords(records)}, nil
}

var _ commands.Handler[InspectCycleCommand, *dto.CycleDetail] = (*InspectCycleHandler)(nil)
