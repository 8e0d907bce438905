package cycles

import (
	"context"
	"log/slog"
	"time"

	"cspace/internal/app/commands"
	"cspace/internal/app/handlers/revenue"
	handlersupport "cspace/internal/app/handlers/support"
	domainbilling "cspace/internal/domain/billing"
)

const deleteCycleKey = "cycles.delete"

type DeleteCycleCommand struct {
	CycleID string `validate:"required"`
}

func (c DeleteCycleCommand) Key() string { return deleteCycleKey }

type DeleteCycleResult struct {
	CycleID string `json:"cycle_id"`
	Deleted bool   `json:"deleted"`
}

// DeleteCycleHandler removes an unfinished cycle with all of its records.
type DeleteCycleHandler struct {
	handlersupport.Publisher
	Logger *slog.Logger
}

func (h *DeleteCycleHandler) Handle(ctx context.Context, cmd DeleteCycleCommand) (*DeleteCycleResult, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	cycle, err := unit.Cycles().ByID(ctx, domainbilling.CycleID(cmd.CycleID))
	if err != nil {
		return nil, err
	}
	if err := cycle.MarkDeleted(now); err != nil {
		return nil, err
	}
	if err := unit.Records().DeleteByCycle(ctx, cycle.ID); err != nil {
		return nil, err
	}
	if err := unit.Cycles().Delete(ctx, cycle.ID); err != nil {
		return nil, err
	}
	if err := revenue.Refresh(ctx, unit, cycle.LocationID, now); err != nil {
		return nil, err
	}
	if err := h.Publish(ctx, cycle); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("billing cycle deleted", "cycle_id", cycle.ID, "location_id", cycle.LocationID)
	}
	return &DeleteCycleResult{CycleID: string(cycle.ID), Deleted: true}, nil
}

var _ commands.Handler[DeleteCycleCommand, *DeleteCycleResult] = (*DeleteCycleHandler)(nil)
