// Package payments manages the per-room records inside a billing cycle.
package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	"cspace/internal/app/handlers/cycles"
	handlersupport "cspace/internal/app/handlers/support"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/fault"
)

const addRecordKey = "payments.add"

// AddRecordCommand bills a room that became occupied after its cycle was opened.
type AddRecordCommand struct {
	CycleID string `validate:"required"`
	RoomID  string `validate:"required"`
}

func (c AddRecordCommand) Key() string { return addRecordKey }

type AddRecordHandler struct {
	handlersupport.Publisher
	Logger *slog.Logger
}

func (h *AddRecordHandler) Handle(ctx context.Context, cmd AddRecordCommand) (*dto.Record, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	cycle, err := unit.Cycles().ByID(ctx, domainbilling.CycleID(cmd.CycleID))
	if err != nil {
		return nil, err
	}
	if err := cycle.EnsureEditable(); err != nil {
		return nil, err
	}
	room, err := unit.Rooms().ByID(ctx, directory.RoomID(cmd.RoomID))
	if err != nil {
		return nil, err
	}
	if room.LocationID != cycle.LocationID {
		return nil, fault.Invalid("payments: room %s does not belong to location %s", room.ID, cycle.LocationID)
	}
	if !room.Occupied {
		return nil, fault.Invalid("payments: room %s is not occupied", room.ID)
	}
	_, err = unit.Records().ActiveForRoom(ctx, cycle.ID, room.ID)
	switch {
	case err == nil:
		return nil, domainbilling.ErrDuplicateRecord
	case !errors.Is(err, domainbilling.ErrRecordNotFound):
		return nil, err
	}
	location, err := unit.Locations().ByID(ctx, cycle.LocationID)
	if err != nil {
		return nil, err
	}

	record, err := domainbilling.NewRecord(domainbilling.NewRecordParams{
		ID:                domainbilling.RecordID(uuid.NewString()),
		CycleID:           cycle.ID,
		LocationID:        cycle.LocationID,
		RoomID:            room.ID,
		Occupants:         room.Occupants,
		BasePrice:         room.BasePrice,
		ElectricUnitPrice: location.ElectricUnitPrice,
		Currency:          cycle.Currency,
		CreatedAt:         now,
	})
	if err != nil {
		return nil, err
	}
	if cycle.Status == domainbilling.CyclePublished {
		record.Issue(now)
	}
	if err := unit.Records().Save(ctx, record); err != nil {
		return nil, err
	}
	if err := reconcile(ctx, h.Publisher, cycle, now); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("payment record added", "record_id", record.ID, "cycle_id", cycle.ID, "room_id", room.ID)
	}
	out := dto.MapRecord(record)
	return &out, nil
}

// reconcile recomputes the owning cycle after a record change inside the
// running unit.
func reconcile(ctx context.Context, pub handlersupport.Publisher, cycle *domainbilling.Cycle, now time.Time) error {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return err
	}
	changed, err := cycles.RecomputeAggregates(ctx, unit, cycle, now)
	if err != nil || !changed {
		return err
	}
	if err := cycles.SaveAndRefresh(ctx, unit, cycle, now); err != nil {
		return err
	}
	return pub.Publish(ctx, cycle)
}

var _ commands.Handler[AddRecordCommand, *dto.Record] = (*AddRecordHandler)(nil)
