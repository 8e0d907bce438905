package cycles

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/middleware"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/period"
)

const createCycleKey = "cycles.create"

type CreateCycleCommand struct {
	LocationID      string    `validate:"required"`
	CreatedBy       string    `validate:"required"`
	AnchorDate      time.Time `validate:"required"`
	IdempotencyKeyV string
}

func (c CreateCycleCommand) Key() string { return createCycleKey }

func (c CreateCycleCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateCycleCommand) ResultPrototype() any { return &dto.CycleDetail{} }

// LockKey serialises cycle creation per location so two admins cannot open
// the same month concurrently.
func (c CreateCycleCommand) LockKey() string { return "cycle-create:" + c.LocationID }

// CreateCycleHandler opens a month for a location and seeds one record per
// occupied room.
type CreateCycleHandler struct {
	handlersupport.Publisher
	Currency string
	Logger   *slog.Logger
}

func (h *CreateCycleHandler) Handle(ctx context.Context, cmd CreateCycleCommand) (*dto.CycleDetail, error) {
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	locationID := directory.LocationID(cmd.LocationID)

	location, err := unit.Locations().ByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	month := period.MonthOf(cmd.AnchorDate)
	_, err = unit.Cycles().ForMonth(ctx, locationID, month)
	switch {
	case err == nil:
		return nil, domainbilling.ErrDuplicateCycle
	case !errors.Is(err, domainbilling.ErrCycleNotFound):
		return nil, err
	}

	currency := location.Currency
	if currency == "" {
		currency = h.Currency
	}
	cycle, err := domainbilling.NewCycle(domainbilling.NewCycleParams{
		ID:         domainbilling.CycleID(uuid.NewString()),
		LocationID: locationID,
		CreatedBy:  directory.UserID(cmd.CreatedBy),
		AnchorDate: month.Start,
		Currency:   currency,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}

	rooms, err := unit.Rooms().ListOccupied(ctx, locationID)
	if err != nil {
		return nil, err
	}
	records := make([]*domainbilling.Record, 0, len(rooms))
	for _, room := range rooms {
		record, err := domainbilling.NewRecord(domainbilling.NewRecordParams{
			ID:                domainbilling.RecordID(uuid.NewString()),
			CycleID:           cycle.ID,
			LocationID:        locationID,
			RoomID:            room.ID,
			Occupants:         room.Occupants,
			BasePrice:         room.BasePrice,
			ElectricUnitPrice: location.ElectricUnitPrice,
			Currency:          currency,
			CreatedAt:         now,
		})
		if err != nil {
			return nil, err
		}
		if err := unit.Records().Save(ctx, record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	cycle.ApplyTotals(domainbilling.SumTotals(records), now)
	if err := unit.Cycles().Save(ctx, cycle); err != nil {
		return nil, err
	}
	if err := h.Publish(ctx, cycle); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("billing cycle created",
			"cycle_id", cycle.ID, "location_id", locationID, "month", month.Key(), "records", len(records))
	}
	return &dto.CycleDetail{Cycle: dto.MapCycle(cycle), Records: dto.MapRecords(records)}, nil
}

var _ commands.Handler[CreateCycleCommand, *dto.CycleDetail] = (*CreateCycleHandler)(nil)
var _ middleware.IdempotentCommand = CreateCycleCommand{}
var _ middleware.LockedCommand = CreateCycleCommand{}
