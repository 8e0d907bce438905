package cycles

import (
	"context"
	"time"

	"github.com/samber/lo"

	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/queries"
	"cspace/internal/app/uow"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/period"
)

const listCyclesKey = "cycles.list"

// ListCyclesQuery filters by location, creator, status and anchor month range.
type ListCyclesQuery struct {
	LocationID string
	CreatedBy  string
	Status     string
	From       time.Time
	To         time.Time
	Offset     int
	Limit      int
}

func (q ListCyclesQuery) Key() string { return listCyclesKey }

type ListCyclesHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListCyclesHandler) Handle(ctx context.Context, q ListCyclesQuery) (dto.CycleCollection, error) {
	filter := domainbilling.CycleFilter{
		LocationID: directory.LocationID(q.LocationID),
		CreatedBy:  directory.UserID(q.CreatedBy),
	}
	if q.Status != "" {
		status, err := domainbilling.ParseCycleStatus(q.Status)
		if err != nil {
			return dto.CycleCollection{}, err
		}
		filter.Status = status
	}
	anchor, err := period.NewRange(q.From, q.To)
	if err != nil {
		return dto.CycleCollection{}, fault.Invalid("cycles: %v", err)
	}
	filter.Anchor = anchor
	filter.Offset, filter.Limit = handlersupport.Page(q.Offset, q.Limit)

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.CycleCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, total, err := unit.Cycles().List(execCtx, filter)
	if err != nil {
		return dto.CycleCollection{}, err
	}
	return dto.CycleCollection{
		Items: lo.Map(items, func(c *domainbilling.Cycle, _ int) dto.Cycle { return dto.MapCycle(c) }),
		Total: total,
	}, nil
}

var _ queries.Handler[ListCyclesQuery, dto.CycleCollection] = (*ListCyclesHandler)(nil)
