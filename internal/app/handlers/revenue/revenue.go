// Package revenue keeps each location's lifetime collected total in sync with
// its billing cycles.
package revenue

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
)

const getRevenueKey = "revenue.get"

// Refresh recomputes the location's revenue as the sum of totalReceived over
// all of its cycles and stores it when it changed.
func Refresh(ctx context.Context, unit uow.UnitOfWork, locationID directory.LocationID, now time.Time) error {
	location, err := unit.Locations().ByID(ctx, locationID)
	if err != nil {
		return err
	}
	cycles, err := unit.Cycles().ListByLocation(ctx, locationID)
	if err != nil {
		return err
	}
	total := lo.SumBy(cycles, func(c *domainbilling.Cycle) int64 { return c.TotalReceived })
	if !location.SetRevenue(total, now) {
		return nil
	}
	return unit.Locations().Save(ctx, location)
}

type GetRevenueQuery struct {
	LocationID string `validate:"required"`
}

func (q GetRevenueQuery) Key() string { return getRevenueKey }

type GetRevenueHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetRevenueHandler) Handle(ctx context.Context, q GetRevenueQuery) (dto.Revenue, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Revenue{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	location, err := unit.Locations().ByID(execCtx, directory.LocationID(q.LocationID))
	if err != nil {
		return dto.Revenue{}, err
	}
	return dto.Revenue{
		LocationID:   string(location.ID),
		TotalRevenue: dto.MoneyDTO{Amount: location.TotalRevenue, Currency: location.Currency},
		UpdatedAt:    location.UpdatedAt,
	}, nil
}

var _ queries.Handler[GetRevenueQuery, dto.Revenue] = (*GetRevenueHandler)(nil)
