package cycles

import (
	"context"
	"time"

	"cspace/internal/app/handlers/revenue"
	"cspace/internal/app/uow"
	domainbilling "cspace/internal/domain/billing"
)

// RecomputeAggregates reloads the cycle's records, refreshes its totals and
// completes it once everything billed has been collected. It reports whether
// the cycle changed; saving is left to the caller.
func RecomputeAggregates(ctx context.Context, unit uow.UnitOfWork, cycle *domainbilling.Cycle, now time.Time) (bool, error) {
	records, err := unit.Records().ListByCycle(ctx, cycle.ID)
	if err != nil {
		return false, err
	}
	changed := cycle.ApplyTotals(domainbilling.SumTotals(records), now)
	completed := cycle.CompleteIfSettled(now)
	return changed || completed, nil
}

// SaveAndRefresh persists the cycle and brings its location's revenue up to date.
func SaveAndRefresh(ctx context.Context, unit uow.UnitOfWork, cycle *domainbilling.Cycle, now time.Time) error {
	if err := unit.Cycles().Save(ctx, cycle); err != nil {
		return err
	}
	return revenue.Refresh(ctx, unit, cycle.LocationID, now)
}
