package ledger

import (
	"context"
	"time"

	"github.com/samber/lo"

	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/queries"
	"cspace/internal/app/uow"
	"cspace/internal/domain/directory"
	domainledger "cspace/internal/domain/ledger"
	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/period"
)

const listLedgerKey = "ledger.list"

// ListLedgerQuery pages through ledger entries, newest first.
type ListLedgerQuery struct {
	PayerID    string
	LocationID string
	From       time.Time
	To         time.Time
	Offset     int
	Limit      int
}

func (q ListLedgerQuery) Key() string { return listLedgerKey }

type ListLedgerHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListLedgerHandler) Handle(ctx context.Context, q ListLedgerQuery) (dto.LedgerCollection, error) {
	created, err := period.NewRange(q.From, q.To)
	if err != nil {
		return dto.LedgerCollection{}, fault.Invalid("ledger: %v", err)
	}
	filter := domainledger.Filter{
		PayerID:    directory.UserID(q.PayerID),
		LocationID: directory.LocationID(q.LocationID),
		Created:    created,
	}
	filter.Offset, filter.Limit = handlersupport.Page(q.Offset, q.Limit)

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.LedgerCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	entries, total, err := unit.Ledger().List(execCtx, filter)
	if err != nil {
		return dto.LedgerCollection{}, err
	}
	return dto.LedgerCollection{
		Items: lo.Map(entries, func(e *domainledger.Entry, _ int) dto.LedgerEntry { return dto.MapLedgerEntry(e) }),
		Total: total,
	}, nil
}

var _ queries.Handler[ListLedgerQuery, dto.LedgerCollection] = (*ListLedgerHandler)(nil)
