package payments

import (
	"context"

	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/queries"
	"cspace/internal/app/uow"
	domainbilling "cspace/internal/domain/billing"
)

const listRecordsKey = "payments.list"

type ListRecordsQuery struct {
	CycleID string `validate:"required"`
}

func (q ListRecordsQuery) Key() string { return listRecordsKey }

type ListRecordsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListRecordsHandler) Handle(ctx context.Context, q ListRecordsQuery) (dto.RecordCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.RecordCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	cycleID := domainbilling.CycleID(q.CycleID)
	if _, err := unit.Cycles().ByID(execCtx, cycleID); err != nil {
		return dto.RecordCollection{}, err
	}
	records, err := unit.Records().ListByCycle(execCtx, cycleID)
	if err != nil {
		return dto.RecordCollection{}, err
	}
	return dto.RecordCollection{Items: dto.MapRecords(records)}, nil
}

var _ queries.Handler[ListRecordsQuery, dto.RecordCollection] = (*ListRecordsHandler)(nil)
