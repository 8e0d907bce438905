package payments

import (
	"context"
	"log/slog"
	"time"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	domainbilling "cspace/internal/domain/billing"
)

const bulkUpdateKey = "payments.bulk_update"

// BulkUpdateRecordsCommand applies one set of charges to every open record of
// a cycle, e.g. a flat water fee for the whole building.
type BulkUpdateRecordsCommand struct {
	CycleID string       `validate:"required"`
	Fields  RecordFields
}

func (c BulkUpdateRecordsCommand) Key() string { return bulkUpdateKey }

type BulkUpdateRecordsHandler struct {
	handlersupport.Publisher
	Logger *slog.Logger
}

func (h *BulkUpdateRecordsHandler) Handle(ctx context.Context, cmd BulkUpdateRecordsCommand) (*dto.RecordCollection, error) {
	fields, err := cmd.Fields.toDomain()
	if err != nil {
		return nil, err
	}
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
	records, err := unit.Records().ListByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	updated := 0
	for _, record := range records {
		if !record.IsOpen() {
			continue
		}
		if err := record.Update(fields, now); err != nil {
			return nil, err
		}
		if err := unit.Records().Save(ctx, record); err != nil {
			return nil, err
		}
		updated++
	}
	if err := reconcile(ctx, h.Publisher, cycle, now); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("payment records bulk updated", "cycle_id", cycle.ID, "updated", updated, "skipped", len(records)-updated)
	}
	return &dto.RecordCollection{Items: dto.MapRecords(records)}, nil
}

var _ commands.Handler[BulkUpdateRecordsCommand, *dto.RecordCollection] = (*BulkUpdateRecordsHandler)(nil)
