package payments

import (
	"context"
	"log/slog"
	"time"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/pricing"
	"cspace/internal/domain/shared/fault"
)

const updateRecordKey = "payments.update"

// RecordFields is the editable subset of a record. Nil fields are unchanged.
type RecordFields struct {
	Electric      *int64  `json:"electric" validate:"omitempty,gte=0"`
	Water         *int64  `json:"water" validate:"omitempty,gte=0"`
	ExtraFee      *int64  `json:"extra_fee" validate:"omitempty,gte=0"`
	PrepaidOffset *int64  `json:"prepaid_offset" validate:"omitempty,gte=0"`
	DiscountKind  *string `json:"discount_kind" validate:"omitempty,oneof=FIXED_AMOUNT PERCENTAGE"`
	DiscountValue *int64  `json:"discount_value" validate:"omitempty,gte=0"`
}

func (f RecordFields) toDomain() (domainbilling.UpdateFields, error) {
	out := domainbilling.UpdateFields{
		Electric:      f.Electric,
		Water:         f.Water,
		ExtraFee:      f.ExtraFee,
		PrepaidOffset: f.PrepaidOffset,
		DiscountValue: f.DiscountValue,
	}
	if f.DiscountKind != nil {
		kind, err := pricing.ParseDiscountKind(*f.DiscountKind)
		if err != nil {
			return domainbilling.UpdateFields{}, err
		}
		out.DiscountKind = &kind
	}
	if out.IsEmpty() {
		return domainbilling.UpdateFields{}, fault.Invalid("payments: no fields to update")
	}
	return out, nil
}

type UpdateRecordCommand struct {
	RecordID string       `validate:"required"`
	Fields   RecordFields
}

func (c UpdateRecordCommand) Key() string { return updateRecordKey }

// UpdateRecordHandler edits one record's charges and refreshes its cycle.
type UpdateRecordHandler struct {
	handlersupport.Publisher
	Logger *slog.Logger
}

func (h *UpdateRecordHandler) Handle(ctx context.Context, cmd UpdateRecordCommand) (*dto.Record, error) {
	fields, err := cmd.Fields.toDomain()
	if err != nil {
		return nil, err
	}
	unit, err := handlersupport.CurrentUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	record, err := unit.Records().ByID(ctx, domainbilling.RecordID(cmd.RecordID))
	if err != nil {
		return nil, err
	}
	cycle, err := unit.Cycles().ByID(ctx, record.CycleID)
	if err != nil {
		return nil, err
	}
	if err := cycle.EnsureEditable(); err != nil {
		return nil, err
	}
	if err := record.Update(fields, now); err != nil {
		return nil, err
	}
	if err := unit.Records().Save(ctx, record); err != nil {
		return nil, err
	}
	if err := reconcile(ctx, h.Publisher, cycle, now); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Debug("payment record updated", "record_id", record.ID, "status", record.Status, "billed", record.BilledAmount)
	}
	out := dto.MapRecord(record)
	return &out, nil
}

var _ commands.Handler[UpdateRecordCommand, *dto.Record] = (*UpdateRecordHandler)(nil)
