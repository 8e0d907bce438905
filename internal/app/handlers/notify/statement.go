package notify

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	handlersupport "cspace/internal/app/handlers/support"
	domainbilling "cspace/internal/domain/billing"
)

var statementHeader = []string{
	"record_id", "room_id", "occupants", "base_price", "electric", "electric_unit_price",
	"water", "extra_fee", "prepaid_offset", "discount_kind", "discount_value",
	"billed_amount", "currency", "status", "settled_via", "paid_by", "paid_at",
}

// StatementKey is where a completed cycle's statement is stored.
func StatementKey(ev domainbilling.CycleCompletedEvent) string {
	return fmt.Sprintf("statements/%s/%s/%s.csv", ev.LocationID, ev.Month, ev.CycleID)
}

func (r *Relay) exportStatement(ctx context.Context, ev domainbilling.CycleCompletedEvent) (string, error) {
	if r.Statements == nil {
		return "", nil
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, r.UoWFactory)
	if err != nil {
		return "", err
	}
	if cleanup != nil {
		defer cleanup()
	}
	records, err := unit.Records().ListByCycle(execCtx, ev.CycleID)
	if err != nil {
		return "", err
	}
	body, err := RenderStatement(records)
	if err != nil {
		return "", err
	}
	return r.Statements.Upload(ctx, StatementKey(ev), bytes.NewReader(body), int64(len(body)), "text/csv")
}

// RenderStatement writes one CSV line per record, canceled ones included.
func RenderStatement(records []*domainbilling.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(statementHeader); err != nil {
		return nil, err
	}
	for _, rec := range records {
		paidAt := ""
		if !rec.PaidAt.IsZero() {
			paidAt = rec.PaidAt.Format("2006-01-02T15:04:05Z07:00")
		}
		occupants := make([]string, 0, len(rec.Occupants))
		for _, id := range rec.Occupants {
			occupants = append(occupants, string(id))
		}
		row := []string{
			string(rec.ID),
			string(rec.RoomID),
			strings.Join(occupants, ";"),
			strconv.FormatInt(rec.Charges.BasePrice, 10),
			strconv.FormatInt(rec.Charges.Electric, 10),
			strconv.FormatInt(rec.Charges.ElectricUnitPrice, 10),
			strconv.FormatInt(rec.Charges.Water, 10),
			strconv.FormatInt(rec.Charges.ExtraFee, 10),
			strconv.FormatInt(rec.Charges.PrepaidOffset, 10),
			string(rec.Charges.DiscountKind),
			strconv.FormatInt(rec.Charges.DiscountValue, 10),
			strconv.FormatInt(rec.BilledAmount, 10),
			rec.Currency,
			string(rec.Status),
			string(rec.SettledVia),
			string(rec.PaidBy),
			paidAt,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
