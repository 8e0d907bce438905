// Package settlement turns payments, manual or through the gateway, into
// paid records, ledger entries and completed cycles.
package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cspace/internal/app/handlers/cycles"
	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/uow"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	domainledger "cspace/internal/domain/ledger"
)

// Outcome describes what a settlement attempt did.
type Outcome struct {
	RecordID       string `json:"record_id"`
	CycleID        string `json:"cycle_id"`
	Settled        bool   `json:"settled"`
	AlreadyPaid    bool   `json:"already_paid"`
	CycleCompleted bool   `json:"cycle_completed"`
	LedgerEntryID  string `json:"ledger_entry_id,omitempty"`
	TransferID     string `json:"transfer_id,omitempty"`
}

// complete is the single routine both settlement paths converge on. It runs
// inside one unit: mark the record paid, book the ledger entry, recompute the
// cycle, complete it when collected, refresh revenue and stage the events.
// A record that is already paid is left untouched.
func complete(ctx context.Context, unit uow.UnitOfWork, pub handlersupport.Publisher, record *domainbilling.Record, via domainbilling.SettlementMethod, payer directory.UserID, now time.Time) (Outcome, error) {
	out := Outcome{RecordID: string(record.ID), CycleID: string(record.CycleID)}

	cycle, err := unit.Cycles().ByID(ctx, record.CycleID)
	if err != nil {
		return out, err
	}
	changed, err := record.MarkPaid(via, payer, now)
	if err != nil {
		return out, err
	}
	if !changed {
		out.AlreadyPaid = true
		return out, nil
	}
	if err := unit.Records().Save(ctx, record); err != nil {
		return out, err
	}
	entry, err := domainledger.Settlement(domainledger.EntryID(uuid.NewString()), record, cycle.Period().Key(), now)
	if err != nil {
		return out, err
	}
	if err := unit.Ledger().Append(ctx, entry); err != nil {
		return out, err
	}

	wasCompleted := cycle.Status == domainbilling.CycleCompleted
	if _, err := cycles.RecomputeAggregates(ctx, unit, cycle, now); err != nil {
		return out, err
	}
	if err := cycles.SaveAndRefresh(ctx, unit, cycle, now); err != nil {
		return out, err
	}
	if err := pub.Publish(ctx, record, cycle); err != nil {
		return out, err
	}

	out.Settled = true
	out.LedgerEntryID = string(entry.ID)
	out.CycleCompleted = !wasCompleted && cycle.Status == domainbilling.CycleCompleted
	return out, nil
}
