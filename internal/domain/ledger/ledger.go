// Package ledger is the append-only record of money moving through the platform.
package ledger

import (
	"context"
	"fmt"
	"time"

	"cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/money"
	"cspace/internal/domain/shared/period"
)

type EntryID string

type Kind string

const (
	KindSettlement Kind = "SETTLEMENT"
	KindReversal   Kind = "REVERSAL"
)

type Entry struct {
	ID          EntryID
	PayerID     directory.UserID
	LocationID  directory.LocationID
	PaymentID   billing.RecordID
	CycleID     billing.CycleID
	Amount      money.Money
	Kind        Kind
	Method      billing.SettlementMethod
	Description string
	CreatedAt   time.Time
}

// Settlement books a record being paid.
func Settlement(id EntryID, record *billing.Record, month string, now time.Time) (*Entry, error) {
	if record.Status != billing.RecordPaid {
		return nil, fmt.Errorf("ledger: settlement for unpaid record %s: %w", record.ID, fault.ErrInvariantViolation)
	}
	amount, err := money.New(record.BilledAmount, record.Currency)
	if err != nil {
		return nil, err
	}
	return &Entry{
		ID:          id,
		PayerID:     record.PaidBy,
		LocationID:  record.LocationID,
		PaymentID:   record.ID,
		CycleID:     record.CycleID,
		Amount:      amount,
		Kind:        KindSettlement,
		Method:      record.SettledVia,
		Description: fmt.Sprintf("Rent payment for %s", month),
		CreatedAt:   now.UTC(),
	}, nil
}

// ReversalReason says why a manual settlement was undone.
type ReversalReason string

const (
	ReasonReopened ReversalReason = "Reopened billing"
	ReasonCanceled ReversalReason = "Canceled charge"
)

// Reversal books a manual settlement being undone. The amount is negated.
func Reversal(id EntryID, record *billing.Record, payer directory.UserID, reason ReversalReason, month string, now time.Time) (*Entry, error) {
	amount, err := money.New(record.BilledAmount, record.Currency)
	if err != nil {
		return nil, err
	}
	return &Entry{
		ID:          id,
		PayerID:     payer,
		LocationID:  record.LocationID,
		PaymentID:   record.ID,
		CycleID:     record.CycleID,
		Amount:      amount.Neg(),
		Kind:        KindReversal,
		Method:      billing.SettledManually,
		Description: fmt.Sprintf("%s for %s", reason, month),
		CreatedAt:   now.UTC(),
	}, nil
}

// Filter narrows ledger listings. Zero values match everything.
type Filter struct {
	PayerID    directory.UserID
	LocationID directory.LocationID
	PaymentID  billing.RecordID
	Created    period.Range
	Offset     int
	Limit      int
}

type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	// List returns entries newest first and the unpaged total.
	List(ctx context.Context, filter Filter) ([]*Entry, int, error)
}
