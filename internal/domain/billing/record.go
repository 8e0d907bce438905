package billing

import (
	"fmt"
	"time"

	"cspace/internal/domain/directory"
	"cspace/internal/domain/pricing"
	"cspace/internal/domain/shared/events"
	"cspace/internal/domain/shared/fault"
)

type RecordID string

type RecordStatus string

const (
	RecordPendingSetup RecordStatus = "PENDING_SETUP"
	RecordUnpaid       RecordStatus = "UNPAID"
	RecordPaid         RecordStatus = "PAID"
	RecordCanceled     RecordStatus = "CANCELED"
)

type SettlementMethod string

const (
	SettledManually  SettlementMethod = "MANUAL"
	SettledByGateway SettlementMethod = "GATEWAY"
)

// Record is the charge for one room in one cycle.
type Record struct {
	ID           RecordID
	CycleID      CycleID
	LocationID   directory.LocationID
	RoomID       directory.RoomID
	Occupants    []directory.UserID
	Charges      pricing.Inputs
	BilledAmount int64
	Currency     string
	Status       RecordStatus
	SettledVia   SettlementMethod
	PaidBy       directory.UserID
	PaidAt       time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
	events.EventRecorder
}

type NewRecordParams struct {
	ID                RecordID
	CycleID           CycleID
	LocationID        directory.LocationID
	RoomID            directory.RoomID
	Occupants         []directory.UserID
	BasePrice         int64
	ElectricUnitPrice int64
	Currency          string
	CreatedAt         time.Time
}

// NewRecord seeds a record that only carries the room's base price.
func NewRecord(params NewRecordParams) (*Record, error) {
	if params.ID == "" || params.CycleID == "" || params.RoomID == "" {
		return nil, fault.Invalid("billing: record id, cycle and room required")
	}
	charges := pricing.Inputs{
		BasePrice:         params.BasePrice,
		ElectricUnitPrice: params.ElectricUnitPrice,
		DiscountKind:      pricing.DiscountFixedAmount,
	}
	if err := charges.Validate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	return &Record{
		ID:           params.ID,
		CycleID:      params.CycleID,
		LocationID:   params.LocationID,
		RoomID:       params.RoomID,
		Occupants:    append([]directory.UserID(nil), params.Occupants...),
		Charges:      charges,
		BilledAmount: pricing.ComputeBilledAmount(charges),
		Currency:     params.Currency,
		Status:       RecordPendingSetup,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// UpdateFields lists the editable charge inputs. Nil means unchanged.
type UpdateFields struct {
	Electric      *int64
	Water         *int64
	ExtraFee      *int64
	PrepaidOffset *int64
	DiscountKind  *pricing.DiscountKind
	DiscountValue *int64
}

func (f UpdateFields) IsEmpty() bool {
	return f.Electric == nil && f.Water == nil && f.ExtraFee == nil &&
		f.PrepaidOffset == nil && f.DiscountKind == nil && f.DiscountValue == nil
}

func (f UpdateFields) applyTo(in pricing.Inputs) pricing.Inputs {
	if f.Electric != nil {
		in.Electric = *f.Electric
	}
	if f.Water != nil {
		in.Water = *f.Water
	}
	if f.ExtraFee != nil {
		in.ExtraFee = *f.ExtraFee
	}
	if f.PrepaidOffset != nil {
		in.PrepaidOffset = *f.PrepaidOffset
	}
	if f.DiscountKind != nil {
		in.DiscountKind = *f.DiscountKind
	}
	if f.DiscountValue != nil {
		in.DiscountValue = *f.DiscountValue
	}
	if in.DiscountKind == "" {
		in.DiscountKind = pricing.DiscountFixedAmount
	}
	return in
}

// needsSetup is the one rule deciding whether a record is still waiting for
// its variable charges.
func needsSetup(in pricing.Inputs) bool {
	return !in.HasVariableCharges()
}

func (r *Record) IsOpen() bool {
	return r.Status == RecordPendingSetup || r.Status == RecordUnpaid
}

// Payable reports whether the record can be settled now.
func (r *Record) Payable() bool {
	return r.Status == RecordUnpaid
}

// Update applies new charge inputs and recomputes the billed amount.
func (r *Record) Update(fields UpdateFields, now time.Time) error {
	if !r.IsOpen() {
		return ErrInvalidState
	}
	next := fields.applyTo(r.Charges)
	if err := next.Validate(); err != nil {
		return err
	}
	r.Charges = next
	r.BilledAmount = pricing.ComputeBilledAmount(next)
	if r.Status == RecordPendingSetup && !needsSetup(next) {
		r.Status = RecordUnpaid
	}
	r.UpdatedAt = now.UTC()
	return nil
}

// Issue makes a pending record payable. Other states are left alone.
func (r *Record) Issue(now time.Time) bool {
	if r.Status != RecordPendingSetup {
		return false
	}
	r.Status = RecordUnpaid
	r.UpdatedAt = now.UTC()
	return true
}

// MarkPaid settles an issued record. It returns false without changes when
// the record is already paid so repeated settlements stay harmless. A record
// still waiting for utilities has no final amount and cannot be settled.
func (r *Record) MarkPaid(via SettlementMethod, payer directory.UserID, now time.Time) (bool, error) {
	switch r.Status {
	case RecordPaid:
		return false, nil
	case RecordCanceled:
		return false, ErrInvalidState
	case RecordPendingSetup:
		return false, fmt.Errorf("%w: record %s is not issued yet", ErrInvalidState, r.ID)
	}
	if via != SettledManually && via != SettledByGateway {
		return false, fault.Invalid("billing: unknown settlement method %q", via)
	}
	if payer == "" {
		return false, fault.Invalid("billing: payer required")
	}
	r.Status = RecordPaid
	r.SettledVia = via
	r.PaidBy = payer
	r.PaidAt = now.UTC()
	r.UpdatedAt = r.PaidAt
	r.Record(PaymentSettled{
		RecordID:   r.ID,
		CycleID:    r.CycleID,
		LocationID: r.LocationID,
		RoomID:     r.RoomID,
		PayerID:    payer,
		Occupants:  append([]directory.UserID(nil), r.Occupants...),
		Amount:     r.BilledAmount,
		Currency:   r.Currency,
		Method:     via,
		At:         r.PaidAt,
	})
	return true, nil
}

// MarkUnpaid reverts a manual settlement. Gateway settlements moved real
// funds and stay paid.
func (r *Record) MarkUnpaid(now time.Time) error {
	if r.Status != RecordPaid || r.SettledVia != SettledManually {
		return ErrInvalidState
	}
	payer := r.PaidBy
	r.Status = RecordUnpaid
	r.SettledVia = ""
	r.PaidBy = ""
	r.PaidAt = time.Time{}
	r.UpdatedAt = now.UTC()
	r.Record(PaymentReverted{
		RecordID:   r.ID,
		CycleID:    r.CycleID,
		LocationID: r.LocationID,
		PayerID:    payer,
		Amount:     r.BilledAmount,
		Currency:   r.Currency,
		At:         r.UpdatedAt,
	})
	return nil
}

// Cancel drops the record from its cycle. A manual settlement is reverted
// first; gateway settlements moved real funds and cannot be canceled.
func (r *Record) Cancel(now time.Time) error {
	switch {
	case r.Status == RecordCanceled:
		return ErrInvalidState
	case r.Status == RecordPaid && r.SettledVia != SettledManually:
		return fmt.Errorf("%w: record %s was settled through the gateway", ErrInvalidState, r.ID)
	case r.Status == RecordPaid:
		if err := r.MarkUnpaid(now); err != nil {
			return err
		}
	}
	r.Status = RecordCanceled
	r.UpdatedAt = now.UTC()
	return nil
}
