package billing

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/events"
	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/period"
)

var (
	ErrCycleNotFound   = fmt.Errorf("billing: cycle %w", fault.ErrNotFound)
	ErrRecordNotFound  = fmt.Errorf("billing: payment record %w", fault.ErrNotFound)
	ErrDuplicateCycle  = fmt.Errorf("billing: cycle for this location and month %w", fault.ErrDuplicate)
	ErrDuplicateRecord = fmt.Errorf("billing: open payment record for this room and cycle %w", fault.ErrDuplicate)
	ErrInvalidState    = fmt.Errorf("billing: %w", fault.ErrInvalidTransition)
	ErrCycleClosed     = fmt.Errorf("billing: cycle is completed: %w", fault.ErrInvalidTransition)
)

type CycleID string

type CycleStatus string

const (
	CycleDraft     CycleStatus = "DRAFT"
	CyclePublished CycleStatus = "PUBLISHED"
	CycleCompleted CycleStatus = "COMPLETED"
)

func ParseCycleStatus(raw string) (CycleStatus, error) {
	switch s := CycleStatus(raw); s {
	case CycleDraft, CyclePublished, CycleCompleted:
		return s, nil
	default:
		return "", fault.Invalid("billing: unknown cycle status %q", raw)
	}
}

// Cycle is one location's billing run for one calendar month.
type Cycle struct {
	ID            CycleID
	LocationID    directory.LocationID
	CreatedBy     directory.UserID
	AnchorDate    time.Time
	Currency      string
	Status        CycleStatus
	TotalBilled   int64
	TotalReceived int64
	TotalPrepaid  int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   time.Time
	Version       int64
	events.EventRecorder
}

type NewCycleParams struct {
	ID         CycleID
	LocationID directory.LocationID
	CreatedBy  directory.UserID
	AnchorDate time.Time
	Currency   string
	CreatedAt  time.Time
}

func NewCycle(params NewCycleParams) (*Cycle, error) {
	if params.ID == "" || params.LocationID == "" {
		return nil, fault.Invalid("billing: cycle id and location required")
	}
	if params.CreatedBy == "" {
		return nil, fault.Invalid("billing: cycle creator required")
	}
	if params.AnchorDate.IsZero() {
		return nil, fmt.Errorf("%w: %w", fault.ErrInvalidInput, period.ErrZeroAnchor)
	}
	now := params.CreatedAt.UTC()
	c := &Cycle{
		ID:         params.ID,
		LocationID: params.LocationID,
		CreatedBy:  params.CreatedBy,
		AnchorDate: period.MonthOf(params.AnchorDate).Start,
		Currency:   params.Currency,
		Status:     CycleDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	c.Record(CycleCreated{CycleID: c.ID, LocationID: c.LocationID, CreatedBy: c.CreatedBy, Month: c.Period().Key(), At: now})
	return c, nil
}

func (c *Cycle) Period() period.Month {
	return period.MonthOf(c.AnchorDate)
}

// Publish moves a draft to published. Recipients are the occupants told about it.
func (c *Cycle) Publish(recipients []directory.UserID, now time.Time) error {
	if c.Status != CycleDraft {
		return ErrInvalidState
	}
	c.Status = CyclePublished
	c.UpdatedAt = now.UTC()
	c.Record(CyclePublishedEvent{
		CycleID:    c.ID,
		LocationID: c.LocationID,
		Month:      c.Period().Key(),
		Recipients: lo.Uniq(recipients),
		At:         c.UpdatedAt,
	})
	return nil
}

func (c *Cycle) Reopen(now time.Time) error {
	if c.Status != CyclePublished {
		return ErrInvalidState
	}
	c.Status = CycleDraft
	c.UpdatedAt = now.UTC()
	c.Record(CycleReopened{CycleID: c.ID, LocationID: c.LocationID, At: c.UpdatedAt})
	return nil
}

// MarkDeleted records the deletion; the repository removes the document.
func (c *Cycle) MarkDeleted(now time.Time) error {
	if c.Status == CycleCompleted {
		return ErrCycleClosed
	}
	c.Record(CycleDeleted{CycleID: c.ID, LocationID: c.LocationID, At: now.UTC()})
	return nil
}

// EnsureEditable rejects record changes on completed cycles.
func (c *Cycle) EnsureEditable() error {
	if c.Status == CycleCompleted {
		return ErrCycleClosed
	}
	return nil
}

// Totals are the money aggregates derived from a cycle's records.
type Totals struct {
	Billed   int64
	Received int64
	Prepaid  int64
}

// SumTotals derives aggregates from a snapshot of one cycle's records.
// Prepaid offsets count as already collected.
func SumTotals(records []*Record) Totals {
	live := lo.Filter(records, func(r *Record, _ int) bool { return r.Status != RecordCanceled })
	paid := lo.Filter(live, func(r *Record, _ int) bool { return r.Status == RecordPaid })
	billed := lo.SumBy(live, func(r *Record) int64 { return r.BilledAmount })
	prepaid := lo.SumBy(live, func(r *Record) int64 { return r.Charges.PrepaidOffset })
	received := lo.SumBy(paid, func(r *Record) int64 { return r.BilledAmount })
	return Totals{Billed: billed, Prepaid: prepaid, Received: prepaid + received}
}

func (c *Cycle) Totals() Totals {
	return Totals{Billed: c.TotalBilled, Received: c.TotalReceived, Prepaid: c.TotalPrepaid}
}

// ApplyTotals reports whether anything changed.
func (c *Cycle) ApplyTotals(t Totals, now time.Time) bool {
	if c.Totals() == t {
		return false
	}
	c.TotalBilled = t.Billed
	c.TotalReceived = t.Received
	c.TotalPrepaid = t.Prepaid
	c.UpdatedAt = now.UTC()
	return true
}

// IsSettled reports whether everything billed has been collected.
func (c *Cycle) IsSettled() bool {
	return c.TotalReceived == c.TotalBilled+c.TotalPrepaid
}

// CompleteIfSettled moves a published cycle to completed once it is fully
// collected and reports whether the transition happened.
func (c *Cycle) CompleteIfSettled(now time.Time) bool {
	if c.Status != CyclePublished || !c.IsSettled() {
		return false
	}
	c.Status = CycleCompleted
	c.UpdatedAt = now.UTC()
	c.CompletedAt = c.UpdatedAt
	c.Record(CycleCompletedEvent{
		CycleID:       c.ID,
		LocationID:    c.LocationID,
		Month:         c.Period().Key(),
		TotalBilled:   c.TotalBilled,
		TotalReceived: c.TotalReceived,
		Currency:      c.Currency,
		At:            c.UpdatedAt,
	})
	return true
}
