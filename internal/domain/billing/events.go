package billing

import (
	"time"

	"cspace/internal/domain/directory"
)

const (
	EventCycleCreated    = "billing.cycle.created"
	EventCyclePublished  = "billing.cycle.published"
	EventCycleCompleted  = "billing.cycle.completed"
	EventCycleReopened   = "billing.cycle.reopened"
	EventCycleDeleted    = "billing.cycle.deleted"
	EventPaymentSettled  = "billing.payment.settled"
	EventPaymentReverted = "billing.payment.reverted"
)

type CycleCreated struct {
	CycleID    CycleID              `json:"cycle_id"`
	LocationID directory.LocationID `json:"location_id"`
	CreatedBy  directory.UserID     `json:"created_by"`
	Month      string               `json:"month"`
	At         time.Time            `json:"at"`
}

func (e CycleCreated) EventName() string     { return EventCycleCreated }
func (e CycleCreated) AggregateID() string   { return string(e.CycleID) }
func (e CycleCreated) OccurredAt() time.Time { return e.At }

type CyclePublishedEvent struct {
	CycleID    CycleID              `json:"cycle_id"`
	LocationID directory.LocationID `json:"location_id"`
	Month      string               `json:"month"`
	Recipients []directory.UserID   `json:"recipients"`
	At         time.Time            `json:"at"`
}

func (e CyclePublishedEvent) EventName() string     { return EventCyclePublished }
func (e CyclePublishedEvent) AggregateID() string   { return string(e.CycleID) }
func (e CyclePublishedEvent) OccurredAt() time.Time { return e.At }

type CycleCompletedEvent struct {
	CycleID       CycleID              `json:"cycle_id"`
	LocationID    directory.LocationID `json:"location_id"`
	Month         string               `json:"month"`
	TotalBilled   int64                `json:"total_billed"`
	TotalReceived int64                `json:"total_received"`
	Currency      string               `json:"currency"`
	At            time.Time            `json:"at"`
}

func (e CycleCompletedEvent) EventName() string     { return EventCycleCompleted }
func (e CycleCompletedEvent) AggregateID() string   { return string(e.CycleID) }
func (e CycleCompletedEvent) OccurredAt() time.Time { return e.At }

type CycleReopened struct {
	CycleID    CycleID              `json:"cycle_id"`
	LocationID directory.LocationID `json:"location_id"`
	At         time.Time            `json:"at"`
}

func (e CycleReopened) EventName() string     { return EventCycleReopened }
func (e CycleReopened) AggregateID() string   { return string(e.CycleID) }
func (e CycleReopened) OccurredAt() time.Time { return e.At }

type CycleDeleted struct {
	CycleID    CycleID              `json:"cycle_id"`
	LocationID directory.LocationID `json:"location_id"`
	At         time.Time            `json:"at"`
}

func (e CycleDeleted) EventName() string     { return EventCycleDeleted }
func (e CycleDeleted) AggregateID() string   { return string(e.CycleID) }
func (e CycleDeleted) OccurredAt() time.Time { return e.At }

type PaymentSettled struct {
	RecordID   RecordID             `json:"record_id"`
	CycleID    CycleID              `json:"cycle_id"`
	LocationID directory.LocationID `json:"location_id"`
	RoomID     directory.RoomID     `json:"room_id"`
	PayerID    directory.UserID     `json:"payer_id"`
	Occupants  []directory.UserID   `json:"occupants"`
	Amount     int64                `json:"amount"`
	Currency   string               `json:"currency"`
	Method     SettlementMethod     `json:"method"`
	At         time.Time            `json:"at"`
}

func (e PaymentSettled) EventName() string     { return EventPaymentSettled }
func (e PaymentSettled) AggregateID() string   { return string(e.RecordID) }
func (e PaymentSettled) OccurredAt() time.Time { return e.At }

type PaymentReverted struct {
	RecordID   RecordID             `json:"record_id"`
	CycleID    CycleID              `json:"cycle_id"`
	LocationID directory.LocationID `json:"location_id"`
	PayerID    directory.UserID     `json:"payer_id"`
	Amount     int64                `json:"amount"`
	Currency   string               `json:"currency"`
	At         time.Time            `json:"at"`
}

func (e PaymentReverted) EventName() string     { return EventPaymentReverted }
func (e PaymentReverted) AggregateID() string   { return string(e.RecordID) }
func (e PaymentReverted) OccurredAt() time.Time { return e.At }
