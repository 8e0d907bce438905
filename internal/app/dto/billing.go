package dto

import (
	"time"

	"github.com/samber/lo"

	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Cycle struct {
	ID            string     `json:"id"`
	LocationID    string     `json:"location_id"`
	CreatedBy     string     `json:"created_by"`
	Month         string     `json:"month"`
	AnchorDate    time.Time  `json:"anchor_date"`
	Status        string     `json:"status"`
	Currency      string     `json:"currency"`
	TotalBilled   int64      `json:"total_billed"`
	TotalReceived int64      `json:"total_received"`
	TotalPrepaid  int64      `json:"total_prepaid"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Version       int64      `json:"version"`
}

type CycleDetail struct {
	Cycle   Cycle    `json:"cycle"`
	Records []Record `json:"records"`
}

type CycleCollection struct {
	Items []Cycle `json:"items"`
	Total int     `json:"total"`
}

type Record struct {
	ID                string     `json:"id"`
	CycleID           string     `json:"cycle_id"`
	LocationID        string     `json:"location_id"`
	RoomID            string     `json:"room_id"`
	Occupants         []string   `json:"occupants"`
	BasePrice         int64      `json:"base_price"`
	Electric          int64      `json:"electric"`
	ElectricUnitPrice int64      `json:"electric_unit_price"`
	Water             int64      `json:"water"`
	ExtraFee          int64      `json:"extra_fee"`
	PrepaidOffset     int64      `json:"prepaid_offset"`
	DiscountKind      string     `json:"discount_kind"`
	DiscountValue     int64      `json:"discount_value"`
	Billed            MoneyDTO   `json:"billed"`
	Status            string     `json:"status"`
	SettledVia        string     `json:"settled_via,omitempty"`
	PaidBy            string     `json:"paid_by,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type RecordCollection struct {
	Items []Record `json:"items"`
}

func MapCycle(c *domainbilling.Cycle) Cycle {
	out := Cycle{
		ID:            string(c.ID),
		LocationID:    string(c.LocationID),
		CreatedBy:     string(c.CreatedBy),
		Month:         c.Period().Key(),
		AnchorDate:    c.AnchorDate,
		Status:        string(c.Status),
		Currency:      c.Currency,
		TotalBilled:   c.TotalBilled,
		TotalReceived: c.TotalReceived,
		TotalPrepaid:  c.TotalPrepaid,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		Version:       c.Version,
	}
	if !c.CompletedAt.IsZero() {
		completed := c.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

func MapRecord(r *domainbilling.Record) Record {
	out := Record{
		ID:                string(r.ID),
		CycleID:           string(r.CycleID),
		LocationID:        string(r.LocationID),
		RoomID:            string(r.RoomID),
		Occupants:         UserIDs(r.Occupants),
		BasePrice:         r.Charges.BasePrice,
		Electric:          r.Charges.Electric,
		ElectricUnitPrice: r.Charges.ElectricUnitPrice,
		Water:             r.Charges.Water,
		ExtraFee:          r.Charges.ExtraFee,
		PrepaidOffset:     r.Charges.PrepaidOffset,
		DiscountKind:      string(r.Charges.DiscountKind),
		DiscountValue:     r.Charges.DiscountValue,
		Billed:            MoneyDTO{Amount: r.BilledAmount, Currency: r.Currency},
		Status:            string(r.Status),
		SettledVia:        string(r.SettledVia),
		PaidBy:            string(r.PaidBy),
		UpdatedAt:         r.UpdatedAt,
	}
	if !r.PaidAt.IsZero() {
		paid := r.PaidAt
		out.PaidAt = &paid
	}
	return out
}

func MapRecords(records []*domainbilling.Record) []Record {
	return lo.Map(records, func(r *domainbilling.Record, _ int) Record { return MapRecord(r) })
}

func UserIDs(ids []directory.UserID) []string {
	return lo.Map(ids, func(id directory.UserID, _ int) string { return string(id) })
}
