package dto

import (
	"time"

	domainledger "cspace/internal/domain/ledger"
)

type LedgerEntry struct {
	ID          string    `json:"id"`
	PayerID     string    `json:"payer_id"`
	LocationID  string    `json:"location_id"`
	PaymentID   string    `json:"payment_id"`
	CycleID     string    `json:"cycle_id"`
	Amount      MoneyDTO  `json:"amount"`
	Kind        string    `json:"kind"`
	Method      string    `json:"method"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type LedgerCollection struct {
	Items []LedgerEntry `json:"items"`
	Total int           `json:"total"`
}

func MapLedgerEntry(e *domainledger.Entry) LedgerEntry {
	return LedgerEntry{
		ID:          string(e.ID),
		PayerID:     string(e.PayerID),
		LocationID:  string(e.LocationID),
		PaymentID:   string(e.PaymentID),
		CycleID:     string(e.CycleID),
		Amount:      MoneyDTO{Amount: e.Amount.Amount, Currency: e.Amount.Currency},
		Kind:        string(e.Kind),
		Method:      string(e.Method),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}
