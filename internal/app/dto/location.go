package dto

import "time"

type Revenue struct {
	LocationID   string    `json:"location_id"`
	TotalRevenue MoneyDTO  `json:"total_revenue"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PayoutDestination struct {
	LocationID string `json:"location_id"`
	AccountID  string `json:"account_id"`
}
