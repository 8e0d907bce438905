package dto

import (
	"time"

	domainnotifications "cspace/internal/domain/notifications"
)

type Notification struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id,omitempty"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Kind       string    `json:"kind"`
	DataID     string    `json:"data_id,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

type NotificationCollection struct {
	Items []Notification `json:"items"`
}

func MapNotification(n *domainnotifications.Notification) Notification {
	return Notification{
		ID:         string(n.ID),
		LocationID: string(n.LocationID),
		Title:      n.Title,
		Body:       n.Body,
		Kind:       string(n.Kind),
		DataID:     n.DataID,
		Read:       n.Read,
		CreatedAt:  n.CreatedAt,
	}
}
