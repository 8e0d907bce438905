// Package directory holds the collaborator records the billing engine reads:
// locations, rooms and users. They are owned elsewhere on the platform; the
// engine only writes a location's revenue and payout destination.
package directory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"cspace/internal/domain/shared/fault"
)

var (
	ErrLocationNotFound = fmt.Errorf("directory: location %w", fault.ErrNotFound)
	ErrRoomNotFound     = fmt.Errorf("directory: room %w", fault.ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("directory: user %w", fault.ErrNotFound)
	ErrNoPayoutAccount  = fmt.Errorf("directory: location has no payout destination: %w", fault.ErrInvalidTransition)
)

type (
	LocationID string
	RoomID     string
	UserID     string
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleTenant Role = "TENANT"
)

type Location struct {
	ID                LocationID
	Name              string
	Currency          string
	ElectricUnitPrice int64
	PayoutDestination string
	TotalRevenue      int64
	AdminIDs          []UserID
	UpdatedAt         time.Time
	Version           int64
}

// HasPayoutDestination reports whether gateway payments can be forwarded.
func (l *Location) HasPayoutDestination() bool {
	return strings.TrimSpace(l.PayoutDestination) != ""
}

// SetRevenue reports whether the stored total changed.
func (l *Location) SetRevenue(total int64, now time.Time) bool {
	if l.TotalRevenue == total {
		return false
	}
	l.TotalRevenue = total
	l.UpdatedAt = now.UTC()
	return true
}

func (l *Location) ConnectPayout(account string, now time.Time) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return fault.Invalid("directory: payout account required")
	}
	l.PayoutDestination = account
	l.UpdatedAt = now.UTC()
	return nil
}

func (l *Location) IsAdmin(id UserID) bool {
	return slices.Contains(l.AdminIDs, id)
}

type Room struct {
	ID         RoomID
	LocationID LocationID
	Name       string
	BasePrice  int64
	Occupied   bool
	Occupants  []UserID
}

type User struct {
	ID         UserID
	Name       string
	Email      string
	PushToken  string
	LocationID LocationID
	Role       Role
}

type LocationRepository interface {
	ByID(ctx context.Context, id LocationID) (*Location, error)
	Save(ctx context.Context, location *Location) error
}

type RoomRepository interface {
	ByID(ctx context.Context, id RoomID) (*Room, error)
	ListOccupied(ctx context.Context, location LocationID) ([]*Room, error)
	Save(ctx context.Context, room *Room) error
}

type UserRepository interface {
	ByID(ctx context.Context, id UserID) (*User, error)
	ByIDs(ctx context.Context, ids []UserID) ([]*User, error)
	Save(ctx context.Context, user *User) error
}
