package billing

import (
	"context"

	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/period"
)

// CycleFilter narrows cycle listings. Zero values match everything.
type CycleFilter struct {
	LocationID directory.LocationID
	CreatedBy  directory.UserID
	Status     CycleStatus
	Anchor     period.Range
	Offset     int
	Limit      int
}

type CycleRepository interface {
	ByID(ctx context.Context, id CycleID) (*Cycle, error)
	// ForMonth returns ErrCycleNotFound when the location has no cycle for the month.
	ForMonth(ctx context.Context, location directory.LocationID, month period.Month) (*Cycle, error)
	// List returns matching cycles newest anchor first and the unpaged total.
	List(ctx context.Context, filter CycleFilter) ([]*Cycle, int, error)
	ListByLocation(ctx context.Context, location directory.LocationID) ([]*Cycle, error)
	Save(ctx context.Context, cycle *Cycle) error
	Delete(ctx context.Context, id CycleID) error
}

type RecordRepository interface {
	ByID(ctx context.Context, id RecordID) (*Record, error)
	ListByCycle(ctx context.Context, cycle CycleID) ([]*Record, error)
	// ActiveForRoom returns the non-canceled record for the pair or ErrRecordNotFound.
	ActiveForRoom(ctx context.Context, cycle CycleID, room directory.RoomID) (*Record, error)
	Save(ctx context.Context, record *Record) error
	DeleteByCycle(ctx context.Context, cycle CycleID) error
}
