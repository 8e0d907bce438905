package uow

import (
	"context"

	"cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/ledger"
	"cspace/internal/domain/notifications"
)

// UnitOfWork groups repository access behind one commit or rollback. Writes
// made through a unit become visible to other units only after Commit.
type UnitOfWork interface {
	Cycles() billing.CycleRepository
	Records() billing.RecordRepository
	Ledger() ledger.Repository
	Locations() directory.LocationRepository
	Rooms() directory.RoomRepository
	Users() directory.UserRepository
	Notifications() notifications.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (a Mongo
// session for example) in the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}
