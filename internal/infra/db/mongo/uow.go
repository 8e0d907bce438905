package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	"cspace/internal/app/uow"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	domainledger "cspace/internal/domain/ledger"
	"cspace/internal/domain/notifications"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory opens units backed by Mongo sessions. Write units run inside a
// multi-document transaction; read-only units read at snapshot concern.
type Factory struct {
	DB *mongo.Database
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{db: f.DB, session: session, readOnly: opts.ReadOnly}, nil
}

type Unit struct {
	db       *mongo.Database
	session  mongo.Session
	readOnly bool
}

func (u *Unit) Cycles() domainbilling.CycleRepository {
	return CycleRepository{col: u.db.Collection(colCycles)}
}

func (u *Unit) Records() domainbilling.RecordRepository {
	return RecordRepository{col: u.db.Collection(colRecords)}
}

func (u *Unit) Ledger() domainledger.Repository {
	return LedgerRepository{col: u.db.Collection(colLedger)}
}

func (u *Unit) Locations() directory.LocationRepository {
	return LocationRepository{col: u.db.Collection(colLocations)}
}

func (u *Unit) Rooms() directory.RoomRepository {
	return RoomRepository{col: u.db.Collection(colRooms)}
}

func (u *Unit) Users() directory.UserRepository {
	return UserRepository{col: u.db.Collection(colUsers)}
}

func (u *Unit) Notifications() notifications.Repository {
	return NotificationRepository{col: u.db.Collection(colNotifications)}
}

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return u.session.AbortTransaction(ctx)
	}
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext binds the session so repository calls join the transaction.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
var _ uow.ContextInjector = (*Unit)(nil)
