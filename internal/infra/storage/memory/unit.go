package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "cspace/internal/app/outbox"
	"cspace/internal/app/uow"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	domainledger "cspace/internal/domain/ledger"
	"cspace/internal/domain/notifications"
)

var (
	ErrReadOnlyUnit = errors.New("memory: write attempted in read-only unit")
	ErrUnitClosed   = errors.New("memory: unit already committed or rolled back")
)

// Factory opens units over a shared Store.
type Factory struct {
	Store *Store
}

// Begin opens a unit. Write units hold the store's writer lock until they are
// committed or rolled back.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, errors.New("memory: unit of work factory misconfigured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := f.Store
	if !opts.ReadOnly {
		s.writer.Lock()
	}
	return &Unit{
		store:     s,
		readOnly:  opts.ReadOnly,
		cycles:    newTable(s.cycles, cloneCycle),
		records:   newTable(s.records, cloneRecord),
		locations: newTable(s.locations, cloneLocation),
		rooms:     newTable(s.rooms, cloneRoom),
		users:     newTable(s.users, cloneUser),
	}, nil
}

type Unit struct {
	store    *Store
	readOnly bool

	once      sync.Once
	closed    bool
	cycles    *table[domainbilling.CycleID, *domainbilling.Cycle]
	records   *table[domainbilling.RecordID, *domainbilling.Record]
	locations *table[directory.LocationID, *directory.Location]
	rooms     *table[directory.RoomID, *directory.Room]
	users     *table[directory.UserID, *directory.User]
	ledger    []*domainledger.Entry
	notes     []*notifications.Notification
	events    []appoutbox.EventRecord
}

func (u *Unit) Cycles() domainbilling.CycleRepository { return cycleRepo{u} }
func (u *Unit) Records() domainbilling.RecordRepository { return recordRepo{u} }
func (u *Unit) Ledger() domainledger.Repository { return ledgerRepo{u} }
func (u *Unit) Locations() directory.LocationRepository { return locationRepo{u} }
func (u *Unit) Rooms() directory.RoomRepository { return roomRepo{u} }
func (u *Unit) Users() directory.UserRepository { return userRepo{u} }
func (u *Unit) Notifications() notifications.Repository { return notificationRepo{u} }

func (u *Unit) Commit(ctx context.Context) error {
	if u.closed {
		return ErrUnitClosed
	}
	if u.readOnly {
		u.release()
		return nil
	}
	s := u.store
	s.mu.Lock()
	u.cycles.apply()
	u.records.apply()
	u.locations.apply()
	u.rooms.apply()
	u.users.apply()
	s.ledger = append(s.ledger, u.ledger...)
	s.notifications = append(s.notifications, u.notes...)
	s.mu.Unlock()

	s.outbox.enqueue(u.events)
	u.release()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.release()
	return nil
}

func (u *Unit) release() {
	u.once.Do(func() {
		u.closed = true
		if !u.readOnly {
			u.store.writer.Unlock()
		}
	})
}

// stage keeps outbox records with the unit so they are dropped on rollback.
func (u *Unit) stage(rec appoutbox.EventRecord) error {
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	u.events = append(u.events, rec)
	return nil
}

func (u *Unit) writable() error {
	switch {
	case u.closed:
		return ErrUnitClosed
	case u.readOnly:
		return ErrReadOnlyUnit
	}
	return nil
}

// read runs fn under the store read lock.
func (u *Unit) read(fn func()) {
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	fn()
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
