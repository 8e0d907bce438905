package memory

import (
	"slices"
	"sync"

	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	domainledger "cspace/internal/domain/ledger"
	"cspace/internal/domain/notifications"
	"cspace/internal/domain/shared/events"
)

// Store is the committed state shared by every unit. Units stage their writes
// privately and apply them here on commit, one writer at a time.
type Store struct {
	mu     sync.RWMutex
	writer sync.Mutex

	cycles        map[domainbilling.CycleID]*domainbilling.Cycle
	records       map[domainbilling.RecordID]*domainbilling.Record
	locations     map[directory.LocationID]*directory.Location
	rooms         map[directory.RoomID]*directory.Room
	users         map[directory.UserID]*directory.User
	ledger        []*domainledger.Entry
	notifications []*notifications.Notification

	outbox *Outbox
}

func NewStore() *Store {
	return &Store{
		cycles:    make(map[domainbilling.CycleID]*domainbilling.Cycle),
		records:   make(map[domainbilling.RecordID]*domainbilling.Record),
		locations: make(map[directory.LocationID]*directory.Location),
		rooms:     make(map[directory.RoomID]*directory.Room),
		users:     make(map[directory.UserID]*directory.User),
		outbox:    NewOutbox(),
	}
}

// Outbox returns the outbox fed by this store's units.
func (s *Store) Outbox() *Outbox {
	return s.outbox
}

// table overlays a unit's staged writes on top of a committed map.
type table[K comparable, V any] struct {
	committed map[K]V
	staged    map[K]V
	deleted   map[K]struct{}
	clone     func(V) V
}

func newTable[K comparable, V any](committed map[K]V, clone func(V) V) *table[K, V] {
	return &table[K, V]{
		committed: committed,
		staged:    make(map[K]V),
		deleted:   make(map[K]struct{}),
		clone:     clone,
	}
}

// get must be called with the store read lock held.
func (t *table[K, V]) get(key K) (V, bool) {
	if v, ok := t.staged[key]; ok {
		return t.clone(v), true
	}
	if _, gone := t.deleted[key]; gone {
		var zero V
		return zero, false
	}
	v, ok := t.committed[key]
	if !ok {
		return v, false
	}
	return t.clone(v), true
}

func (t *table[K, V]) put(key K, value V) {
	delete(t.deleted, key)
	t.staged[key] = t.clone(value)
}

func (t *table[K, V]) remove(key K) {
	delete(t.staged, key)
	t.deleted[key] = struct{}{}
}

// each visits every visible value; must be called with the read lock held.
func (t *table[K, V]) each(fn func(V)) {
	for key, v := range t.committed {
		if _, gone := t.deleted[key]; gone {
			continue
		}
		if _, shadowed := t.staged[key]; shadowed {
			continue
		}
		fn(t.clone(v))
	}
	for _, v := range t.staged {
		fn(t.clone(v))
	}
}

// apply must be called with the store write lock held.
func (t *table[K, V]) apply() {
	for key := range t.deleted {
		delete(t.committed, key)
	}
	for key, v := range t.staged {
		t.committed[key] = v
	}
}

func cloneCycle(c *domainbilling.Cycle) *domainbilling.Cycle {
	out := *c
	out.EventRecorder = events.EventRecorder{}
	return &out
}

func cloneRecord(r *domainbilling.Record) *domainbilling.Record {
	out := *r
	out.Occupants = slices.Clone(r.Occupants)
	out.EventRecorder = events.EventRecorder{}
	return &out
}

func cloneLocation(l *directory.Location) *directory.Location {
	out := *l
	out.AdminIDs = slices.Clone(l.AdminIDs)
	return &out
}

func cloneRoom(r *directory.Room) *directory.Room {
	out := *r
	out.Occupants = slices.Clone(r.Occupants)
	return &out
}

func cloneUser(u *directory.User) *directory.User {
	out := *u
	return &out
}
