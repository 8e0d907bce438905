package memory

import (
	"context"
	"sort"

	"cspace/internal/domain/directory"
)

type locationRepo struct{ u *Unit }

func (r locationRepo) ByID(ctx context.Context, id directory.LocationID) (*directory.Location, error) {
	var (
		loc *directory.Location
		ok  bool
	)
	r.u.read(func() { loc, ok = r.u.locations.get(id) })
	if !ok {
		return nil, directory.ErrLocationNotFound
	}
	return loc, nil
}

func (r locationRepo) Save(ctx context.Context, location *directory.Location) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	var (
		current *directory.Location
		exists  bool
	)
	r.u.read(func() { current, exists = r.u.locations.get(location.ID) })
	stored := int64(0)
	if exists {
		stored = current.Version
	}
	if err := checkVersion(exists, stored, location.Version); err != nil {
		return err
	}
	location.Version++
	r.u.locations.put(location.ID, location)
	return nil
}

type roomRepo struct{ u *Unit }

func (r roomRepo) ByID(ctx context.Context, id directory.RoomID) (*directory.Room, error) {
	var (
		room *directory.Room
		ok   bool
	)
	r.u.read(func() { room, ok = r.u.rooms.get(id) })
	if !ok {
		return nil, directory.ErrRoomNotFound
	}
	return room, nil
}

func (r roomRepo) ListOccupied(ctx context.Context, location directory.LocationID) ([]*directory.Room, error) {
	var out []*directory.Room
	r.u.read(func() {
		r.u.rooms.each(func(room *directory.Room) {
			if room.LocationID == location && room.Occupied {
				out = append(out, room)
			}
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r roomRepo) Save(ctx context.Context, room *directory.Room) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.rooms.put(room.ID, room)
	return nil
}

type userRepo struct{ u *Unit }

func (r userRepo) ByID(ctx context.Context, id directory.UserID) (*directory.User, error) {
	var (
		user *directory.User
		ok   bool
	)
	r.u.read(func() { user, ok = r.u.users.get(id) })
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return user, nil
}

// ByIDs returns the users that exist, in the order asked; unknown ids are skipped.
func (r userRepo) ByIDs(ctx context.Context, ids []directory.UserID) ([]*directory.User, error) {
	out := make([]*directory.User, 0, len(ids))
	r.u.read(func() {
		for _, id := range ids {
			if user, ok := r.u.users.get(id); ok {
				out = append(out, user)
			}
		}
	})
	return out, nil
}

func (r userRepo) Save(ctx context.Context, user *directory.User) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.users.put(user.ID, user)
	return nil
}
