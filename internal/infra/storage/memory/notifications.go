package memory

import (
	"context"
	"sort"

	"cspace/internal/domain/directory"
	"cspace/internal/domain/notifications"
)

type notificationRepo struct{ u *Unit }

func (r notificationRepo) Add(ctx context.Context, items ...*notifications.Notification) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	for _, n := range items {
		cp := *n
		r.u.notes = append(r.u.notes, &cp)
	}
	return nil
}

func (r notificationRepo) ListByUser(ctx context.Context, user directory.UserID, limit int) ([]*notifications.Notification, error) {
	var out []*notifications.Notification
	r.u.read(func() {
		for _, n := range r.u.store.notifications {
			if n.UserID == user {
				cp := *n
				out = append(out, &cp)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, 0, limit), nil
}
