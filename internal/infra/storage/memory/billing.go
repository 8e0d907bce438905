package memory

import (
	"context"
	"sort"

	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/period"
)

type cycleRepo struct{ u *Unit }

func (r cycleRepo) ByID(ctx context.Context, id domainbilling.CycleID) (*domainbilling.Cycle, error) {
	var (
		cycle *domainbilling.Cycle
		ok    bool
	)
	r.u.read(func() { cycle, ok = r.u.cycles.get(id) })
	if !ok {
		return nil, domainbilling.ErrCycleNotFound
	}
	return cycle, nil
}

func (r cycleRepo) ForMonth(ctx context.Context, location directory.LocationID, month period.Month) (*domainbilling.Cycle, error) {
	var found *domainbilling.Cycle
	r.u.read(func() {
		r.u.cycles.each(func(c *domainbilling.Cycle) {
			if found == nil && c.LocationID == location && month.Contains(c.AnchorDate) {
				found = c
			}
		})
	})
	if found == nil {
		return nil, domainbilling.ErrCycleNotFound
	}
	return found, nil
}

func (r cycleRepo) List(ctx context.Context, filter domainbilling.CycleFilter) ([]*domainbilling.Cycle, int, error) {
	var matches []*domainbilling.Cycle
	r.u.read(func() {
		r.u.cycles.each(func(c *domainbilling.Cycle) {
			if matchCycle(c, filter) {
				matches = append(matches, c)
			}
		})
	})
	sortCycles(matches)
	total := len(matches)
	return page(matches, filter.Offset, filter.Limit), total, nil
}

func (r cycleRepo) ListByLocation(ctx context.Context, location directory.LocationID) ([]*domainbilling.Cycle, error) {
	items, _, err := r.List(ctx, domainbilling.CycleFilter{LocationID: location})
	return items, err
}

func (r cycleRepo) Save(ctx context.Context, cycle *domainbilling.Cycle) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	var (
		current *domainbilling.Cycle
		exists  bool
	)
	r.u.read(func() { current, exists = r.u.cycles.get(cycle.ID) })
	if err := checkVersion(exists, versionOf(current, exists), cycle.Version); err != nil {
		return err
	}
	cycle.Version++
	r.u.cycles.put(cycle.ID, cycle)
	return nil
}

func (r cycleRepo) Delete(ctx context.Context, id domainbilling.CycleID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, err := r.ByID(ctx, id); err != nil {
		return err
	}
	r.u.cycles.remove(id)
	return nil
}

func matchCycle(c *domainbilling.Cycle, f domainbilling.CycleFilter) bool {
	switch {
	case f.LocationID != "" && c.LocationID != f.LocationID:
		return false
	case f.CreatedBy != "" && c.CreatedBy != f.CreatedBy:
		return false
	case f.Status != "" && c.Status != f.Status:
		return false
	}
	return f.Anchor.Contains(c.AnchorDate)
}

// sortCycles orders newest anchor first, then newest creation.
func sortCycles(items []*domainbilling.Cycle) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].AnchorDate.Equal(items[j].AnchorDate) {
			return items[i].AnchorDate.After(items[j].AnchorDate)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

type recordRepo struct{ u *Unit }

func (r recordRepo) ByID(ctx context.Context, id domainbilling.RecordID) (*domainbilling.Record, error) {
	var (
		record *domainbilling.Record
		ok     bool
	)
	r.u.read(func() { record, ok = r.u.records.get(id) })
	if !ok {
		return nil, domainbilling.ErrRecordNotFound
	}
	return record, nil
}

func (r recordRepo) ListByCycle(ctx context.Context, cycle domainbilling.CycleID) ([]*domainbilling.Record, error) {
	var out []*domainbilling.Record
	r.u.read(func() {
		r.u.records.each(func(rec *domainbilling.Record) {
			if rec.CycleID == cycle {
				out = append(out, rec)
			}
		})
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RoomID != out[j].RoomID {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r recordRepo) ActiveForRoom(ctx context.Context, cycle domainbilling.CycleID, room directory.RoomID) (*domainbilling.Record, error) {
	records, err := r.ListByCycle(ctx, cycle)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.RoomID == room && rec.Status != domainbilling.RecordCanceled {
			return rec, nil
		}
	}
	return nil, domainbilling.ErrRecordNotFound
}

func (r recordRepo) Save(ctx context.Context, record *domainbilling.Record) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	var (
		current *domainbilling.Record
		exists  bool
	)
	r.u.read(func() { current, exists = r.u.records.get(record.ID) })
	if err := checkVersion(exists, recordVersion(current, exists), record.Version); err != nil {
		return err
	}
	if !exists && record.Status != domainbilling.RecordCanceled {
		if _, err := r.ActiveForRoom(ctx, record.CycleID, record.RoomID); err == nil {
			return domainbilling.ErrDuplicateRecord
		}
	}
	record.Version++
	r.u.records.put(record.ID, record)
	return nil
}

func (r recordRepo) DeleteByCycle(ctx context.Context, cycle domainbilling.CycleID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	records, err := r.ListByCycle(ctx, cycle)
	if err != nil {
		return err
	}
	for _, rec := range records {
		r.u.records.remove(rec.ID)
	}
	return nil
}

func versionOf(c *domainbilling.Cycle, exists bool) int64 {
	if !exists {
		return 0
	}
	return c.Version
}

func recordVersion(r *domainbilling.Record, exists bool) int64 {
	if !exists {
		return 0
	}
	return r.Version
}

// checkVersion enforces optimistic concurrency: the caller must hold the
// version it read, and new aggregates start at zero.
func checkVersion(exists bool, stored, held int64) error {
	if !exists && held != 0 {
		return fault.ErrConcurrentUpdate
	}
	if exists && stored != held {
		return fault.ErrConcurrentUpdate
	}
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
