package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "cspace/internal/app/outbox"
	"cspace/internal/app/uow"
)

// Outbox keeps committed records in process and hands them to a sink on Flush.
// Records added inside a memory unit only become deliverable when it commits.
type Outbox struct {
	mu      sync.Mutex
	pending []appoutbox.EventRecord
	sink    appoutbox.Sink
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

// SetSink installs the delivery target. Without one, Flush discards records.
func (o *Outbox) SetSink(sink appoutbox.Sink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sink = sink
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if stager, ok := unit.(interface {
			stage(appoutbox.EventRecord) error
		}); ok {
			return stager.stage(record)
		}
	}
	o.enqueue([]appoutbox.EventRecord{record})
	return nil
}

func (o *Outbox) enqueue(records []appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, records...)
}

// Flush delivers every pending record once. Failed deliveries are reported
// and not retried.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	batch := o.pending
	o.pending = nil
	sink := o.sink
	o.mu.Unlock()

	if sink == nil {
		return nil
	}
	var errs []error
	for _, rec := range batch {
		if err := sink.Handle(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending returns a copy of undelivered records.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.pending...)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
