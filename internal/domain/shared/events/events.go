package events

import "time"

// DomainEvent is a fact recorded by an aggregate and published after commit.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// Source is anything that buffers domain events until they are drained.
type Source interface {
	PendingEvents() []DomainEvent
	ClearEvents()
}

type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}

// Drain collects and clears pending events from every source in order.
func Drain(sources ...Source) []DomainEvent {
	var out []DomainEvent
	for _, src := range sources {
		if src == nil {
			continue
		}
		out = append(out, src.PendingEvents()...)
		src.ClearEvents()
	}
	return out
}
