package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"cspace/internal/domain/shared/events"
)

// EventRecord is a serialized domain event waiting to be delivered.
type EventRecord struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Payload    []byte            `json:"payload"`
	OccurredAt time.Time         `json:"occurred_at"`
	Aggregate  string            `json:"aggregate"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// Decode unmarshals the payload into out.
func (r EventRecord) Decode(out any) error {
	return json.Unmarshal(r.Payload, out)
}

// Outbox stores records alongside the unit of work that produced them. Flush
// hands committed records to delivery; it is called after commit.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

// Sink consumes committed records.
type Sink interface {
	Handle(ctx context.Context, record EventRecord) error
}

type SinkFunc func(ctx context.Context, record EventRecord) error

func (f SinkFunc) Handle(ctx context.Context, record EventRecord) error {
	return f(ctx, record)
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

// RecordDomainEvents drains sources and adds their events to box in order.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, sources ...events.Source) error {
	evs := events.Drain(sources...)
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
