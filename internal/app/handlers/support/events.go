package support

import (
	"context"

	"cspace/internal/app/outbox"
	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/shared/events"
)

// Publisher moves aggregate events into the outbox of the running unit.
type Publisher struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
}

func (p Publisher) Publish(ctx context.Context, sources ...events.Source) error {
	encoder := p.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}
	return outbox.RecordDomainEvents(ctx, p.Outbox, encoder, sources...)
}

// RecordSources adapts records for Publish.
func RecordSources(records []*domainbilling.Record) []events.Source {
	out := make([]events.Source, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
