package memory

import (
	"context"
	"sync"

	"cspace/internal/app/policies"
)

// Inbox remembers processed message ids for the life of the process. Like the
// Mongo store it refuses to work on a finished context.
type Inbox struct {
	mu   sync.Mutex
	done map[string]struct{}
}

func NewInbox() *Inbox {
	return &Inbox{done: make(map[string]struct{})}
}

func (i *Inbox) Processed(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.done[id]
	return ok, nil
}

func (i *Inbox) Mark(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.done[id] = struct{}{}
	return nil
}

var _ policies.Inbox = (*Inbox)(nil)
