package policies

import (
	"context"
	"fmt"
	"time"

	"cspace/internal/domain/shared/fault"
)

var ErrLockHeld = fmt.Errorf("lock: held by another worker: %w", fault.ErrConcurrentUpdate)

// Locker provides mutual exclusion across request handlers and, in
// production, across service instances.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
