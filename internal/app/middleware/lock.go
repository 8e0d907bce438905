package middleware

import (
	"context"
	"time"

	"cspace/internal/app/commands"
	"cspace/internal/app/policies"
)

// LockedCommand names the resource a command must hold exclusively.
type LockedCommand interface {
	commands.Command
	LockKey() string
}

// Lock serialises commands that share a lock key.
func Lock(locker policies.Locker, ttl time.Duration) CommandMiddleware {
	if locker == nil {
		panic("middleware: locker required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			locked, ok := cmd.(LockedCommand)
			if !ok || locked.LockKey() == "" {
				return nextFn(ctx, cmd)
			}
			unlock, err := locker.Lock(ctx, locked.LockKey(), ttl)
			if err != nil {
				return nil, err
			}
			defer unlock()
			return nextFn(ctx, cmd)
		})
	}
}
