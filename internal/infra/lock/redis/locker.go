package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cspace/internal/app/policies"
)

// releaseScript deletes the key only while it still carries our token, so an
// expired lock taken over by another worker is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance Redis lock built on SET NX PX.
type Locker struct {
	client *redis.Client
	prefix string
	retry  time.Duration
	logger *slog.Logger
}

func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis: connect: %w", err)
	}
	return client, nil
}

func NewLocker(client *redis.Client, prefix string, logger *slog.Logger) *Locker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{client: client, prefix: prefix, retry: 50 * time.Millisecond, logger: logger}
}

// Lock polls until the key is free or ctx ends; a ctx that ends first yields
// policies.ErrLockHeld.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	full := l.prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("redis: lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// release outlives the request context
				relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				if err := releaseScript.Run(relCtx, l.client, []string{full}, token).Err(); err != nil {
					l.logger.Warn("redis: lock release failed", "key", key, "error", err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, policies.ErrLockHeld
		case <-ticker.C:
		}
	}
}

var _ policies.Locker = (*Locker)(nil)
