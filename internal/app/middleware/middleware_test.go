package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cspace/internal/app/commands"
	"cspace/internal/app/policies"
	"cspace/internal/app/queries"
	"cspace/internal/domain/shared/fault"
)

type chargeResult struct {
	Total int64 `json:"total"`
}

type chargeCmd struct {
	Room    string
	Amount  int64
	IdemKey string
}

func (chargeCmd) Key() string              { return "test.charge" }
func (c chargeCmd) IdempotencyKey() string { return c.IdemKey }
func (chargeCmd) ResultPrototype() any     { return &chargeResult{} }
func (c chargeCmd) LockKey() string        { return "room:" + c.Room }

type otherCmd struct{ IdemKey string }

func (otherCmd) Key() string              { return "test.other" }
func (c otherCmd) IdempotencyKey() string { return c.IdemKey }
func (otherCmd) ResultPrototype() any     { return &chargeResult{} }

type mapStore struct {
	mu   sync.Mutex
	recs map[string]IdempotencyRecord
}

func newMapStore() *mapStore { return &mapStore{recs: map[string]IdempotencyRecord{}} }

func (s *mapStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Key] = rec
	return nil
}

// busFunc adapts a function to commands.Bus.
type busFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f busFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) { return f(ctx, cmd) }

func TestIdempotencyReplaysStoredResult(t *testing.T) {
	var calls atomic.Int32
	base := busFunc(func(_ context.Context, cmd commands.Command) (any, error) {
		calls.Add(1)
		return &chargeResult{Total: cmd.(chargeCmd).Amount}, nil
	})
	bus := ChainCommands(base, Idempotency(newMapStore(), nil))

	first, err := bus.Dispatch(context.Background(), chargeCmd{Amount: 500, IdemKey: "k1"})
	require.NoError(t, err)
	second, err := bus.Dispatch(context.Background(), chargeCmd{Amount: 999, IdemKey: "k1"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, int64(500), second.(*chargeResult).Total)
}

func TestIdempotencyWithoutKeyAlwaysRuns(t *testing.T) {
	var calls atomic.Int32
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		calls.Add(1)
		return &chargeResult{}, nil
	})
	bus := ChainCommands(base, Idempotency(newMapStore(), nil))

	for range 3 {
		_, err := bus.Dispatch(context.Background(), chargeCmd{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestIdempotencyReplaysDomainFailureWithKind(t *testing.T) {
	var calls atomic.Int32
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		calls.Add(1)
		return nil, fmt.Errorf("cycle closed: %w", fault.ErrInvalidTransition)
	})
	bus := ChainCommands(base, Idempotency(newMapStore(), nil))

	_, err := bus.Dispatch(context.Background(), chargeCmd{IdemKey: "k"})
	require.Error(t, err)
	_, err = bus.Dispatch(context.Background(), chargeCmd{IdemKey: "k"})
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencySkipsRetryableFailures(t *testing.T) {
	var calls atomic.Int32
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		if calls.Add(1) == 1 {
			return nil, fault.External("gateway", errors.New("timeout"))
		}
		return &chargeResult{Total: 7}, nil
	})
	bus := ChainCommands(base, Idempotency(newMapStore(), nil))

	_, err := bus.Dispatch(context.Background(), chargeCmd{IdemKey: "k"})
	assert.ErrorIs(t, err, fault.ErrExternalService)

	res, err := bus.Dispatch(context.Background(), chargeCmd{IdemKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.(*chargeResult).Total)
}

func TestIdempotencyRejectsKeyReuseAcrossCommands(t *testing.T) {
	store := newMapStore()
	require.NoError(t, store.Save(context.Background(), IdempotencyRecord{Key: "test.other:k", Command: "test.charge"}))
	base := busFunc(func(context.Context, commands.Command) (any, error) { return &chargeResult{}, nil })
	bus := ChainCommands(base, Idempotency(store, nil))

	_, err := bus.Dispatch(context.Background(), otherCmd{IdemKey: "k"})
	assert.ErrorIs(t, err, ErrIdempotencyKeyReuse)
}

// keyedLocker is a minimal policies.Locker backed by one mutex per key.
type keyedLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func (l *keyedLocker) Lock(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	if l.slots == nil {
		l.slots = map[string]chan struct{}{}
	}
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	l.mu.Unlock()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, policies.ErrLockHeld
	}
}

func TestLockSerialisesSameKey(t *testing.T) {
	var active, peak atomic.Int32
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil, nil
	})
	bus := ChainCommands(base, Lock(&keyedLocker{}, time.Second))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := bus.Dispatch(context.Background(), chargeCmd{Room: "r1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestLockReportsHeldWhenContextEnds(t *testing.T) {
	locker := &keyedLocker{}
	unlock, err := locker.Lock(context.Background(), "room:r1", time.Second)
	require.NoError(t, err)
	defer unlock()

	bus := ChainCommands(busFunc(func(context.Context, commands.Command) (any, error) { return nil, nil }), Lock(locker, time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = bus.Dispatch(ctx, chargeCmd{Room: "r1"})
	assert.ErrorIs(t, err, policies.ErrLockHeld)
	assert.True(t, fault.Retryable(err))
}

type stubValidator struct{ err error }

func (v stubValidator) Validate(context.Context, any) error { return v.err }

func TestValidationStopsInvalidCommands(t *testing.T) {
	var called bool
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		called = true
		return nil, nil
	})
	bus := ChainCommands(base, Validation(stubValidator{err: fault.Invalid("room required")}))

	_, err := bus.Dispatch(context.Background(), chargeCmd{})
	assert.ErrorIs(t, err, fault.ErrInvalidInput)
	assert.ErrorContains(t, err, "test.charge: ")
	assert.False(t, called)
}

type lookupQuery struct{}

func (lookupQuery) Key() string { return "test.lookup" }

type askFunc func(ctx context.Context, q queries.Query) (any, error)

func (f askFunc) Ask(ctx context.Context, q queries.Query) (any, error) { return f(ctx, q) }

func TestQueryValidationNamesQuery(t *testing.T) {
	base := askFunc(func(context.Context, queries.Query) (any, error) {
		t.Fatal("handler must not run for an invalid query")
		return nil, nil
	})
	bus := ChainQueries(base, QueryValidation(stubValidator{err: fault.Invalid("location required")}))

	_, err := bus.Ask(context.Background(), lookupQuery{})
	assert.ErrorIs(t, err, fault.ErrInvalidInput)
	assert.ErrorContains(t, err, "test.lookup: ")

	ok := ChainQueries(askFunc(func(context.Context, queries.Query) (any, error) { return 7, nil }),
		QueryValidation(stubValidator{}))
	got, err := queries.Ask[lookupQuery, int](context.Background(), ok, lookupQuery{})
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	_, err = queries.Ask[lookupQuery, string](context.Background(), ok, lookupQuery{})
	assert.ErrorIs(t, err, queries.ErrResultType)
	assert.ErrorContains(t, err, "test.lookup returned int")
}

func TestValidationRequiresValidator(t *testing.T) {
	assert.Panics(t, func() { Validation(nil) })
	assert.Panics(t, func() { QueryValidation(nil) })
}
