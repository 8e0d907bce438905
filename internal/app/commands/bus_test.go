package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct{ N int }

func (ping) Key() string { return "test.ping" }

type pong struct{}

func (pong) Key() string { return "test.pong" }

func TestDispatchTypedResult(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler[ping, int](bus, "test.ping", HandlerFunc[ping, int](func(_ context.Context, cmd ping) (int, error) {
		return cmd.N * 2, nil
	}))

	got, err := Dispatch[ping, int](context.Background(), bus, ping{N: 21})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = Dispatch[ping, string](context.Background(), bus, ping{N: 1})
	assert.ErrorIs(t, err, ErrResultType)
	assert.EqualError(t, err, "commands: result type mismatch: test.ping returned int, want string")
}

func TestDispatchUnknownKey(t *testing.T) {
	_, err := NewInMemoryBus().Dispatch(context.Background(), pong{})
	assert.True(t, errors.Is(err, ErrHandlerNotFound))
}

func TestRegisterTwicePanics(t *testing.T) {
	bus := NewInMemoryBus()
	h := HandlerFunc[ping, int](func(context.Context, ping) (int, error) { return 0, nil })
	RegisterHandler[ping, int](bus, "test.ping", h)

	assert.Panics(t, func() { RegisterHandler[ping, int](bus, "test.ping", h) })
	assert.Equal(t, []string{"test.ping"}, bus.Keys())
}
