package middleware

import (
	"context"
	"fmt"

	"cspace/internal/app/commands"
	"cspace/internal/app/queries"
)

// Validator checks a message's declared constraints before it reaches a handler.
type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Validation rejects commands whose fields break their declared constraints.
// The error names the command key so the log line points at the caller.
func Validation(v Validator) CommandMiddleware {
	mustValidator(v)
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := validate(ctx, v, cmd.Key(), cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	mustValidator(v)
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := validate(ctx, v, q.Key(), q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

func validate(ctx context.Context, v Validator, key string, message any) error {
	if err := v.Validate(ctx, message); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func mustValidator(v Validator) {
	if v == nil {
		panic("middleware: validator required")
	}
}
