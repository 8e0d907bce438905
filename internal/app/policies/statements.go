package policies

import (
	"context"
	"io"
)

// StatementStore keeps rendered cycle statements and returns their location.
type StatementStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}
