package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cspace/internal/domain/shared/fault"
)

type sample struct {
	ID   string  `validate:"required"`
	URL  string  `validate:"required,url"`
	Kind *string `validate:"omitempty,oneof=FIXED_AMOUNT PERCENTAGE"`
	Qty  *int64  `validate:"omitempty,gte=0"`
}

func TestValidatorAcceptsValidStruct(t *testing.T) {
	kind := "PERCENTAGE"
	err := New().Validate(context.Background(), sample{ID: "x", URL: "https://example.com/ok", Kind: &kind})
	require.NoError(t, err)
}

func TestValidatorWrapsFieldErrorsAsInvalidInput(t *testing.T) {
	kind := "BOGUS"
	qty := int64(-1)
	err := New().Validate(context.Background(), sample{URL: "nope", Kind: &kind, Qty: &qty})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrInvalidInput)
	assert.Contains(t, err.Error(), "ID is required")
	assert.Contains(t, err.Error(), "URL must be a valid URL")
	assert.Contains(t, err.Error(), "Kind must be one of")
	assert.Contains(t, err.Error(), "Qty must be at least 0")
}

func TestValidatorIgnoresNonStructs(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(context.Background(), nil))
	assert.NoError(t, v.Validate(context.Background(), "plain"))
	var nilPtr *sample
	assert.NoError(t, v.Validate(context.Background(), nilPtr))
}
