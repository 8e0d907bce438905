package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cspace/internal/domain/shared/fault"
)

func TestComputeBilledAmountAddsUtilities(t *testing.T) {
	got := ComputeBilledAmount(Inputs{
		BasePrice:         1_000_000,
		Electric:          10,
		ElectricUnitPrice: 3000,
		Water:             5000,
		DiscountKind:      DiscountFixedAmount,
	})
	assert.Equal(t, int64(1_035_000), got)
}

func TestComputeBilledAmountPercentageDiscount(t *testing.T) {
	got := ComputeBilledAmount(Inputs{
		BasePrice:     1_000_000,
		DiscountKind:  DiscountPercentage,
		DiscountValue: 10,
	})
	assert.Equal(t, int64(900_000), got)
}

func TestComputeBilledAmountDiscountAppliesAfterUtilities(t *testing.T) {
	got := ComputeBilledAmount(Inputs{
		BasePrice:         1_000_000,
		Electric:          10,
		ElectricUnitPrice: 3000,
		Water:             5000,
		ExtraFee:          20_000,
		PrepaidOffset:     100_000,
		DiscountKind:      DiscountPercentage,
		DiscountValue:     10,
	})
	// (1_035_000 - 103_500) + 20_000 - 100_000
	assert.Equal(t, int64(851_500), got)
}

func TestComputeBilledAmountRoundsPercentage(t *testing.T) {
	got := ComputeBilledAmount(Inputs{
		BasePrice:     1_005,
		DiscountKind:  DiscountPercentage,
		DiscountValue: 15,
	})
	// 15% of 1005 is 150.75, rounded to 151.
	assert.Equal(t, int64(854), got)
}

func TestComputeBilledAmountIsNotClamped(t *testing.T) {
	got := ComputeBilledAmount(Inputs{
		BasePrice:     100,
		DiscountKind:  DiscountFixedAmount,
		DiscountValue: 500,
	})
	assert.Equal(t, int64(-400), got)
}

func TestInputsValidate(t *testing.T) {
	cases := map[string]Inputs{
		"negative water":  {Water: -1},
		"negative prepay": {PrepaidOffset: -5},
		"too much":        {DiscountKind: DiscountPercentage, DiscountValue: 101},
		"unknown kind":    {DiscountKind: "BOGO"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			err := in.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, fault.ErrInvalidInput))
		})
	}
	require.NoError(t, Inputs{BasePrice: 10, DiscountKind: DiscountPercentage, DiscountValue: 100}.Validate())
}

func TestInputsValidateRejectsOverflow(t *testing.T) {
	cases := map[string]Inputs{
		"electric product": {BasePrice: 1_000_000, Electric: 1 << 40, ElectricUnitPrice: 1 << 24},
		"sum of charges":   {BasePrice: math.MaxInt64, Water: 1},
		"extra fee":        {BasePrice: math.MaxInt64 - 10, ExtraFee: 11},
		"below minimum":    {DiscountValue: math.MaxInt64, PrepaidOffset: math.MaxInt64},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, in.Validate(), fault.ErrInvalidInput)
		})
	}

	edge := Inputs{BasePrice: math.MaxInt64 - 100, Water: 100, DiscountKind: DiscountPercentage, DiscountValue: 50}
	require.NoError(t, edge.Validate())
	assert.Equal(t, int64(math.MaxInt64/2), ComputeBilledAmount(edge))
}

func TestHasVariableCharges(t *testing.T) {
	assert.False(t, Inputs{BasePrice: 1_000_000, DiscountKind: DiscountFixedAmount}.HasVariableCharges())
	assert.True(t, Inputs{BasePrice: 1_000_000, Water: 1}.HasVariableCharges())
	assert.True(t, Inputs{DiscountKind: DiscountPercentage}.HasVariableCharges())
}
