// Package pricing computes the amount billed for one room in one billing cycle.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"cspace/internal/domain/shared/fault"
)

type DiscountKind string

const (
	DiscountFixedAmount DiscountKind = "FIXED_AMOUNT"
	DiscountPercentage  DiscountKind = "PERCENTAGE"
)

var (
	hundred   = decimal.NewFromInt(100)
	minAmount = decimal.NewFromInt(math.MinInt64)
	maxAmount = decimal.NewFromInt(math.MaxInt64)
)

// ParseDiscountKind accepts the canonical names; an empty value means a fixed amount.
func ParseDiscountKind(raw string) (DiscountKind, error) {
	switch DiscountKind(raw) {
	case "", DiscountFixedAmount:
		return DiscountFixedAmount, nil
	case DiscountPercentage:
		return DiscountPercentage, nil
	default:
		return "", fault.Invalid("pricing: unknown discount kind %q", raw)
	}
}

// Inputs are the variable components of a room charge, all in the smallest
// currency unit except Electric, which is metered consumption.
type Inputs struct {
	BasePrice         int64        `json:"base_price" bson:"base_price"`
	Electric          int64        `json:"electric" bson:"electric"`
	ElectricUnitPrice int64        `json:"electric_unit_price" bson:"electric_unit_price"`
	Water             int64        `json:"water" bson:"water"`
	ExtraFee          int64        `json:"extra_fee" bson:"extra_fee"`
	PrepaidOffset     int64        `json:"prepaid_offset" bson:"prepaid_offset"`
	DiscountKind      DiscountKind `json:"discount_kind" bson:"discount_kind"`
	DiscountValue     int64        `json:"discount_value" bson:"discount_value"`
}

func (in Inputs) Validate() error {
	switch {
	case in.BasePrice < 0:
		return fault.Invalid("pricing: base price cannot be negative")
	case in.Electric < 0, in.ElectricUnitPrice < 0:
		return fault.Invalid("pricing: electric usage cannot be negative")
	case in.Water < 0:
		return fault.Invalid("pricing: water cannot be negative")
	case in.ExtraFee < 0:
		return fault.Invalid("pricing: extra fee cannot be negative")
	case in.PrepaidOffset < 0:
		return fault.Invalid("pricing: prepaid offset cannot be negative")
	case in.DiscountValue < 0:
		return fault.Invalid("pricing: discount cannot be negative")
	}
	kind, err := ParseDiscountKind(string(in.DiscountKind))
	if err != nil {
		return err
	}
	if kind == DiscountPercentage && in.DiscountValue > 100 {
		return fault.Invalid("pricing: percentage discount above 100")
	}
	if overflows(in) {
		return fault.Invalid("pricing: charges exceed the representable amount")
	}
	return nil
}

// overflows replays ComputeBilledAmount with exact decimals and reports
// whether any intermediate amount leaves the int64 range.
func overflows(in Inputs) bool {
	electric := decimal.NewFromInt(in.Electric).Mul(decimal.NewFromInt(in.ElectricUnitPrice))
	if !inRange(electric) {
		return true
	}
	amount := decimal.NewFromInt(in.BasePrice)
	for _, d := range []decimal.Decimal{decimal.NewFromInt(in.Water), electric} {
		if amount = amount.Add(d); !inRange(amount) {
			return true
		}
	}
	discount := decimal.NewFromInt(in.DiscountValue)
	if in.DiscountKind == DiscountPercentage {
		discount = amount.Mul(discount).Div(hundred).Round(0)
	}
	for _, d := range []decimal.Decimal{discount.Neg(), decimal.NewFromInt(in.ExtraFee), decimal.NewFromInt(in.PrepaidOffset).Neg()} {
		if amount = amount.Add(d); !inRange(amount) {
			return true
		}
	}
	return false
}

func inRange(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(minAmount) && d.LessThanOrEqual(maxAmount)
}

// ComputeBilledAmount applies the components in a fixed order: utilities are
// added before the discount, so a percentage discount reduces the
// utility-inflated subtotal. The result is not clamped at zero. Callers run
// Validate first; unchecked inputs may wrap.
func ComputeBilledAmount(in Inputs) int64 {
	amount := in.BasePrice
	amount += in.Water
	amount += in.Electric * in.ElectricUnitPrice

	switch in.DiscountKind {
	case DiscountPercentage:
		amount -= percentOf(amount, in.DiscountValue)
	default:
		amount -= in.DiscountValue
	}

	amount += in.ExtraFee
	amount -= in.PrepaidOffset
	return amount
}

// percentOf rounds half away from zero to the smallest currency unit.
func percentOf(amount, pct int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(pct)).
		Div(hundred).
		Round(0).
		IntPart()
}

// HasVariableCharges reports whether any input beyond the base price is set.
// A record without them is still waiting for utilities to be entered.
func (in Inputs) HasVariableCharges() bool {
	return in.Electric != 0 ||
		in.Water != 0 ||
		in.ExtraFee != 0 ||
		in.PrepaidOffset != 0 ||
		in.DiscountValue != 0 ||
		in.DiscountKind == DiscountPercentage
}
