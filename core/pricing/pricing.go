// Package pricing computes displayed prices and promoter commissions from a package's stored
// pricing terms. Every view (admin, promoter, student) goes through these functions so they
// always agree.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Terms are the pricing fields of a catalog package.
type Terms struct {
	Price                 float64
	RegularDiscountPct    float64
	AdditionalDiscountPct float64
	TotalPayable          *float64 // stored at write time; nil when absent
	CommissionPct         float64
	Duration              float64 // hours
}

// Item is a priced, identifiable entry of a Selection.
type Item struct {
	ID    string
	Terms Terms
}

// Tier is the presentational class of a package's total discount.
type Tier string

const (
	TierLow    Tier = "low"    // < 20%
	TierMedium Tier = "medium" // 20% - 39%
	TierHigh   Tier = "high"   // >= 40%
)

func pct(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Div(hundred)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ComputeTotalPayable is price × (1 − regular/100 − additional/100), never negative.
func ComputeTotalPayable(price, regularDiscountPct, additionalDiscountPct float64) decimal.Decimal {
	if !isFinite(price) || !isFinite(regularDiscountPct) || !isFinite(additionalDiscountPct) {
		return decimal.Zero
	}
	factor := one.Sub(pct(regularDiscountPct)).Sub(pct(additionalDiscountPct))
	total := decimal.NewFromFloat(price).Mul(factor)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// DisplayPrice prefers the stored total payable, even when it disagrees with the formula,
// and only recomputes it when it is absent or not a finite number.
func DisplayPrice(t Terms) decimal.Decimal {
	if t.TotalPayable != nil && isFinite(*t.TotalPayable) {
		return decimal.NewFromFloat(*t.TotalPayable)
	}
	return ComputeTotalPayable(t.Price, t.RegularDiscountPct, t.AdditionalDiscountPct)
}

// PerHourRate is price / duration. ok is false when the duration is not positive.
func PerHourRate(t Terms, price decimal.Decimal) (rate decimal.Decimal, ok bool) {
	if !isFinite(t.Duration) || t.Duration <= 0 {
		return decimal.Zero, false
	}
	return price.Div(decimal.NewFromFloat(t.Duration)), true
}

// CommissionOnSale is the promoter's commission for selling one package.
func CommissionOnSale(t Terms) decimal.Decimal {
	if !isFinite(t.CommissionPct) {
		return decimal.Zero
	}
	return DisplayPrice(t).Mul(pct(t.CommissionPct))
}

// TotalCommission sums CommissionOnSale over items.
func TotalCommission(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(CommissionOnSale(it.Terms))
	}
	return total
}

// TotalPrice sums DisplayPrice over items.
func TotalPrice(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(DisplayPrice(it.Terms))
	}
	return total
}

// TotalDiscountPct is round(regular + additional).
func TotalDiscountPct(t Terms) int64 {
	return decimal.NewFromFloat(t.RegularDiscountPct).
		Add(decimal.NewFromFloat(t.AdditionalDiscountPct)).
		Round(0).
		IntPart()
}

func DiscountTier(t Terms) Tier {
	switch total := TotalDiscountPct(t); {
	case total >= 40:
		return TierHigh
	case total >= 20:
		return TierMedium
	default:
		return TierLow
	}
}

// Amount rounds d to cents for storage and display.
func Amount(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
