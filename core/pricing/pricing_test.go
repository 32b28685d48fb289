package pricing

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fPtr(f float64) *float64 { return &f }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDisplayPrice(t *testing.T) {
	tests := []struct {
		name  string
		terms Terms
		want  decimal.Decimal
	}{
		{name: "computed when stored value absent", terms: Terms{Price: 1000, RegularDiscountPct: 10, AdditionalDiscountPct: 5}, want: dec("850")},
		{name: "stored value wins", terms: Terms{Price: 1000, RegularDiscountPct: 10, AdditionalDiscountPct: 5, TotalPayable: fPtr(820)}, want: dec("820")},
		{name: "stored zero is still a value", terms: Terms{Price: 1000, TotalPayable: fPtr(0)}, want: dec("0")},
		{name: "NaN stored value falls back", terms: Terms{Price: 200, RegularDiscountPct: 50, TotalPayable: fPtr(math.NaN())}, want: dec("100")},
		{name: "Inf stored value falls back", terms: Terms{Price: 200, TotalPayable: fPtr(math.Inf(1))}, want: dec("200")},
		{name: "no discount", terms: Terms{Price: 499.99}, want: dec("499.99")},
		{name: "discounts above 100% clamp to zero", terms: Terms{Price: 1000, RegularDiscountPct: 80, AdditionalDiscountPct: 30}, want: dec("0")},
		{name: "fractional discounts", terms: Terms{Price: 999, RegularDiscountPct: 12.5, AdditionalDiscountPct: 2.5}, want: dec("849.15")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DisplayPrice(tt.terms)
			assert.True(t, tt.want.Equal(got), "DisplayPrice() = %s, want %s", got, tt.want)
		})
	}
}

func TestDisplayPrice_monotonicAndNonNegative(t *testing.T) {
	prices := []float64{0, 1, 99.5, 1000, 12345.67}
	steps := []float64{0, 5, 10, 12.5, 20, 33, 50, 75, 100}

	for _, price := range prices {
		for _, extra := range steps {
			prev := decimal.NewFromFloat(math.MaxFloat64)
			for _, regular := range steps {
				got := DisplayPrice(Terms{Price: price, RegularDiscountPct: regular, AdditionalDiscountPct: extra})
				require.False(t, got.IsNegative(), "price=%v regular=%v additional=%v", price, regular, extra)
				require.True(t, got.LessThanOrEqual(prev), "not non-increasing in regular discount at %v", regular)
				prev = got
			}
		}
		for _, regular := range steps {
			prev := decimal.NewFromFloat(math.MaxFloat64)
			for _, extra := range steps {
				got := DisplayPrice(Terms{Price: price, RegularDiscountPct: regular, AdditionalDiscountPct: extra})
				require.True(t, got.LessThanOrEqual(prev), "not non-increasing in additional discount at %v", extra)
				prev = got
			}
		}
	}
}

func TestPerHourRate(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		price    decimal.Decimal
		want     decimal.Decimal
		wantOK   bool
	}{
		{name: "positive duration", duration: 40, price: dec("850"), want: dec("21.25"), wantOK: true},
		{name: "zero duration", duration: 0, price: dec("850")},
		{name: "negative duration", duration: -2, price: dec("850")},
		{name: "NaN duration", duration: math.NaN(), price: dec("850")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PerHourRate(Terms{Duration: tt.duration}, tt.price)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "PerHourRate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCommission(t *testing.T) {
	a := Item{ID: "a", Terms: Terms{Price: 1000, RegularDiscountPct: 10, AdditionalDiscountPct: 5, CommissionPct: 10}} // 85
	b := Item{ID: "b", Terms: Terms{Price: 500, TotalPayable: fPtr(400), CommissionPct: 12.5}}                         // 50
	c := Item{ID: "c", Terms: Terms{Price: 300, CommissionPct: 0}}                                                     // 0

	assert.True(t, dec("85").Equal(CommissionOnSale(a.Terms)))
	assert.True(t, dec("50").Equal(CommissionOnSale(b.Terms)))

	sel := NewSelection()
	prev := decimal.Zero
	for _, it := range []Item{a, b, c, a, b} {
		sel.Add(it)
		got := sel.Commission()
		assert.True(t, got.GreaterThanOrEqual(prev), "commission decreased after adding %s", it.ID)
		prev = got
	}
	assert.Equal(t, 3, sel.Len())
	assert.True(t, dec("135").Equal(sel.Commission()))
	assert.True(t, TotalCommission(sel.Items()).Equal(
		CommissionOnSale(a.Terms).Add(CommissionOnSale(b.Terms)).Add(CommissionOnSale(c.Terms))))
	assert.True(t, dec("1550").Equal(sel.Total()))
}

func TestSelection(t *testing.T) {
	a := Item{ID: "a", Terms: Terms{Price: 10}}
	b := Item{ID: "b", Terms: Terms{Price: 20}}

	sel := NewSelection(a, b, a)
	assert.Equal(t, 2, sel.Len())
	assert.False(t, sel.Add(b), "duplicate add must be a no-op")
	assert.True(t, sel.Contains("a"))

	assert.True(t, sel.Remove("a"))
	assert.False(t, sel.Remove("a"))
	assert.Equal(t, []Item{b}, sel.Items())

	sel.Clear()
	assert.True(t, sel.IsEmpty())
	assert.True(t, sel.Total().IsZero())
}

func TestDiscountTier(t *testing.T) {
	tests := []struct {
		regular, additional float64
		wantPct             int64
		want                Tier
	}{
		{0, 0, 0, TierLow},
		{10, 9.4, 19, TierLow},
		{10, 9.5, 20, TierMedium},
		{20, 0, 20, TierMedium},
		{30, 9, 39, TierMedium},
		{30, 9.6, 40, TierHigh},
		{60, 30, 90, TierHigh},
	}
	for _, tt := range tests {
		terms := Terms{RegularDiscountPct: tt.regular, AdditionalDiscountPct: tt.additional}
		assert.Equal(t, tt.wantPct, TotalDiscountPct(terms), "TotalDiscountPct(%v, %v)", tt.regular, tt.additional)
		assert.Equal(t, tt.want, DiscountTier(terms), "DiscountTier(%v, %v)", tt.regular, tt.additional)
	}
}

func TestAmount(t *testing.T) {
	assert.Equal(t, 849.15, Amount(dec("849.149")))
	assert.Equal(t, 850.0, Amount(dec("850")))
}
