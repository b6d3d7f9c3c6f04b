package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/internal/models"
)

// Quote is the server-side price breakdown of one checkout.
type Quote struct {
	Base     decimal.Decimal
	Discount decimal.Decimal
	Bumps    decimal.Decimal
	Total    decimal.Decimal
}

// Price computes max(0, base - discount + bumps). The coupon only discounts
// the base price, never the add-ons.
func Price(base decimal.Decimal, coupon *models.Coupon, bumps []*models.OrderBump) Quote {
	if base.IsNegative() {
		base = decimal.Zero
	}
	q := Quote{Base: base, Discount: decimal.Zero, Bumps: decimal.Zero}
	for _, b := range bumps {
		if b.Price.IsPositive() {
			q.Bumps = q.Bumps.Add(b.Price)
		}
	}
	if coupon != nil {
		q.Discount = coupon.Discount(base)
	}
	q.Total = decimal.Max(decimal.Zero, base.Sub(q.Discount).Add(q.Bumps)).Round(2)
	return q
}
