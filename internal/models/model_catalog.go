package models

import (
	"errors"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fatflowers/checkout/pkg/types"
)

// Product is owned by the catalog; checkout only reads it.
type Product struct {
	ID              string                                   `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	SellerID        string                                   `gorm:"column:seller_id;type:varchar(64);not null;index" json:"seller_id"`
	Hash            string                                   `gorm:"column:hash;type:varchar(64);not null;uniqueIndex" json:"hash"`
	Name            string                                   `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Price           decimal.Decimal                          `gorm:"column:price;type:numeric(14,2);not null" json:"price"`
	Currency        string                                   `gorm:"column:currency;type:varchar(3);not null;default:'BRL'" json:"currency"`
	Active          bool                                     `gorm:"column:active;not null" json:"active"`
	DisabledMethods datatypes.JSONSlice[types.PaymentMethod] `gorm:"column:disabled_methods;type:jsonb" json:"disabled_methods"`
	CreatedAt       time.Time                                `json:"created_at"`
	UpdatedAt       time.Time                                `json:"updated_at"`
}

func (Product) TableName() string { return "product" }

func (p *Product) MethodEnabled(m types.PaymentMethod) bool {
	return !lo.Contains(p.DisabledMethods, m)
}

// Offer is an alternative price point for a product.
type Offer struct {
	ID        string          `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	ProductID string          `gorm:"column:product_id;type:varchar(64);not null;index" json:"product_id"`
	Hash      string          `gorm:"column:hash;type:varchar(64);not null;uniqueIndex" json:"hash"`
	Name      string          `gorm:"column:name;type:varchar(255)" json:"name"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(14,2);not null" json:"price"`
	Active    bool            `gorm:"column:active;not null" json:"active"`
}

func (Offer) TableName() string { return "offer" }

// OrderBump is an add-on offered on the checkout page of a product.
type OrderBump struct {
	ID        string          `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	ProductID string          `gorm:"column:product_id;type:varchar(64);not null;index" json:"product_id"`
	Name      string          `gorm:"column:name;type:varchar(255)" json:"name"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(14,2);not null" json:"price"`
	Active    bool            `gorm:"column:active;not null" json:"active"`
}

func (OrderBump) TableName() string { return "order_bump" }

type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

var (
	ErrCouponInactive     = errors.New("cupom inativo")
	ErrCouponNotStarted   = errors.New("cupom ainda nao esta valido")
	ErrCouponExpired      = errors.New("cupom expirado")
	ErrCouponExhausted    = errors.New("cupom esgotado")
	ErrCouponWrongSeller  = errors.New("cupom invalido")
	ErrCouponWrongProduct = errors.New("cupom nao se aplica a este produto")
)

type Coupon struct {
	ID       string `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	SellerID string `gorm:"column:seller_id;type:varchar(64);not null;uniqueIndex:unique_seller_code,priority:1" json:"seller_id"`
	// ProductID nil means the coupon applies to every product of the seller.
	ProductID   *string         `gorm:"column:product_id;type:varchar(64)" json:"product_id"`
	Code        string          `gorm:"column:code;type:varchar(64);not null;uniqueIndex:unique_seller_code,priority:2" json:"code"`
	Type        CouponType      `gorm:"column:type;type:varchar(16);not null" json:"type"`
	Value       decimal.Decimal `gorm:"column:value;type:numeric(14,2);not null" json:"value"`
	Active      bool            `gorm:"column:active;not null" json:"active"`
	ValidFrom   *time.Time      `gorm:"column:valid_from" json:"valid_from"`
	ValidUntil  *time.Time      `gorm:"column:valid_until" json:"valid_until"`
	MaxUses     *int            `gorm:"column:max_uses" json:"max_uses"`
	CurrentUses int             `gorm:"column:current_uses;not null;default:0" json:"current_uses"`
}

func (Coupon) TableName() string { return "coupon" }

// Validate checks whether the coupon can be redeemed on the given product.
func (c *Coupon) Validate(sellerID, productID string, now time.Time) error {
	switch {
	case c.SellerID != sellerID:
		return ErrCouponWrongSeller
	case !c.Active:
		return ErrCouponInactive
	case c.ValidFrom != nil && now.Before(*c.ValidFrom):
		return ErrCouponNotStarted
	case c.ValidUntil != nil && now.After(*c.ValidUntil):
		return ErrCouponExpired
	case c.MaxUses != nil && c.CurrentUses >= *c.MaxUses:
		return ErrCouponExhausted
	case c.ProductID != nil && *c.ProductID != productID:
		return ErrCouponWrongProduct
	}
	return nil
}

// Discount returns the discount over subtotal, never more than subtotal
// and never negative.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.Sign() <= 0 || c.Value.Sign() <= 0 {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch c.Type {
	case CouponTypePercentage:
		pct := decimal.Min(c.Value, decimal.NewFromInt(100))
		d = subtotal.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
	case CouponTypeFixed:
		d = c.Value
	default:
		return decimal.Zero
	}
	return decimal.Min(d, subtotal)
}
