package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fatflowers/checkout/pkg/types"
)

// TransactionMetadata holds checkout selections that do not need their own column.
type TransactionMetadata struct {
	OrderBumpIDs []string `json:"order_bump_ids,omitempty"`
	OfferHash    string   `json:"offer_hash,omitempty"`
	CouponCode   string   `json:"coupon_code,omitempty"`
	// Set when the seller settles in a currency other than the product's.
	OriginalAmount   *decimal.Decimal `json:"original_amount,omitempty"`
	OriginalCurrency string           `json:"original_currency,omitempty"`
	ExchangeRate     *decimal.Decimal `json:"exchange_rate,omitempty"`
}

// Transaction is the ledger entry for one payment attempt.
type Transaction struct {
	ID        string  `gorm:"column:id;primary_key;type:uuid" json:"id"`
	SellerID  string  `gorm:"column:seller_id;type:varchar(64);not null;index" json:"seller_id"`
	ProductID string  `gorm:"column:product_id;type:varchar(64);not null;index" json:"product_id"`
	OfferID   *string `gorm:"column:offer_id;type:varchar(64)" json:"offer_id"`
	CouponID  *string `gorm:"column:coupon_id;type:varchar(64)" json:"coupon_id"`
	BuyerID   *string `gorm:"column:buyer_id;type:varchar(64);index" json:"buyer_id"`

	Gateway types.Gateway `gorm:"column:gateway;type:varchar(32);not null;uniqueIndex:unique_gateway_payment,priority:1" json:"gateway"`
	// GatewayPaymentID is null until the provider accepts the charge.
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id;type:varchar(128);uniqueIndex:unique_gateway_payment,priority:2" json:"gateway_payment_id"`
	Method           types.PaymentMethod `gorm:"column:method;type:varchar(16);not null" json:"method"`
	Status           types.PaymentStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	FailureReason    string              `gorm:"column:failure_reason;type:text" json:"failure_reason,omitempty"`

	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null;check:amount >= 0" json:"amount"`
	Discount     decimal.Decimal `gorm:"column:discount;type:numeric(14,2);not null;default:0" json:"discount"`
	Currency     string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Installments int             `gorm:"column:installments;not null;default:1" json:"installments"`

	BuyerName  string `gorm:"column:buyer_name;type:varchar(255)" json:"buyer_name"`
	BuyerEmail string `gorm:"column:buyer_email;type:varchar(255);index" json:"buyer_email"`
	BuyerPhone string `gorm:"column:buyer_phone;type:varchar(32)" json:"buyer_phone"`
	BuyerTaxID string `gorm:"column:buyer_tax_id;type:varchar(32)" json:"buyer_tax_id"`

	PixCode       string `gorm:"column:pix_code;type:text" json:"pix_code,omitempty"`
	PixQRCode     string `gorm:"column:pix_qr_code;type:text" json:"pix_qr_code,omitempty"`
	BoletoURL     string `gorm:"column:boleto_url;type:text" json:"boleto_url,omitempty"`
	BoletoBarcode string `gorm:"column:boleto_barcode;type:varchar(128)" json:"boleto_barcode,omitempty"`
	CardBrand     string `gorm:"column:card_brand;type:varchar(32)" json:"card_brand,omitempty"`
	CardLastFour  string `gorm:"column:card_last_four;type:varchar(4)" json:"card_last_four,omitempty"`

	// Card-on-file references used for one-click upsells.
	CustomerRef      string `gorm:"column:customer_ref;type:varchar(128)" json:"-"`
	PaymentMethodRef string `gorm:"column:payment_method_ref;type:varchar(128)" json:"-"`

	ParentTransactionID *string `gorm:"column:parent_transaction_id;type:varchar(64);index" json:"parent_transaction_id"`

	Metadata datatypes.JSONType[TransactionMetadata] `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`

	UTMSource   string `gorm:"column:utm_source;type:varchar(255)" json:"utm_source,omitempty"`
	UTMMedium   string `gorm:"column:utm_medium;type:varchar(255)" json:"utm_medium,omitempty"`
	UTMCampaign string `gorm:"column:utm_campaign;type:varchar(255)" json:"utm_campaign,omitempty"`
	UTMTerm     string `gorm:"column:utm_term;type:varchar(255)" json:"utm_term,omitempty"`
	UTMContent  string `gorm:"column:utm_content;type:varchar(255)" json:"utm_content,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	PaidAt     *time.Time `gorm:"column:paid_at;default:null" json:"paid_at"`
	RefundedAt *time.Time `gorm:"column:refunded_at;default:null" json:"refunded_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}

func (t *Transaction) Buyer() types.Buyer {
	return types.Buyer{Name: t.BuyerName, Email: t.BuyerEmail, Phone: t.BuyerPhone, TaxID: t.BuyerTaxID}
}

func (t *Transaction) SetBuyer(b types.Buyer) {
	t.BuyerName, t.BuyerEmail, t.BuyerPhone, t.BuyerTaxID = b.Name, b.Email, b.Phone, b.TaxID
}

func (t *Transaction) UTM() types.UTM {
	return types.UTM{Source: t.UTMSource, Medium: t.UTMMedium, Campaign: t.UTMCampaign, Term: t.UTMTerm, Content: t.UTMContent}
}

func (t *Transaction) SetUTM(u types.UTM) {
	t.UTMSource, t.UTMMedium, t.UTMCampaign, t.UTMTerm, t.UTMContent = u.Source, u.Medium, u.Campaign, u.Term, u.Content
}

// PaymentID returns the provider payment id or "" before one is assigned.
func (t *Transaction) PaymentID() string {
	if t == nil || t.GatewayPaymentID == nil {
		return ""
	}
	return *t.GatewayPaymentID
}

// HasCardOnFile reports whether a one-click charge can reuse this purchase's card.
func (t *Transaction) HasCardOnFile() bool {
	return t != nil && t.PaymentMethodRef != ""
}

// Clone returns a shallow copy safe for before/after audit snapshots.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
