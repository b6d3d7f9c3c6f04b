package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/types"
)

type CreatePaymentRequest struct {
	ProductHash  string              `json:"product_hash" binding:"required"`
	OfferHash    string              `json:"offer_hash"`
	Method       types.PaymentMethod `json:"payment_method" binding:"required"`
	Buyer        types.Buyer         `json:"buyer"`
	Card         *gateway.Card       `json:"card,omitempty"`
	CardToken    string              `json:"card_token,omitempty"`
	CardBrand    string              `json:"card_brand,omitempty"`
	SaveCard     bool                `json:"save_card"`
	CouponCode   string              `json:"coupon_code"`
	OrderBumpIDs []string            `json:"order_bump_ids"`
	Installments int                 `json:"installments"`
	UTM          types.UTM           `json:"utm"`
}

type UpsellRequest struct {
	ParentTransactionID string `json:"parent_transaction_id" binding:"required"`
	ProductHash         string `json:"product_hash" binding:"required"`
	OfferHash           string `json:"offer_hash"`
	// UpsellToken is returned with the approved parent payment.
	UpsellToken string `json:"upsell_token" binding:"required"`
}

// PaymentResponse is returned for created charges, including declined ones.
type PaymentResponse struct {
	TransactionID string              `json:"transaction_id"`
	Status        types.PaymentStatus `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	PixCode       string              `json:"pix_code,omitempty"`
	PixQRCode     string              `json:"pix_qr_code,omitempty"`
	BoletoURL     string              `json:"boleto_url,omitempty"`
	BoletoBarcode string              `json:"boleto_barcode,omitempty"`
	CardLastFour  string              `json:"card_last_four,omitempty"`
	CardBrand     string              `json:"card_brand,omitempty"`
	UpsellToken   string              `json:"upsell_token,omitempty"`
	Error         string              `json:"error,omitempty"`
}

type StatusResponse struct {
	TransactionID string              `json:"transaction_id"`
	Status        types.PaymentStatus `json:"status"`
	Method        types.PaymentMethod `json:"method"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	PixCode       string              `json:"pix_code,omitempty"`
	PixQRCode     string              `json:"pix_qr_code,omitempty"`
	BoletoURL     string              `json:"boleto_url,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

type RefundRequest struct {
	TransactionID string           `json:"transaction_id" binding:"required"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Reason        string           `json:"reason"`
}

type RefundResponse struct {
	RefundID          string              `json:"refund_id"`
	TransactionID     string              `json:"transaction_id"`
	Status            string              `json:"status"`
	Amount            decimal.Decimal     `json:"amount"`
	TransactionStatus types.PaymentStatus `json:"transaction_status"`
	// ProviderPending is true when the provider settles the refund later.
	ProviderPending bool   `json:"provider_pending,omitempty"`
	Error           string `json:"error,omitempty"`
}

const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)

// Actor is the authenticated caller of a privileged operation.
type Actor struct {
	Subject  string
	Role     string
	SellerID string
}

func (a Actor) CanManage(sellerID string) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleSeller:
		return a.SellerID != "" && a.SellerID == sellerID
	}
	return false
}
