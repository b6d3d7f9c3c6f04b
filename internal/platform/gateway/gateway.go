// Package gateway adapts the payment providers to one payment contract.
package gateway

import (
	"context"
	"errors"
	"net/url"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/pkg/types"
)

var (
	ErrUnsupportedGateway = errors.New("unsupported gateway")
	// ErrMissingCredential wraps construction failures caused by seller settings.
	ErrMissingCredential = errors.New("gateway misconfigured")
	ErrUnsupportedMethod = errors.New("payment method not supported by gateway")
)

var supportedMethods = map[types.Gateway][]types.PaymentMethod{
	types.GatewayMercadoPago: {types.PaymentMethodPix, types.PaymentMethodCreditCard, types.PaymentMethodBoleto},
	types.GatewayEfi:         {types.PaymentMethodPix},
	types.GatewayPushinPay:   {types.PaymentMethodPix},
	types.GatewayBeehive:     {types.PaymentMethodCreditCard},
	types.GatewayHypercash:   {types.PaymentMethodCreditCard},
	types.GatewayStripe:      {types.PaymentMethodCreditCard},
}

// Supports reports whether the provider can charge the method at all.
func Supports(name types.Gateway, m types.PaymentMethod) bool {
	return slices.Contains(supportedMethods[name], m)
}

// Card is raw card data for providers without tokenization.
type Card struct {
	Number     string `json:"number"`
	HolderName string `json:"holder_name"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CVV        string `json:"cvv"`
}

func (c *Card) LastFour() string {
	d := types.Digits(c.Number)
	if len(d) < 4 {
		return d
	}
	return d[len(d)-4:]
}

// PaymentInput is the normalized charge request handed to every adapter.
type PaymentInput struct {
	// Reference is the local transaction id, sent to providers as external
	// reference and idempotency key.
	Reference       string
	Amount          decimal.Decimal
	Currency        string
	Method          types.PaymentMethod
	Description     string
	Customer        types.Buyer
	Installments    int
	NotificationURL string

	Card      *Card
	CardToken string
	CardBrand string

	// SaveCard asks the provider to keep the card for later one-click charges.
	SaveCard bool
	// CustomerRef and PaymentMethodRef charge a card already on file.
	CustomerRef      string
	PaymentMethodRef string
}

// PaymentResult is the normalized outcome of CreatePayment.
type PaymentResult struct {
	Success          bool                `json:"success"`
	GatewayPaymentID string              `json:"gateway_payment_id,omitempty"`
	Status           types.PaymentStatus `json:"status"`
	PixCode          string              `json:"pix_code,omitempty"`
	PixQRCode        string              `json:"pix_qr_code,omitempty"`
	BoletoURL        string              `json:"boleto_url,omitempty"`
	BoletoBarcode    string              `json:"boleto_barcode,omitempty"`
	CardLastFour     string              `json:"card_last_four,omitempty"`
	CardBrand        string              `json:"card_brand,omitempty"`
	CustomerRef      string              `json:"-"`
	PaymentMethodRef string              `json:"-"`
	Error            string              `json:"error,omitempty"`
}

// Declined builds a failed result that never reached the provider or was
// rejected by it.
func Declined(reason string) *PaymentResult {
	return &PaymentResult{Success: false, Status: types.PaymentStatusRefused, Error: reason}
}

type RefundResult struct {
	Success  bool   `json:"success"`
	RefundID string `json:"refund_id,omitempty"`
	// Pending is true when the provider accepted the refund but settles it later.
	Pending bool   `json:"pending,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Gateway is implemented once per provider. Network failures are returned
// as errors; business declines come back as unsuccessful results.
type Gateway interface {
	Name() types.Gateway
	CreatePayment(ctx context.Context, in *PaymentInput) (*PaymentResult, error)
	// GetStatus is read-only and safe to call repeatedly.
	GetStatus(ctx context.Context, paymentID string) (types.PaymentStatus, error)
	// Refund refunds the full amount when amount is nil.
	Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (*RefundResult, error)
	// VerifyWebhook reports whether the notification was produced by the provider.
	VerifyWebhook(w *Webhook) bool
}

// Webhook is an inbound notification with the request parts providers sign.
type Webhook struct {
	Payload   []byte
	Signature string
	// RequestID is the X-Request-Id header sent by the provider.
	RequestID string
	Query     url.Values
}

// toCents converts a decimal amount into integer minor units.
func toCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
