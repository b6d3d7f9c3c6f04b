package types

import (
	"strings"
	"unicode"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusApproved   PaymentStatus = "approved"
	PaymentStatusRefused    PaymentStatus = "refused"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusChargeback PaymentStatus = "chargeback"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusExpired    PaymentStatus = "expired"
)

// transitions lists every legal move of the transaction state machine.
// Anything not listed here is rejected, including self transitions.
var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusApproved, PaymentStatusRefused, PaymentStatusCancelled, PaymentStatusExpired},
	PaymentStatusApproved: {PaymentStatusRefunded, PaymentStatusChargeback},
}

// CanTransition reports whether a transaction may move from one status to another.
func CanTransition(from, to PaymentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave the status.
func (s PaymentStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusRefused, PaymentStatusRefunded,
		PaymentStatusChargeback, PaymentStatusCancelled, PaymentStatusExpired:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodBoleto     PaymentMethod = "boleto"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodPix || m == PaymentMethodCreditCard || m == PaymentMethodBoleto
}

// Instant reports whether funds settle immediately (PIX).
func (m PaymentMethod) Instant() bool { return m == PaymentMethodPix }

type Gateway string

const (
	GatewayMercadoPago Gateway = "mercadopago"
	GatewayEfi         Gateway = "efi"
	GatewayPushinPay   Gateway = "pushinpay"
	GatewayBeehive     Gateway = "beehive"
	GatewayHypercash   Gateway = "hypercash"
	GatewayStripe      Gateway = "stripe"
)

var Gateways = []Gateway{GatewayMercadoPago, GatewayEfi, GatewayPushinPay, GatewayBeehive, GatewayHypercash, GatewayStripe}

// ParseGateway normalizes a gateway name coming from a URL or a settings row.
func ParseGateway(name string) (Gateway, bool) {
	g := Gateway(strings.ToLower(strings.TrimSpace(name)))
	switch g {
	case "mercado_pago", "mercado-pago":
		g = GatewayMercadoPago
	case "gerencianet":
		g = GatewayEfi
	}
	for _, known := range Gateways {
		if g == known {
			return g, true
		}
	}
	return g, false
}

// TransitionSource tells which path moved a transaction.
type TransitionSource string

const (
	TransitionSourceCheckout TransitionSource = "checkout"
	TransitionSourceWebhook  TransitionSource = "webhook"
	TransitionSourceRefund   TransitionSource = "refund"
)

// Buyer is the identity snapshot a buyer submits at checkout.
type Buyer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	TaxID string `json:"tax_id"`
}

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (b Buyer) TaxIDDigits() string { return Digits(b.TaxID) }

func (b Buyer) PhoneDigits() string { return Digits(b.Phone) }

// TaxIDKind returns "CNPJ" for company documents and "CPF" otherwise.
func (b Buyer) TaxIDKind() string {
	if len(b.TaxIDDigits()) == 14 {
		return "CNPJ"
	}
	return "CPF"
}

func (b Buyer) FirstName() string {
	parts := strings.Fields(b.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func (b Buyer) LastName() string {
	parts := strings.Fields(b.Name)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}

// UTM carries the five attribution dimensions.
type UTM struct {
	Source   string `json:"utm_source"`
	Medium   string `json:"utm_medium"`
	Campaign string `json:"utm_campaign"`
	Term     string `json:"utm_term"`
	Content  string `json:"utm_content"`
}
