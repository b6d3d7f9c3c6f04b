package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/pkg/types"
)

const hypercashBaseURL = "https://api.hypercashbrasil.com.br/api/v1"

var hypercashStatus = map[string]types.PaymentStatus{
	"approved":   types.PaymentStatusApproved,
	"paid":       types.PaymentStatusApproved,
	"pending":    types.PaymentStatusPending,
	"processing": types.PaymentStatusPending,
	"refused":    types.PaymentStatusRefused,
	"declined":   types.PaymentStatusRefused,
	"refunded":   types.PaymentStatusRefunded,
	"chargeback": types.PaymentStatusChargeback,
	"canceled":   types.PaymentStatusCancelled,
	"cancelled":  types.PaymentStatusCancelled,
	"expired":    types.PaymentStatusExpired,
}

// Hypercash has no tokenization: it needs the full card on every charge.
type Hypercash struct {
	rest          *restClient
	webhookSecret string
}

func NewHypercash(creds types.GatewayCredentials, opts Options) (*Hypercash, error) {
	if creds.SecretKey == "" {
		return nil, fmt.Errorf("%w: secretKey obrigatoria", ErrMissingCredential)
	}
	secret := creds.SecretKey
	return &Hypercash{
		rest: &restClient{
			gateway: types.GatewayHypercash,
			baseURL: opts.baseURL(hypercashBaseURL),
			http:    opts.client(),
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+secret)
			},
		},
		webhookSecret: creds.WebhookSecret,
	}, nil
}

func (h *Hypercash) Name() types.Gateway { return types.GatewayHypercash }

type hypercashPayment struct {
	ID      flexibleID `json:"id"`
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Card    struct {
		Last4 string `json:"last4"`
		Brand string `json:"brand"`
	} `json:"card"`
}

func (h *Hypercash) CreatePayment(ctx context.Context, in *PaymentInput) (*PaymentResult, error) {
	if in.Method != types.PaymentMethodCreditCard {
		return Declined("Hypercash aceita apenas cartao de credito"), nil
	}
	if in.Card == nil || in.Card.Number == "" || in.Card.CVV == "" {
		return Declined("Hypercash exige os dados completos do cartao"), nil
	}
	body := map[string]any{
		"amount":       toCents(in.Amount),
		"currency":     in.Currency,
		"installments": max(in.Installments, 1),
		"card": map[string]string{
			"number":           types.Digits(in.Card.Number),
			"holder_name":      in.Card.HolderName,
			"expiration_month": in.Card.ExpMonth,
			"expiration_year":  in.Card.ExpYear,
			"cvv":              in.Card.CVV,
		},
		"customer": map[string]string{
			"name":     in.Customer.Name,
			"email":    in.Customer.Email,
			"phone":    in.Customer.PhoneDigits(),
			"document": in.Customer.TaxIDDigits(),
		},
		"external_id": in.Reference,
	}
	if in.NotificationURL != "" {
		body["callback_url"] = in.NotificationURL
	}

	var out hypercashPayment
	if err := h.rest.doJSON(ctx, "create_payment", http.MethodPost, "/payments", body, &out, nil); err != nil {
		if apiErr, ok := asDecline(err); ok {
			return Declined(errorMessage(apiErr.Body, "message", "error")), nil
		}
		return nil, err
	}
	status := mapStatus(hypercashStatus, out.Status)
	res := &PaymentResult{
		Success:          status != types.PaymentStatusRefused,
		GatewayPaymentID: out.ID.String(),
		Status:           status,
		CardLastFour:     out.Card.Last4,
		CardBrand:        out.Card.Brand,
	}
	if res.CardLastFour == "" {
		res.CardLastFour = in.Card.LastFour()
	}
	if !res.Success {
		res.Error = out.Message
	}
	return res, nil
}

func (h *Hypercash) GetStatus(ctx context.Context, paymentID string) (types.PaymentStatus, error) {
	var out hypercashPayment
	if err := h.rest.doJSON(ctx, "get_status", http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &out, nil); err != nil {
		return "", err
	}
	return mapStatus(hypercashStatus, out.Status), nil
}

func (h *Hypercash) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (*RefundResult, error) {
	var body any
	if amount != nil {
		body = map[string]int64{"amount": toCents(*amount)}
	}
	var out struct {
		ID      flexibleID `json:"id"`
		Status  string     `json:"status"`
		Message string     `json:"message"`
	}
	if err := h.rest.doJSON(ctx, "refund", http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/refund", body, &out, nil); err != nil {
		if apiErr, ok := asDecline(err); ok {
			return &RefundResult{Success: false, Error: errorMessage(apiErr.Body, "message")}, nil
		}
		return nil, err
	}
	st := mapStatus(hypercashStatus, out.Status)
	if st == types.PaymentStatusRefused {
		return &RefundResult{Success: false, RefundID: out.ID.String(), Error: out.Message}, nil
	}
	return &RefundResult{Success: true, RefundID: out.ID.String(), Pending: st == types.PaymentStatusPending}, nil
}

func (h *Hypercash) VerifyWebhook(w *Webhook) bool {
	if h.webhookSecret == "" {
		return true
	}
	return VerifyHMAC(h.webhookSecret, w.Payload, w.Signature)
}
