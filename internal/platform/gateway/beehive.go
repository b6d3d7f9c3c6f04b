package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/pkg/types"
)

const beehiveBaseURL = "https://api.conta.paybeehive.com.br/v1"

var beehiveStatus = map[string]types.PaymentStatus{
	"paid":            types.PaymentStatusApproved,
	"approved":        types.PaymentStatusApproved,
	"waiting_payment": types.PaymentStatusPending,
	"processing":      types.PaymentStatusPending,
	"authorized":      types.PaymentStatusPending,
	"pending":         types.PaymentStatusPending,
	"refused":         types.PaymentStatusRefused,
	"refunded":        types.PaymentStatusRefunded,
	"chargedback":     types.PaymentStatusChargeback,
	"canceled":        types.PaymentStatusCancelled,
}

// Beehive charges tokenized cards only.
type Beehive struct {
	rest          *restClient
	webhookSecret string
}

func NewBeehive(creds types.GatewayCredentials, opts Options) (*Beehive, error) {
	if creds.SecretKey == "" {
		return nil, fmt.Errorf("%w: secretKey obrigatoria", ErrMissingCredential)
	}
	secret := creds.SecretKey
	return &Beehive{
		rest: &restClient{
			gateway: types.GatewayBeehive,
			baseURL: opts.baseURL(beehiveBaseURL),
			http:    opts.client(),
			authorize: func(req *http.Request) {
				req.SetBasicAuth(secret, "x")
			},
		},
		webhookSecret: creds.WebhookSecret,
	}, nil
}

func (b *Beehive) Name() types.Gateway { return types.GatewayBeehive }

type beehiveTransaction struct {
	ID            flexibleID `json:"id"`
	Status        string     `json:"status"`
	RefusedReason struct {
		Description string `json:"description"`
	} `json:"refusedReason"`
	Card struct {
		LastDigits string `json:"lastDigits"`
		Brand      string `json:"brand"`
	} `json:"card"`
}

func (b *Beehive) CreatePayment(ctx context.Context, in *PaymentInput) (*PaymentResult, error) {
	if in.Method != types.PaymentMethodCreditCard {
		return Declined("Beehive aceita apenas cartao de credito"), nil
	}
	if in.CardToken == "" {
		return Declined("Beehive exige cardToken"), nil
	}
	body := map[string]any{
		"amount":        toCents(in.Amount),
		"paymentMethod": "credit_card",
		"installments":  max(in.Installments, 1),
		"card":          map[string]string{"hash": in.CardToken},
		"customer": map[string]any{
			"name":  in.Customer.Name,
			"email": in.Customer.Email,
			"phone": in.Customer.PhoneDigits(),
			"document": map[string]string{
				"type":   lowerKind(in.Customer),
				"number": in.Customer.TaxIDDigits(),
			},
		},
		"externalRef": in.Reference,
	}
	if in.NotificationURL != "" {
		body["postbackUrl"] = in.NotificationURL
	}

	var out beehiveTransaction
	if err := b.rest.doJSON(ctx, "create_payment", http.MethodPost, "/transactions", body, &out, nil); err != nil {
		if apiErr, ok := asDecline(err); ok {
			return Declined(errorMessage(apiErr.Body, "message", "refusedReason.description")), nil
		}
		return nil, err
	}
	status := mapStatus(beehiveStatus, out.Status)
	res := &PaymentResult{
		Success:          status != types.PaymentStatusRefused,
		GatewayPaymentID: out.ID.String(),
		Status:           status,
		CardLastFour:     out.Card.LastDigits,
		CardBrand:        out.Card.Brand,
	}
	if !res.Success {
		res.Error = out.RefusedReason.Description
	}
	return res, nil
}

func (b *Beehive) GetStatus(ctx context.Context, paymentID string) (types.PaymentStatus, error) {
	var out beehiveTransaction
	if err := b.rest.doJSON(ctx, "get_status", http.MethodGet, "/transactions/"+url.PathEscape(paymentID), nil, &out, nil); err != nil {
		return "", err
	}
	return mapStatus(beehiveStatus, out.Status), nil
}

func (b *Beehive) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (*RefundResult, error) {
	var body any
	if amount != nil {
		body = map[string]int64{"amount": toCents(*amount)}
	}
	var out beehiveTransaction
	if err := b.rest.doJSON(ctx, "refund", http.MethodPost, "/transactions/"+url.PathEscape(paymentID)+"/refund", body, &out, nil); err != nil {
		if apiErr, ok := asDecline(err); ok {
			return &RefundResult{Success: false, Error: errorMessage(apiErr.Body, "message")}, nil
		}
		return nil, err
	}
	return &RefundResult{Success: true, RefundID: out.ID.String()}, nil
}

func (b *Beehive) VerifyWebhook(w *Webhook) bool {
	if b.webhookSecret == "" {
		return true
	}
	return VerifyHMAC(b.webhookSecret, w.Payload, w.Signature)
}

func lowerKind(b types.Buyer) string {
	if b.TaxIDKind() == "CNPJ" {
		return "cnpj"
	}
	return "cpf"
}
