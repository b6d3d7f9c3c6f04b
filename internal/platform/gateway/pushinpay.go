package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/pkg/types"
)

const pushinPayBaseURL = "https://api.pushinpay.com.br/api"

var pushinPayStatus = map[string]types.PaymentStatus{
	"created":  types.PaymentStatusPending,
	"paid":     types.PaymentStatusApproved,
	"canceled": types.PaymentStatusCancelled,
	"expired":  types.PaymentStatusExpired,
	"refunded": types.PaymentStatusRefunded,
}

// PushinPay only issues PIX charges and has no refund API.
type PushinPay struct {
	rest          *restClient
	webhookSecret string
}

func NewPushinPay(creds types.GatewayCredentials, opts Options) (*PushinPay, error) {
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("%w: token obrigatorio", ErrMissingCredential)
	}
	token := creds.AccessToken
	return &PushinPay{
		rest: &restClient{
			gateway: types.GatewayPushinPay,
			baseURL: opts.baseURL(pushinPayBaseURL),
			http:    opts.client(),
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+token)
			},
		},
		webhookSecret: creds.WebhookSecret,
	}, nil
}

func (p *PushinPay) Name() types.Gateway { return types.GatewayPushinPay }

type pushinPayCharge struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
}

func (p *PushinPay) CreatePayment(ctx context.Context, in *PaymentInput) (*PaymentResult, error) {
	if in.Method != types.PaymentMethodPix {
		return Declined("PushinPay aceita apenas PIX"), nil
	}
	body := map[string]any{"value": toCents(in.Amount)}
	if in.NotificationURL != "" {
		body["webhook_url"] = in.NotificationURL
	}
	var out pushinPayCharge
	if err := p.rest.doJSON(ctx, "create_payment", http.MethodPost, "/pix/cashIn", body, &out, nil); err != nil {
		if apiErr, ok := asDecline(err); ok {
			return Declined(errorMessage(apiErr.Body, "message")), nil
		}
		return nil, err
	}
	return &PaymentResult{
		Success:          true,
		GatewayPaymentID: out.ID,
		Status:           mapStatus(pushinPayStatus, out.Status),
		PixCode:          out.QRCode,
		PixQRCode:        out.QRCodeBase64,
	}, nil
}

func (p *PushinPay) GetStatus(ctx context.Context, paymentID string) (types.PaymentStatus, error) {
	var out pushinPayCharge
	if err := p.rest.doJSON(ctx, "get_status", http.MethodGet, "/transactions/"+url.PathEscape(paymentID), nil, &out, nil); err != nil {
		return "", err
	}
	return mapStatus(pushinPayStatus, out.Status), nil
}

func (p *PushinPay) Refund(_ context.Context, _ string, _ *decimal.Decimal) (*RefundResult, error) {
	return &RefundResult{Success: false, Error: "PushinPay nao suporta estorno via API"}, nil
}

// VerifyWebhook checks the HMAC when the seller configured a secret.
func (p *PushinPay) VerifyWebhook(w *Webhook) bool {
	if p.webhookSecret == "" {
		return true
	}
	return VerifyHMAC(p.webhookSecret, w.Payload, w.Signature)
}
