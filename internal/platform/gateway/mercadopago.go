package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/pkg/types"
)

const mercadoPagoBaseURL = "https://api.mercadopago.com"

var mercadoPagoStatus = map[string]types.PaymentStatus{
	"approved":     types.PaymentStatusApproved,
	"pending":      types.PaymentStatusPending,
	"in_process":   types.PaymentStatusPending,
	"authorized":   types.PaymentStatusPending,
	"in_mediation": types.PaymentStatusPending,
	"rejected":     types.PaymentStatusRefused,
	"cancelled":    types.PaymentStatusCancelled,
	"refunded":     types.PaymentStatusRefunded,
	"charged_back": types.PaymentStatusChargeback,
}

type MercadoPago struct {
	rest          *restClient
	webhookSecret string
}

func NewMercadoPago(creds types.GatewayCredentials, opts Options) (*MercadoPago, error) {
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("%w: accessToken obrigatorio", ErrMissingCredential)
	}
	token := creds.AccessToken
	return &MercadoPago{
		rest: &restClient{
			gateway: types.GatewayMercadoPago,
			baseURL: opts.baseURL(mercadoPagoBaseURL),
			http:    opts.client(),
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+token)
			},
		},
		webhookSecret: creds.WebhookSecret,
	}, nil
}

func (m *MercadoPago) Name() types.Gateway { return types.GatewayMercadoPago }

type mpPayer struct {
	Email          string `json:"email"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Identification *struct {
		Type   string `json:"type"`
		Number string `json:"number"`
	} `json:"identification,omitempty"`
}

type mpPaymentRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description,omitempty"`
	PaymentMethodID   string  `json:"payment_method_id,omitempty"`
	Token             string  `json:"token,omitempty"`
	Installments      int     `json:"installments,omitempty"`
	ExternalReference string  `json:"external_reference,omitempty"`
	NotificationURL   string  `json:"notification_url,omitempty"`
	Payer             mpPayer `json:"payer"`
}

type mpPayment struct {
	ID                 flexibleID `json:"id"`
	Status             string     `json:"status"`
	StatusDetail       string     `json:"status_detail"`
	PaymentMethodID    string     `json:"payment_method_id"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
	TransactionDetails struct {
		ExternalResourceURL string `json:"external_resource_url"`
	} `json:"transaction_details"`
	Barcode struct {
		Content string `json:"content"`
	} `json:"barcode"`
	Card struct {
		LastFourDigits string `json:"last_four_digits"`
	} `json:"card"`
}

func (m *MercadoPago) CreatePayment(ctx context.Context, in *PaymentInput) (*PaymentResult, error) {
	req := mpPaymentRequest{
		TransactionAmount: in.Amount.Round(2).InexactFloat64(),
		Description:       in.Description,
		ExternalReference: in.Reference,
		NotificationURL:   in.NotificationURL,
		Payer: mpPayer{
			Email:     in.Customer.Email,
			FirstName: in.Customer.FirstName(),
			LastName:  in.Customer.LastName(),
		},
	}
	if doc := in.Customer.TaxIDDigits(); doc != "" {
		req.Payer.Identification = &struct {
			Type   string `json:"type"`
			Number string `json:"number"`
		}{Type: in.Customer.TaxIDKind(), Number: doc}
	}

	switch in.Method {
	case types.PaymentMethodPix:
		req.PaymentMethodID = "pix"
	case types.PaymentMethodBoleto:
		req.PaymentMethodID = "bolbradesco"
	case types.PaymentMethodCreditCard:
		if in.CardToken == "" {
			return Declined("Mercado Pago exige cardToken para cartao"), nil
		}
		req.Token = in.CardToken
		req.PaymentMethodID = in.CardBrand
		req.Installments = max(in.Installments, 1)
	default:
		return Declined(fmt.Sprintf("metodo %s nao suportado", in.Method)), nil
	}

	var out mpPayment
	err := m.rest.doJSON(ctx, "create_payment", http.MethodPost, "/v1/payments", req, &out,
		map[string]string{"X-Idempotency-Key": in.Reference})
	if err != nil {
		if apiErr, ok := asDecline(err); ok {
			return Declined(errorMessage(apiErr.Body, "message", "cause.0.description")), nil
		}
		return nil, err
	}

	status := mapStatus(mercadoPagoStatus, out.Status)
	res := &PaymentResult{
		Success:          status != types.PaymentStatusRefused,
		GatewayPaymentID: out.ID.String(),
		Status:           status,
		PixCode:          out.PointOfInteraction.TransactionData.QRCode,
		PixQRCode:        out.PointOfInteraction.TransactionData.QRCodeBase64,
		BoletoURL:        out.TransactionDetails.ExternalResourceURL,
		BoletoBarcode:    out.Barcode.Content,
		CardLastFour:     out.Card.LastFourDigits,
	}
	if in.Method == types.PaymentMethodCreditCard {
		res.CardBrand = out.PaymentMethodID
	}
	if !res.Success {
		res.Error = out.StatusDetail
	}
	return res, nil
}

func (m *MercadoPago) GetStatus(ctx context.Context, paymentID string) (types.PaymentStatus, error) {
	var out mpPayment
	if err := m.rest.doJSON(ctx, "get_status", http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &out, nil); err != nil {
		return "", err
	}
	return mapStatus(mercadoPagoStatus, out.Status), nil
}

func (m *MercadoPago) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (*RefundResult, error) {
	var body any
	if amount != nil {
		body = map[string]float64{"amount": amount.Round(2).InexactFloat64()}
	}
	var out struct {
		ID     flexibleID `json:"id"`
		Status string     `json:"status"`
	}
	err := m.rest.doJSON(ctx, "refund", http.MethodPost, "/v1/payments/"+url.PathEscape(paymentID)+"/refunds", body, &out,
		map[string]string{"X-Idempotency-Key": paymentID + "-refund-" + refundKey(amount)})
	if err != nil {
		if apiErr, ok := asDecline(err); ok {
			return &RefundResult{Success: false, Error: errorMessage(apiErr.Body, "message")}, nil
		}
		return nil, err
	}
	return &RefundResult{
		Success:  out.Status != "rejected" && out.Status != "cancelled",
		RefundID: out.ID.String(),
		Pending:  out.Status == "in_process" || out.Status == "pending",
	}, nil
}

// VerifyWebhook checks the x-signature header ("ts=...,v1=...") over the
// manifest "id:{data.id};request-id:{x-request-id};ts:{ts};". data.id is read
// from the query string and parts missing from the request are left out.
// Without a configured secret the notification is accepted, status is always
// re-read with GetStatus.
func (m *MercadoPago) VerifyWebhook(w *Webhook) bool {
	if m.webhookSecret == "" {
		return true
	}
	ts, sigs := parseSignatureHeader(w.Signature)
	if ts == "" || len(sigs) == 0 {
		return false
	}
	manifest := mercadoPagoManifest(w.Query.Get("data.id"), w.RequestID, ts)
	return VerifyHMAC(m.webhookSecret, []byte(manifest), sigs[0])
}

func mercadoPagoManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		if isAlphanumeric(dataID) {
			dataID = strings.ToLower(dataID)
		}
		b.WriteString("id:" + dataID + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}

// mapStatus falls back to pending for anything the provider adds later.
func mapStatus(table map[string]types.PaymentStatus, raw string) types.PaymentStatus {
	if s, ok := table[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return types.PaymentStatusPending
}

func refundKey(amount *decimal.Decimal) string {
	if amount == nil {
		return "full"
	}
	return amount.StringFixed(2)
}
