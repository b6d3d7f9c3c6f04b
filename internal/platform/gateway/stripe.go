package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/pkg/types"
)

const stripeBaseURL = "https://api.stripe.com"

var stripeStatus = map[string]types.PaymentStatus{
	"succeeded":               types.PaymentStatusApproved,
	"processing":              types.PaymentStatusPending,
	"requires_action":         types.PaymentStatusPending,
	"requires_confirmation":   types.PaymentStatusPending,
	"requires_capture":        types.PaymentStatusPending,
	"requires_payment_method": types.PaymentStatusRefused,
	"canceled":                types.PaymentStatusCancelled,
}

// Stripe charges cards through PaymentIntents confirmed server side.
// Payloads are form encoded, webhooks are signed with t=,v1= headers.
type Stripe struct {
	rest          *restClient
	webhookSecret string
	opts          Options
}

func NewStripe(creds types.GatewayCredentials, opts Options) (*Stripe, error) {
	if creds.SecretKey == "" {
		return nil, fmt.Errorf("%w: secretKey obrigatoria", ErrMissingCredential)
	}
	secret := creds.SecretKey
	return &Stripe{
		rest: &restClient{
			gateway: types.GatewayStripe,
			baseURL: opts.baseURL(stripeBaseURL),
			http:    opts.client(),
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+secret)
			},
		},
		webhookSecret: creds.WebhookSecret,
		opts:          opts,
	}, nil
}

func (s *Stripe) Name() types.Gateway { return types.GatewayStripe }

type stripeCharge struct {
	ID                   string `json:"id"`
	Refunded             bool   `json:"refunded"`
	Disputed             bool   `json:"disputed"`
	PaymentMethodDetails struct {
		Card struct {
			Last4 string `json:"last4"`
			Brand string `json:"brand"`
		} `json:"card"`
	} `json:"payment_method_details"`
}

type stripeIntent struct {
	ID               string        `json:"id"`
	Status           string        `json:"status"`
	Customer         string        `json:"customer"`
	PaymentMethod    string        `json:"payment_method"`
	LatestCharge     *stripeCharge `json:"latest_charge"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (s *Stripe) createCustomer(ctx context.Context, b types.Buyer, reference string) (string, error) {
	form := url.Values{}
	form.Set("email", b.Email)
	form.Set("name", b.Name)
	form.Set("metadata[reference]", reference)
	var out struct {
		ID string `json:"id"`
	}
	if err := s.rest.doForm(ctx, "create_customer", http.MethodPost, "/v1/customers", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *Stripe) CreatePayment(ctx context.Context, in *PaymentInput) (*PaymentResult, error) {
	if in.Method != types.PaymentMethodCreditCard {
		return Declined("Stripe aceita apenas cartao de credito"), nil
	}
	paymentMethod := in.CardToken
	oneClick := false
	if paymentMethod == "" && in.PaymentMethodRef != "" {
		paymentMethod = in.PaymentMethodRef
		oneClick = true
	}
	if paymentMethod == "" {
		return Declined("Stripe exige cardToken"), nil
	}

	customer := in.CustomerRef
	if customer == "" && in.SaveCard {
		id, err := s.createCustomer(ctx, in.Customer, in.Reference)
		if err != nil {
			return nil, err
		}
		customer = id
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(toCents(in.Amount), 10))
	form.Set("currency", strings.ToLower(in.Currency))
	form.Set("payment_method", paymentMethod)
	form.Set("confirm", "true")
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	form.Set("metadata[reference]", in.Reference)
	form.Set("expand[]", "latest_charge")
	if in.Description != "" {
		form.Set("description", in.Description)
	}
	if customer != "" {
		form.Set("customer", customer)
	}
	switch {
	case oneClick:
		form.Set("off_session", "true")
	case in.SaveCard:
		form.Set("setup_future_usage", "off_session")
	}

	var out stripeIntent
	if err := s.rest.doForm(ctx, "create_payment", http.MethodPost, "/v1/payment_intents", form, &out); err != nil {
		if apiErr, ok := asDecline(err); ok {
			res := Declined(errorMessage(apiErr.Body, "error.message"))
			res.GatewayPaymentID = errorMessage(apiErr.Body, "error.payment_intent.id")
			if !strings.HasPrefix(res.GatewayPaymentID, "pi_") {
				res.GatewayPaymentID = ""
			}
			return res, nil
		}
		return nil, err
	}

	status := mapStatus(stripeStatus, out.Status)
	res := &PaymentResult{
		Success:          status != types.PaymentStatusRefused,
		GatewayPaymentID: out.ID,
		Status:           status,
		CustomerRef:      out.Customer,
		PaymentMethodRef: out.PaymentMethod,
	}
	if out.LatestCharge != nil {
		res.CardLastFour = out.LatestCharge.PaymentMethodDetails.Card.Last4
		res.CardBrand = out.LatestCharge.PaymentMethodDetails.Card.Brand
	}
	if !res.Success && out.LastPaymentError != nil {
		res.Error = out.LastPaymentError.Message
	}
	return res, nil
}

func (s *Stripe) GetStatus(ctx context.Context, paymentID string) (types.PaymentStatus, error) {
	var out stripeIntent
	path := "/v1/payment_intents/" + url.PathEscape(paymentID) + "?expand[]=latest_charge"
	if err := s.rest.doForm(ctx, "get_status", http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	if c := out.LatestCharge; c != nil && out.Status == "succeeded" {
		switch {
		case c.Disputed:
			return types.PaymentStatusChargeback, nil
		case c.Refunded:
			return types.PaymentStatusRefunded, nil
		}
	}
	return mapStatus(stripeStatus, out.Status), nil
}

func (s *Stripe) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (*RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentID)
	if amount != nil {
		form.Set("amount", strconv.FormatInt(toCents(*amount), 10))
	}
	var out struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		FailureReason string `json:"failure_reason"`
	}
	if err := s.rest.doForm(ctx, "refund", http.MethodPost, "/v1/refunds", form, &out); err != nil {
		if apiErr, ok := asDecline(err); ok {
			return &RefundResult{Success: false, Error: errorMessage(apiErr.Body, "error.message")}, nil
		}
		return nil, err
	}
	switch out.Status {
	case "failed", "canceled":
		return &RefundResult{Success: false, RefundID: out.ID, Error: out.FailureReason}, nil
	}
	return &RefundResult{Success: true, RefundID: out.ID, Pending: out.Status == "pending"}, nil
}

// VerifyWebhook validates the Stripe-Signature header. Stripe always signs,
// so an account without an endpoint secret cannot accept notifications.
func (s *Stripe) VerifyWebhook(w *Webhook) bool {
	return VerifyTimestampedSignature(s.webhookSecret, w.Payload, w.Signature, s.opts.tolerance(), s.opts.now())
}
