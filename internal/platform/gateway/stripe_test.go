package gateway

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/checkout/pkg/types"
)

func TestStripe_CreateWithSaveCard(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/v1/customers":
			require.Equal(t, "maria@example.com", r.PostForm.Get("email"))
			writeJSON(w, http.StatusOK, map[string]any{"id": "cus_1"})
		case "/v1/payment_intents":
			require.Equal(t, "11000", r.PostForm.Get("amount"))
			require.Equal(t, "brl", r.PostForm.Get("currency"))
			require.Equal(t, "pm_card", r.PostForm.Get("payment_method"))
			require.Equal(t, "cus_1", r.PostForm.Get("customer"))
			require.Equal(t, "off_session", r.PostForm.Get("setup_future_usage"))
			require.Equal(t, "true", r.PostForm.Get("confirm"))
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "pi_1", "status": "succeeded", "customer": "cus_1", "payment_method": "pm_card",
				"latest_charge": map[string]any{"id": "ch_1", "payment_method_details": map[string]any{"card": map[string]any{"last4": "4242", "brand": "visa"}}},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
	s, err := NewStripe(types.GatewayCredentials{SecretKey: "sk_test"}, fp.opts())
	require.NoError(t, err)

	in := sampleInput(types.PaymentMethodCreditCard)
	in.CardToken = "pm_card"
	in.SaveCard = true
	res, err := s.CreatePayment(context.Background(), in)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, types.PaymentStatusApproved, res.Status)
	require.Equal(t, "pi_1", res.GatewayPaymentID)
	require.Equal(t, "4242", res.CardLastFour)
	require.Equal(t, "cus_1", res.CustomerRef)
	require.Equal(t, "pm_card", res.PaymentMethodRef)
}

func TestStripe_OneClickUsesCardOnFile(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "pm_saved", r.PostForm.Get("payment_method"))
		require.Equal(t, "cus_saved", r.PostForm.Get("customer"))
		require.Equal(t, "true", r.PostForm.Get("off_session"))
		writeJSON(w, http.StatusOK, map[string]any{"id": "pi_2", "status": "processing"})
	})
	s, _ := NewStripe(types.GatewayCredentials{SecretKey: "sk"}, fp.opts())
	in := sampleInput(types.PaymentMethodCreditCard)
	in.CustomerRef, in.PaymentMethodRef = "cus_saved", "pm_saved"
	res, err := s.CreatePayment(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusPending, res.Status)
}

func TestStripe_CardDeclined(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{"error": map[string]any{
			"message":        "Your card was declined.",
			"payment_intent": map[string]any{"id": "pi_3", "status": "requires_payment_method"},
		}})
	})
	s, _ := NewStripe(types.GatewayCredentials{SecretKey: "sk"}, fp.opts())
	in := sampleInput(types.PaymentMethodCreditCard)
	in.CardToken = "pm_bad"
	res, err := s.CreatePayment(context.Background(), in)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, "Your card was declined.", res.Error)
	require.Equal(t, "pi_3", res.GatewayPaymentID)
}

func TestStripe_RejectsPixAndRawCardLocally(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {})
	s, _ := NewStripe(types.GatewayCredentials{SecretKey: "sk"}, fp.opts())

	res, err := s.CreatePayment(context.Background(), sampleInput(types.PaymentMethodPix))
	require.NoError(t, err)
	require.False(t, res.Success)

	in := sampleInput(types.PaymentMethodCreditCard)
	in.Card = &Card{Number: "4242424242424242", CVV: "123"}
	res, err = s.CreatePayment(context.Background(), in)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.EqualValues(t, 0, fp.hits.Load())
}

func TestStripe_GetStatusFromCharge(t *testing.T) {
	charge := map[string]any{}
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents/pi_1", r.URL.Path)
		require.Equal(t, "latest_charge", r.URL.Query().Get("expand[]"))
		writeJSON(w, http.StatusOK, map[string]any{"id": "pi_1", "status": "succeeded", "latest_charge": charge})
	})
	s, _ := NewStripe(types.GatewayCredentials{SecretKey: "sk"}, fp.opts())

	st, err := s.GetStatus(context.Background(), "pi_1")
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusApproved, st)

	charge["refunded"] = true
	st, _ = s.GetStatus(context.Background(), "pi_1")
	require.Equal(t, types.PaymentStatusRefunded, st)

	charge["disputed"] = true
	st, _ = s.GetStatus(context.Background(), "pi_1")
	require.Equal(t, types.PaymentStatusChargeback, st)
}

func TestStripe_VerifyWebhook(t *testing.T) {
	now := time.Unix(1760000000, 0)
	payload := []byte(`{"type":"payment_intent.succeeded"}`)
	s, _ := NewStripe(types.GatewayCredentials{SecretKey: "sk", WebhookSecret: "whsec"}, Options{Now: func() time.Time { return now }})
	require.True(t, s.VerifyWebhook(&Webhook{Payload: payload, Signature: SignTimestamped("whsec", payload, now)}))
	require.False(t, s.VerifyWebhook(&Webhook{Payload: payload, Signature: SignTimestamped("whsec", payload, now.Add(-time.Hour))}))

	unsigned, _ := NewStripe(types.GatewayCredentials{SecretKey: "sk"}, Options{})
	require.False(t, unsigned.VerifyWebhook(&Webhook{Payload: payload, Signature: SignTimestamped("whsec", payload, time.Now())}))
}
