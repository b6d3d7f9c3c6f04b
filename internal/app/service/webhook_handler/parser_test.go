package webhook_handler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/checkout/pkg/types"
)

func TestParseNotification(t *testing.T) {
	cases := []struct {
		name    string
		gw      types.Gateway
		payload string
		query   url.Values
		want    Notification
	}{
		{
			name:    "mercadopago numeric id",
			gw:      types.GatewayMercadoPago,
			payload: `{"action":"payment.updated","type":"payment","data":{"id":123456}}`,
			want:    Notification{ExternalID: "123456", Event: "payment.updated"},
		},
		{
			name:  "mercadopago ipn query",
			gw:    types.GatewayMercadoPago,
			query: url.Values{"topic": {"payment"}, "id": {"987"}},
			want:  Notification{ExternalID: "987", Event: "payment"},
		},
		{
			name:    "efi pix txid",
			gw:      types.GatewayEfi,
			payload: `{"pix":[{"endToEndId":"E123","txid":"abc123def456"}]}`,
			want:    Notification{ExternalID: "abc123def456", Event: "pix"},
		},
		{
			name:    "pushinpay keeps case",
			gw:      types.GatewayPushinPay,
			payload: `{"id":"9C2F-AB","status":"paid"}`,
			want:    Notification{ExternalID: "9C2F-AB", Event: "paid"},
		},
		{
			name:    "beehive nested id",
			gw:      types.GatewayBeehive,
			payload: `{"id":"evt_1","type":"transaction","data":{"id":4411}}`,
			want:    Notification{ExternalID: "4411", Event: "transaction"},
		},
		{
			name:    "beehive flat id",
			gw:      types.GatewayBeehive,
			payload: `{"id":"tr_7","type":"transaction"}`,
			want:    Notification{ExternalID: "tr_7", Event: "transaction"},
		},
		{
			name:    "hypercash payment id",
			gw:      types.GatewayHypercash,
			payload: `{"id":"wh_1","payment_id":"hc_55","event":"payment.paid"}`,
			want:    Notification{ExternalID: "hc_55", Event: "payment.paid"},
		},
		{
			name:    "stripe payment intent",
			gw:      types.GatewayStripe,
			payload: `{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","customer":"cus_1","payment_method":"pm_1"}}}`,
			want:    Notification{ExternalID: "pi_1", Event: "payment_intent.succeeded", CustomerRef: "cus_1", PaymentMethodRef: "pm_1"},
		},
		{
			name:    "stripe charge points at intent",
			gw:      types.GatewayStripe,
			payload: `{"type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_1"}}}`,
			want:    Notification{ExternalID: "pi_1", Event: "charge.refunded"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseNotification(tc.gw, []byte(tc.payload), tc.query)
			require.NoError(t, err)
			require.Equal(t, tc.want, *got)
		})
	}
}

func TestParseNotification_Rejects(t *testing.T) {
	_, err := ParseNotification(types.GatewayMercadoPago, []byte(`{"data":{}}`), nil)
	require.ErrorIs(t, err, ErrNoPaymentID)

	_, err = ParseNotification(types.GatewayEfi, []byte(`{"pix":[]}`), nil)
	require.ErrorIs(t, err, ErrNoPaymentID)

	_, err = ParseNotification(types.GatewayHypercash, []byte(`{not json`), nil)
	require.Error(t, err)

	_, err = ParseNotification("paypal", []byte(`{"id":"1"}`), nil)
	require.Error(t, err)
}
