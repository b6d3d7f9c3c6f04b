package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		ok       bool
	}{
		{PaymentStatusPending, PaymentStatusApproved, true},
		{PaymentStatusPending, PaymentStatusRefused, true},
		{PaymentStatusPending, PaymentStatusCancelled, true},
		{PaymentStatusPending, PaymentStatusExpired, true},
		{PaymentStatusApproved, PaymentStatusRefunded, true},
		{PaymentStatusApproved, PaymentStatusChargeback, true},
		{PaymentStatusPending, PaymentStatusRefunded, false},
		{PaymentStatusApproved, PaymentStatusPending, false},
		{PaymentStatusApproved, PaymentStatusApproved, false},
		{PaymentStatusRefunded, PaymentStatusApproved, false},
		{PaymentStatusRefused, PaymentStatusApproved, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
	require.True(t, PaymentStatusRefunded.IsTerminal())
	require.False(t, PaymentStatusApproved.IsTerminal())
}

func TestParseGateway(t *testing.T) {
	g, ok := ParseGateway(" MercadoPago ")
	require.True(t, ok)
	require.Equal(t, GatewayMercadoPago, g)

	g, ok = ParseGateway("gerencianet")
	require.True(t, ok)
	require.Equal(t, GatewayEfi, g)

	_, ok = ParseGateway("paypal")
	require.False(t, ok)
}

func TestBuyerHelpers(t *testing.T) {
	b := Buyer{Name: "Maria da Silva", Phone: "+55 (11) 98888-7777", TaxID: "12.345.678/0001-95"}
	require.Equal(t, "5511988887777", b.PhoneDigits())
	require.Equal(t, "CNPJ", b.TaxIDKind())
	require.Equal(t, "Maria", b.FirstName())
	require.Equal(t, "da Silva", b.LastName())
}
