package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/pkg/types"
)

type fakeProvider struct {
	*httptest.Server
	hits atomic.Int32
}

func newFakeProvider(t *testing.T, h http.HandlerFunc) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{}
	fp.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp.hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakeProvider) opts() Options {
	return Options{BaseURL: fp.URL, HTTPClient: fp.Client()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sampleInput(method types.PaymentMethod) *PaymentInput {
	return &PaymentInput{
		Reference:   "0190c3f2-aaaa-7bbb-8ccc-123456789abc",
		Amount:      decimal.RequireFromString("110.00"),
		Currency:    "BRL",
		Method:      method,
		Description: "Curso de Go",
		Customer: types.Buyer{
			Name:  "Maria Souza",
			Email: "maria@example.com",
			Phone: "(11) 98888-7777",
			TaxID: "529.982.247-25",
		},
		NotificationURL: "https://pay.example.com/webhooks/test",
	}
}
