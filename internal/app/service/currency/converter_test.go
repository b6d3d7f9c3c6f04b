package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/pkg/config"
)

func newRatesServer(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "USD", r.URL.Query().Get("from"))
		require.Equal(t, "BRL", r.URL.Query().Get("to"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestConverter_ConvertsAndCaches(t *testing.T) {
	srv, hits := newRatesServer(t, `{"amount":1.0,"base":"USD","rates":{"BRL":5.4321}}`, http.StatusOK)
	cfg := &config.Config{}
	cfg.Currency.RatesURL = srv.URL
	c := NewConverter(cfg, NewMemoryCache(), zap.NewNop().Sugar())

	got, rate, err := c.Convert(context.Background(), decimal.RequireFromString("10.00"), "usd", "brl")
	require.NoError(t, err)
	require.Equal(t, "54.32", got.StringFixed(2))
	require.Equal(t, "5.4321", rate.String())

	_, _, err = c.Convert(context.Background(), decimal.NewFromInt(1), "USD", "BRL")
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())
}

func TestConverter_SameCurrencyIsIdentity(t *testing.T) {
	c := NewConverter(nil, NewMemoryCache(), zap.NewNop().Sugar())
	got, rate, err := c.Convert(context.Background(), decimal.RequireFromString("99.90"), "BRL", "brl")
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("99.90")))
	require.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestConverter_ProviderFailure(t *testing.T) {
	srv, _ := newRatesServer(t, `{}`, http.StatusBadGateway)
	cfg := &config.Config{}
	cfg.Currency.RatesURL = srv.URL
	c := NewConverter(cfg, NewMemoryCache(), zap.NewNop().Sugar())
	_, _, err := c.Convert(context.Background(), decimal.NewFromInt(1), "USD", "BRL")
	require.ErrorIs(t, err, ErrRateUnavailable)
}

func TestMemoryCache_Expires(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(context.Background(), "USD:BRL", decimal.NewFromInt(5), time.Minute))

	_, ok, _ := c.Get(context.Background(), "USD:BRL")
	require.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(context.Background(), "USD:BRL")
	require.False(t, ok)
}
