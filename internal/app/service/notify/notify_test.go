package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/queue"
	"github.com/fatflowers/checkout/pkg/types"
)

type hooks []*models.SellerWebhook

func (h hooks) SellerWebhooks(context.Context, string) ([]*models.SellerWebhook, error) { return h, nil }

type recordingSink struct {
	name   string
	err    error
	events []*Event
}

func (s *recordingSink) Name() string { return s.name }
func (s *recordingSink) Deliver(_ context.Context, e *Event) error {
	s.events = append(s.events, e)
	return s.err
}

func sampleTxn() *models.Transaction {
	t := &models.Transaction{
		ID: "txn-1", SellerID: "seller-1", ProductID: "prod-1",
		Gateway: types.GatewayMercadoPago, Method: types.PaymentMethodPix,
		Amount: decimal.RequireFromString("110.00"), Currency: "BRL",
		BuyerTaxID: "52998224725",
	}
	t.SetBuyer(types.Buyer{Name: "Maria", Email: "maria@example.com", TaxID: "52998224725"})
	t.SetUTM(types.UTM{Source: "instagram", Campaign: "launch"})
	return t
}

func TestEventFor(t *testing.T) {
	e, ok := EventFor(types.PaymentStatusApproved)
	require.True(t, ok)
	require.Equal(t, EventSaleApproved, e)
	_, ok = EventFor(types.PaymentStatusPending)
	require.False(t, ok)
}

func TestNewEvent_OmitsTaxID(t *testing.T) {
	e := NewEvent(EventSaleApproved, sampleTxn())
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "52998224725")
	require.Equal(t, "instagram", e.UTM.Source)
}

func TestDirectDispatcher_ContinuesAfterFailure(t *testing.T) {
	bad := &recordingSink{name: "bad", err: errors.New("boom")}
	good := &recordingSink{name: "good"}
	d := NewDirectDispatcher(zap.NewNop().Sugar(), bad, good)

	err := d.Publish(context.Background(), NewEvent(EventSaleApproved, sampleTxn()))
	require.ErrorContains(t, err, "bad: boom")
	require.Len(t, good.events, 1)
}

func TestSellerWebhookForwarder_Signs(t *testing.T) {
	now := time.Unix(1760000000, 0)
	var got *http.Request
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := NewSellerWebhookForwarder(hooks{{ID: "h1", SellerID: "seller-1", URL: srv.URL, Secret: "whs", Active: true}}, time.Second)
	f.now = func() time.Time { return now }
	require.NoError(t, f.Deliver(context.Background(), NewEvent(EventSaleRefunded, sampleTxn())))

	require.Equal(t, "sale.refunded", got.Header.Get(HeaderEvent))
	sig := got.Header.Get(HeaderSignature)
	require.True(t, gateway.VerifyTimestampedSignature("whs", body, sig, time.Minute, now))
}

func TestSellerWebhookForwarder_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	f := NewSellerWebhookForwarder(hooks{{URL: srv.URL, Active: true}}, time.Second)
	require.ErrorContains(t, f.Deliver(context.Background(), NewEvent(EventSaleApproved, sampleTxn())), "unexpected status 500")
}

func TestAnalyticsForwarder(t *testing.T) {
	require.NoError(t, NewAnalyticsForwarder("", "", 0).Deliver(context.Background(), NewEvent(EventSaleApproved, sampleTxn())))

	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()
	require.NoError(t, NewAnalyticsForwarder(srv.URL, "tok", time.Second).Deliver(context.Background(), NewEvent(EventSaleApproved, sampleTxn())))
	require.Equal(t, "Bearer tok", auth)
}

func TestQueueDispatcher_HandleRoutesToSink(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	d := NewQueueDispatcher(nil, NewDirectDispatcher(zap.NewNop().Sugar(), a, b))

	job, err := queue.NewJob(jobTypeEvent, eventJob{Sink: "b", Event: NewEvent(EventSaleApproved, sampleTxn())})
	require.NoError(t, err)
	require.NoError(t, d.Handle(context.Background(), job))
	require.Empty(t, a.events)
	require.Len(t, b.events, 1)
	require.Equal(t, "txn-1", b.events[0].TransactionID)

	gone, _ := queue.NewJob(jobTypeEvent, eventJob{Sink: "removed", Event: NewEvent(EventSaleApproved, sampleTxn())})
	require.NoError(t, d.Handle(context.Background(), gone))
}
