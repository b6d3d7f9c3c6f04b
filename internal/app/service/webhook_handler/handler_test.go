package webhook_handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/internal/app/service/entitlement"
	"github.com/fatflowers/checkout/internal/app/service/notify"
	"github.com/fatflowers/checkout/internal/app/service/settlement"
	"github.com/fatflowers/checkout/internal/app/service/webhook_log"
	"github.com/fatflowers/checkout/internal/app/store/storetest"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/types"
)

type stubGateway struct {
	name types.Gateway

	mu          sync.Mutex
	status      types.PaymentStatus
	verify      bool
	statusCalls int
	hooks       []*gateway.Webhook
}

func (g *stubGateway) Name() types.Gateway { return g.name }

func (g *stubGateway) CreatePayment(context.Context, *gateway.PaymentInput) (*gateway.PaymentResult, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) GetStatus(context.Context, string) (types.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	return g.status, nil
}

func (g *stubGateway) Refund(context.Context, string, *decimal.Decimal) (*gateway.RefundResult, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) VerifyWebhook(w *gateway.Webhook) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, w)
	return g.verify
}

type stubResolver struct{ gw *stubGateway }

func (r stubResolver) Resolve(types.Gateway, types.GatewayCredentials) (gateway.Gateway, error) {
	return r.gw, nil
}

type recorder struct {
	mu     sync.Mutex
	emails []*notify.Email
	events []*notify.Event
}

func (r *recorder) Send(_ context.Context, e *notify.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, e)
	return nil
}

func (r *recorder) Publish(_ context.Context, e *notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

type harness struct {
	rec    *Reconciler
	st     *storetest.MemStore
	gw     *stubGateway
	sink   *recorder
	runner *Runner
}

func newHarness(t *testing.T, cfg *config.Config, gw types.Gateway, status types.PaymentStatus) *harness {
	t.Helper()
	log := zap.NewNop().Sugar()
	st := storetest.New()
	sink := &recorder{}
	stub := &stubGateway{name: gw, status: types.PaymentStatusApproved, verify: true}

	txn := &models.Transaction{
		ID: "txn-1", SellerID: "seller-1", ProductID: "prod-1", Gateway: gw,
		GatewayPaymentID: strPtr("pay-1"), Method: types.PaymentMethodPix, Status: status,
		Amount: decimal.RequireFromString("110.00"), Currency: "BRL",
	}
	txn.SetBuyer(types.Buyer{Name: "Maria Souza", Email: "maria@example.com"})
	st.PutTransaction(txn)
	st.SetGateway("seller-1", types.PaymentMethodPix, gw, types.GatewayCredentials{AccessToken: "tok", WebhookSecret: "seller-secret"})

	applier := settlement.NewApplier(st, entitlement.NewGranter(sink, log), sink, sink, log)
	runner := newRunner(4, 64, 5*time.Second, log)
	runner.Start()
	t.Cleanup(func() { _ = runner.Stop(context.Background()) })

	rec := NewReconciler(cfg, st, stubResolver{stub}, applier, webhook_log.New(st, log), runner, log)
	return &harness{rec: rec, st: st, gw: stub, sink: sink, runner: runner}
}

func strPtr(s string) *string { return &s }

func mpDelivery() *Delivery {
	return &Delivery{
		Gateway: "mercadopago",
		Payload: []byte(`{"type":"payment","action":"payment.updated","data":{"id":"pay-1"}}`),
		Headers: http.Header{"X-Signature": []string{"ts=1,v1=ab"}},
		TraceID: "trace-1",
	}
}

// drain waits for every queued job to finish.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, h.runner.Stop(context.Background()))
}

func TestReceive_RepeatedDeliveryAppliesOnce(t *testing.T) {
	h := newHarness(t, &config.Config{}, types.GatewayMercadoPago, types.PaymentStatusPending)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.Equal(t, http.StatusOK, h.rec.Receive(context.Background(), mpDelivery()))
		}()
	}
	wg.Wait()
	h.drain(t)

	txn, _ := h.st.GetTransaction(context.Background(), "txn-1")
	require.Equal(t, types.PaymentStatusApproved, txn.Status)
	require.NotNil(t, txn.PaidAt)
	require.Len(t, h.st.Entitlements(), 1)
	require.Len(t, h.sink.emails, 1)
	require.Len(t, h.sink.events, 1)
	require.Len(t, h.st.TransactionLogs("txn-1"), 1)

	logs := h.st.WebhookLogs()
	require.Len(t, logs, 5)
	applied := 0
	for _, l := range logs {
		require.Equal(t, "pay-1", l.ExternalID)
		require.NotNil(t, l.ProcessedAt)
		require.Equal(t, http.StatusOK, *l.ResponseCode)
		if l.Outcome == "pending -> approved" {
			applied++
		}
	}
	require.Equal(t, 1, applied)
}

func TestReceive_PassesSignedRequestParts(t *testing.T) {
	h := newHarness(t, &config.Config{}, types.GatewayMercadoPago, types.PaymentStatusPending)
	d := mpDelivery()
	d.Headers.Set("X-Request-Id", "bb56a2f1-6aae-46ac-982e-9dcd3581d08e")
	d.Query = url.Values{"data.id": {"pay-1"}, "type": {"payment"}}

	require.Equal(t, http.StatusOK, h.rec.Receive(context.Background(), d))
	h.drain(t)

	require.Len(t, h.gw.hooks, 1)
	hook := h.gw.hooks[0]
	require.Equal(t, "ts=1,v1=ab", hook.Signature)
	require.Equal(t, "bb56a2f1-6aae-46ac-982e-9dcd3581d08e", hook.RequestID)
	require.Equal(t, "pay-1", hook.Query.Get("data.id"))
	require.Equal(t, d.Payload, hook.Payload)
}

func TestReceive_UnknownGateway(t *testing.T) {
	h := newHarness(t, &config.Config{}, types.GatewayMercadoPago, types.PaymentStatusPending)

	code := h.rec.Receive(context.Background(), &Delivery{Gateway: "paypal", Payload: []byte(`{}`)})
	require.Equal(t, http.StatusOK, code)
	logs := h.st.WebhookLogs()
	require.Len(t, logs, 1)
	require.Equal(t, http.StatusBadRequest, *logs[0].ResponseCode)
	require.Zero(t, h.gw.statusCalls)
}

func TestReceive_LogFailureIsServerError(t *testing.T) {
	h := newHarness(t, &config.Config{}, types.GatewayMercadoPago, types.PaymentStatusPending)
	h.st.FailNext("CreateWebhookLog", errors.New("db down"))

	require.Equal(t, http.StatusInternalServerError, h.rec.Receive(context.Background(), mpDelivery()))
	h.drain(t)
	require.Zero(t, h.gw.statusCalls)
}

func TestReceive_PlatformStripeSignature(t *testing.T) {
	cfg := &config.Config{Webhook: config.WebhookConfig{StripeSecret: "whsec_platform", Tolerance: 10 * time.Minute}}
	body := []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pay-1","object":"payment_intent","customer":"cus_9","payment_method":"pm_9"}}}`)
	now := time.Unix(1760000000, 0)

	cases := []struct {
		name    string
		header  string
		payload []byte
		want    int
	}{
		{"valid", gateway.SignTimestamped("whsec_platform", body, now), body, http.StatusOK},
		{"tampered", gateway.SignTimestamped("whsec_platform", body, now), append([]byte{' '}, body...), http.StatusUnauthorized},
		{"replayed", gateway.SignTimestamped("whsec_platform", body, now.Add(-11*time.Minute)), body, http.StatusUnauthorized},
		{"missing", "", body, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, cfg, types.GatewayStripe, types.PaymentStatusPending)
			h.rec.now = func() time.Time { return now }

			code := h.rec.Receive(context.Background(), &Delivery{
				Gateway: "stripe", Payload: tc.payload,
				Headers: http.Header{"Stripe-Signature": []string{tc.header}},
			})
			require.Equal(t, tc.want, code)
			h.drain(t)

			txn, _ := h.st.GetTransaction(context.Background(), "txn-1")
			if tc.want == http.StatusOK {
				require.Equal(t, types.PaymentStatusApproved, txn.Status)
				require.Equal(t, "pm_9", txn.PaymentMethodRef)
				require.Equal(t, "cus_9", txn.CustomerRef)
			} else {
				require.Equal(t, types.PaymentStatusPending, txn.Status)
				require.Equal(t, outcomeBadSignature, h.st.WebhookLogs()[0].Outcome)
			}
		})
	}
}

func TestReceive_DebugFlagAcceptsMismatch(t *testing.T) {
	cfg := &config.Config{Webhook: config.WebhookConfig{StripeSecret: "whsec_platform", AllowSignatureMismatch: true}}
	h := newHarness(t, cfg, types.GatewayStripe, types.PaymentStatusPending)
	h.gw.verify = false

	code := h.rec.Receive(context.Background(), &Delivery{
		Gateway: "stripe",
		Payload: []byte(`{"data":{"object":{"id":"pay-1","object":"payment_intent"}}}`),
		Headers: http.Header{"Stripe-Signature": []string{"t=1,v1=00"}},
	})
	require.Equal(t, http.StatusOK, code)
	h.drain(t)
	txn, _ := h.st.GetTransaction(context.Background(), "txn-1")
	require.Equal(t, types.PaymentStatusApproved, txn.Status)
}

func TestReceive_Saturated(t *testing.T) {
	log := zap.NewNop().Sugar()
	st := storetest.New()
	runner := newRunner(1, 1, time.Second, log) // never started
	rec := NewReconciler(&config.Config{}, st, stubResolver{&stubGateway{}}, nil, webhook_log.New(st, log), runner, log)

	require.Equal(t, http.StatusOK, rec.Receive(context.Background(), mpDelivery()))
	require.Equal(t, http.StatusServiceUnavailable, rec.Receive(context.Background(), mpDelivery()))
	finished := lo.Filter(st.WebhookLogs(), func(l *models.WebhookLog, _ int) bool { return l.ResponseCode != nil })
	require.Len(t, finished, 1)
	require.Equal(t, http.StatusServiceUnavailable, *finished[0].ResponseCode)
	require.Equal(t, outcomeBusy, finished[0].Outcome)
}

func TestReconcile_Outcomes(t *testing.T) {
	note := &Notification{ExternalID: "pay-1", Event: "payment.updated"}

	t.Run("unknown payment", func(t *testing.T) {
		h := newHarness(t, &config.Config{}, types.GatewayMercadoPago, types.PaymentStatusPending)
		code, outcome := h.rec.Reconcile(context.Background(), types.GatewayMercadoPago, &gateway.Webhook{}, &Notification{ExternalID: "other"})
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "transaction not found", outcome)
		require.Zero(t, h.gw.statusCalls)
	})

	t.Run("seller signature rejected", func(t *testing.T) {
		h := newHarness(t, &config.Config{}, types.GatewayMercadoPago, types.PaymentStatusPending)
		h.gw.verify = false
		code, _ := h.rec.Reconcile(context.Background(), types.GatewayMercadoPago, &gateway.Webhook{}, note)
		require.Equal(t, http.StatusUnauthorized, code)
		require.Zero(t, h.gw.statusCalls)
		txn, _ := h.st.GetTransaction(context.Background(), "txn-1")
		require.Equal(t, types.PaymentStatusPending, txn.Status)
	})

	t.Run("still pending", func(t *testing.T) {
		h := newHarness(t, &config.Config{}, types.GatewayMercadoPago, types.PaymentStatusPending)
		h.gw.status = types.PaymentStatusPending
		code, outcome := h.rec.Reconcile(context.Background(), types.GatewayMercadoPago, &gateway.Webhook{}, note)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "already pending", outcome)
	})

	t.Run("refund revokes access", func(t *testing.T) {
		h := newHarness(t, &config.Config{}, types.GatewayMercadoPago, types.PaymentStatusPending)
		_, outcome := h.rec.Reconcile(context.Background(), types.GatewayMercadoPago, &gateway.Webhook{}, note)
		require.Equal(t, "pending -> approved", outcome)

		h.gw.status = types.PaymentStatusRefunded
		_, outcome = h.rec.Reconcile(context.Background(), types.GatewayMercadoPago, &gateway.Webhook{}, note)
		require.Equal(t, "approved -> refunded", outcome)
		txn, _ := h.st.GetTransaction(context.Background(), "txn-1")
		require.NotNil(t, txn.RefundedAt)
		require.False(t, h.st.Entitlements()[0].Active)
		require.Equal(t, notify.EventSaleRefunded, h.sink.events[len(h.sink.events)-1].Type)
	})

	t.Run("illegal transition ignored", func(t *testing.T) {
		h := newHarness(t, &config.Config{}, types.GatewayMercadoPago, types.PaymentStatusPending)
		h.gw.status = types.PaymentStatusRefunded
		code, outcome := h.rec.Reconcile(context.Background(), types.GatewayMercadoPago, &gateway.Webhook{}, note)
		require.Equal(t, http.StatusOK, code)
		require.Contains(t, outcome, "ignored")
		txn, _ := h.st.GetTransaction(context.Background(), "txn-1")
		require.Equal(t, types.PaymentStatusPending, txn.Status)
	})

	t.Run("malformed payload", func(t *testing.T) {
		h := newHarness(t, &config.Config{}, types.GatewayMercadoPago, types.PaymentStatusPending)
		code, _ := h.rec.Reconcile(context.Background(), types.GatewayMercadoPago, &gateway.Webhook{}, nil)
		require.Equal(t, http.StatusBadRequest, code)
	})
}
