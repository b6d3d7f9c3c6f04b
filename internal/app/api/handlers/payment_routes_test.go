package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	mw "github.com/fatflowers/checkout/internal/app/api/middleware"
	"github.com/fatflowers/checkout/internal/app/service/checkout"
	"github.com/fatflowers/checkout/internal/app/service/statistics"
	wh "github.com/fatflowers/checkout/internal/app/service/webhook_handler"
	"github.com/fatflowers/checkout/internal/app/service/webhook_log"
	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/app/store/storetest"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/response"
	"github.com/fatflowers/checkout/pkg/types"
)

const jwtSecret = "handler-secret"

type stubOrchestrator struct {
	err      error
	actor    checkout.Actor
	scanReq  *store.ScanRequest
	created  *checkout.CreatePaymentRequest
	statusID string
}

func (s *stubOrchestrator) CreatePayment(_ context.Context, req *checkout.CreatePaymentRequest) (*checkout.PaymentResponse, error) {
	s.created = req
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.PaymentResponse{TransactionID: "txn-1", Status: types.PaymentStatusPending, PixCode: "000201"}, nil
}

func (s *stubOrchestrator) Upsell(context.Context, *checkout.UpsellRequest) (*checkout.PaymentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.PaymentResponse{TransactionID: "txn-2", Status: types.PaymentStatusApproved}, nil
}

func (s *stubOrchestrator) Status(_ context.Context, id string) (*checkout.StatusResponse, error) {
	s.statusID = id
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.StatusResponse{TransactionID: id, Status: types.PaymentStatusApproved}, nil
}

func (s *stubOrchestrator) Refund(_ context.Context, actor checkout.Actor, req *checkout.RefundRequest) (*checkout.RefundResponse, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.RefundResponse{TransactionID: req.TransactionID, Status: "approved", TransactionStatus: types.PaymentStatusRefunded}, nil
}

func (s *stubOrchestrator) ScanTransactions(_ context.Context, req *store.ScanRequest) ([]*models.Transaction, int64, error) {
	s.scanReq = req
	return []*models.Transaction{{ID: "txn-1", Status: types.PaymentStatusApproved, Amount: decimal.RequireFromString("10")}}, 1, nil
}

func newRouter(svc checkout.Orchestrator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/payments"), svc, jwtSecret, log)
	admin := r.Group("/api/v1/admin")
	admin.Use(mw.JWT(jwtSecret), mw.RequireRole(checkout.RoleAdmin))
	RegisterAdminRoutes(admin, svc, statistics.New(storetest.New(), log), log)
	return r
}

func do(r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.APIResponse[json.RawMessage] {
	t.Helper()
	var env response.APIResponse[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func token(t *testing.T, role, sellerID string) string {
	t.Helper()
	tok, err := mw.SignToken(jwtSecret, "user-1", role, sellerID, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestCreatePayment(t *testing.T) {
	svc := &stubOrchestrator{}
	r := newRouter(svc)

	w := do(r, http.MethodPost, "/payments/create", map[string]any{
		"product_hash":   "ph-1",
		"payment_method": "pix",
		"buyer":          map[string]any{"name": "Maria", "email": "maria@example.com"},
		"order_bump_ids": []string{"b1"},
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	require.Contains(t, string(env.Data), `"pix_code":"000201"`)
	require.Equal(t, []string{"b1"}, svc.created.OrderBumpIDs)

	w = do(r, http.MethodPost, "/payments/create", map[string]any{"payment_method": "pix"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err      error
		status   int
		message  string
		leakFree string
	}{
		{&checkout.Error{Kind: checkout.KindInvalid, Message: "email invalido"}, http.StatusBadRequest, "email invalido", ""},
		{&checkout.Error{Kind: checkout.KindNotFound, Message: "produto nao encontrado"}, http.StatusNotFound, "produto nao encontrado", ""},
		{&checkout.Error{Kind: checkout.KindMethodDisabled, Message: "metodo indisponivel"}, http.StatusBadRequest, "metodo indisponivel", ""},
		{&checkout.Error{Kind: checkout.KindFraud, Message: "pagamento nao autorizado", Err: errors.New("score 95")}, http.StatusBadRequest, "pagamento nao autorizado", "score"},
		{&checkout.Error{Kind: checkout.KindMisconfigured, Message: "pagamento via efi indisponivel", Err: errors.New("missing certificate")}, http.StatusInternalServerError, "pagamento via efi indisponivel", "certificate"},
		{errors.New("connection reset"), http.StatusInternalServerError, "", "connection reset"},
	}
	for _, tc := range cases {
		r := newRouter(&stubOrchestrator{err: tc.err})
		w := do(r, http.MethodGet, "/payments/status?id=txn-1", nil, "")
		require.Equal(t, tc.status, w.Code)
		if tc.message != "" {
			require.Equal(t, tc.message, decodeEnvelope(t, w).Message)
		}
		if tc.leakFree != "" {
			require.NotContains(t, w.Body.String(), tc.leakFree)
		}
	}
}

func TestStatusAndUpsell(t *testing.T) {
	svc := &stubOrchestrator{}
	r := newRouter(svc)

	w := do(r, http.MethodGet, "/payments/status?id=abc", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "abc", svc.statusID)

	w = do(r, http.MethodPost, "/payments/upsell", map[string]any{"parent_transaction_id": "txn-1", "product_hash": "ph-2"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code, "upsell_token is required")

	w = do(r, http.MethodPost, "/payments/upsell", map[string]any{"parent_transaction_id": "txn-1", "product_hash": "ph-2", "upsell_token": "tok"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"transaction_id":"txn-2"`)
}

func TestRefundRequiresToken(t *testing.T) {
	svc := &stubOrchestrator{}
	r := newRouter(svc)
	body := map[string]any{"transaction_id": "txn-1", "amount": "10.50"}

	require.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/payments/refund", body, "").Code)
	require.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/payments/refund", body, token(t, "buyer", "")).Code)

	w := do(r, http.MethodPost, "/payments/refund", body, token(t, checkout.RoleSeller, "seller-1"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, checkout.Actor{Subject: "user-1", Role: checkout.RoleSeller, SellerID: "seller-1"}, svc.actor)

	svc.err = &checkout.Error{Kind: checkout.KindForbidden, Message: "sem permissao"}
	require.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/payments/refund", body, token(t, checkout.RoleSeller, "seller-2")).Code)
}

func TestAdminListTransactions(t *testing.T) {
	svc := &stubOrchestrator{}
	r := newRouter(svc)
	req := map[string]any{
		"filters":    []map[string]any{{"field": "status", "operator": "eq", "values": []any{"approved"}}},
		"size":       20,
		"sort_by":    "paid_at",
		"sort_order": "asc",
	}

	require.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/v1/admin/transactions", req, token(t, checkout.RoleSeller, "s")).Code)

	w := do(r, http.MethodPost, "/api/v1/admin/transactions", req, token(t, checkout.RoleAdmin, ""))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total":1`)
	require.Equal(t, "paid_at", svc.scanReq.SortBy)
	require.Equal(t, 20, svc.scanReq.Size)

	for name, bad := range map[string]map[string]any{
		"column":   {"filters": []map[string]any{{"field": "password; drop table", "operator": "eq", "values": []any{1}}}},
		"operator": {"filters": []map[string]any{{"field": "status", "operator": "like", "values": []any{"a"}}}},
		"sort":     {"sort_by": "buyer_tax_id"},
		"order":    {"sort_order": "sideways"},
	} {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/admin/transactions", bad, token(t, checkout.RoleAdmin, "")).Code)
		})
	}
}

type nopResolver struct{}

func (nopResolver) Resolve(types.Gateway, types.GatewayCredentials) (gateway.Gateway, error) {
	return nil, errors.New("not used")
}

func TestWebhookAcknowledges(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()
	st := storetest.New()
	cfg := &config.Config{Webhook: config.WebhookConfig{QueueSize: 1}}
	runner := wh.NewRunner(fxtest.NewLifecycle(t), cfg, log)
	rec := wh.NewReconciler(cfg, st, nopResolver{}, nil, webhook_log.New(st, log), runner, log)

	r := gin.New()
	RegisterWebhookRoutes(r.Group("/webhooks"), rec, log)

	payload := map[string]any{"type": "payment", "data": map[string]any{"id": "123"}}
	w := do(r, http.MethodPost, "/webhooks/mercadopago", payload, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"received":true}`, w.Body.String())

	w = do(r, http.MethodPost, "/webhooks/paypal", payload, "")
	require.Equal(t, http.StatusOK, w.Code)

	// queue of one, never drained
	w = do(r, http.MethodPost, "/webhooks/mercadopago", payload, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.JSONEq(t, `{"received":false}`, w.Body.String())

	require.Len(t, st.WebhookLogs(), 3)
}

func TestAdminStatistics(t *testing.T) {
	r := newRouter(&stubOrchestrator{})
	admin := token(t, checkout.RoleAdmin, "")

	w := do(r, http.MethodPost, "/api/v1/admin/statistics", map[string]any{
		"data_items": []map[string]any{{"id": "daily_gmv"}, {"id": "daily_approval_rate"}},
	}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"daily_gmv":[]`)

	w = do(r, http.MethodPost, "/api/v1/admin/statistics", map[string]any{
		"data_items": []map[string]any{{"id": "renewal_success_rate"}},
	}, admin)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
