package checkout

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/internal/app/service/entitlement"
	"github.com/fatflowers/checkout/internal/app/service/fraud"
	"github.com/fatflowers/checkout/internal/app/service/notify"
	"github.com/fatflowers/checkout/internal/app/service/settlement"
	"github.com/fatflowers/checkout/internal/app/store/storetest"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/types"
)

type fakeGateway struct {
	name types.Gateway

	mu      sync.Mutex
	seq     int
	result  gateway.PaymentResult
	err     error
	refund  gateway.RefundResult
	inputs  []*gateway.PaymentInput
	refunds []*decimal.Decimal
}

func (g *fakeGateway) Name() types.Gateway { return g.name }

func (g *fakeGateway) CreatePayment(_ context.Context, in *gateway.PaymentInput) (*gateway.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, in)
	if g.err != nil {
		return nil, g.err
	}
	g.seq++
	r := g.result
	if r.Success {
		r.GatewayPaymentID = fmt.Sprintf("%s-%d", g.name, g.seq)
	}
	return &r, nil
}

func (g *fakeGateway) GetStatus(context.Context, string) (types.PaymentStatus, error) {
	return types.PaymentStatusPending, nil
}

func (g *fakeGateway) Refund(_ context.Context, _ string, amount *decimal.Decimal) (*gateway.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, amount)
	r := g.refund
	return &r, nil
}

func (g *fakeGateway) VerifyWebhook(*gateway.Webhook) bool { return true }

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inputs)
}

type fakeResolver struct {
	gateways map[types.Gateway]*fakeGateway
	err      error
}

func (r *fakeResolver) Resolve(name types.Gateway, _ types.GatewayCredentials) (gateway.Gateway, error) {
	if r.err != nil {
		return nil, r.err
	}
	g, ok := r.gateways[name]
	if !ok {
		return nil, gateway.ErrUnsupportedGateway
	}
	return g, nil
}

type fixedConverter struct{ rate decimal.Decimal }

func (c fixedConverter) Convert(_ context.Context, amount decimal.Decimal, _, _ string) (decimal.Decimal, decimal.Decimal, error) {
	return amount.Mul(c.rate).Round(2), c.rate, nil
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

type fixture struct {
	svc      *Service
	st       *storetest.MemStore
	rec      *recorder
	resolver *fakeResolver
	mp       *fakeGateway
	stripe   *fakeGateway
}

const (
	sellerID    = "seller-1"
	productID   = "prod-1"
	productHash = "ph-1"
	validCPF    = "52998224725"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.New()
	rec := &recorder{}
	log := zap.NewNop().Sugar()

	mp := &fakeGateway{name: types.GatewayMercadoPago, result: gateway.PaymentResult{
		Success: true, Status: types.PaymentStatusPending, PixCode: "00020126pix", PixQRCode: "base64qr",
	}}
	stripe := &fakeGateway{name: types.GatewayStripe, result: gateway.PaymentResult{
		Success: true, Status: types.PaymentStatusApproved, CardBrand: "visa", CardLastFour: "4242",
		CustomerRef: "cus_1", PaymentMethodRef: "pm_1",
	}, refund: gateway.RefundResult{Success: true, RefundID: "re_1"}}
	resolver := &fakeResolver{gateways: map[types.Gateway]*fakeGateway{mp.name: mp, stripe.name: stripe}}

	st.AddProduct(&models.Product{
		ID: productID, SellerID: sellerID, Hash: productHash, Name: "Curso de Go",
		Price: decimal.RequireFromString("100.00"), Currency: "BRL", Active: true,
	})
	st.SetGateway(sellerID, types.PaymentMethodPix, types.GatewayMercadoPago, types.GatewayCredentials{AccessToken: "APP_USR-1"})
	st.SetGateway(sellerID, types.PaymentMethodCreditCard, types.GatewayStripe, types.GatewayCredentials{SecretKey: "sk_test"})

	applier := settlement.NewApplier(st, entitlement.NewGranter(rec, log), rec, rec, log)
	cfg := &config.Config{Checkout: config.CheckoutConfig{PublicURL: "https://pay.example.com", UpsellSecret: "upsell-secret"}}
	svc := NewService(cfg, st, resolver, fraud.NewRuleScreener(nil), fixedConverter{rate: decimal.RequireFromString("0.20")}, applier, rec, log)
	return &fixture{svc: svc, st: st, rec: rec, resolver: resolver, mp: mp, stripe: stripe}
}

func pixRequest() *CreatePaymentRequest {
	return &CreatePaymentRequest{
		ProductHash: productHash,
		Method:      types.PaymentMethodPix,
		Buyer:       types.Buyer{Name: "Maria Souza", Email: "maria@example.com", Phone: "11987654321", TaxID: validCPF},
		UTM:         types.UTM{Source: "instagram"},
	}
}

func cardRequest() *CreatePaymentRequest {
	req := pixRequest()
	req.Method = types.PaymentMethodCreditCard
	req.CardToken = "tok_visa"
	req.SaveCard = true
	return req
}

func intPtr(n int) *int { return &n }
