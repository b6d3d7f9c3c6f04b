// Package storetest provides an in-memory store.Store for service tests.
package storetest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/types"
)

type sellerMethod struct {
	seller string
	method types.PaymentMethod
}

type sellerGateway struct {
	seller  string
	gateway types.Gateway
}

type state struct {
	products     map[string]*models.Product
	offers       map[string]*models.Offer
	bumps        map[string]*models.OrderBump
	coupons      map[string]*models.Coupon
	routes       map[sellerMethod]types.Gateway
	creds        map[sellerGateway]types.GatewayCredentials
	hooks        []*models.SellerWebhook
	txns         map[string]*models.Transaction
	txnLogs      []*models.TransactionLog
	buyers       map[string]*models.Buyer
	entitlements map[string]*models.Entitlement
	refunds      []*models.Refund
	webhookLogs  map[string]*models.WebhookLog
}

func (s *state) clone() *state {
	return &state{
		products:     maps.Clone(s.products),
		offers:       maps.Clone(s.offers),
		bumps:        maps.Clone(s.bumps),
		coupons:      maps.Clone(s.coupons),
		routes:       maps.Clone(s.routes),
		creds:        maps.Clone(s.creds),
		hooks:        slices.Clone(s.hooks),
		txns:         maps.Clone(s.txns),
		txnLogs:      slices.Clone(s.txnLogs),
		buyers:       maps.Clone(s.buyers),
		entitlements: maps.Clone(s.entitlements),
		refunds:      slices.Clone(s.refunds),
		webhookLogs:  maps.Clone(s.webhookLogs),
	}
}

// MemStore keeps every record in maps. Stored values are replaced, never
// mutated, so Tx can roll back by restoring a shallow snapshot. Tx calls are
// serialized; plain calls are atomic one by one.
type MemStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   *state

	// fail holds one-shot errors injected with FailNext.
	failMu sync.Mutex
	fail   map[string]error
}

var _ store.Store = (*MemStore)(nil)

func New() *MemStore {
	return &MemStore{
		st: &state{
			products:     map[string]*models.Product{},
			offers:       map[string]*models.Offer{},
			bumps:        map[string]*models.OrderBump{},
			coupons:      map[string]*models.Coupon{},
			routes:       map[sellerMethod]types.Gateway{},
			creds:        map[sellerGateway]types.GatewayCredentials{},
			txns:         map[string]*models.Transaction{},
			buyers:       map[string]*models.Buyer{},
			entitlements: map[string]*models.Entitlement{},
			webhookLogs:  map[string]*models.WebhookLog{},
		},
		fail: map[string]error{},
	}
}

// FailNext arranges for the next call of method to return err.
func (m *MemStore) FailNext(method string, err error) {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	m.fail[method] = err
}

func (m *MemStore) injected(method string) error {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	err := m.fail[method]
	delete(m.fail, method)
	return err
}

func (m *MemStore) Tx(ctx context.Context, fn func(store.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// Seeding helpers.

func (m *MemStore) AddProduct(p *models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.st.products[p.ID] = &c
}

func (m *MemStore) AddOffer(o *models.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *o
	m.st.offers[o.ID] = &c
}

func (m *MemStore) AddOrderBump(b *models.OrderBump) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *b
	m.st.bumps[b.ID] = &c
}

func (m *MemStore) AddCoupon(cp *models.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cp
	m.st.coupons[cp.ID] = &c
}

// SetGateway routes method of seller to gateway with creds.
func (m *MemStore) SetGateway(sellerID string, method types.PaymentMethod, gateway types.Gateway, creds types.GatewayCredentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.routes[sellerMethod{sellerID, method}] = gateway
	m.st.creds[sellerGateway{sellerID, gateway}] = creds
}

func (m *MemStore) AddSellerWebhook(h *models.SellerWebhook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *h
	m.st.hooks = append(m.st.hooks, &c)
}

// PutTransaction stores txn as is, bypassing creation defaults.
func (m *MemStore) PutTransaction(txn *models.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.txns[txn.ID] = txn.Clone()
}

// Inspection helpers.

func (m *MemStore) Coupon(id string) *models.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.st.coupons[id]
	return &c
}

func (m *MemStore) Transactions() []*models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Transaction, 0, len(m.st.txns))
	for _, t := range m.st.txns {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) Entitlements() []*models.Entitlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Entitlement, 0, len(m.st.entitlements))
	for _, e := range m.st.entitlements {
		c := *e
		out = append(out, &c)
	}
	return out
}

func (m *MemStore) Buyers() []*models.Buyer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Buyer, 0, len(m.st.buyers))
	for _, b := range m.st.buyers {
		c := *b
		out = append(out, &c)
	}
	return out
}

func (m *MemStore) TransactionLogs(txnID string) []*models.TransactionLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TransactionLog
	for _, l := range m.st.txnLogs {
		if l.TransactionID == txnID {
			out = append(out, l)
		}
	}
	return out
}

func (m *MemStore) Refunds(txnID string) []*models.Refund {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Refund
	for _, r := range m.st.refunds {
		if r.TransactionID == txnID {
			c := *r
			out = append(out, &c)
		}
	}
	return out
}

func (m *MemStore) WebhookLog(id string) *models.WebhookLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.st.webhookLogs[id]
	if !ok {
		return nil
	}
	c := *l
	return &c
}

func (m *MemStore) WebhookLogs() []*models.WebhookLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.WebhookLog, 0, len(m.st.webhookLogs))
	for _, l := range m.st.webhookLogs {
		c := *l
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out
}

// store.Store

func (m *MemStore) ProductByHash(ctx context.Context, hash string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.st.products {
		if p.Hash == hash {
			c := *p
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *MemStore) OfferByHash(ctx context.Context, productID, hash string) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.st.offers {
		if o.ProductID == productID && o.Hash == hash {
			c := *o
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) ActiveOrderBumps(ctx context.Context, productID string, ids []string) ([]*models.OrderBump, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.OrderBump
	for _, id := range ids {
		b, ok := m.st.bumps[id]
		if ok && b.Active && b.ProductID == productID {
			c := *b
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MemStore) CouponByCode(ctx context.Context, sellerID, code string) (*models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cp := range m.st.coupons {
		if cp.SellerID == sellerID && cp.Code == code {
			c := *cp
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) IncrementCouponUses(ctx context.Context, couponID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.st.coupons[couponID]
	if !ok {
		return store.ErrCouponExhausted
	}
	if cp.MaxUses != nil && cp.CurrentUses >= *cp.MaxUses {
		return store.ErrCouponExhausted
	}
	c := *cp
	c.CurrentUses++
	m.st.coupons[couponID] = &c
	return nil
}

func (m *MemStore) SellerGateway(ctx context.Context, sellerID string, method types.PaymentMethod) (types.Gateway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.st.routes[sellerMethod{sellerID, method}]
	if !ok {
		return "", store.ErrNotFound
	}
	return g, nil
}

func (m *MemStore) GatewayCredentials(ctx context.Context, sellerID string, gateway types.Gateway) (types.GatewayCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.st.creds[sellerGateway{sellerID, gateway}]
	if !ok {
		return types.GatewayCredentials{}, store.ErrNotFound
	}
	return c, nil
}

func (m *MemStore) SellerWebhooks(ctx context.Context, sellerID string) ([]*models.SellerWebhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SellerWebhook
	for _, h := range m.st.hooks {
		if h.SellerID == sellerID && h.Active {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MemStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := m.injected("CreateTransaction"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.txns[txn.ID]; ok {
		return fmt.Errorf("duplicate transaction %s", txn.ID)
	}
	now := time.Now()
	txn.CreatedAt, txn.UpdatedAt = now, now
	m.st.txns[txn.ID] = txn.Clone()
	return nil
}

func (m *MemStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.st.txns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.Clone(), nil
}

func (m *MemStore) TransactionByGatewayPayment(ctx context.Context, gateway types.Gateway, paymentID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.st.txns {
		if t.Gateway == gateway && t.PaymentID() == paymentID {
			return t.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) SaveArtifacts(ctx context.Context, txn *models.Transaction) error {
	if err := m.injected("SaveArtifacts"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.txns[txn.ID]
	if !ok {
		return store.ErrNotFound
	}
	if id := txn.PaymentID(); id != "" {
		for _, t := range m.st.txns {
			if t.ID != txn.ID && t.Gateway == txn.Gateway && t.PaymentID() == id {
				return fmt.Errorf("duplicate gateway payment id %s", id)
			}
		}
	}
	c := cur.Clone()
	c.GatewayPaymentID = txn.GatewayPaymentID
	c.FailureReason = txn.FailureReason
	c.PixCode, c.PixQRCode = txn.PixCode, txn.PixQRCode
	c.BoletoURL, c.BoletoBarcode = txn.BoletoURL, txn.BoletoBarcode
	c.CardBrand, c.CardLastFour = txn.CardBrand, txn.CardLastFour
	c.CustomerRef, c.PaymentMethodRef = txn.CustomerRef, txn.PaymentMethodRef
	c.UpdatedAt = time.Now()
	m.st.txns[txn.ID] = c
	return nil
}

func (m *MemStore) TransitionTransaction(ctx context.Context, txn *models.Transaction, from types.PaymentStatus) (bool, error) {
	if err := m.injected("TransitionTransaction"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.txns[txn.ID]
	if !ok || cur.Status != from {
		return false, nil
	}
	txn.UpdatedAt = time.Now()
	c := cur.Clone()
	c.Status = txn.Status
	c.FailureReason = txn.FailureReason
	c.PaidAt, c.RefundedAt = txn.PaidAt, txn.RefundedAt
	c.CustomerRef, c.PaymentMethodRef = txn.CustomerRef, txn.PaymentMethodRef
	c.UpdatedAt = txn.UpdatedAt
	m.st.txns[txn.ID] = c
	return true, nil
}

// ScanTransactions supports eq filters only; richer filters are exercised
// against Postgres.
func (m *MemStore) ScanTransactions(ctx context.Context, req *store.ScanRequest) ([]*models.Transaction, int64, error) {
	req.Normalize()
	all := m.Transactions()
	var matched []*models.Transaction
	for _, t := range all {
		if matchesEq(t, req.Filters) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if req.SortOrder == "asc" {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	if req.From >= len(matched) {
		return nil, total, nil
	}
	end := min(req.From+req.Size, len(matched))
	return matched[req.From:end], total, nil
}

func (m *MemStore) SalesByDay(ctx context.Context, filters []*types.CommonFilter) ([]store.DailySales, error) {
	type key struct {
		date, currency string
		status         types.PaymentStatus
	}
	agg := map[key]*store.DailySales{}
	for _, t := range m.Transactions() {
		if !matchesEq(t, filters) {
			continue
		}
		k := key{t.CreatedAt.UTC().Format(time.DateOnly), t.Currency, t.Status}
		row, ok := agg[k]
		if !ok {
			row = &store.DailySales{Date: k.date, Currency: k.currency, Status: k.status}
			agg[k] = row
		}
		row.Count++
		row.Amount = row.Amount.Add(t.Amount)
	}
	out := make([]store.DailySales, 0, len(agg))
	for _, r := range agg {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Currency != out[j].Currency {
			return out[i].Currency < out[j].Currency
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func matchesEq(t *models.Transaction, filters []*types.CommonFilter) bool {
	for _, f := range filters {
		if f.Operator != types.CommonFilterOperatorEq || len(f.Values) == 0 {
			continue
		}
		want := fmt.Sprint(f.Values[0])
		var got string
		switch f.Field {
		case "status":
			got = string(t.Status)
		case "gateway":
			got = string(t.Gateway)
		case "seller_id":
			got = t.SellerID
		case "product_id":
			got = t.ProductID
		case "buyer_email":
			got = t.BuyerEmail
		case "method":
			got = string(t.Method)
		default:
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func (m *MemStore) AppendTransactionLog(ctx context.Context, log *models.TransactionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.CreatedAt = time.Now()
	m.st.txnLogs = append(m.st.txnLogs, log)
	return nil
}

func (m *MemStore) FirstOrCreateBuyer(ctx context.Context, b *models.Buyer) (*models.Buyer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.buyers {
		if existing.Email == b.Email {
			c := *existing
			return &c, false, nil
		}
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	c := *b
	m.st.buyers[b.ID] = &c
	return b, true, nil
}

func (m *MemStore) SetTransactionBuyer(ctx context.Context, txnID, buyerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.txns[txnID]
	if !ok {
		return store.ErrNotFound
	}
	c := cur.Clone()
	c.BuyerID = &buyerID
	m.st.txns[txnID] = c
	return nil
}

func (m *MemStore) EntitlementByTransaction(ctx context.Context, txnID string) (*models.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.st.entitlements {
		if e.TransactionID == txnID {
			c := *e
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) CreateEntitlement(ctx context.Context, e *models.Entitlement) error {
	if err := m.injected("CreateEntitlement"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.entitlements {
		if existing.TransactionID == e.TransactionID {
			return fmt.Errorf("duplicate entitlement for transaction %s", e.TransactionID)
		}
	}
	c := *e
	m.st.entitlements[e.ID] = &c
	return nil
}

func (m *MemStore) DeactivateEntitlements(ctx context.Context, txnID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.st.entitlements {
		if e.TransactionID == txnID && e.Active {
			c := *e
			c.Active = false
			c.RevokedAt = &at
			m.st.entitlements[id] = &c
			n++
		}
	}
	return n, nil
}

func (m *MemStore) BeginRefund(ctx context.Context, r *models.Refund, limit decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.txns[r.TransactionID]; !ok {
		return store.ErrNotFound
	}
	refunded := decimal.Zero
	for _, existing := range m.st.refunds {
		if existing.TransactionID != r.TransactionID {
			continue
		}
		switch existing.Status {
		case models.RefundStatusPending:
			return store.ErrRefundInProgress
		case models.RefundStatusApproved:
			refunded = refunded.Add(existing.Amount)
		}
	}
	if refunded.Add(r.Amount).GreaterThan(limit) {
		return store.ErrRefundExceeds
	}
	r.CreatedAt = time.Now()
	c := *r
	m.st.refunds = append(m.st.refunds, &c)
	return nil
}

func (m *MemStore) FinishRefund(ctx context.Context, r *models.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.st.refunds {
		if existing.ID == r.ID && existing.Status == models.RefundStatusPending {
			c := *existing
			c.Status, c.ProviderRefundID, c.FailureReason, c.ProcessedAt = r.Status, r.ProviderRefundID, r.FailureReason, r.ProcessedAt
			m.st.refunds[i] = &c
		}
	}
	return nil
}

func (m *MemStore) RefundedTotal(ctx context.Context, txnID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, r := range m.st.refunds {
		if r.TransactionID == txnID && r.Status == models.RefundStatusApproved {
			total = total.Add(r.Amount)
		}
	}
	return total, nil
}

func (m *MemStore) CreateWebhookLog(ctx context.Context, log *models.WebhookLog) error {
	if err := m.injected("CreateWebhookLog"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *log
	m.st.webhookLogs[log.ID] = &c
	return nil
}

func (m *MemStore) FinishWebhookLog(ctx context.Context, id string, code int, outcome string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.st.webhookLogs[id]
	if !ok || l.ProcessedAt != nil {
		return nil
	}
	c := *l
	c.ResponseCode = &code
	c.Outcome = outcome
	c.ProcessedAt = &at
	m.st.webhookLogs[id] = &c
	return nil
}
