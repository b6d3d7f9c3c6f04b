// Package store is the data-access boundary of the checkout core.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/types"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrCouponExhausted  = errors.New("coupon usage limit reached")
	ErrRefundInProgress = errors.New("a refund is already in progress")
	ErrRefundExceeds    = errors.New("refund exceeds refundable amount")
)

// Store reads the catalog and owns the transaction ledger.
type Store interface {
	// Tx runs fn atomically. The Store passed to fn must be used for every
	// call that belongs to the unit of work.
	Tx(ctx context.Context, fn func(Store) error) error

	ProductByHash(ctx context.Context, hash string) (*models.Product, error)
	ProductByID(ctx context.Context, id string) (*models.Product, error)
	OfferByHash(ctx context.Context, productID, hash string) (*models.Offer, error)
	// ActiveOrderBumps returns the active bumps of productID among ids.
	ActiveOrderBumps(ctx context.Context, productID string, ids []string) ([]*models.OrderBump, error)
	CouponByCode(ctx context.Context, sellerID, code string) (*models.Coupon, error)
	// IncrementCouponUses adds one use only while the coupon is below its
	// limit, otherwise ErrCouponExhausted.
	IncrementCouponUses(ctx context.Context, couponID string) error

	SellerGateway(ctx context.Context, sellerID string, method types.PaymentMethod) (types.Gateway, error)
	GatewayCredentials(ctx context.Context, sellerID string, gateway types.Gateway) (types.GatewayCredentials, error)
	SellerWebhooks(ctx context.Context, sellerID string) ([]*models.SellerWebhook, error)

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	TransactionByGatewayPayment(ctx context.Context, gateway types.Gateway, paymentID string) (*models.Transaction, error)
	// SaveArtifacts writes what the provider returned on creation. Status is
	// never touched here.
	SaveArtifacts(ctx context.Context, txn *models.Transaction) error
	// TransitionTransaction persists txn.Status and its timestamps only if the
	// stored status still equals from. It reports whether the row changed.
	TransitionTransaction(ctx context.Context, txn *models.Transaction, from types.PaymentStatus) (bool, error)
	ScanTransactions(ctx context.Context, req *ScanRequest) ([]*models.Transaction, int64, error)
	// SalesByDay aggregates transactions by creation day, currency and status.
	SalesByDay(ctx context.Context, filters []*types.CommonFilter) ([]DailySales, error)
	AppendTransactionLog(ctx context.Context, log *models.TransactionLog) error

	// FirstOrCreateBuyer returns the buyer keyed by b.Email, inserting b when
	// absent. created is true only for the insert.
	FirstOrCreateBuyer(ctx context.Context, b *models.Buyer) (buyer *models.Buyer, created bool, err error)
	SetTransactionBuyer(ctx context.Context, txnID, buyerID string) error
	EntitlementByTransaction(ctx context.Context, txnID string) (*models.Entitlement, error)
	CreateEntitlement(ctx context.Context, e *models.Entitlement) error
	DeactivateEntitlements(ctx context.Context, txnID string, at time.Time) (int64, error)

	// BeginRefund inserts a pending refund unless another one is pending or
	// approved refunds plus r.Amount would exceed limit.
	BeginRefund(ctx context.Context, r *models.Refund, limit decimal.Decimal) error
	FinishRefund(ctx context.Context, r *models.Refund) error
	RefundedTotal(ctx context.Context, txnID string) (decimal.Decimal, error)

	CreateWebhookLog(ctx context.Context, log *models.WebhookLog) error
	// FinishWebhookLog appends the outcome once; later calls are ignored.
	FinishWebhookLog(ctx context.Context, id string, code int, outcome string, at time.Time) error
}

// DailySales is one aggregate row; Date is YYYY-MM-DD in UTC.
type DailySales struct {
	Date     string
	Currency string
	Status   types.PaymentStatus
	Count    int64
	Amount   decimal.Decimal
}

// ScanRequest pages through transactions. Filter fields must be checked
// against an allow list by the caller.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// Normalize applies paging defaults.
func (r *ScanRequest) Normalize() {
	if r.Size <= 0 {
		r.Size = 10
	}
	if r.Size > 200 {
		r.Size = 200
	}
	if r.From < 0 {
		r.From = 0
	}
}
