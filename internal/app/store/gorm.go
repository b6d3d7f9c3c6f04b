package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/types"
)

// GormStore implements Store on Postgres.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGorm(db *gorm.DB) *GormStore { return &GormStore{db: db} }

var Module = fx.Options(
	fx.Provide(NewGorm),
	fx.Provide(func(s *GormStore) Store { return s }),
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) Tx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) ProductByHash(ctx context.Context, hash string) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).Where("hash = ?", hash).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) OfferByHash(ctx context.Context, productID, hash string) (*models.Offer, error) {
	var o models.Offer
	if err := s.db.WithContext(ctx).Where("product_id = ? AND hash = ?", productID, hash).First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *GormStore) ActiveOrderBumps(ctx context.Context, productID string, ids []string) ([]*models.OrderBump, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*models.OrderBump
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND active = ? AND id IN ?", productID, true, ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load order bumps: %w", err)
	}
	return rows, nil
}

func (s *GormStore) CouponByCode(ctx context.Context, sellerID, code string) (*models.Coupon, error) {
	var c models.Coupon
	if err := s.db.WithContext(ctx).Where("seller_id = ? AND code = ?", sellerID, code).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *GormStore) IncrementCouponUses(ctx context.Context, couponID string) error {
	res := s.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ? AND (max_uses IS NULL OR current_uses < max_uses)", couponID).
		UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to increment coupon uses: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCouponExhausted
	}
	return nil
}

func (s *GormStore) SellerGateway(ctx context.Context, sellerID string, method types.PaymentMethod) (types.Gateway, error) {
	var sg models.SellerGateway
	if err := s.db.WithContext(ctx).Where("seller_id = ? AND method = ?", sellerID, method).First(&sg).Error; err != nil {
		return "", notFound(err)
	}
	return sg.Gateway, nil
}

func (s *GormStore) GatewayCredentials(ctx context.Context, sellerID string, gateway types.Gateway) (types.GatewayCredentials, error) {
	var gc models.GatewayCredential
	if err := s.db.WithContext(ctx).Where("seller_id = ? AND gateway = ?", sellerID, gateway).First(&gc).Error; err != nil {
		return types.GatewayCredentials{}, notFound(err)
	}
	return gc.Credentials.Data(), nil
}

func (s *GormStore) SellerWebhooks(ctx context.Context, sellerID string) ([]*models.SellerWebhook, error) {
	var rows []*models.SellerWebhook
	if err := s.db.WithContext(ctx).Where("seller_id = ? AND active = ?", sellerID, true).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load seller webhooks: %w", err)
	}
	return rows, nil
}

func (s *GormStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *GormStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *GormStore) TransactionByGatewayPayment(ctx context.Context, gateway types.Gateway, paymentID string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.WithContext(ctx).
		Where("gateway = ? AND gateway_payment_id = ?", gateway, paymentID).
		First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *GormStore) SaveArtifacts(ctx context.Context, txn *models.Transaction) error {
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", txn.ID).Updates(map[string]any{
		"gateway_payment_id": txn.GatewayPaymentID,
		"failure_reason":     txn.FailureReason,
		"pix_code":           txn.PixCode,
		"pix_qr_code":        txn.PixQRCode,
		"boleto_url":         txn.BoletoURL,
		"boleto_barcode":     txn.BoletoBarcode,
		"card_brand":         txn.CardBrand,
		"card_last_four":     txn.CardLastFour,
		"customer_ref":       txn.CustomerRef,
		"payment_method_ref": txn.PaymentMethodRef,
		"updated_at":         time.Now(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to save payment artifacts: %w", err)
	}
	return nil
}

func (s *GormStore) TransitionTransaction(ctx context.Context, txn *models.Transaction, from types.PaymentStatus) (bool, error) {
	txn.UpdatedAt = time.Now()
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, from).
		Updates(map[string]any{
			"status":             txn.Status,
			"failure_reason":     txn.FailureReason,
			"paid_at":            txn.PaidAt,
			"refunded_at":        txn.RefundedAt,
			"customer_ref":       txn.CustomerRef,
			"payment_method_ref": txn.PaymentMethodRef,
			"updated_at":         txn.UpdatedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition transaction: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ScanTransactions(ctx context.Context, req *ScanRequest) ([]*models.Transaction, int64, error) {
	if req == nil {
		return nil, 0, fmt.Errorf("nil request")
	}
	req.Normalize()

	tx := s.db.WithContext(ctx).Model(&models.Transaction{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})

	var rows []*models.Transaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return rows, total, nil
}

func (s *GormStore) SalesByDay(ctx context.Context, filters []*types.CommonFilter) ([]DailySales, error) {
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("TO_CHAR(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS date, currency, status, count(*) AS count, COALESCE(sum(amount), 0) AS amount")
	if len(filters) > 0 {
		q = q.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(filters)}})
	}
	var rows []DailySales
	if err := q.Group("1, currency, status").Order("1").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}
	return rows, nil
}

func (s *GormStore) AppendTransactionLog(ctx context.Context, log *models.TransactionLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to append transaction log: %w", err)
	}
	return nil
}

func (s *GormStore) FirstOrCreateBuyer(ctx context.Context, b *models.Buyer) (*models.Buyer, bool, error) {
	db := s.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).Create(b)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create buyer: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return b, true, nil
	}
	var existing models.Buyer
	if err := db.Where("email = ?", b.Email).First(&existing).Error; err != nil {
		return nil, false, notFound(err)
	}
	return &existing, false, nil
}

func (s *GormStore) SetTransactionBuyer(ctx context.Context, txnID, buyerID string) error {
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", txnID).
		Updates(map[string]any{"buyer_id": buyerID, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("failed to set transaction buyer: %w", err)
	}
	return nil
}

func (s *GormStore) EntitlementByTransaction(ctx context.Context, txnID string) (*models.Entitlement, error) {
	var e models.Entitlement
	if err := s.db.WithContext(ctx).Where("transaction_id = ?", txnID).First(&e).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *GormStore) CreateEntitlement(ctx context.Context, e *models.Entitlement) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create entitlement: %w", err)
	}
	return nil
}

func (s *GormStore) DeactivateEntitlements(ctx context.Context, txnID string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("transaction_id = ? AND active = ?", txnID, true).
		Updates(map[string]any{"active": false, "revoked_at": at})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deactivate entitlements: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) BeginRefund(ctx context.Context, r *models.Refund, limit decimal.Decimal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serialize refunds of the same transaction on its row lock
		var locked models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").
			Where("id = ?", r.TransactionID).First(&locked).Error; err != nil {
			return notFound(err)
		}

		var pending int64
		if err := tx.Model(&models.Refund{}).
			Where("transaction_id = ? AND status = ?", r.TransactionID, models.RefundStatusPending).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("failed to count pending refunds: %w", err)
		}
		if pending > 0 {
			return ErrRefundInProgress
		}

		refunded, err := refundedTotal(tx, r.TransactionID)
		if err != nil {
			return err
		}
		if refunded.Add(r.Amount).GreaterThan(limit) {
			return ErrRefundExceeds
		}
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("failed to create refund: %w", err)
		}
		return nil
	})
}

func (s *GormStore) FinishRefund(ctx context.Context, r *models.Refund) error {
	err := s.db.WithContext(ctx).Model(&models.Refund{}).
		Where("id = ? AND status = ?", r.ID, models.RefundStatusPending).
		Updates(map[string]any{
			"status":             r.Status,
			"provider_refund_id": r.ProviderRefundID,
			"failure_reason":     r.FailureReason,
			"processed_at":       r.ProcessedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finish refund: %w", err)
	}
	return nil
}

func (s *GormStore) RefundedTotal(ctx context.Context, txnID string) (decimal.Decimal, error) {
	return refundedTotal(s.db.WithContext(ctx), txnID)
}

func refundedTotal(db *gorm.DB, txnID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := db.Model(&models.Refund{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("transaction_id = ? AND status = ?", txnID, models.RefundStatusApproved).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum refunds: %w", err)
	}
	return total, nil
}

func (s *GormStore) CreateWebhookLog(ctx context.Context, log *models.WebhookLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create webhook log: %w", err)
	}
	return nil
}

func (s *GormStore) FinishWebhookLog(ctx context.Context, id string, code int, outcome string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.WebhookLog{}).
		Where("id = ? AND processed_at IS NULL", id).
		Updates(map[string]any{"response_code": code, "outcome": outcome, "processed_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to finish webhook log: %w", err)
	}
	return nil
}
