package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/internal/app/service/checkout"
	"github.com/fatflowers/checkout/internal/app/service/statistics"
	"github.com/fatflowers/checkout/internal/app/store"
	models "github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/response"
	"github.com/fatflowers/checkout/pkg/types"
)

// filterable columns; anything else is rejected before it reaches SQL.
var filterable = []string{
	"id", "seller_id", "product_id", "buyer_id", "buyer_email", "gateway", "gateway_payment_id",
	"method", "status", "currency", "amount", "coupon_id", "parent_transaction_id",
	"utm_source", "utm_campaign", "created_at", "paid_at", "refunded_at",
}

var sortable = []string{"created_at", "updated_at", "paid_at", "amount", "status"}

type ListTransactionRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

func (r *ListTransactionRequest) validate() error {
	for _, f := range r.Filters {
		if f == nil {
			return fmt.Errorf("empty filter")
		}
		if !lo.Contains(filterable, f.Field) {
			return fmt.Errorf("field %q is not filterable", f.Field)
		}
		if !f.Operator.Valid() {
			return fmt.Errorf("unknown operator %q", f.Operator)
		}
	}
	if r.SortBy != "" && !lo.Contains(sortable, r.SortBy) {
		return fmt.Errorf("cannot sort by %q", r.SortBy)
	}
	if r.SortOrder != "" && r.SortOrder != "asc" && r.SortOrder != "desc" {
		return fmt.Errorf("sort_order must be asc or desc")
	}
	return nil
}

type TransactionItem struct {
	ID                  string              `json:"id"`
	SellerID            string              `json:"seller_id"`
	ProductID           string              `json:"product_id"`
	BuyerEmail          string              `json:"buyer_email"`
	Gateway             types.Gateway       `json:"gateway"`
	GatewayPaymentID    string              `json:"gateway_payment_id"`
	Method              types.PaymentMethod `json:"method"`
	Status              types.PaymentStatus `json:"status"`
	Amount              decimal.Decimal     `json:"amount"`
	Discount            decimal.Decimal     `json:"discount"`
	Currency            string              `json:"currency"`
	Installments        int                 `json:"installments"`
	ParentTransactionID *string             `json:"parent_transaction_id"`
	UTMSource           string              `json:"utm_source,omitempty"`
	UTMCampaign         string              `json:"utm_campaign,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	PaidAt              *time.Time          `json:"paid_at"`
	RefundedAt          *time.Time          `json:"refunded_at"`
}

func toTransactionItem(m *models.Transaction) *TransactionItem {
	return &TransactionItem{
		ID:                  m.ID,
		SellerID:            m.SellerID,
		ProductID:           m.ProductID,
		BuyerEmail:          m.BuyerEmail,
		Gateway:             m.Gateway,
		GatewayPaymentID:    m.PaymentID(),
		Method:              m.Method,
		Status:              m.Status,
		Amount:              m.Amount,
		Discount:            m.Discount,
		Currency:            m.Currency,
		Installments:        m.Installments,
		ParentTransactionID: m.ParentTransactionID,
		UTMSource:           m.UTMSource,
		UTMCampaign:         m.UTMCampaign,
		CreatedAt:           m.CreatedAt,
		PaidAt:              m.PaidAt,
		RefundedAt:          m.RefundedAt,
	}
}

type ListTransactionsResponse struct {
	Items []*TransactionItem `json:"items"`
	Total int64              `json:"total"`
}

// @Summary      List transactions (Admin)
// @Description  Paginated, filterable listing of all transactions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ListTransactionRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListTransactions
// @Router       /api/v1/admin/transactions [post]
func ApiListTransactions(svc checkout.Orchestrator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListTransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := req.validate(); err != nil {
			badRequest(c, err)
			return
		}
		rows, total, err := svc.ScanTransactions(c.Request.Context(), &store.ScanRequest{
			Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
		})
		if err != nil {
			logctx.FromGin(c, log).Errorw("list transactions failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.Fail(response.APIResponseCodeError, ""))
			return
		}
		items := lo.Map(rows, func(it *models.Transaction, _ int) *TransactionItem { return toTransactionItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListTransactionsResponse{Items: items, Total: total}))
	}
}

// @Summary      Get sales statistics (Admin)
// @Description  Daily transaction counts, GMV, refunds and approval rate.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body statistics.SalesStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespSalesStatistic
// @Router       /api/v1/admin/statistics [post]
func ApiGetSalesStatistic(stats *statistics.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.SalesStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := req.Validate(); err != nil {
			badRequest(c, err)
			return
		}
		res, err := stats.GetDailySalesStatistic(c.Request.Context(), &req)
		if err != nil {
			logctx.FromGin(c, log).Errorw("sales statistics failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.Fail(response.APIResponseCodeError, ""))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, svc checkout.Orchestrator, stats *statistics.Service, log *zap.SugaredLogger) {
	r.POST("/transactions", ApiListTransactions(svc, log))
	r.POST("/statistics", ApiGetSalesStatistic(stats, log))
}
