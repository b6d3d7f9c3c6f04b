package statistics

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/types"
)

type StatisticType string

const (
	// Daily counts and GMV
	StatisticTypeDailyTransactionCount StatisticType = "daily_transaction_count"
	StatisticTypeDailyApprovedCount    StatisticType = "daily_approved_count"
	StatisticTypeDailyGmv              StatisticType = "daily_gmv"
	StatisticTypeTotalGmv              StatisticType = "total_gmv"

	// Refunds and chargebacks, counted on the day of the sale.
	StatisticTypeDailyRefundCount StatisticType = "daily_refund_count"

	// Approved share of settled attempts, in basis points.
	StatisticTypeDailyApprovalRate StatisticType = "daily_approval_rate"
)

var statisticTypes = []StatisticType{
	StatisticTypeDailyTransactionCount,
	StatisticTypeDailyApprovedCount,
	StatisticTypeDailyGmv,
	StatisticTypeTotalGmv,
	StatisticTypeDailyRefundCount,
	StatisticTypeDailyApprovalRate,
}

// FilterFields are the transaction columns a statistic request may filter on.
var FilterFields = []string{"seller_id", "product_id", "gateway", "method", "currency", "created_at"}

type SalesStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type SalesStatisticRequest struct {
	Filters   []*types.CommonFilter     `json:"filters"`
	DataItems []*SalesStatisticDataItem `json:"data_items"`
}

func (r *SalesStatisticRequest) Validate() error {
	if len(r.DataItems) == 0 {
		return fmt.Errorf("data_items is empty")
	}
	for _, di := range r.DataItems {
		if di == nil || !lo.Contains(statisticTypes, di.ID) {
			return fmt.Errorf("invalid data item id: %v", lo.FromPtr(di).ID)
		}
	}
	for _, f := range r.Filters {
		if f == nil || !lo.Contains(FilterFields, f.Field) {
			return fmt.Errorf("field %q is not filterable", lo.FromPtr(f).Field)
		}
		if !f.Operator.Valid() {
			return fmt.Errorf("unknown operator %q", f.Operator)
		}
	}
	return nil
}

type SalesStatisticResponseDataItem struct {
	Date   string          `json:"date"`
	Label  string          `json:"label,omitempty"`
	Value  decimal.Decimal `json:"value"`
	Value2 int64           `json:"value2,omitempty"`
	Value3 int64           `json:"value3,omitempty"`
}

type SalesStatisticResponse struct {
	DataItems map[StatisticType][]SalesStatisticResponseDataItem `json:"data_items"`
}

// Service provides statistics operations
type Service struct {
	st  store.Store
	log *zap.SugaredLogger
}

func New(st store.Store, log *zap.SugaredLogger) *Service { return &Service{st: st, log: log} }

func isRefund(s types.PaymentStatus) bool {
	return s == types.PaymentStatusRefunded || s == types.PaymentStatusChargeback
}

// sold counts sales that were approved at some point.
func sold(s types.PaymentStatus) bool {
	return s == types.PaymentStatusApproved || isRefund(s)
}

func countBy(rows []store.DailySales, keep func(types.PaymentStatus) bool) []SalesStatisticResponseDataItem {
	byDate := map[string]int64{}
	for _, r := range rows {
		if keep(r.Status) {
			byDate[r.Date] += r.Count
		}
	}
	out := make([]SalesStatisticResponseDataItem, 0, len(byDate))
	for d, n := range byDate {
		out = append(out, SalesStatisticResponseDataItem{Date: d, Value: decimal.NewFromInt(n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// dailyGmv sums approved sales per day and currency. Refunded sales are not
// GMV.
func dailyGmv(rows []store.DailySales) []SalesStatisticResponseDataItem {
	type key struct{ date, currency string }
	sum := map[key]decimal.Decimal{}
	for _, r := range rows {
		if r.Status == types.PaymentStatusApproved {
			k := key{r.Date, r.Currency}
			sum[k] = sum[k].Add(r.Amount)
		}
	}
	out := make([]SalesStatisticResponseDataItem, 0, len(sum))
	for k, v := range sum {
		out = append(out, SalesStatisticResponseDataItem{Date: k.date, Label: k.currency, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// totalGmv is the running total of dailyGmv per currency, newest first.
func totalGmv(rows []store.DailySales) []SalesStatisticResponseDataItem {
	daily := dailyGmv(rows)
	sort.SliceStable(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })
	running := map[string]decimal.Decimal{}
	out := make([]SalesStatisticResponseDataItem, 0, len(daily))
	for _, d := range daily {
		running[d.Label] = running[d.Label].Add(d.Value)
		out = append(out, SalesStatisticResponseDataItem{Date: d.Date, Label: d.Label, Value: running[d.Label]})
	}
	slices.Reverse(out)
	return out
}

// approvalRate is approved over settled (approved, refused, refunded,
// chargeback). Value2 is the settled count and Value3 the approved count.
func approvalRate(rows []store.DailySales) []SalesStatisticResponseDataItem {
	type tally struct{ settled, approved int64 }
	byDate := map[string]*tally{}
	for _, r := range rows {
		if !sold(r.Status) && r.Status != types.PaymentStatusRefused {
			continue
		}
		t, ok := byDate[r.Date]
		if !ok {
			t = &tally{}
			byDate[r.Date] = t
		}
		t.settled += r.Count
		if sold(r.Status) {
			t.approved += r.Count
		}
	}
	out := make([]SalesStatisticResponseDataItem, 0, len(byDate))
	for d, t := range byDate {
		bp := decimal.NewFromInt(t.approved * 10000).Div(decimal.NewFromInt(t.settled)).Round(0)
		out = append(out, SalesStatisticResponseDataItem{Date: d, Value: bp, Value2: t.settled, Value3: t.approved})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func compute(id StatisticType, rows []store.DailySales) ([]SalesStatisticResponseDataItem, error) {
	switch id {
	case StatisticTypeDailyTransactionCount:
		return countBy(rows, func(types.PaymentStatus) bool { return true }), nil
	case StatisticTypeDailyApprovedCount:
		return countBy(rows, sold), nil
	case StatisticTypeDailyGmv:
		return dailyGmv(rows), nil
	case StatisticTypeTotalGmv:
		return totalGmv(rows), nil
	case StatisticTypeDailyRefundCount:
		return countBy(rows, isRefund), nil
	case StatisticTypeDailyApprovalRate:
		return approvalRate(rows), nil
	default:
		return nil, fmt.Errorf("invalid data item id: %s", id)
	}
}

// GetDailySalesStatistic aggregates once and derives every requested series
// from the same rows, so series in one response are consistent.
func (s *Service) GetDailySalesStatistic(ctx context.Context, request *SalesStatisticRequest) (*SalesStatisticResponse, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.st.SalesByDay(ctx, request.Filters)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("sales aggregation failed", "err", err)
		return nil, err
	}
	results := make(map[StatisticType][]SalesStatisticResponseDataItem, len(request.DataItems))
	for _, di := range request.DataItems {
		res, err := compute(di.ID, rows)
		if err != nil {
			return nil, err
		}
		results[di.ID] = res
	}
	return &SalesStatisticResponse{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
