package statistics

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/internal/app/store/storetest"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/types"
)

func seed(st *storetest.MemStore) {
	day1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	add := func(id, seller string, at time.Time, status types.PaymentStatus, amount, currency string) {
		st.PutTransaction(&models.Transaction{
			ID: id, SellerID: seller, Status: status, Currency: currency,
			Amount: decimal.RequireFromString(amount), CreatedAt: at,
		})
	}
	add("t1", "s1", day1, types.PaymentStatusApproved, "100.00", "BRL")
	add("t2", "s1", day1, types.PaymentStatusRefused, "50.00", "BRL")
	add("t3", "s1", day1, types.PaymentStatusPending, "70.00", "BRL")
	add("t4", "s1", day2, types.PaymentStatusApproved, "30.00", "BRL")
	add("t5", "s1", day2, types.PaymentStatusRefunded, "40.00", "BRL")
	add("t6", "s1", day2, types.PaymentStatusApproved, "20.00", "USD")
	add("t7", "s2", day2, types.PaymentStatusApproved, "999.00", "BRL")
}

func items(ids ...StatisticType) []*SalesStatisticDataItem {
	out := make([]*SalesStatisticDataItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, &SalesStatisticDataItem{ID: id})
	}
	return out
}

func TestGetDailySalesStatistic(t *testing.T) {
	st := storetest.New()
	seed(st)
	svc := New(st, zap.NewNop().Sugar())

	res, err := svc.GetDailySalesStatistic(context.Background(), &SalesStatisticRequest{
		Filters: []*types.CommonFilter{{Field: "seller_id", Operator: types.CommonFilterOperatorEq, Values: []any{"s1"}}},
		DataItems: items(StatisticTypeDailyTransactionCount, StatisticTypeDailyGmv, StatisticTypeTotalGmv,
			StatisticTypeDailyRefundCount, StatisticTypeDailyApprovalRate, StatisticTypeDailyApprovedCount),
	})
	require.NoError(t, err)

	counts := res.DataItems[StatisticTypeDailyTransactionCount]
	require.Len(t, counts, 2)
	require.Equal(t, "2026-03-01", counts[0].Date)
	require.True(t, counts[0].Value.Equal(decimal.NewFromInt(3)))

	gmv := res.DataItems[StatisticTypeDailyGmv]
	require.Len(t, gmv, 3)
	require.Equal(t, "2026-03-02", gmv[0].Date)
	require.True(t, gmv[0].Value.Equal(decimal.RequireFromString("30")), "refunded sales are not GMV")
	require.Equal(t, "USD", gmv[1].Label)

	total := res.DataItems[StatisticTypeTotalGmv]
	require.Equal(t, "2026-03-02", total[0].Date)
	brl := total[0]
	if brl.Label != "BRL" {
		brl = total[1]
	}
	require.True(t, brl.Value.Equal(decimal.RequireFromString("130")))

	refunds := res.DataItems[StatisticTypeDailyRefundCount]
	require.Len(t, refunds, 1)
	require.Equal(t, "2026-03-02", refunds[0].Date)

	rate := res.DataItems[StatisticTypeDailyApprovalRate]
	require.Len(t, rate, 2)
	// day 1: one approved out of approved+refused, pending excluded
	require.Equal(t, "2026-03-01", rate[1].Date)
	require.True(t, rate[1].Value.Equal(decimal.NewFromInt(5000)))
	require.EqualValues(t, 2, rate[1].Value2)
	require.True(t, rate[0].Value.Equal(decimal.NewFromInt(10000)))

	approved := res.DataItems[StatisticTypeDailyApprovedCount]
	require.True(t, approved[1].Value.Equal(decimal.NewFromInt(3)))
}

func TestSalesStatisticRequest_Validate(t *testing.T) {
	require.Error(t, (&SalesStatisticRequest{}).Validate())
	require.Error(t, (&SalesStatisticRequest{DataItems: items("renewal_success_rate")}).Validate())
	require.Error(t, (&SalesStatisticRequest{
		DataItems: items(StatisticTypeDailyGmv),
		Filters:   []*types.CommonFilter{{Field: "buyer_tax_id", Operator: types.CommonFilterOperatorEq, Values: []any{"1"}}},
	}).Validate())
	require.NoError(t, (&SalesStatisticRequest{
		DataItems: items(StatisticTypeDailyGmv),
		Filters:   []*types.CommonFilter{{Field: "created_at", Operator: types.CommonFilterOperatorDateRange, Values: []any{"2026-03-01", "2026-04-01"}}},
	}).Validate())
}
