package fraud

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/checkout/pkg/types"
)

func goodBuyer() types.Buyer {
	return types.Buyer{Name: "Maria Souza", Email: "maria@example.com", Phone: "(11) 98888-7777", TaxID: "529.982.247-25"}
}

func TestValidTaxID(t *testing.T) {
	assert.True(t, ValidTaxID("52998224725"))
	assert.True(t, ValidTaxID("11222333000181"))
	assert.False(t, ValidTaxID("52998224724"))
	assert.False(t, ValidTaxID("11111111111"))
	assert.False(t, ValidTaxID("00000000000000"))
	assert.False(t, ValidTaxID("123"))
}

func TestRuleScreener_Scores(t *testing.T) {
	s := NewRuleScreener(nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		mutate   func(*Input)
		score    int
		approved bool
	}{
		{"clean", func(*Input) {}, 0, true},
		{"repeated digits", func(in *Input) { in.Buyer.TaxID = "111.111.111-11" }, 80, false},
		{"disposable", func(in *Input) { in.Buyer.Email = "x@Mailinator.com" }, 40, true},
		{"short phone", func(in *Input) { in.Buyer.Phone = "1234" }, 20, true},
		{"large pix", func(in *Input) { in.Amount = decimal.NewFromInt(5001) }, 15, true},
		{"large card is fine", func(in *Input) {
			in.Amount = decimal.NewFromInt(9000)
			in.Method = types.PaymentMethodCreditCard
		}, 0, true},
		{"stacked", func(in *Input) {
			in.Buyer.Email = "x@yopmail.com"
			in.Buyer.Phone = "99"
			in.Amount = decimal.NewFromInt(6000)
		}, 75, false},
		{"letters-only tax id", func(in *Input) {
			in.Buyer.TaxID = "ABC.DEF.GHI-JK"
			in.Buyer.Email = "x@mailinator.com"
			in.Amount = decimal.NewFromInt(9000)
		}, 135, false},
		{"letters-only phone", func(in *Input) { in.Buyer.Phone = "n/a" }, 20, true},
		{"blank tax id", func(in *Input) { in.Buyer.TaxID = "   " }, 0, true},
		{"empty optional fields", func(in *Input) { in.Buyer.TaxID, in.Buyer.Phone = "", "" }, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := &Input{Buyer: goodBuyer(), Amount: decimal.NewFromInt(100), Method: types.PaymentMethodPix}
			tc.mutate(in)
			v, err := s.Screen(ctx, in)
			require.NoError(t, err)
			assert.Equal(t, tc.score, v.Score)
			assert.Equal(t, tc.approved, v.Approved)
		})
	}
}

type fixed struct {
	v   *Verdict
	err error
}

func (f fixed) Screen(context.Context, *Input) (*Verdict, error) { return f.v, f.err }

func TestChain(t *testing.T) {
	in := &Input{Buyer: goodBuyer(), Amount: decimal.NewFromInt(10), Method: types.PaymentMethodPix}

	v, err := Chain{fixed{v: &Verdict{Approved: true, Score: 10}}, fixed{v: &Verdict{Approved: true, Score: 30}}}.Screen(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, v.Approved)
	assert.Equal(t, 30, v.Score)

	v, err = Chain{fixed{v: &Verdict{Approved: false, Score: 90, Reason: "external"}}, fixed{err: errors.New("unreached")}}.Screen(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.Equal(t, "external", v.Reason)

	_, err = Chain{fixed{err: errors.New("down")}}.Screen(context.Background(), in)
	require.Error(t, err)
}
