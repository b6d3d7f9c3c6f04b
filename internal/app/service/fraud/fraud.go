// Package fraud scores a checkout attempt before any money moves.
package fraud

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/types"
)

const (
	scoreTaxID        = 80
	scoreDisposable   = 40
	scorePhone        = 20
	scoreInstantLimit = 15

	defaultThreshold = 70
)

type Input struct {
	Buyer  types.Buyer
	Amount decimal.Decimal
	Method types.PaymentMethod
}

// Verdict is internal: callers must not show Score or Reason to buyers.
type Verdict struct {
	Approved bool   `json:"approved"`
	Score    int    `json:"score"`
	Reason   string `json:"reason"`
}

// Screener is the pluggable fraud policy. External risk engines implement it
// too and are composed with Chain.
type Screener interface {
	Screen(ctx context.Context, in *Input) (*Verdict, error)
}

// RuleScreener is the built-in scoring policy.
type RuleScreener struct {
	threshold    int
	instantLimit decimal.Decimal
	disposable   map[string]struct{}
}

func NewRuleScreener(cfg *config.Config) *RuleScreener {
	r := &RuleScreener{
		threshold:    defaultThreshold,
		instantLimit: decimal.NewFromInt(5000),
		disposable:   map[string]struct{}{},
	}
	if cfg != nil {
		if cfg.Fraud.Threshold > 0 {
			r.threshold = cfg.Fraud.Threshold
		}
		r.instantLimit = cfg.Fraud.InstantLimit()
	}
	for _, d := range disposableDomains {
		r.disposable[d] = struct{}{}
	}
	return r
}

func (r *RuleScreener) Screen(_ context.Context, in *Input) (*Verdict, error) {
	var (
		score   int
		reasons []string
	)
	// absent fields are not scored; anything present must parse
	if strings.TrimSpace(in.Buyer.TaxID) != "" && !ValidTaxID(in.Buyer.TaxIDDigits()) {
		score += scoreTaxID
		reasons = append(reasons, "tax_id")
	}
	if r.isDisposable(in.Buyer.Email) {
		score += scoreDisposable
		reasons = append(reasons, "disposable_email")
	}
	if phone := in.Buyer.PhoneDigits(); strings.TrimSpace(in.Buyer.Phone) != "" && (len(phone) < 10 || len(phone) > 13) {
		score += scorePhone
		reasons = append(reasons, "phone")
	}
	if in.Method.Instant() && in.Amount.GreaterThan(r.instantLimit) {
		score += scoreInstantLimit
		reasons = append(reasons, "instant_amount")
	}
	return &Verdict{Approved: score < r.threshold, Score: score, Reason: strings.Join(reasons, ",")}, nil
}

func (r *RuleScreener) isDisposable(email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	_, ok := r.disposable[strings.ToLower(strings.TrimSpace(email[at+1:]))]
	return ok
}

// Chain runs screeners in order. The first rejection wins; otherwise the
// highest score is reported.
type Chain []Screener

func (c Chain) Screen(ctx context.Context, in *Input) (*Verdict, error) {
	best := &Verdict{Approved: true}
	for _, s := range c {
		v, err := s.Screen(ctx, in)
		if err != nil {
			return nil, err
		}
		if !v.Approved {
			return v, nil
		}
		if v.Score > best.Score {
			best = v
		}
	}
	return best, nil
}

var Module = fx.Options(
	fx.Provide(NewRuleScreener),
	fx.Provide(func(r *RuleScreener) Screener { return r }),
)
