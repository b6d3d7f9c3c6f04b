// Package currency converts product prices into a seller's settlement
// currency.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/logctx"
)

var ErrRateUnavailable = errors.New("exchange rate unavailable")

type Converter struct {
	http     *http.Client
	ratesURL string
	ttl      time.Duration
	cache    Cache
	log      *zap.SugaredLogger
}

func NewConverter(cfg *config.Config, cache Cache, log *zap.SugaredLogger) *Converter {
	c := &Converter{
		http:     &http.Client{Timeout: 10 * time.Second},
		ratesURL: "https://api.frankfurter.app/latest",
		ttl:      10 * time.Minute,
		cache:    cache,
		log:      log,
	}
	if cfg != nil {
		if cfg.Currency.RatesURL != "" {
			c.ratesURL = cfg.Currency.RatesURL
		}
		if cfg.Currency.TTL > 0 {
			c.ttl = cfg.Currency.TTL
		}
	}
	return c
}

// Convert returns amount expressed in to, rounded to cents, and the rate used.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to || from == "" || to == "" {
		return amount, decimal.NewFromInt(1), nil
	}
	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return amount.Mul(rate).Round(2), rate, nil
}

func (c *Converter) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := from + ":" + to
	if rate, ok, err := c.cache.Get(ctx, key); err != nil {
		logctx.FromCtx(ctx, c.log).Warnw("rate cache read failed", "key", key, "err", err)
	} else if ok {
		return rate, nil
	}

	rate, err := c.fetch(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.cache.Set(ctx, key, rate, c.ttl); err != nil {
		logctx.FromCtx(ctx, c.log).Warnw("rate cache write failed", "key", key, "err", err)
	}
	return rate, nil
}

func (c *Converter) fetch(ctx context.Context, from, to string) (decimal.Decimal, error) {
	u, err := url.Parse(c.ratesURL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rates url: %w", err)
	}
	q := u.Query()
	q.Set("from", from)
	q.Set("to", to)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrRateUnavailable, resp.StatusCode)
	}

	var body struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	rate, ok := body.Rates[to]
	if !ok || rate.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s->%s", ErrRateUnavailable, from, to)
	}
	return rate, nil
}

var Module = fx.Options(
	fx.Provide(NewCache),
	fx.Provide(NewConverter),
)
