package gateway

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/types"
)

// Resolve builds a fresh adapter bound to creds. Missing credentials fail
// here, before any network call.
func Resolve(name types.Gateway, creds types.GatewayCredentials, opts Options) (Gateway, error) {
	switch name {
	case types.GatewayMercadoPago:
		return NewMercadoPago(creds, opts)
	case types.GatewayEfi:
		return NewEfi(creds, opts)
	case types.GatewayPushinPay:
		return NewPushinPay(creds, opts)
	case types.GatewayBeehive:
		return NewBeehive(creds, opts)
	case types.GatewayHypercash:
		return NewHypercash(creds, opts)
	case types.GatewayStripe:
		return NewStripe(creds, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGateway, name)
	}
}

// Resolver is what services depend on; tests substitute fake adapters.
type Resolver interface {
	Resolve(name types.Gateway, creds types.GatewayCredentials) (Gateway, error)
}

// Registry resolves adapters with options taken from configuration.
// It keeps no adapter instances.
type Registry struct {
	opts map[types.Gateway]Options
	base Options
}

func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{opts: map[types.Gateway]Options{}}
	if cfg == nil {
		return r
	}
	r.base = Options{Timeout: cfg.Gateway.Timeout, Tolerance: cfg.Webhook.Tolerance}
	for name, u := range cfg.Gateway.BaseURLs {
		g, ok := types.ParseGateway(name)
		if !ok {
			continue
		}
		o := r.base
		o.BaseURL = u
		r.opts[g] = o
	}
	return r
}

// WithOptions overrides the options of one gateway.
func (r *Registry) WithOptions(name types.Gateway, opts Options) *Registry {
	r.opts[name] = opts
	return r
}

func (r *Registry) Resolve(name types.Gateway, creds types.GatewayCredentials) (Gateway, error) {
	opts, ok := r.opts[name]
	if !ok {
		opts = r.base
	}
	return Resolve(name, creds, opts)
}

var Module = fx.Options(
	fx.Provide(NewRegistry),
	fx.Provide(func(r *Registry) Resolver { return r }),
)
