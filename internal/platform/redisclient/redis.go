// Package redisclient provides the shared Redis connection. It yields a nil
// client when redis.addr is empty; consumers then fall back to in-process
// implementations.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/pkg/config"
)

func New(lc fx.Lifecycle, cfg *config.Config, l *zap.SugaredLogger) (*redis.Client, error) {
	if !cfg.Redis.Enabled() {
		l.Infow("redis disabled, using in-process cache and direct dispatch")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	l.Infow("redis client connected", "addr", cfg.Redis.Addr)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			l.Infow("closing redis client")
			return rdb.Close()
		},
	})
	return rdb, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
