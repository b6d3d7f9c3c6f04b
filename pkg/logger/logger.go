package logger

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fatflowers/checkout/pkg/config"
)

// Build returns the process logger. Production writes JSON at the configured
// level; dev defaults to the colored console encoder.
func Build(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Env != config.EnvProd {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.TimeKey = "time"

	if cfg.Log.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = lvl
	}
	if cfg.Log.Encoding != "" {
		zc.Encoding = cfg.Log.Encoding
		if cfg.Log.Encoding == "json" {
			zc.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		}
	}
	return zc.Build(zap.Fields(zap.String("service", "checkout"), zap.String("env", string(cfg.Env))))
}

func New(lc fx.Lifecycle, cfg *config.Config) (*zap.SugaredLogger, error) {
	l, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() {
		// stderr sync fails on some terminals; nothing to do about it
		_ = l.Sync()
	}))
	return l.Sugar(), nil
}

var Module = fx.Options(
	fx.Provide(New),
)
