package gormlog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"github.com/fatflowers/checkout/pkg/logctx"
)

// ZapLogger routes GORM output through the request logger so queries carry
// the trace id of the checkout or webhook job that issued them.
type ZapLogger struct {
	base   *zap.SugaredLogger
	config gormlogger.Config
}

// Option tweaks the GORM logger config.
type Option func(*gormlogger.Config)

// WithSlowThreshold overrides the slow query threshold. Zero disables it.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *gormlogger.Config) { c.SlowThreshold = d }
}

// WithLevel sets the starting log level.
func WithLevel(l gormlogger.LogLevel) Option {
	return func(c *gormlogger.Config) { c.LogLevel = l }
}

// New logs errors and slow queries only. Per-statement logging is opt-in via
// WithLevel(gormlogger.Info).
func New(base *zap.SugaredLogger, opts ...Option) *ZapLogger {
	cfg := gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &ZapLogger{base: base.Named("gorm"), config: cfg}
}

func (z *ZapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cfg := z.config
	cfg.LogLevel = level
	return &ZapLogger{base: z.base, config: cfg}
}

func (z *ZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Info {
		logctx.FromCtx(ctx, z.base).Infof(msg, data...)
	}
}

func (z *ZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Warn {
		logctx.FromCtx(ctx, z.base).Warnf(msg, data...)
	}
}

func (z *ZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Error {
		logctx.FromCtx(ctx, z.base).Errorf(msg, data...)
	}
}

func (z *ZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.config.LogLevel <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	lg := logctx.FromCtx(ctx, z.base)

	switch {
	case err != nil && z.config.LogLevel >= gormlogger.Error &&
		!(z.config.IgnoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound)):
		sql, rows := fc()
		lg.Errorw("query failed", "err", err, "sql", sql, "rows", rows,
			"elapsed_ms", elapsed.Milliseconds(), "caller", shortCaller(utils.FileWithLineNum()))
	case z.config.SlowThreshold > 0 && elapsed > z.config.SlowThreshold && z.config.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		lg.Warnw("slow query", "sql", sql, "rows", rows, "elapsed_ms", elapsed.Milliseconds(),
			"threshold_ms", z.config.SlowThreshold.Milliseconds(), "caller", shortCaller(utils.FileWithLineNum()))
	case z.config.LogLevel >= gormlogger.Info:
		sql, rows := fc()
		lg.Infow("query", "sql", sql, "rows", rows, "elapsed_ms", elapsed.Milliseconds())
	}
}

// shortCaller keeps the repo-relative part of a caller path:
// /src/checkout/internal/app/store/gorm.go:88 -> internal/app/store/gorm.go:88.
func shortCaller(s string) string {
	path, line := s, ""
	if i := strings.LastIndex(s, ":"); i >= 0 {
		path, line = s[:i], s[i:]
	}
	path = filepath.ToSlash(path)
	for _, root := range []string{"/internal/", "/pkg/", "/cmd/"} {
		if i := strings.Index(path, root); i >= 0 {
			return path[i+1:] + line
		}
	}
	return filepath.Base(path) + line
}
