package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/checkout/docs"
	"github.com/fatflowers/checkout/internal/app/api/handlers"
	mw "github.com/fatflowers/checkout/internal/app/api/middleware"
	"github.com/fatflowers/checkout/internal/app/service/checkout"
	"github.com/fatflowers/checkout/internal/app/service/statistics"
	wh "github.com/fatflowers/checkout/internal/app/service/webhook_handler"
	cfgpkg "github.com/fatflowers/checkout/pkg/config"
	metrics "github.com/fatflowers/checkout/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger and access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config, db *gorm.DB, rdb *redis.Client, svc checkout.Orchestrator, stats *statistics.Service, rec *wh.Reconciler) error {
	if cfg.MetricsAddr != "" {
		hm, err := metrics.NewHTTP(metrics.HTTPOptions{Subsystem: "checkout_http", Skip: []string{"/swagger/"}})
		if err != nil {
			return fmt.Errorf("http metrics: %w", err)
		}
		r.Use(hm.Middleware())
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub, handlers.NewHealth(cfg, db, rdb))
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	payments := r.Group("/payments")
	payments.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterPaymentRoutes(payments, svc, cfg.Auth.JWTSecret, log)

	webhooks := r.Group("/webhooks")
	webhooks.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterWebhookRoutes(webhooks, rec, log)

	admin := r.Group("/api/v1/admin")
	admin.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.JWT(cfg.Auth.JWTSecret), mw.RequireRole(checkout.RoleAdmin))
	handlers.RegisterAdminRoutes(admin, svc, stats, log)

	if cfg.Auth.JWTSecret == "" {
		log.Warnw("auth.jwt_secret is empty, refund and admin endpoints will reject every request")
	}
	return nil
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

func runMetricsServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config) {
	if cfg.MetricsAddr == "" {
		return
	}
	srv := metrics.NewServer(cfg.MetricsAddr)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				return fmt.Errorf("metrics listen: %w", err)
			}
			log.Infow("metrics started", "addr", cfg.MetricsAddr)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("metrics server stopped", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runMetricsServer),
	fx.Invoke(runServer),
)
