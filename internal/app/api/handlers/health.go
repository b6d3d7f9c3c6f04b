package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/response"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

type Health struct {
	env    string
	checks map[string]Check
}

// NewHealth checks postgres, and redis when it is configured.
func NewHealth(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *Health {
	h := &Health{env: string(cfg.Env), checks: map[string]Check{}}
	if db != nil {
		h.checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if rdb != nil {
		h.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return h
}

type HealthStatus struct {
	Status string            `json:"status"`
	Env    string            `json:"env"`
	Checks map[string]string `json:"checks,omitempty"`
}

// @Summary      Liveness
// @Tags         System
// @Produce      json
// @Success      200  {object}  handlers.HealthStatus
// @Router       /healthz [get]
func (h *Health) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(HealthStatus{Status: "ok", Env: h.env}))
}

// @Summary      Readiness
// @Description  Pings postgres and redis. 503 when any of them is down.
// @Tags         System
// @Produce      json
// @Success      200  {object}  handlers.HealthStatus
// @Failure      503  {object}  handlers.HealthStatus
// @Router       /readyz [get]
func (h *Health) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	st := HealthStatus{Status: "ok", Env: h.env, Checks: map[string]string{}}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			st.Checks[name] = err.Error()
			st.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		st.Checks[name] = "ok"
	}
	if code != http.StatusOK {
		c.JSON(code, response.ErrorT(response.APIResponseCodeUnavailable, st))
		return
	}
	c.JSON(code, response.OKT(st))
}

func RegisterHealthRoutes(r gin.IRouter, h *Health) {
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
}
