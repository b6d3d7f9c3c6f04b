package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/checkout/internal/app/api/server"
	"github.com/fatflowers/checkout/internal/app/service/checkout"
	"github.com/fatflowers/checkout/internal/app/service/currency"
	"github.com/fatflowers/checkout/internal/app/service/entitlement"
	"github.com/fatflowers/checkout/internal/app/service/fraud"
	"github.com/fatflowers/checkout/internal/app/service/notify"
	"github.com/fatflowers/checkout/internal/app/service/settlement"
	"github.com/fatflowers/checkout/internal/app/service/statistics"
	"github.com/fatflowers/checkout/internal/app/service/webhook_handler"
	"github.com/fatflowers/checkout/internal/app/service/webhook_log"
	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/platform/db"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/internal/platform/redisclient"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	redisclient.Module,
	store.Module,
	gateway.Module,
	fraud.Module,
	currency.Module,
	notify.Module,
	entitlement.Module,
	settlement.Module,
	checkout.Module,
	statistics.Module,
	webhook_log.Module,
	webhook_handler.Module,
	server.Module,
)
