package main

// @title           Checkout API
// @version         1.0
// @description     Multi-tenant checkout: payments through seller gateways, webhook reconciliation, refunds and access grants.
// @termsOfService  http://example.com/terms/

// @contact.name   API Support
// @contact.url    http://www.example.com/support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8888
// @BasePath  /

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/internal/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	a := fx.New(
		app.Module,
		// fx lifecycle events go through the app logger at debug level
		fx.WithLogger(func(l *zap.SugaredLogger) fxevent.Logger {
			zl := &fxevent.ZapLogger{Logger: l.Desugar().Named("fx")}
			zl.UseLogLevel(zap.DebugLevel)
			return zl
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("start checkout api: %w", err)
	}

	sig := <-a.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop checkout api: %w", err)
	}
	if sig.ExitCode != 0 {
		return fmt.Errorf("checkout api exited with code %d", sig.ExitCode)
	}
	return nil
}
