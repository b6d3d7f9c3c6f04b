package notify

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/queue"
)

const (
	eventsQueueKey = "checkout:events"
	emailsQueueKey = "checkout:emails"
)

func NewMailer(rdb *redis.Client, log *zap.SugaredLogger) Mailer {
	if rdb == nil {
		return NewLogMailer(log)
	}
	return NewQueueMailer(queue.New(rdb, emailsQueueKey, log))
}

// NewDispatcher delivers directly without Redis. With Redis it queues
// events and runs a worker for the lifetime of the app.
func NewDispatcher(lc fx.Lifecycle, cfg *config.Config, st store.Store, rdb *redis.Client, log *zap.SugaredLogger) Dispatcher {
	direct := NewDirectDispatcher(log,
		NewSellerWebhookForwarder(st, cfg.Notify.ForwardTimeout),
		NewAnalyticsForwarder(cfg.Notify.AnalyticsURL, cfg.Notify.AnalyticsToken, cfg.Notify.ForwardTimeout),
	)
	if rdb == nil {
		return direct
	}

	q := queue.New(rdb, eventsQueueKey, log)
	d := NewQueueDispatcher(q, direct)
	w := queue.NewWorker(q, log)
	w.Handle(jobTypeEvent, d.Handle)

	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Run(ctx)
			}()
			log.Infow("event worker started", "queue", eventsQueueKey)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				log.Warnw("event worker did not stop in time")
			}
			return nil
		},
	})
	return d
}

var Module = fx.Options(
	fx.Provide(NewMailer),
	fx.Provide(NewDispatcher),
)
