package webhook_handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/pkg/config"
)

var (
	ErrSaturated = errors.New("reconciliation queue is full")
	ErrStopped   = errors.New("reconciliation runner stopped")
)

type job struct {
	name string
	fn   func(ctx context.Context)
}

// Runner executes reconciliation jobs on a fixed pool, detached from the
// request that submitted them.
type Runner struct {
	workers int
	timeout time.Duration
	log     *zap.SugaredLogger

	mu      sync.RWMutex
	jobs    chan job
	stopped bool
	base    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newRunner(workers, queueSize int, timeout time.Duration, log *zap.SugaredLogger) *Runner {
	if workers <= 0 {
		workers = 8
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{workers: workers, timeout: timeout, log: log, jobs: make(chan job, queueSize), base: ctx, cancel: cancel}
}

// NewRunner ties the pool to the fx lifecycle. Stop drains queued jobs until
// the stop deadline, then cancels whatever is still running.
func NewRunner(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) *Runner {
	r := newRunner(cfg.Webhook.Workers, cfg.Webhook.QueueSize, cfg.Webhook.JobTimeout, log)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.Start()
			return nil
		},
		OnStop: r.Stop,
	})
	return r
}

func (r *Runner) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	r.log.Infow("reconciliation runner started", "workers", r.workers, "queue", cap(r.jobs))
}

// Submit queues fn without blocking.
func (r *Runner) Submit(name string, fn func(ctx context.Context)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrStopped
	}
	select {
	case r.jobs <- job{name: name, fn: fn}:
		return nil
	default:
		return ErrSaturated
	}
}

func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return fmt.Errorf("reconciliation runner drain: %w", ctx.Err())
	}
}

func (r *Runner) work() {
	defer r.wg.Done()
	for j := range r.jobs {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			r.log.Errorw("reconciliation job panicked", "job", j.name, "panic", p)
		}
	}()
	j.fn(ctx)
}
