package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/queue"
)

const jobTypeEvent = "sale_event"

// DirectDispatcher delivers in the caller's goroutine. A failing sink does
// not stop the others.
type DirectDispatcher struct {
	sinks []Sink
	log   *zap.SugaredLogger
}

func NewDirectDispatcher(log *zap.SugaredLogger, sinks ...Sink) *DirectDispatcher {
	return &DirectDispatcher{sinks: sinks, log: log}
}

func (d *DirectDispatcher) Publish(ctx context.Context, e *Event) error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, e); err != nil {
			logctx.FromCtx(ctx, d.log).Warnw("event delivery failed", "sink", s.Name(), "event", e.Type, "transaction_id", e.TransactionID, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (d *DirectDispatcher) sink(name string) Sink {
	for _, s := range d.sinks {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

type eventJob struct {
	Sink  string `json:"sink"`
	Event *Event `json:"event"`
}

// QueueDispatcher enqueues one job per sink so a retry never re-delivers to
// a sink that already succeeded.
type QueueDispatcher struct {
	queue  *queue.Queue
	direct *DirectDispatcher
}

func NewQueueDispatcher(q *queue.Queue, direct *DirectDispatcher) *QueueDispatcher {
	return &QueueDispatcher{queue: q, direct: direct}
}

func (d *QueueDispatcher) Publish(ctx context.Context, e *Event) error {
	var errs []error
	for _, s := range d.direct.sinks {
		if err := d.queue.Enqueue(ctx, jobTypeEvent, eventJob{Sink: s.Name(), Event: e}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handle is the queue.Handler delivering one queued event.
func (d *QueueDispatcher) Handle(ctx context.Context, job *queue.Job) error {
	var ej eventJob
	if err := json.Unmarshal(job.Payload, &ej); err != nil {
		return fmt.Errorf("unmarshal event job: %w", err)
	}
	s := d.direct.sink(ej.Sink)
	if s == nil || ej.Event == nil {
		// sink removed since enqueue; nothing to retry
		return nil
	}
	return s.Deliver(ctx, ej.Event)
}
