// Package queue is a small Redis list job queue with retries and a
// dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/pkg/tool"
)

const (
	// MaxRetries is the number of attempts before a job is dead-lettered.
	MaxRetries = 5
	// RetryBackoff is the pause after a failed job or dequeue error.
	RetryBackoff = 2 * time.Second
	// PollTimeout bounds one blocking pop so shutdown is noticed.
	PollTimeout = 5 * time.Second
)

// Job is the envelope stored in the list.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJob wraps payload in a fresh envelope.
func NewJob(jobType string, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        tool.GenerateUUIDV7(),
		Type:      jobType,
		Payload:   body,
		CreatedAt: time.Now(),
	}, nil
}

// Queue pushes to and pops from one Redis list. Dead letters go to key+":dlq".
type Queue struct {
	client *redis.Client
	key    string
	log    *zap.SugaredLogger
}

func New(client *redis.Client, key string, log *zap.SugaredLogger) *Queue {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Queue{client: client, key: key, log: log}
}

func (q *Queue) Key() string    { return q.key }
func (q *Queue) DLQKey() string { return q.key + ":dlq" }

func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any) error {
	job, err := NewJob(jobType, payload)
	if err != nil {
		return err
	}
	return q.push(ctx, q.key, job)
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.log.Debugw("enqueued job", "queue", key, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt)
	return nil
}

// Dequeue blocks up to timeout. It returns nil, nil when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.log.Warnw("invalid job payload", "queue", q.key, "err", err)
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues job with its attempt incremented, or dead-letters it
// once MaxRetries is reached.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, q.DLQKey(), job); err != nil {
			q.log.Errorw("dlq push failed", "job_id", job.ID, "err", err)
			return err
		}
		q.log.Warnw("job moved to DLQ", "job_id", job.ID, "attempt", job.Attempt)
		return nil
	}
	return q.push(ctx, q.key, job)
}

// Handler processes one job. A returned error schedules a retry.
type Handler func(ctx context.Context, job *Job) error

// Worker drains a queue with handlers keyed by job type.
type Worker struct {
	queue    *Queue
	handlers map[string]Handler
	log      *zap.SugaredLogger
	backoff  time.Duration
}

func NewWorker(q *Queue, log *zap.SugaredLogger) *Worker {
	return &Worker{queue: q, handlers: map[string]Handler{}, log: log, backoff: RetryBackoff}
}

func (w *Worker) Handle(jobType string, h Handler) {
	w.handlers[jobType] = h
}

// Process runs the handler registered for job.Type.
func (w *Worker) Process(ctx context.Context, job *Job) error {
	h, ok := w.handlers[job.Type]
	if !ok {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	return h(ctx, job)
}

// Run loops until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.log.Infow("queue worker stopping", "queue", w.queue.Key())
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Warnw("dequeue error", "queue", w.queue.Key(), "err", err)
			sleep(ctx, w.backoff)
			continue
		}
		if job == nil {
			continue
		}

		if err := w.Process(ctx, job); err != nil {
			w.log.Errorw("job failed", "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "err", err)
			if reErr := w.queue.Retry(ctx, job); reErr != nil {
				w.log.Errorw("retry enqueue failed", "job_id", job.ID, "err", reErr)
			}
			sleep(ctx, w.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
