package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/queue"
)

type EmailKind string

const (
	EmailWelcome EmailKind = "welcome"
	EmailRefund  EmailKind = "refund"
)

// Email is handed to the delivery service. Templates live there.
type Email struct {
	Kind          EmailKind         `json:"kind"`
	To            string            `json:"to"`
	Name          string            `json:"name"`
	TransactionID string            `json:"transaction_id"`
	Data          map[string]string `json:"data,omitempty"`
}

type Mailer interface {
	Send(ctx context.Context, e *Email) error
}

const jobTypeEmail = "email"

// QueueMailer hands emails to the delivery service through Redis.
type QueueMailer struct {
	queue *queue.Queue
}

func NewQueueMailer(q *queue.Queue) *QueueMailer { return &QueueMailer{queue: q} }

func (m *QueueMailer) Send(ctx context.Context, e *Email) error {
	return m.queue.Enqueue(ctx, jobTypeEmail, e)
}

// LogMailer only logs; used when no delivery service is configured.
type LogMailer struct {
	log *zap.SugaredLogger
}

func NewLogMailer(log *zap.SugaredLogger) *LogMailer { return &LogMailer{log: log} }

func (m *LogMailer) Send(ctx context.Context, e *Email) error {
	logctx.FromCtx(ctx, m.log).Infow("email not delivered, no mail queue configured", "kind", e.Kind, "transaction_id", e.TransactionID)
	return nil
}
