// Package settlement moves transactions through the payment state machine.
// Checkout, webhook reconciliation and refunds all go through Apply so that
// side effects run once per transition no matter which path won.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/checkout/internal/app/service/entitlement"
	"github.com/fatflowers/checkout/internal/app/service/notify"
	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/metrics"
	"github.com/fatflowers/checkout/pkg/tool"
	"github.com/fatflowers/checkout/pkg/types"
)

var ErrIllegalTransition = errors.New("illegal status transition")

// Evidence describes what triggered a transition.
type Evidence struct {
	Source types.TransitionSource
	// Reason is stored as failure reason on refusals.
	Reason           string
	CustomerRef      string
	PaymentMethodRef string
	Extra            map[string]any
}

// Outcome reports what Apply did. Applied is false when the transaction
// already had the target status or another caller won the race.
type Outcome struct {
	Applied     bool
	From        types.PaymentStatus
	To          types.PaymentStatus
	Transaction *models.Transaction
	Grant       *entitlement.Grant
	Revoked     int64
}

type Applier struct {
	st         store.Store
	granter    *entitlement.Granter
	mailer     notify.Mailer
	dispatcher notify.Dispatcher
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewApplier(st store.Store, granter *entitlement.Granter, mailer notify.Mailer, dispatcher notify.Dispatcher, log *zap.SugaredLogger) *Applier {
	return &Applier{st: st, granter: granter, mailer: mailer, dispatcher: dispatcher, log: log, now: time.Now}
}

// Apply moves transaction txnID to status to. The status update, the audit
// log and the entitlement change commit together; emails and downstream
// events follow the commit and never fail the call.
func (a *Applier) Apply(ctx context.Context, txnID string, to types.PaymentStatus, ev Evidence) (*Outcome, error) {
	log := logctx.FromCtx(ctx, a.log).With("transaction_id", txnID, "to", to, "source", ev.Source)

	var out *Outcome
	err := a.st.Tx(ctx, func(tx store.Store) error {
		out = nil
		cur, err := tx.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if cur.Status == to {
			out = &Outcome{From: cur.Status, To: to, Transaction: cur}
			return nil
		}
		if !types.CanTransition(cur.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, cur.Status, to)
		}

		after := a.stamp(cur, to, ev)
		ok, err := tx.TransitionTransaction(ctx, after, cur.Status)
		if err != nil {
			return fmt.Errorf("failed to transition transaction: %w", err)
		}
		if !ok {
			// lost the race; the winner runs the side effects
			out = &Outcome{From: cur.Status, To: to, Transaction: cur}
			return nil
		}

		extra := datatypes.JSONMap{}
		for k, v := range ev.Extra {
			extra[k] = v
		}
		if err := tx.AppendTransactionLog(ctx, &models.TransactionLog{
			ID:            tool.GenerateUUIDV7(),
			TransactionID: txnID,
			Gateway:       cur.Gateway,
			FromStatus:    cur.Status,
			ToStatus:      to,
			Source:        ev.Source,
			Before:        datatypes.NewJSONType(cur),
			After:         datatypes.NewJSONType(after),
			Extra:         extra,
		}); err != nil {
			return fmt.Errorf("failed to append transaction log: %w", err)
		}

		out = &Outcome{Applied: true, From: cur.Status, To: to, Transaction: after}
		switch to {
		case types.PaymentStatusApproved:
			grant, err := a.granter.Grant(ctx, tx, after)
			if err != nil {
				return fmt.Errorf("failed to grant entitlement: %w", err)
			}
			out.Grant = grant
		case types.PaymentStatusRefunded, types.PaymentStatusChargeback:
			n, err := a.granter.Revoke(ctx, tx, txnID)
			if err != nil {
				return fmt.Errorf("failed to revoke entitlements: %w", err)
			}
			out.Revoked = n
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			log.Warnw("transition ignored", "err", err)
		}
		return nil, err
	}

	if !out.Applied {
		log.Infow("transition already applied", "status", out.Transaction.Status)
		return out, nil
	}

	metrics.ObserveTransition(string(out.From), string(out.To), string(ev.Source))
	log.Infow("transaction transitioned", "from", out.From)
	a.afterCommit(ctx, out)
	return out, nil
}

func (a *Applier) stamp(cur *models.Transaction, to types.PaymentStatus, ev Evidence) *models.Transaction {
	after := cur.Clone()
	after.Status = to
	now := a.now()
	switch to {
	case types.PaymentStatusApproved:
		if after.PaidAt == nil {
			after.PaidAt = &now
		}
		if ev.CustomerRef != "" {
			after.CustomerRef = ev.CustomerRef
		}
		if ev.PaymentMethodRef != "" {
			after.PaymentMethodRef = ev.PaymentMethodRef
		}
	case types.PaymentStatusRefunded:
		if after.RefundedAt == nil {
			after.RefundedAt = &now
		}
	case types.PaymentStatusRefused:
		if ev.Reason != "" {
			after.FailureReason = ev.Reason
		}
	}
	return after
}

func (a *Applier) afterCommit(ctx context.Context, out *Outcome) {
	txn := out.Transaction
	log := logctx.FromCtx(ctx, a.log).With("transaction_id", txn.ID)

	switch out.To {
	case types.PaymentStatusApproved:
		a.granter.Welcome(ctx, txn, out.Grant)
	case types.PaymentStatusRefunded:
		err := a.mailer.Send(ctx, &notify.Email{
			Kind:          notify.EmailRefund,
			To:            txn.BuyerEmail,
			Name:          txn.BuyerName,
			TransactionID: txn.ID,
			Data:          map[string]string{"amount": txn.Amount.StringFixed(2), "currency": txn.Currency},
		})
		if err != nil {
			log.Warnw("refund email failed", "err", err)
		}
	}

	if t, ok := notify.EventFor(out.To); ok {
		if err := a.dispatcher.Publish(ctx, notify.NewEvent(t, txn)); err != nil {
			log.Warnw("sale event not delivered", "event", t, "err", err)
		}
	}
}

var Module = fx.Options(
	fx.Provide(NewApplier),
)
