// Package webhook_handler reconciles provider notifications with stored
// transactions. A notification is logged and acknowledged synchronously; the
// status is then re-read from the provider on a background runner.
package webhook_handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/internal/app/service/settlement"
	"github.com/fatflowers/checkout/internal/app/service/webhook_log"
	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/metrics"
	"github.com/fatflowers/checkout/pkg/types"
)

// signatureHeaders are checked in order; providers disagree on the name.
var signatureHeaders = []string{
	"Stripe-Signature",
	"X-Signature",
	"X-Webhook-Signature",
	"X-Hub-Signature-256",
	"X-Hypercash-Signature",
	"X-Beehive-Signature",
	"Signature",
}

func SignatureFrom(h http.Header) string {
	for _, name := range signatureHeaders {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// Delivery is one inbound notification as received over HTTP.
type Delivery struct {
	Gateway string
	Payload []byte
	Headers http.Header
	Query   url.Values
	TraceID string
}

// Outcome codes written to the webhook log.
const (
	outcomeUnknownGateway = "unsupported gateway"
	outcomeBadSignature   = "invalid signature"
	outcomeBusy           = "reconciliation queue full"
)

type Reconciler struct {
	cfg      *config.Config
	st       store.Store
	gateways gateway.Resolver
	applier  *settlement.Applier
	logs     *webhook_log.Service
	runner   *Runner
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewReconciler(cfg *config.Config, st store.Store, gateways gateway.Resolver, applier *settlement.Applier,
	logs *webhook_log.Service, runner *Runner, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{cfg: cfg, st: st, gateways: gateways, applier: applier, logs: logs, runner: runner, log: log, now: time.Now}
}

// Receive runs the synchronous half of a delivery and returns the HTTP
// status for the provider. Everything after the 200 happens on the runner.
func (r *Reconciler) Receive(ctx context.Context, d *Delivery) int {
	log := logctx.FromCtx(ctx, r.log).With("gateway", d.Gateway)
	gw, known := types.ParseGateway(d.Gateway)

	var note *Notification
	if known {
		n, err := ParseNotification(gw, d.Payload, d.Query)
		if err == nil {
			note = n
		}
	}
	entry := &webhook_log.Entry{Gateway: string(gw), TraceID: d.TraceID, Payload: d.Payload, Headers: d.Headers}
	if note != nil {
		entry.ExternalID = note.ExternalID
	}
	row, err := r.logs.Record(ctx, entry)
	if err != nil {
		log.Errorw("webhook not recorded", "err", err)
		metrics.ObserveWebhook(string(gw), "log_failed")
		return http.StatusInternalServerError
	}

	if !known {
		log.Warnw("webhook for unsupported gateway", "webhook_log_id", row.ID)
		r.logs.Finish(ctx, row.ID, http.StatusBadRequest, outcomeUnknownGateway)
		metrics.ObserveWebhook("unknown", "unknown_gateway")
		return http.StatusOK
	}

	signature := SignatureFrom(d.Headers)
	if gw == types.GatewayStripe && r.cfg.Webhook.StripeSecret != "" {
		if !gateway.VerifyTimestampedSignature(r.cfg.Webhook.StripeSecret, d.Payload, signature, r.tolerance(), r.now()) {
			if !r.cfg.Webhook.AllowSignatureMismatch {
				log.Warnw("platform signature rejected", "webhook_log_id", row.ID)
				r.logs.Finish(ctx, row.ID, http.StatusUnauthorized, outcomeBadSignature)
				metrics.ObserveWebhook(string(gw), "bad_signature")
				return http.StatusUnauthorized
			}
			log.Warnw("platform signature mismatch accepted by debug flag", "webhook_log_id", row.ID)
		}
	}

	logID, traceID := row.ID, d.TraceID
	hook := &gateway.Webhook{
		Payload:   d.Payload,
		Signature: signature,
		RequestID: d.Headers.Get("X-Request-Id"),
		Query:     d.Query,
	}
	err = r.runner.Submit(string(gw)+":"+logID, func(ctx context.Context) {
		ctx = logctx.WithTraceID(ctx, traceID)
		code, outcome := r.Reconcile(ctx, gw, hook, note)
		r.logs.Finish(ctx, logID, code, outcome)
	})
	if err != nil {
		log.Errorw("webhook not queued", "webhook_log_id", row.ID, "err", err)
		r.logs.Finish(ctx, row.ID, http.StatusServiceUnavailable, outcomeBusy)
		metrics.ObserveWebhook(string(gw), "saturated")
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Reconcile re-reads the payment from the provider and applies the status.
// It returns the code and message written to the webhook log.
func (r *Reconciler) Reconcile(ctx context.Context, gw types.Gateway, hook *gateway.Webhook, note *Notification) (code int, outcome string) {
	log := logctx.FromCtx(ctx, r.log).With("gateway", gw)
	defer func() {
		if p := recover(); p != nil {
			log.Errorw("reconciliation panicked", "panic", p)
			code, outcome = http.StatusInternalServerError, fmt.Sprintf("panic: %v", p)
		}
		metrics.ObserveWebhook(string(gw), outcomeLabel(code, outcome))
	}()

	if note == nil {
		return http.StatusBadRequest, ErrNoPaymentID.Error()
	}
	log = log.With("payment_id", note.ExternalID, "event", note.Event)

	txn, err := r.st.TransactionByGatewayPayment(ctx, gw, note.ExternalID)
	if errors.Is(err, store.ErrNotFound) {
		log.Infow("webhook for unknown payment")
		return http.StatusOK, "transaction not found"
	}
	if err != nil {
		log.Errorw("transaction lookup failed", "err", err)
		return http.StatusInternalServerError, err.Error()
	}
	log = log.With("transaction_id", txn.ID)

	creds, err := r.st.GatewayCredentials(ctx, txn.SellerID, gw)
	if err != nil {
		log.Errorw("seller credentials unavailable", "seller_id", txn.SellerID, "err", err)
		return http.StatusInternalServerError, "seller credentials unavailable"
	}
	adapter, err := r.gateways.Resolve(gw, creds)
	if err != nil {
		log.Errorw("seller gateway misconfigured", "seller_id", txn.SellerID, "err", err)
		return http.StatusInternalServerError, err.Error()
	}
	if !adapter.VerifyWebhook(hook) {
		if !r.cfg.Webhook.AllowSignatureMismatch {
			log.Warnw("seller signature rejected")
			return http.StatusUnauthorized, outcomeBadSignature
		}
		log.Warnw("seller signature mismatch accepted by debug flag")
	}

	start := time.Now()
	status, err := adapter.GetStatus(ctx, note.ExternalID)
	metrics.ObserveGatewayCall(string(gw), "status", start, err)
	if err != nil {
		log.Errorw("status lookup failed", "err", err)
		return http.StatusInternalServerError, "status lookup failed: " + err.Error()
	}
	if status == txn.Status {
		return http.StatusOK, "already " + string(status)
	}
	if status == types.PaymentStatusPending {
		// providers never move a settled payment back to pending
		return http.StatusOK, fmt.Sprintf("provider still pending, stored %s", txn.Status)
	}

	out, err := r.applier.Apply(ctx, txn.ID, status, settlement.Evidence{
		Source:           types.TransitionSourceWebhook,
		CustomerRef:      note.CustomerRef,
		PaymentMethodRef: note.PaymentMethodRef,
		Extra:            map[string]any{"event": note.Event, "payment_id": note.ExternalID},
	})
	switch {
	case errors.Is(err, settlement.ErrIllegalTransition):
		return http.StatusOK, "ignored: " + err.Error()
	case err != nil:
		log.Errorw("transition failed", "to", status, "err", err)
		return http.StatusInternalServerError, err.Error()
	case !out.Applied:
		return http.StatusOK, "already " + string(out.Transaction.Status)
	}
	return http.StatusOK, fmt.Sprintf("%s -> %s", out.From, out.To)
}

func (r *Reconciler) tolerance() time.Duration {
	if r.cfg.Webhook.Tolerance > 0 {
		return r.cfg.Webhook.Tolerance
	}
	return gateway.DefaultSignatureTolerance
}

func outcomeLabel(code int, outcome string) string {
	switch {
	case code >= http.StatusInternalServerError:
		return "error"
	case code == http.StatusUnauthorized:
		return "bad_signature"
	case code >= http.StatusBadRequest:
		return "invalid"
	case strings.Contains(outcome, "->"):
		return "applied"
	case strings.HasPrefix(outcome, "ignored"):
		return "ignored"
	}
	return "noop"
}

var Module = fx.Options(
	fx.Provide(NewRunner),
	fx.Provide(NewReconciler),
)
