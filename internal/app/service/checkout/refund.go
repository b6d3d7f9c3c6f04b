package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/internal/app/service/notify"
	"github.com/fatflowers/checkout/internal/app/service/settlement"
	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/metrics"
	"github.com/fatflowers/checkout/pkg/tool"
	"github.com/fatflowers/checkout/pkg/types"
)

// Refund refunds an approved transaction fully or partially. Only platform
// admins and the owning seller may call it, and only one refund per
// transaction may be in flight.
func (s *Service) Refund(ctx context.Context, actor Actor, req *RefundRequest) (*RefundResponse, error) {
	if req == nil || req.TransactionID == "" {
		return nil, invalid("transacao obrigatoria")
	}
	log := logctx.FromCtx(ctx, s.log).With("transaction_id", req.TransactionID, "actor", actor.Subject)

	txn, err := s.st.GetTransaction(ctx, req.TransactionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("transacao nao encontrada")
	}
	if err != nil {
		return nil, provider(err)
	}
	if !actor.CanManage(txn.SellerID) {
		return nil, &Error{Kind: KindForbidden, Message: "sem permissao para reembolsar esta transacao"}
	}
	if txn.Status != types.PaymentStatusApproved {
		return nil, &Error{Kind: KindConflict, Message: "apenas transacoes aprovadas podem ser reembolsadas"}
	}
	if txn.PaymentID() == "" {
		return nil, invalid("transacao sem pagamento no gateway")
	}

	refunded, err := s.st.RefundedTotal(ctx, txn.ID)
	if err != nil {
		return nil, provider(err)
	}
	amount := txn.Amount.Sub(refunded)
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, invalid("valor de reembolso invalido")
		}
		amount = req.Amount.Round(2)
	}
	if !amount.IsPositive() {
		return nil, &Error{Kind: KindConflict, Message: "transacao ja reembolsada"}
	}

	refund := &models.Refund{
		ID:            tool.GenerateUUIDV7(),
		TransactionID: txn.ID,
		Amount:        amount,
		Reason:        req.Reason,
		Status:        models.RefundStatusPending,
		RequestedBy:   actor.Subject,
	}
	switch err := s.st.BeginRefund(ctx, refund, txn.Amount); {
	case errors.Is(err, store.ErrRefundInProgress):
		return nil, &Error{Kind: KindConflict, Message: "ja existe um reembolso em andamento", Err: err}
	case errors.Is(err, store.ErrRefundExceeds):
		return nil, &Error{Kind: KindInvalid, Message: "valor excede o saldo reembolsavel", Err: err}
	case err != nil:
		return nil, provider(fmt.Errorf("failed to begin refund: %w", err))
	}

	adapter, _, err := s.resolve(ctx, txn.SellerID, txn.Gateway)
	if err != nil {
		s.finishRefund(ctx, refund, models.RefundStatusRefused, "", "gateway indisponivel")
		return nil, err
	}

	// a nil amount asks the provider for a full refund
	var partial *decimal.Decimal
	if !(refunded.IsZero() && amount.Equal(txn.Amount)) {
		partial = &amount
	}
	start := time.Now()
	result, err := adapter.Refund(ctx, txn.PaymentID(), partial)
	metrics.ObserveGatewayCall(string(txn.Gateway), "refund", start, err)
	if err != nil {
		log.Errorw("gateway refund failed", "err", err)
		s.finishRefund(ctx, refund, models.RefundStatusRefused, "", err.Error())
		return nil, provider(err)
	}

	resp := &RefundResponse{RefundID: refund.ID, TransactionID: txn.ID, Amount: amount, TransactionStatus: txn.Status, ProviderPending: result.Pending}
	if !result.Success {
		log.Warnw("refund declined by gateway", "reason", result.Error)
		s.finishRefund(ctx, refund, models.RefundStatusRefused, result.RefundID, result.Error)
		resp.Status, resp.Error = string(models.RefundStatusRefused), result.Error
		return resp, nil
	}
	s.finishRefund(ctx, refund, models.RefundStatusApproved, result.RefundID, "")
	resp.Status = string(models.RefundStatusApproved)

	if refunded.Add(amount).GreaterThanOrEqual(txn.Amount) {
		out, err := s.applier.Apply(ctx, txn.ID, types.PaymentStatusRefunded, settlement.Evidence{
			Source: types.TransitionSourceRefund,
			Extra:  map[string]any{"refund_id": refund.ID, "requested_by": actor.Subject},
		})
		if err != nil {
			// the provider notification retries the transition
			log.Errorw("refund transition not applied", "err", err)
		} else {
			resp.TransactionStatus = out.Transaction.Status
		}
		return resp, nil
	}

	// partial refunds keep the sale and its access
	if err := s.mailer.Send(ctx, &notify.Email{
		Kind:          notify.EmailRefund,
		To:            txn.BuyerEmail,
		Name:          txn.BuyerName,
		TransactionID: txn.ID,
		Data:          map[string]string{"amount": amount.StringFixed(2), "currency": txn.Currency, "partial": "true"},
	}); err != nil {
		log.Warnw("refund email failed", "err", err)
	}
	log.Infow("partial refund approved", "amount", amount.StringFixed(2))
	return resp, nil
}

func (s *Service) finishRefund(ctx context.Context, r *models.Refund, status models.RefundStatus, providerID, reason string) {
	now := s.now()
	r.Status, r.ProviderRefundID, r.FailureReason, r.ProcessedAt = status, providerID, reason, &now
	if err := s.st.FinishRefund(ctx, r); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to finish refund", "refund_id", r.ID, "err", err)
	}
}
