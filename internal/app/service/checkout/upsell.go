package checkout

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	"github.com/fatflowers/checkout/internal/app/service/fraud"
	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/tool"
	"github.com/fatflowers/checkout/pkg/types"
)

// Upsell charges the card kept on file by an approved purchase for another
// product of the same seller. Coupons and order bumps do not apply.
func (s *Service) Upsell(ctx context.Context, req *UpsellRequest) (*PaymentResponse, error) {
	if req == nil || req.ParentTransactionID == "" || req.ProductHash == "" {
		return nil, invalid("transacao original e produto obrigatorios")
	}
	log := logctx.FromCtx(ctx, s.log).With("parent_transaction_id", req.ParentTransactionID)
	if err := s.verifyUpsellToken(req.UpsellToken, req.ParentTransactionID); err != nil {
		log.Warnw("upsell token rejected", "err", err)
		return nil, &Error{Kind: KindForbidden, Message: "oferta expirada ou invalida", Err: err}
	}
	parent, err := s.st.GetTransaction(ctx, req.ParentTransactionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("transacao original nao encontrada")
	}
	if err != nil {
		return nil, provider(err)
	}
	if parent.Status != types.PaymentStatusApproved {
		return nil, invalid("transacao original nao aprovada")
	}
	if !parent.HasCardOnFile() {
		return nil, invalid("compra com um clique indisponivel para esta transacao")
	}

	product, err := s.activeProduct(ctx, req.ProductHash)
	if err != nil {
		return nil, err
	}
	if product.SellerID != parent.SellerID {
		return nil, notFound("produto nao encontrado")
	}
	if !product.MethodEnabled(parent.Method) {
		return nil, &Error{Kind: KindMethodDisabled, Message: "metodo de pagamento indisponivel para este produto"}
	}
	base, offerID, err := s.basePrice(ctx, product, req.OfferHash)
	if err != nil {
		return nil, err
	}
	quote := Price(base, nil, nil)

	verdict, err := s.screener.Screen(ctx, &fraud.Input{Buyer: parent.Buyer(), Amount: quote.Total, Method: parent.Method})
	if err != nil {
		return nil, provider(fmt.Errorf("fraud screen failed: %w", err))
	}
	if !verdict.Approved {
		log.Warnw("upsell blocked by fraud screen", "score", verdict.Score)
		return nil, &Error{Kind: KindFraud, Message: msgFraud}
	}

	adapter, creds, err := s.resolve(ctx, parent.SellerID, parent.Gateway)
	if err != nil {
		return nil, err
	}
	if !gateway.Supports(adapter.Name(), parent.Method) {
		return nil, &Error{Kind: KindMethodDisabled, Message: "metodo de pagamento indisponivel para este produto", Err: gateway.ErrUnsupportedMethod}
	}

	parentID := parent.ID
	txn := &models.Transaction{
		ID:                  tool.GenerateUUIDV7(),
		SellerID:            product.SellerID,
		ProductID:           product.ID,
		OfferID:             offerID,
		BuyerID:             parent.BuyerID,
		Gateway:             parent.Gateway,
		Method:              parent.Method,
		Status:              types.PaymentStatusPending,
		Amount:              quote.Total,
		Discount:            quote.Discount,
		Currency:            product.Currency,
		Installments:        1,
		ParentTransactionID: &parentID,
		CustomerRef:         parent.CustomerRef,
		PaymentMethodRef:    parent.PaymentMethodRef,
	}
	txn.SetBuyer(parent.Buyer())
	txn.SetUTM(parent.UTM())
	meta := models.TransactionMetadata{OfferHash: req.OfferHash}
	if err := s.settleCurrency(ctx, txn, &meta, creds); err != nil {
		return nil, err
	}
	txn.Metadata = datatypes.NewJSONType(meta)

	if err := s.st.CreateTransaction(ctx, txn); err != nil {
		return nil, provider(fmt.Errorf("failed to persist upsell: %w", err))
	}
	log.Infow("one-click upsell", "transaction_id", txn.ID, "product_id", product.ID)

	return s.charge(ctx, adapter, txn, &gateway.PaymentInput{
		Reference:        txn.ID,
		Amount:           txn.Amount,
		Currency:         txn.Currency,
		Method:           txn.Method,
		Description:      product.Name,
		Customer:         parent.Buyer(),
		Installments:     1,
		NotificationURL:  s.cfg.NotificationURL(string(adapter.Name())),
		CardBrand:        parent.CardBrand,
		CustomerRef:      parent.CustomerRef,
		PaymentMethodRef: parent.PaymentMethodRef,
	})
}
