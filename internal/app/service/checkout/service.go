// Package checkout prices purchases server side, charges them through the
// seller's gateway and runs refunds.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/checkout/internal/app/service/currency"
	"github.com/fatflowers/checkout/internal/app/service/fraud"
	"github.com/fatflowers/checkout/internal/app/service/notify"
	"github.com/fatflowers/checkout/internal/app/service/settlement"
	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/metrics"
	"github.com/fatflowers/checkout/pkg/tool"
	"github.com/fatflowers/checkout/pkg/types"
)

const maxInstallments = 12

// Orchestrator is the checkout surface used by the HTTP handlers.
type Orchestrator interface {
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*PaymentResponse, error)
	Upsell(ctx context.Context, req *UpsellRequest) (*PaymentResponse, error)
	Status(ctx context.Context, id string) (*StatusResponse, error)
	Refund(ctx context.Context, actor Actor, req *RefundRequest) (*RefundResponse, error)
	ScanTransactions(ctx context.Context, req *store.ScanRequest) ([]*models.Transaction, int64, error)
}

// Converter turns product prices into the seller's settlement currency.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal, error)
}

type Service struct {
	cfg       *config.Config
	st        store.Store
	gateways  gateway.Resolver
	screener  fraud.Screener
	converter Converter
	applier   *settlement.Applier
	mailer    notify.Mailer
	log       *zap.SugaredLogger
	now       func() time.Time
}

var _ Orchestrator = (*Service)(nil)

func NewService(cfg *config.Config, st store.Store, gateways gateway.Resolver, screener fraud.Screener, converter Converter,
	applier *settlement.Applier, mailer notify.Mailer, log *zap.SugaredLogger) *Service {
	return &Service{
		cfg:       cfg,
		st:        st,
		gateways:  gateways,
		screener:  screener,
		converter: converter,
		applier:   applier,
		mailer:    mailer,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*PaymentResponse, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	log := logctx.FromCtx(ctx, s.log).With("product_hash", req.ProductHash, "method", req.Method)

	product, err := s.activeProduct(ctx, req.ProductHash)
	if err != nil {
		return nil, err
	}
	if !product.MethodEnabled(req.Method) {
		return nil, &Error{Kind: KindMethodDisabled, Message: "metodo de pagamento indisponivel para este produto"}
	}

	base, offerID, err := s.basePrice(ctx, product, req.OfferHash)
	if err != nil {
		return nil, err
	}

	bumpIDs := lo.Uniq(lo.Compact(req.OrderBumpIDs))
	var bumps []*models.OrderBump
	if len(bumpIDs) > 0 {
		if bumps, err = s.st.ActiveOrderBumps(ctx, product.ID, bumpIDs); err != nil {
			return nil, provider(fmt.Errorf("failed to load order bumps: %w", err))
		}
	}

	coupon, err := s.coupon(ctx, product, req.CouponCode)
	if err != nil {
		return nil, err
	}
	quote := Price(base, coupon, bumps)

	verdict, err := s.screener.Screen(ctx, &fraud.Input{Buyer: req.Buyer, Amount: quote.Total, Method: req.Method})
	if err != nil {
		return nil, provider(fmt.Errorf("fraud screen failed: %w", err))
	}
	if !verdict.Approved {
		log.Warnw("checkout blocked by fraud screen", "score", verdict.Score)
		return nil, &Error{Kind: KindFraud, Message: msgFraud}
	}

	adapter, creds, err := s.adapterFor(ctx, product.SellerID, req.Method)
	if err != nil {
		return nil, err
	}
	if !gateway.Supports(adapter.Name(), req.Method) {
		return nil, &Error{Kind: KindMethodDisabled, Message: "metodo de pagamento indisponivel para este produto", Err: gateway.ErrUnsupportedMethod}
	}

	txn := &models.Transaction{
		ID:           tool.GenerateUUIDV7(),
		SellerID:     product.SellerID,
		ProductID:    product.ID,
		OfferID:      offerID,
		Gateway:      adapter.Name(),
		Method:       req.Method,
		Status:       types.PaymentStatusPending,
		Amount:       quote.Total,
		Discount:     quote.Discount,
		Currency:     product.Currency,
		Installments: req.Installments,
	}
	txn.SetBuyer(req.Buyer)
	txn.SetUTM(req.UTM)
	meta := models.TransactionMetadata{OrderBumpIDs: lo.Map(bumps, func(b *models.OrderBump, _ int) string { return b.ID }), OfferHash: req.OfferHash}
	if coupon != nil {
		txn.CouponID = &coupon.ID
		meta.CouponCode = coupon.Code
	}
	if err := s.settleCurrency(ctx, txn, &meta, creds); err != nil {
		return nil, err
	}
	txn.Metadata = datatypes.NewJSONType(meta)

	if err := s.st.CreateTransaction(ctx, txn); err != nil {
		return nil, provider(fmt.Errorf("failed to persist transaction: %w", err))
	}

	resp, err := s.charge(ctx, adapter, txn, &gateway.PaymentInput{
		Reference:       txn.ID,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		Method:          req.Method,
		Description:     product.Name,
		Customer:        req.Buyer,
		Installments:    req.Installments,
		NotificationURL: s.cfg.NotificationURL(string(adapter.Name())),
		Card:            req.Card,
		CardToken:       req.CardToken,
		CardBrand:       req.CardBrand,
		SaveCard:        req.SaveCard,
	})
	if err != nil {
		return nil, err
	}

	if coupon != nil && resp.Status != types.PaymentStatusRefused {
		if err := s.st.IncrementCouponUses(ctx, coupon.ID); err != nil {
			// the charge stands; a concurrent redemption took the last use
			log.Warnw("coupon usage not counted", "coupon_id", coupon.ID, "transaction_id", txn.ID, "err", err)
		}
	}
	return resp, nil
}

func validateCreate(req *CreatePaymentRequest) error {
	if req == nil {
		return invalid("requisicao invalida")
	}
	if strings.TrimSpace(req.ProductHash) == "" {
		return invalid("produto obrigatorio")
	}
	if !req.Method.Valid() {
		return invalid("metodo de pagamento invalido")
	}
	if strings.TrimSpace(req.Buyer.Name) == "" {
		return invalid("nome do comprador obrigatorio")
	}
	if _, err := mail.ParseAddress(req.Buyer.Email); err != nil {
		return invalid("email do comprador invalido")
	}
	if req.Method == types.PaymentMethodCreditCard && req.Card == nil && req.CardToken == "" {
		return invalid("dados do cartao obrigatorios")
	}
	if req.Installments <= 0 {
		req.Installments = 1
	}
	if req.Installments > maxInstallments || (req.Installments > 1 && req.Method != types.PaymentMethodCreditCard) {
		return invalid("numero de parcelas invalido")
	}
	return nil
}

func (s *Service) activeProduct(ctx context.Context, hash string) (*models.Product, error) {
	p, err := s.st.ProductByHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !p.Active) {
		return nil, notFound("produto nao encontrado")
	}
	if err != nil {
		return nil, provider(fmt.Errorf("failed to load product: %w", err))
	}
	return p, nil
}

// basePrice returns the offer price when offerHash names an active offer of
// the product, else the product price.
func (s *Service) basePrice(ctx context.Context, p *models.Product, offerHash string) (decimal.Decimal, *string, error) {
	if offerHash == "" {
		return p.Price, nil, nil
	}
	o, err := s.st.OfferByHash(ctx, p.ID, offerHash)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return p.Price, nil, nil
	case err != nil:
		return decimal.Zero, nil, provider(fmt.Errorf("failed to load offer: %w", err))
	case !o.Active:
		return p.Price, nil, nil
	}
	return o.Price, &o.ID, nil
}

func (s *Service) coupon(ctx context.Context, p *models.Product, code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	c, err := s.st.CouponByCode(ctx, p.SellerID, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalid(models.ErrCouponWrongSeller.Error())
	}
	if err != nil {
		return nil, provider(fmt.Errorf("failed to load coupon: %w", err))
	}
	if err := c.Validate(p.SellerID, p.ID, s.now()); err != nil {
		return nil, &Error{Kind: KindInvalid, Message: err.Error(), Err: err}
	}
	return c, nil
}

// adapterFor resolves the seller's provider for method with its stored
// credentials. Credential problems surface here, before anything is saved.
func (s *Service) adapterFor(ctx context.Context, sellerID string, method types.PaymentMethod) (gateway.Gateway, types.GatewayCredentials, error) {
	name, err := s.st.SellerGateway(ctx, sellerID, method)
	if errors.Is(err, store.ErrNotFound) {
		return nil, types.GatewayCredentials{}, &Error{Kind: KindMethodDisabled, Message: "metodo de pagamento indisponivel para este vendedor", Err: err}
	}
	if err != nil {
		return nil, types.GatewayCredentials{}, provider(fmt.Errorf("failed to load seller gateway: %w", err))
	}
	return s.resolve(ctx, sellerID, name)
}

func (s *Service) resolve(ctx context.Context, sellerID string, name types.Gateway) (gateway.Gateway, types.GatewayCredentials, error) {
	creds, err := s.st.GatewayCredentials(ctx, sellerID, name)
	if errors.Is(err, store.ErrNotFound) {
		logctx.FromCtx(ctx, s.log).Errorw("gateway credentials missing", "seller_id", sellerID, "gateway", name)
		return nil, creds, misconfigured(string(name), err)
	}
	if err != nil {
		return nil, creds, provider(fmt.Errorf("failed to load gateway credentials: %w", err))
	}
	adapter, err := s.gateways.Resolve(name, creds)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("gateway misconfigured", "seller_id", sellerID, "gateway", name, "err", err)
		return nil, creds, misconfigured(string(name), err)
	}
	return adapter, creds, nil
}

// settleCurrency converts the quote when the seller's account settles in a
// different currency, keeping the original price in the metadata.
func (s *Service) settleCurrency(ctx context.Context, txn *models.Transaction, meta *models.TransactionMetadata, creds types.GatewayCredentials) error {
	to := creds.SettlementCurrency()
	if strings.EqualFold(txn.Currency, to) {
		return nil
	}
	amount, rate, err := s.converter.Convert(ctx, txn.Amount, txn.Currency, to)
	if err != nil {
		return provider(fmt.Errorf("failed to convert %s to %s: %w", txn.Currency, to, err))
	}
	original := txn.Amount
	meta.OriginalAmount = &original
	meta.OriginalCurrency = txn.Currency
	meta.ExchangeRate = &rate
	txn.Amount = amount
	txn.Discount = txn.Discount.Mul(rate).Round(2)
	txn.Currency = strings.ToUpper(to)
	return nil
}

// charge calls the provider for a persisted pending transaction and records
// the outcome. Declines come back as a refused response, not an error.
func (s *Service) charge(ctx context.Context, adapter gateway.Gateway, txn *models.Transaction, in *gateway.PaymentInput) (*PaymentResponse, error) {
	log := logctx.FromCtx(ctx, s.log).With("transaction_id", txn.ID, "gateway", txn.Gateway)

	start := time.Now()
	result, err := adapter.CreatePayment(ctx, in)
	metrics.ObserveGatewayCall(string(txn.Gateway), "create", start, err)
	if err != nil {
		log.Errorw("gateway create payment failed", "err", err)
		s.refuse(ctx, txn, "falha de comunicacao com o gateway")
		metrics.ObservePayment(string(txn.Gateway), string(txn.Method), string(types.PaymentStatusRefused))
		return nil, provider(err)
	}

	if result.GatewayPaymentID != "" {
		txn.GatewayPaymentID = &result.GatewayPaymentID
	}
	txn.PixCode, txn.PixQRCode = result.PixCode, result.PixQRCode
	txn.BoletoURL, txn.BoletoBarcode = result.BoletoURL, result.BoletoBarcode
	txn.CardBrand, txn.CardLastFour = result.CardBrand, result.CardLastFour
	txn.CustomerRef = lo.CoalesceOrEmpty(result.CustomerRef, txn.CustomerRef)
	txn.PaymentMethodRef = lo.CoalesceOrEmpty(result.PaymentMethodRef, txn.PaymentMethodRef)
	if !result.Success {
		txn.FailureReason = result.Error
	}
	if err := s.st.SaveArtifacts(ctx, txn); err != nil {
		log.Errorw("failed to save payment artifacts", "payment_id", result.GatewayPaymentID, "err", err)
		return nil, provider(err)
	}

	status := types.PaymentStatusPending
	switch {
	case !result.Success || result.Status == types.PaymentStatusRefused:
		s.refuse(ctx, txn, result.Error)
		status = types.PaymentStatusRefused
	case result.Status == types.PaymentStatusApproved:
		out, err := s.applier.Apply(ctx, txn.ID, types.PaymentStatusApproved, settlement.Evidence{
			Source:           types.TransitionSourceCheckout,
			CustomerRef:      result.CustomerRef,
			PaymentMethodRef: result.PaymentMethodRef,
		})
		if err != nil {
			// stays pending; the provider notification settles it
			log.Errorw("synchronous approval not applied", "err", err)
		} else {
			status = out.Transaction.Status
		}
	}
	metrics.ObservePayment(string(txn.Gateway), string(txn.Method), string(status))
	log.Infow("payment created", "status", status, "payment_id", result.GatewayPaymentID, "amount", txn.Amount.StringFixed(2))

	var upsellToken string
	if status == types.PaymentStatusApproved && txn.HasCardOnFile() {
		if upsellToken, err = s.issueUpsellToken(txn.ID); err != nil {
			log.Warnw("failed to issue upsell token", "err", err)
		}
	}

	return &PaymentResponse{
		TransactionID: txn.ID,
		Status:        status,
		UpsellToken:   upsellToken,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		PixCode:       result.PixCode,
		PixQRCode:     result.PixQRCode,
		BoletoURL:     result.BoletoURL,
		BoletoBarcode: result.BoletoBarcode,
		CardLastFour:  result.CardLastFour,
		CardBrand:     result.CardBrand,
		Error:         result.Error,
	}, nil
}

func (s *Service) refuse(ctx context.Context, txn *models.Transaction, reason string) {
	if _, err := s.applier.Apply(ctx, txn.ID, types.PaymentStatusRefused, settlement.Evidence{
		Source: types.TransitionSourceCheckout,
		Reason: reason,
	}); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to mark transaction refused", "transaction_id", txn.ID, "err", err)
	}
}

func (s *Service) Status(ctx context.Context, id string) (*StatusResponse, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id obrigatorio")
	}
	txn, err := s.st.GetTransaction(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("transacao nao encontrada")
	}
	if err != nil {
		return nil, provider(err)
	}
	return &StatusResponse{
		TransactionID: txn.ID,
		Status:        txn.Status,
		Method:        txn.Method,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		PixCode:       txn.PixCode,
		PixQRCode:     txn.PixQRCode,
		BoletoURL:     txn.BoletoURL,
		PaidAt:        txn.PaidAt,
	}, nil
}

func (s *Service) ScanTransactions(ctx context.Context, req *store.ScanRequest) ([]*models.Transaction, int64, error) {
	if req == nil {
		req = &store.ScanRequest{}
	}
	return s.st.ScanTransactions(ctx, req)
}

var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(func(s *Service) Orchestrator { return s }),
	fx.Provide(func(c *currency.Converter) Converter { return c }),
)
