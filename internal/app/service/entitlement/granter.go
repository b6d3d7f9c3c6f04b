// Package entitlement provisions buyer accounts and product access.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fatflowers/checkout/internal/app/service/notify"
	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/tool"
)

type Grant struct {
	Buyer        *models.Buyer
	Entitlement  *models.Entitlement
	BuyerCreated bool
	// Created is false when the transaction already had an entitlement.
	Created bool
}

type Granter struct {
	mailer notify.Mailer
	log    *zap.SugaredLogger
	now    func() time.Time
	cost   int
}

func NewGranter(mailer notify.Mailer, log *zap.SugaredLogger) *Granter {
	return &Granter{mailer: mailer, log: log, now: time.Now, cost: bcrypt.DefaultCost}
}

// Grant must run on the Store of the transaction that approved txn so that
// approval and access commit together.
func (g *Granter) Grant(ctx context.Context, st store.Store, txn *models.Transaction) (*Grant, error) {
	existing, err := st.EntitlementByTransaction(ctx, txn.ID)
	switch {
	case err == nil:
		return &Grant{Entitlement: existing}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to look up entitlement: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(txn.BuyerEmail))
	if email == "" {
		return nil, fmt.Errorf("transaction %s has no buyer email", txn.ID)
	}
	hash, err := g.unusablePassword()
	if err != nil {
		return nil, err
	}
	buyer, created, err := st.FirstOrCreateBuyer(ctx, &models.Buyer{
		ID:           tool.GenerateUUIDV7(),
		Email:        email,
		Name:         txn.BuyerName,
		Phone:        txn.BuyerPhone,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision buyer: %w", err)
	}

	ent := &models.Entitlement{
		ID:            tool.GenerateUUIDV7(),
		BuyerID:       buyer.ID,
		ProductID:     txn.ProductID,
		TransactionID: txn.ID,
		Active:        true,
		GrantedAt:     g.now(),
	}
	if err := st.CreateEntitlement(ctx, ent); err != nil {
		return nil, err
	}
	if err := st.SetTransactionBuyer(ctx, txn.ID, buyer.ID); err != nil {
		return nil, err
	}
	txn.BuyerID = &buyer.ID

	logctx.FromCtx(ctx, g.log).Infow("entitlement granted", "transaction_id", txn.ID, "buyer_id", buyer.ID, "product_id", txn.ProductID, "new_buyer", created)
	return &Grant{Buyer: buyer, Entitlement: ent, BuyerCreated: created, Created: true}, nil
}

// Revoke deactivates every entitlement of the transaction.
func (g *Granter) Revoke(ctx context.Context, st store.Store, txnID string) (int64, error) {
	n, err := st.DeactivateEntitlements(ctx, txnID, g.now())
	if err != nil {
		return 0, err
	}
	logctx.FromCtx(ctx, g.log).Infow("entitlements revoked", "transaction_id", txnID, "count", n)
	return n, nil
}

// Welcome sends the access email for a fresh grant. Failures are logged.
func (g *Granter) Welcome(ctx context.Context, txn *models.Transaction, grant *Grant) {
	if grant == nil || !grant.Created {
		return
	}
	data := map[string]string{"product_id": txn.ProductID}
	if grant.BuyerCreated {
		// the buyer sets a password through the reset flow
		data["new_account"] = "true"
	}
	err := g.mailer.Send(ctx, &notify.Email{
		Kind:          notify.EmailWelcome,
		To:            grant.Buyer.Email,
		Name:          grant.Buyer.Name,
		TransactionID: txn.ID,
		Data:          data,
	})
	if err != nil {
		logctx.FromCtx(ctx, g.log).Warnw("welcome email failed", "transaction_id", txn.ID, "err", err)
	}
}

func (g *Granter) unusablePassword() (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(tool.RandomHex(32)), g.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

var Module = fx.Options(
	fx.Provide(NewGranter),
)
