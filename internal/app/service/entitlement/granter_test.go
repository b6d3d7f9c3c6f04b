package entitlement

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fatflowers/checkout/internal/app/service/notify"
	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/app/store/storetest"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/types"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []*notify.Email
}

func (m *fakeMailer) Send(_ context.Context, e *notify.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

func newGranter(m notify.Mailer) *Granter {
	g := NewGranter(m, zap.NewNop().Sugar())
	g.cost = bcrypt.MinCost
	return g
}

func approvedTxn(st *storetest.MemStore, id, email string) *models.Transaction {
	txn := &models.Transaction{
		ID: id, SellerID: "seller-1", ProductID: "prod-1",
		Gateway: types.GatewayMercadoPago, Method: types.PaymentMethodPix,
		Status: types.PaymentStatusApproved, Currency: "BRL",
	}
	txn.SetBuyer(types.Buyer{Name: "Maria Souza", Email: email})
	st.PutTransaction(txn)
	return txn
}

func TestGrant_ProvisionsBuyerOnce(t *testing.T) {
	st := storetest.New()
	mailer := &fakeMailer{}
	g := newGranter(mailer)
	ctx := context.Background()

	txn := approvedTxn(st, "txn-1", " Maria@Example.com ")
	grant, err := g.Grant(ctx, st, txn)
	require.NoError(t, err)
	require.True(t, grant.Created)
	require.True(t, grant.BuyerCreated)
	require.Equal(t, "maria@example.com", grant.Buyer.Email)
	require.NotEmpty(t, grant.Buyer.PasswordHash)
	require.Equal(t, grant.Buyer.ID, *txn.BuyerID)

	stored, err := st.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	require.Equal(t, grant.Buyer.ID, *stored.BuyerID)

	again, err := g.Grant(ctx, st, txn)
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Len(t, st.Entitlements(), 1)

	// a second purchase reuses the buyer
	second, err := g.Grant(ctx, st, approvedTxn(st, "txn-2", "maria@example.com"))
	require.NoError(t, err)
	require.True(t, second.Created)
	require.False(t, second.BuyerCreated)
	require.Equal(t, grant.Buyer.ID, second.Buyer.ID)
	require.Len(t, st.Buyers(), 1)
	require.Len(t, st.Entitlements(), 2)
}

func TestGrant_RollsBackWithStoreTx(t *testing.T) {
	st := storetest.New()
	g := newGranter(&fakeMailer{})
	txn := approvedTxn(st, "txn-1", "maria@example.com")

	st.FailNext("CreateEntitlement", store.ErrNotFound)
	err := st.Tx(context.Background(), func(tx store.Store) error {
		_, err := g.Grant(context.Background(), tx, txn)
		return err
	})
	require.Error(t, err)
	require.Empty(t, st.Buyers())
	require.Empty(t, st.Entitlements())
}

func TestRevoke(t *testing.T) {
	st := storetest.New()
	g := newGranter(&fakeMailer{})
	txn := approvedTxn(st, "txn-1", "maria@example.com")
	_, err := g.Grant(context.Background(), st, txn)
	require.NoError(t, err)

	n, err := g.Revoke(context.Background(), st, "txn-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	ents := st.Entitlements()
	require.False(t, ents[0].Active)
	require.NotNil(t, ents[0].RevokedAt)

	n, _ = g.Revoke(context.Background(), st, "txn-1")
	require.Zero(t, n)
}

func TestWelcome(t *testing.T) {
	mailer := &fakeMailer{}
	g := newGranter(mailer)
	txn := &models.Transaction{ID: "txn-1", ProductID: "prod-1"}

	g.Welcome(context.Background(), txn, &Grant{Created: false})
	require.Empty(t, mailer.sent)

	g.Welcome(context.Background(), txn, &Grant{Created: true, BuyerCreated: true, Buyer: &models.Buyer{Email: "maria@example.com"}})
	require.Len(t, mailer.sent, 1)
	require.Equal(t, notify.EmailWelcome, mailer.sent[0].Kind)
	require.Equal(t, "true", mailer.sent[0].Data["new_account"])
}
