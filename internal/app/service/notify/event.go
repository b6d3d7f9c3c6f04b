// Package notify delivers sale events to sellers and attribution platforms
// and buyer emails. Every delivery is best-effort.
package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/tool"
	"github.com/fatflowers/checkout/pkg/types"
)

type EventType string

const (
	EventSaleApproved   EventType = "sale.approved"
	EventSaleRefunded   EventType = "sale.refunded"
	EventSaleChargeback EventType = "sale.chargeback"
	EventSaleRefused    EventType = "sale.refused"
	EventSaleCancelled  EventType = "sale.cancelled"
	EventSaleExpired    EventType = "sale.expired"
)

// EventFor maps a settled status to its event, if any.
func EventFor(status types.PaymentStatus) (EventType, bool) {
	switch status {
	case types.PaymentStatusApproved:
		return EventSaleApproved, true
	case types.PaymentStatusRefunded:
		return EventSaleRefunded, true
	case types.PaymentStatusChargeback:
		return EventSaleChargeback, true
	case types.PaymentStatusRefused:
		return EventSaleRefused, true
	case types.PaymentStatusCancelled:
		return EventSaleCancelled, true
	case types.PaymentStatusExpired:
		return EventSaleExpired, true
	}
	return "", false
}

type EventBuyer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Event is the payload forwarded downstream. It never carries tax ids or
// card data.
type Event struct {
	ID                  string              `json:"id"`
	Type                EventType           `json:"type"`
	SellerID            string              `json:"seller_id"`
	TransactionID       string              `json:"transaction_id"`
	ParentTransactionID string              `json:"parent_transaction_id,omitempty"`
	ProductID           string              `json:"product_id"`
	Gateway             types.Gateway       `json:"gateway"`
	Method              types.PaymentMethod `json:"method"`
	Amount              decimal.Decimal     `json:"amount"`
	Currency            string              `json:"currency"`
	Buyer               EventBuyer          `json:"buyer"`
	UTM                 types.UTM           `json:"utm"`
	OccurredAt          time.Time           `json:"occurred_at"`
}

func NewEvent(t EventType, txn *models.Transaction) *Event {
	e := &Event{
		ID:            tool.GenerateUUIDV7(),
		Type:          t,
		SellerID:      txn.SellerID,
		TransactionID: txn.ID,
		ProductID:     txn.ProductID,
		Gateway:       txn.Gateway,
		Method:        txn.Method,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		Buyer:         EventBuyer{Name: txn.BuyerName, Email: txn.BuyerEmail, Phone: txn.BuyerPhone},
		UTM:           txn.UTM(),
		OccurredAt:    time.Now(),
	}
	if txn.ParentTransactionID != nil {
		e.ParentTransactionID = *txn.ParentTransactionID
	}
	return e
}

// Sink is one downstream destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e *Event) error
}

// Dispatcher publishes events to every sink.
type Dispatcher interface {
	Publish(ctx context.Context, e *Event) error
}
