package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRefused  RefundStatus = "refused"
)

// Refund is one settlement attempt against an approved transaction.
type Refund struct {
	ID               string          `gorm:"column:id;primary_key;type:uuid" json:"id"`
	TransactionID    string          `gorm:"column:transaction_id;type:varchar(64);not null;index" json:"transaction_id"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Reason           string          `gorm:"column:reason;type:text" json:"reason"`
	Status           RefundStatus    `gorm:"column:status;type:varchar(16);not null" json:"status"`
	ProviderRefundID string          `gorm:"column:provider_refund_id;type:varchar(128)" json:"provider_refund_id"`
	FailureReason    string          `gorm:"column:failure_reason;type:text" json:"failure_reason,omitempty"`
	RequestedBy      string          `gorm:"column:requested_by;type:varchar(64)" json:"requested_by"`
	ProcessedAt      *time.Time      `gorm:"column:processed_at" json:"processed_at"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (Refund) TableName() string { return "refund" }
