package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/checkout/pkg/types"
)

// TransactionLog records every applied status transition, used for troubleshooting.
type TransactionLog struct {
	ID            string                 `gorm:"column:id;primary_key;type:uuid"`
	TransactionID string                 `gorm:"column:transaction_id;type:varchar(64);not null;index"`
	Gateway       types.Gateway          `gorm:"column:gateway;type:varchar(32);not null"`
	FromStatus    types.PaymentStatus    `gorm:"column:from_status;type:varchar(16);not null"`
	ToStatus      types.PaymentStatus    `gorm:"column:to_status;type:varchar(16);not null"`
	Source        types.TransitionSource `gorm:"column:source;type:varchar(16);not null"`
	// Before 变更前的交易快照
	Before datatypes.JSONType[*Transaction] `gorm:"column:before;type:jsonb;default:'null'"`
	// After 变更后的交易快照
	After     datatypes.JSONType[*Transaction] `gorm:"column:after;type:jsonb;default:'null'"`
	Extra     datatypes.JSONMap                `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time                        `json:"created_at"`
}

func (TransactionLog) TableName() string {
	return "transaction_log"
}
