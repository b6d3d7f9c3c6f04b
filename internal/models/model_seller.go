package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/checkout/pkg/types"
)

// GatewayCredential stores one seller's secrets for one provider.
type GatewayCredential struct {
	ID          string                                       `gorm:"column:id;primary_key;type:uuid" json:"id"`
	SellerID    string                                       `gorm:"column:seller_id;type:varchar(64);not null;uniqueIndex:unique_seller_gateway,priority:1" json:"seller_id"`
	Gateway     types.Gateway                                `gorm:"column:gateway;type:varchar(32);not null;uniqueIndex:unique_seller_gateway,priority:2" json:"gateway"`
	Credentials datatypes.JSONType[types.GatewayCredentials] `gorm:"column:credentials;type:jsonb;not null" json:"-"`
	CreatedAt   time.Time                                    `json:"created_at"`
	UpdatedAt   time.Time                                    `json:"updated_at"`
}

func (GatewayCredential) TableName() string { return "gateway_credential" }

// SellerGateway routes one payment method of a seller to a provider.
type SellerGateway struct {
	SellerID string              `gorm:"column:seller_id;type:varchar(64);primary_key" json:"seller_id"`
	Method   types.PaymentMethod `gorm:"column:method;type:varchar(16);primary_key" json:"method"`
	Gateway  types.Gateway       `gorm:"column:gateway;type:varchar(32);not null" json:"gateway"`
}

func (SellerGateway) TableName() string { return "seller_gateway" }

// SellerWebhook is a seller-configured downstream URL receiving sale events.
type SellerWebhook struct {
	ID       string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	SellerID string `gorm:"column:seller_id;type:varchar(64);not null;index" json:"seller_id"`
	URL      string `gorm:"column:url;type:text;not null" json:"url"`
	Secret   string `gorm:"column:secret;type:varchar(255)" json:"-"`
	Active   bool   `gorm:"column:active;not null" json:"active"`
}

func (SellerWebhook) TableName() string { return "seller_webhook" }
