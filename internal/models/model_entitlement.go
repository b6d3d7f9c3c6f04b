package models

import "time"

// Entitlement grants a buyer access to a product. One per approved transaction.
type Entitlement struct {
	ID            string     `gorm:"column:id;primary_key;type:uuid" json:"id"`
	BuyerID       string     `gorm:"column:buyer_id;type:varchar(64);not null;index" json:"buyer_id"`
	ProductID     string     `gorm:"column:product_id;type:varchar(64);not null" json:"product_id"`
	TransactionID string     `gorm:"column:transaction_id;type:varchar(64);not null;uniqueIndex" json:"transaction_id"`
	Active        bool       `gorm:"column:active;not null" json:"active"`
	GrantedAt     time.Time  `gorm:"column:granted_at;not null" json:"granted_at"`
	RevokedAt     *time.Time `gorm:"column:revoked_at" json:"revoked_at"`
}

func (Entitlement) TableName() string { return "entitlement" }

// Buyer is the account auto-provisioned on first purchase.
type Buyer struct {
	ID           string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Email        string    `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	Name         string    `gorm:"column:name;type:varchar(255)" json:"name"`
	Phone        string    `gorm:"column:phone;type:varchar(32)" json:"phone"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Buyer) TableName() string { return "buyer" }
