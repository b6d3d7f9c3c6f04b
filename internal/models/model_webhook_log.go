package models

import (
	"encoding/base64"
	"time"

	"gorm.io/datatypes"
)

// WebhookLog is the append-only audit row for one inbound provider notification.
// Only ResponseCode, Outcome and ProcessedAt are written after insert.
type WebhookLog struct {
	ID              string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Gateway         string         `gorm:"column:gateway;type:varchar(32);not null;index" json:"gateway"`
	TraceID         string         `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	ExternalID      string         `gorm:"column:external_id;type:varchar(128);index" json:"external_id"`
	Payload         string         `gorm:"column:payload;type:text" json:"payload"`
	// PayloadEncoding is "base64" when the body could not be stored as text.
	PayloadEncoding string         `gorm:"column:payload_encoding;type:varchar(16);not null;default:''" json:"payload_encoding,omitempty"`
	Headers         datatypes.JSON `gorm:"column:headers;type:jsonb" json:"headers"`
	ResponseCode    *int           `gorm:"column:response_code" json:"response_code"`
	Outcome         string         `gorm:"column:outcome;type:text" json:"outcome"`
	ReceivedAt      time.Time      `gorm:"column:received_at;not null" json:"received_at"`
	ProcessedAt     *time.Time     `gorm:"column:processed_at" json:"processed_at"`
}

func (WebhookLog) TableName() string { return "webhook_log" }

const PayloadEncodingBase64 = "base64"

// RawPayload returns the body exactly as it was received.
func (l *WebhookLog) RawPayload() ([]byte, error) {
	if l.PayloadEncoding == PayloadEncodingBase64 {
		return base64.StdEncoding.DecodeString(l.Payload)
	}
	return []byte(l.Payload), nil
}
