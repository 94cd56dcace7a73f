package models

import (
	"time"

	"github.com/harborlight/donations/pkg/types"

	"gorm.io/datatypes"
)

// StripeWebhookEvent is the append-only idempotency ledger of delivered
// provider events. An insert collision on stripe_event_id means the event was
// already received; a stored succeeded status means it must not run again.
type StripeWebhookEvent struct {
	ID            string                   `gorm:"column:id;primary_key;type:uuid" json:"id"`
	StripeEventID string                   `gorm:"column:stripe_event_id;type:varchar(255);not null;uniqueIndex" json:"stripe_event_id"`
	Type          string                   `gorm:"column:type;type:varchar(128);not null;index" json:"type"`
	Status        types.WebhookEventStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	// Error keeps the truncated failure text for support diagnosis.
	Error       *string        `gorm:"column:error;type:text" json:"error"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	ReceivedAt  time.Time      `gorm:"column:received_at;not null" json:"received_at"`
	ProcessedAt *time.Time     `gorm:"column:processed_at;default:null" json:"processed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (StripeWebhookEvent) TableName() string { return "stripe_webhook_event" }
