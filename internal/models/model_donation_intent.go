package models

import (
	"time"

	"github.com/harborlight/donations/pkg/types"

	"gorm.io/datatypes"
)

// DonationIntentMetadata holds request context captured at checkout time.
// The IP is stored hashed only.
type DonationIntentMetadata struct {
	IPHash    string `json:"ip_hash,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// DonationIntent is the local record of a single attempted one-time checkout.
// It is created before the Stripe session call so a crash after the call can
// still be reconciled from the webhook.
type DonationIntent struct {
	ID               string             `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Status           types.IntentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	TotalAmountCents int64              `gorm:"column:total_amount_cents;type:bigint;not null" json:"total_amount_cents"`
	Currency         string             `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	// CustomAmountCents is the free-form extra donation on top of catalog
	// lines; zero means none.
	CustomAmountCents int64            `gorm:"column:custom_amount_cents;type:bigint;not null;default:0" json:"custom_amount_cents"`
	StripeSessionID   *string          `gorm:"column:stripe_session_id;type:varchar(255);index" json:"stripe_session_id"`
	Mode              types.StripeMode `gorm:"column:stripe_mode;type:varchar(8);not null" json:"stripe_mode"`

	Metadata  datatypes.JSONType[*DonationIntentMetadata] `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt time.Time                                   `json:"created_at"`
	UpdatedAt time.Time                                   `json:"updated_at"`
}

func (DonationIntent) TableName() string { return "donation_intent" }

// Terminal reports whether the intent reached a final state.
func (i *DonationIntent) Terminal() bool {
	return i != nil && (i.Status == types.IntentStatusPaid || i.Status == types.IntentStatusFailed)
}
