package models

import (
	"time"

	"github.com/harborlight/donations/pkg/types"
)

// DonationSubscription mirrors a Stripe subscription. It is upserted on every
// relevant webhook event (checkout completion, invoice paid/failed,
// subscription updated/deleted).
type DonationSubscription struct {
	ID                   string                   `gorm:"column:id;primary_key;type:uuid" json:"id"`
	DonorID              string                   `gorm:"column:donor_id;type:uuid;not null;index" json:"donor_id"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;type:varchar(255);not null;uniqueIndex" json:"stripe_subscription_id"`
	Status               types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	StripePriceID        string                   `gorm:"column:stripe_price_id;type:varchar(255);not null" json:"stripe_price_id"`
	AmountCents          int64                    `gorm:"column:amount_cents;type:bigint;not null" json:"amount_cents"`
	Currency             string                   `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Mode                 types.StripeMode         `gorm:"column:stripe_mode;type:varchar(8);not null" json:"stripe_mode"`
	// LastInvoiceStatus is the provider status of the most recent invoice
	// event seen for this subscription.
	LastInvoiceStatus *string                  `gorm:"column:last_invoice_status;type:varchar(32)" json:"last_invoice_status"`
	CancelAt          *time.Time               `gorm:"column:cancel_at;default:null" json:"cancel_at"`
	CanceledAt        *time.Time               `gorm:"column:canceled_at;default:null" json:"canceled_at"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

func (DonationSubscription) TableName() string { return "donation_subscription" }

func (s *DonationSubscription) Active() bool {
	return s != nil && (s.Status == types.SubscriptionStatusActive ||
		s.Status == types.SubscriptionStatusTrialing ||
		s.Status == types.SubscriptionStatusPastDue)
}
