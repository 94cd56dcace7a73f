package models

import (
	"time"

	"github.com/harborlight/donations/pkg/types"
)

// DonationPayment is one successful (or later refunded) charge. It links to a
// DonationIntent for one-time gifts or a DonationSubscription for recurring
// invoices. The unique index on provider_payment_id is the idempotency guard
// against overlapping webhook deliveries.
type DonationPayment struct {
	ID             string  `gorm:"column:id;primary_key;type:uuid" json:"id"`
	DonorID        string  `gorm:"column:donor_id;type:uuid;not null;index" json:"donor_id"`
	IntentID       *string `gorm:"column:intent_id;type:uuid;index" json:"intent_id"`
	SubscriptionID *string `gorm:"column:subscription_id;type:uuid;index" json:"subscription_id"`
	// ProviderPaymentID is the Stripe payment_intent id for one-time charges
	// and the invoice id for recurring charges.
	ProviderPaymentID string              `gorm:"column:provider_payment_id;type:varchar(255);not null;uniqueIndex" json:"provider_payment_id"`
	ProviderChargeID  *string             `gorm:"column:provider_charge_id;type:varchar(255);index" json:"provider_charge_id"`
	AmountCents       int64               `gorm:"column:amount_cents;type:bigint;not null" json:"amount_cents"`
	Currency          string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status            types.PaymentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	PaidAt            time.Time           `gorm:"column:paid_at;not null" json:"paid_at"`
	RefundedAt        *time.Time          `gorm:"column:refunded_at;default:null" json:"refunded_at"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func (DonationPayment) TableName() string { return "donation_payment" }
