package models

import (
	"time"

	"github.com/harborlight/donations/pkg/types"
)

// StripeAmountPrice caches the Stripe price created for an
// (mode, currency, interval, amount) tuple, used for monthly amount tiers.
// The unique index plus a deterministic provider idempotency key make
// concurrent callers converge on one external object.
type StripeAmountPrice struct {
	ID              string              `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Mode            types.StripeMode    `gorm:"column:stripe_mode;type:varchar(8);not null;uniqueIndex:unique_mode_amount,priority:1" json:"stripe_mode"`
	Currency        string              `gorm:"column:currency;type:varchar(8);not null;uniqueIndex:unique_mode_amount,priority:2" json:"currency"`
	Interval        types.PriceInterval `gorm:"column:interval;type:varchar(16);not null;uniqueIndex:unique_mode_amount,priority:3" json:"interval"`
	AmountCents     int64               `gorm:"column:amount_cents;type:bigint;not null;uniqueIndex:unique_mode_amount,priority:4" json:"amount_cents"`
	StripePriceID   string              `gorm:"column:stripe_price_id;type:varchar(255);not null" json:"stripe_price_id"`
	StripeProductID string              `gorm:"column:stripe_product_id;type:varchar(255);not null" json:"stripe_product_id"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func (StripeAmountPrice) TableName() string { return "stripe_amount_price" }
