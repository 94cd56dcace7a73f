package models

import (
	"time"

	"github.com/harborlight/donations/pkg/types"
)

// StripeProduct caches the Stripe product (and, for catalog items, the
// one-time price) created for a logical key, scoped by mode so test and live
// catalogs never collide.
type StripeProduct struct {
	ID              string           `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Mode            types.StripeMode `gorm:"column:stripe_mode;type:varchar(8);not null;uniqueIndex:unique_mode_key,priority:1" json:"stripe_mode"`
	Key             string           `gorm:"column:key;type:varchar(64);not null;uniqueIndex:unique_mode_key,priority:2" json:"key"`
	StripeProductID string           `gorm:"column:stripe_product_id;type:varchar(255);not null" json:"stripe_product_id"`
	// StripePriceID is the cached one-time price for the key's current
	// amount; nil for keys that only anchor dynamic or recurring prices.
	StripePriceID   *string   `gorm:"column:stripe_price_id;type:varchar(255)" json:"stripe_price_id"`
	PriceAmountCents int64    `gorm:"column:price_amount_cents;type:bigint;not null;default:0" json:"price_amount_cents"`
	PriceCurrency   string    `gorm:"column:price_currency;type:varchar(8)" json:"price_currency"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (StripeProduct) TableName() string { return "stripe_product" }
