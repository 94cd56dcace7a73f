package models

import (
	"time"
)

// CatalogItem is a purchasable symbolic donation item ("a night of shelter",
// "a warm meal"). Each active item maps to a cached Stripe product/price per
// mode, see StripeProduct.
type CatalogItem struct {
	ID string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	// Key is the stable logical identifier used for the Stripe object cache.
	Key             string    `gorm:"column:key;type:varchar(64);not null;uniqueIndex" json:"key"`
	Name            string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description     string    `gorm:"column:description;type:text" json:"description"`
	UnitAmountCents int64     `gorm:"column:unit_amount_cents;type:bigint;not null" json:"unit_amount_cents"`
	Currency        string    `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Active          bool      `gorm:"column:active;not null;default:true" json:"active"`
	SortOrder       int       `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (CatalogItem) TableName() string { return "catalog_item" }
