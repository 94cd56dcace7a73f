package models

import "time"

// DonationIntentItem is an immutable line-item snapshot taken when the intent
// is created. Name and unit amount are copied so later catalog edits never
// change what the donor agreed to pay.
type DonationIntentItem struct {
	ID              string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	IntentID        string    `gorm:"column:intent_id;type:uuid;not null;index" json:"intent_id"`
	CatalogItemID   string    `gorm:"column:catalog_item_id;type:uuid;not null" json:"catalog_item_id"`
	Name            string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Quantity        int64     `gorm:"column:quantity;type:bigint;not null" json:"quantity"`
	UnitAmountCents int64     `gorm:"column:unit_amount_cents;type:bigint;not null" json:"unit_amount_cents"`
	LineAmountCents int64     `gorm:"column:line_amount_cents;type:bigint;not null" json:"line_amount_cents"`
	CreatedAt       time.Time `json:"created_at"`
}

func (DonationIntentItem) TableName() string { return "donation_intent_item" }
