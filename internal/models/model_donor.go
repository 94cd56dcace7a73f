package models

import (
	"time"

	"gorm.io/datatypes"
)

type DonorAddress struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Donor is deduplicated by email. Rows are upserted whenever a checkout
// completes or a webhook resolves a Stripe customer, and never deleted.
type Donor struct {
	ID               string                              `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Email            string                              `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	Name             string                              `gorm:"column:name;type:varchar(255)" json:"name"`
	StripeCustomerID *string                             `gorm:"column:stripe_customer_id;type:varchar(255);index" json:"stripe_customer_id"`
	Address          datatypes.JSONType[*DonorAddress]   `gorm:"column:address;type:jsonb;default:'null'" json:"address"`
	CreatedAt        time.Time                           `json:"created_at"`
	UpdatedAt        time.Time                           `json:"updated_at"`
}

func (Donor) TableName() string { return "donor" }
