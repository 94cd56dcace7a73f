package models

import "time"

// DonorManageToken is a single-use, time-limited credential for reaching the
// billing portal without an account login. Only the hash is stored; the raw
// token lives in the emailed link. Consumption happens exactly once via a
// conditional update on consumed_at.
type DonorManageToken struct {
	ID         string     `gorm:"column:id;primary_key;type:uuid" json:"id"`
	DonorID    string     `gorm:"column:donor_id;type:uuid;not null;index" json:"donor_id"`
	TokenHash  string     `gorm:"column:token_hash;type:varchar(64);not null;uniqueIndex" json:"token_hash"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	ConsumedAt *time.Time `gorm:"column:consumed_at;default:null" json:"consumed_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (DonorManageToken) TableName() string { return "donor_manage_token" }

func (t *DonorManageToken) Usable(now time.Time) bool {
	return t != nil && t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}
