package models

import "time"

// RateLimitBucket is one fixed window per (event, identifier). The identifier
// is always a hash, never a raw IP or email. Rows are mutated by a single
// atomic INSERT .. ON CONFLICT statement, see the ratelimit service.
type RateLimitBucket struct {
	Event      string `gorm:"column:event;type:varchar(64);not null;primaryKey;priority:1" json:"event"`
	Identifier string `gorm:"column:identifier;type:varchar(64);not null;primaryKey;priority:2" json:"identifier"`
	// Count is the number of requests seen in the current window.
	Count         int64     `gorm:"column:count;type:bigint;not null" json:"count"`
	WindowStartAt time.Time `gorm:"column:window_start_at;not null" json:"window_start_at"`
	// PrevRequestAt is the request time before the current one, kept so the
	// cooldown check can compare against it after the atomic update.
	PrevRequestAt *time.Time `gorm:"column:prev_request_at;default:null" json:"prev_request_at"`
	LastRequestAt time.Time  `gorm:"column:last_request_at;not null" json:"last_request_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (RateLimitBucket) TableName() string { return "rate_limit_bucket" }
