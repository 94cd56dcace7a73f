package models

import "time"

// AppSetting is a key/value row for runtime configuration that must rotate
// without a redeploy (Stripe mode and per-mode keys).
type AppSetting struct {
	Key       string    `gorm:"column:key;type:varchar(64);primary_key" json:"key"`
	Value     string    `gorm:"column:value;type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AppSetting) TableName() string { return "app_setting" }
