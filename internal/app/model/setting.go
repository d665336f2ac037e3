package model

import "time"

// Known site setting keys.
const (
	SettingShippingFee = "shipping_fee"
	SettingTaxRate     = "tax_rate"
)

// SiteSetting is one row of the site_settings key/value table.
type SiteSetting struct {
	Key       string    `gorm:"primaryKey;type:varchar(64)" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SiteSetting) TableName() string {
	return "site_settings"
}
