package storage

import (
	"time"
)

// Rates maps a currency code to its rate against BaseCurrency.
type Rates map[string]float64

// Clone returns a copy that is safe to hand out to readers.
func (r Rates) Clone() Rates {
	out := make(Rates, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SystemSetting is a key/value pair owned by the settings backend.
type SystemSetting struct {
	ID           int       `json:"id"`
	SettingKey   string    `json:"settingKey"`
	SettingValue string    `json:"settingValue"`
	Description  string    `json:"description,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

// SnapshotInfo describes what the in-memory state currently holds.
type SnapshotInfo struct {
	RatesCount          int       `json:"ratesCount"`
	SettingsCount       int       `json:"settingsCount"`
	RatesLastRefresh    time.Time `json:"ratesLastRefresh"`
	SettingsLastRefresh time.Time `json:"settingsLastRefresh"`
}
