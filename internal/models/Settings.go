package models

import "time"

// SettingsKey is the fixed identifier of the single settings record.
const SettingsKey = "device"

// Settings is process-wide configuration, persisted to the local store.
// Defaults are applied on first load.
type Settings struct {
	Key string `json:"-" gorm:"primaryKey"`

	Units              string `json:"units"`               // "metric" or "imperial"
	BackgroundTracking bool   `json:"background_tracking"`
	GPSAccuracy        string `json:"gps_accuracy"` // "high", "balanced" or "low"
	MapStyle           string `json:"map_style"`

	// PairingHash is the bcrypt hash of the device pairing PIN. Never
	// serialized to the UI.
	PairingHash string `json:"-"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings applied on first load, before the
// user has saved anything.
func DefaultSettings() Settings {
	return Settings{
		Key:                SettingsKey,
		Units:              "metric",
		BackgroundTracking: true,
		GPSAccuracy:        "high",
		MapStyle:           "streets",
	}
}
