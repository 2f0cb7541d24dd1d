package store

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ride_tracker/internal/models"
)

// SettingsStore is the single-record settings collection.
type SettingsStore struct {
	db *gorm.DB
}

func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Load returns the persisted settings. On first load the defaults are
// persisted and returned. A store failure is logged and the in-memory
// defaults are returned so the app keeps operating; the error is also
// surfaced for callers that care.
func (s *SettingsStore) Load() (models.Settings, error) {
	var settings models.Settings
	err := s.db.First(&settings, "key = ?", models.SettingsKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.DefaultSettings()
		if err := s.db.Create(&settings).Error; err != nil {
			logrus.WithError(err).Error("Could not persist default settings; using in-memory defaults.")
			return models.DefaultSettings(), fmt.Errorf("persist default settings: %w", err)
		}
		return settings, nil
	}
	if err != nil {
		logrus.WithError(err).Error("Could not load settings; using in-memory defaults.")
		return models.DefaultSettings(), fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// Save replaces the settings record. The pairing hash is preserved
// unless the caller set one explicitly.
func (s *SettingsStore) Save(settings models.Settings) error {
	settings.Key = models.SettingsKey
	if settings.PairingHash == "" {
		current, err := s.Load()
		if err == nil {
			settings.PairingHash = current.PairingHash
		}
	}
	if err := s.db.Save(&settings).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// SetPairingHash stores the bcrypt hash of the device pairing PIN.
func (s *SettingsStore) SetPairingHash(hash string) error {
	settings, err := s.Load()
	if err != nil {
		return err
	}
	settings.PairingHash = hash
	if err := s.db.Save(&settings).Error; err != nil {
		return fmt.Errorf("save pairing hash: %w", err)
	}
	return nil
}
