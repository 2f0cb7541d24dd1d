package store

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ride_tracker/internal/models"
)

// ErrNotFound is returned when a ride id has no record in the local store.
var ErrNotFound = errors.New("ride not found")

// RideStore is the rides collection of the local store: the offline cache
// and write-ahead buffer for the remote rides API. The underlying
// database serializes writers; no extra locking is layered on top.
type RideStore struct {
	db *gorm.DB
}

func NewRideStore(db *gorm.DB) *RideStore {
	return &RideStore{db: db}
}

// Create persists a ride and its route. The route must be non-empty.
func (s *RideStore) Create(ride *models.Ride) error {
	if len(ride.Route) == 0 {
		return errors.New("a ride needs at least one coordinate")
	}
	if err := s.db.Create(ride).Error; err != nil {
		return fmt.Errorf("create ride: %w", err)
	}
	return nil
}

// List returns all rides, newest first, without route points.
func (s *RideStore) List() ([]models.Ride, error) {
	var rides []models.Ride
	if err := s.db.Order("start_time desc").Find(&rides).Error; err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	return rides, nil
}

// Get returns one ride with its route in temporal order.
func (s *RideStore) Get(id uint) (models.Ride, error) {
	var ride models.Ride
	err := s.db.Preload("Route", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq asc")
	}).First(&ride, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Ride{}, ErrNotFound
	}
	if err != nil {
		return models.Ride{}, fmt.Errorf("get ride %d: %w", id, err)
	}
	return ride, nil
}

// Update applies a partial update of the user-editable fields.
func (s *RideStore) Update(id uint, fields map[string]interface{}) (models.Ride, error) {
	res := s.db.Model(&models.Ride{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.Ride{}, fmt.Errorf("update ride %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.Ride{}, ErrNotFound
	}
	return s.Get(id)
}

// Delete removes a ride and its route points.
func (s *RideStore) Delete(id uint) error {
	ride, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := s.db.Select("Route").Delete(&ride).Error; err != nil {
		return fmt.Errorf("delete ride %d: %w", id, err)
	}
	return nil
}

// Unsynced returns the rides a sweep should submit: not yet uploaded and
// not parked for manual review. Routes are preloaded because uploads
// submit the ride whole.
func (s *RideStore) Unsynced() ([]models.Ride, error) {
	var rides []models.Ride
	err := s.db.Where("is_uploaded = ? AND needs_review = ?", false, false).
		Preload("Route", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq asc")
		}).
		Order("start_time asc").
		Find(&rides).Error
	if err != nil {
		return nil, fmt.Errorf("list unsynced rides: %w", err)
	}
	return rides, nil
}

// MarkUploaded flips is_uploaded after the remote store confirmed the
// create, recording the remote id for later reconciliation.
func (s *RideStore) MarkUploaded(id uint, remoteID uint) error {
	res := s.db.Model(&models.Ride{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_uploaded": true,
		"remote_id":   remoteID,
	})
	if res.Error != nil {
		return fmt.Errorf("mark ride %d uploaded: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordSyncFailure bumps the attempt counter and flags the ride for
// manual review once maxAttempts is reached, which takes it out of
// future sweeps until the flag is cleared.
func (s *RideStore) RecordSyncFailure(id uint, maxAttempts int) error {
	var ride models.Ride
	if err := s.db.First(&ride, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load ride %d: %w", id, err)
	}

	updates := map[string]interface{}{
		"sync_attempts": ride.SyncAttempts + 1,
	}
	if maxAttempts > 0 && ride.SyncAttempts+1 >= maxAttempts {
		updates["needs_review"] = true
		logrus.WithFields(logrus.Fields{
			"ride_id":  id,
			"attempts": ride.SyncAttempts + 1,
		}).Warn("Ride exceeded sync attempt cap; flagged for manual review.")
	}
	if err := s.db.Model(&models.Ride{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("record sync failure for ride %d: %w", id, err)
	}
	return nil
}

// ClearReview re-arms syncing for a ride that was flagged for review.
func (s *RideStore) ClearReview(id uint) error {
	res := s.db.Model(&models.Ride{}).Where("id = ?", id).Updates(map[string]interface{}{
		"needs_review":  false,
		"sync_attempts": 0,
	})
	if res.Error != nil {
		return fmt.Errorf("clear review for ride %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
