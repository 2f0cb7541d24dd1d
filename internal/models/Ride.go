package models

import (
	"time"

	"gorm.io/gorm"
)

// Ride is one recorded trip. A ride is created when a recording session
// ends with at least one accepted coordinate, is always written to the
// local store first, and is pushed to the remote rides API by the sync
// reconciler once connectivity allows.
type Ride struct {
	gorm.Model

	// ClientID is assigned by this device at creation and travels with the
	// record to the remote side, so re-submitting the same ride after a
	// failed or ambiguous upload is idempotent. Local and remote integer
	// ids are independent bookkeeping.
	ClientID string `json:"client_id" gorm:"uniqueIndex"`

	Title       string `json:"title"`
	Description string `json:"description"`
	UserID      uint   `json:"user_id,omitempty" gorm:"index"`

	Distance  float64   `json:"distance"` // meters
	Duration  int64     `json:"duration"` // seconds, truncated toward zero
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	MaxSpeed      float64 `json:"max_speed"` // m/s
	AvgSpeed      float64 `json:"avg_speed"` // m/s, distance / max(duration,1)
	ElevationGain float64 `json:"elevation_gain"` // meters

	StartLocation string `json:"start_location,omitempty"`
	EndLocation   string `json:"end_location,omitempty"`

	Route []Coordinate `json:"route,omitempty" gorm:"foreignKey:RideID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	// IsUploaded flips false→true exactly once, when the remote store
	// confirms the create.
	IsUploaded bool `json:"is_uploaded" gorm:"index"`

	// RemoteID is the id the remote store assigned on upload.
	RemoteID uint `json:"remote_id,omitempty"`

	// SyncAttempts counts failed upload attempts; once it reaches the
	// configured cap the ride is flagged NeedsReview and excluded from
	// sweeps until cleared manually.
	SyncAttempts int  `json:"sync_attempts"`
	NeedsReview  bool `json:"needs_review" gorm:"index"`
}
