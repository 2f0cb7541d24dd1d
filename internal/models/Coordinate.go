package models

import (
	"time"
)

// Coordinate is one accepted GPS fix on a ride's route. Immutable once
// created; insertion order (Seq) is temporal order.
type Coordinate struct {
	ID     uint `json:"-" gorm:"primaryKey"`
	RideID uint `json:"-" gorm:"index"`
	Seq    int  `json:"-" gorm:"index"`

	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`

	// Optional readings; nil when the positioning subsystem did not
	// report them.
	Altitude         *float64 `json:"altitude,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`   // m/s
	Heading          *float64 `json:"heading,omitempty"` // degrees
	Accuracy         *float64 `json:"accuracy,omitempty"` // meters
	AltitudeAccuracy *float64 `json:"altitude_accuracy,omitempty"`
}
