package sampler

import (
	"context"
	"errors"
	"time"

	"ride_tracker/internal/models"
)

var (
	// ErrPermissionDenied means the positioning subsystem refused to start
	// delivering fixes. Fatal to starting a session.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrSessionActive is returned when starting a session while another
	// one is recording or paused.
	ErrSessionActive = errors.New("a recording session is already active")

	// ErrNotRecording is returned by lifecycle calls that need a live
	// session and don't have one.
	ErrNotRecording = errors.New("no recording session in progress")

	// ErrNothingRecorded means a session was stopped before any fix
	// survived filtering; no ride is persisted.
	ErrNothingRecorded = errors.New("nothing recorded")
)

// Fix is a single raw location reading, before filtering. Optional
// readings are nil when the positioning subsystem did not report them.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`

	Altitude         *float64 `json:"altitude,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`   // m/s
	Heading          *float64 `json:"heading,omitempty"` // degrees
	Accuracy         *float64 `json:"accuracy,omitempty"` // meters
	AltitudeAccuracy *float64 `json:"altitude_accuracy,omitempty"`
}

// Coordinate converts an accepted fix into a route coordinate.
func (f Fix) Coordinate() models.Coordinate {
	return models.Coordinate{
		Latitude:         f.Latitude,
		Longitude:        f.Longitude,
		Timestamp:        f.Timestamp,
		Altitude:         f.Altitude,
		Speed:            f.Speed,
		Heading:          f.Heading,
		Accuracy:         f.Accuracy,
		AltitudeAccuracy: f.AltitudeAccuracy,
	}
}

// Options configure a watch subscription and the filter chain. Zero
// values disable the corresponding filtering rule.
type Options struct {
	HighAccuracy            bool
	MinIntervalMs           int64
	MinDistanceMeters       float64
	AccuracyThresholdMeters float64
}

// Source is the positioning subsystem. Watch begins continuous delivery
// of raw fixes until ctx is canceled. Transient conditions (signal lost,
// timeouts) arrive on the error channel and must not end delivery; a
// refusal to start at all is reported synchronously, ErrPermissionDenied
// when the platform denied access.
type Source interface {
	Watch(ctx context.Context, opts Options) (<-chan Fix, <-chan error, error)
}

// Quality is the displayed GPS signal quality, derived from the accuracy
// radius of the latest fix and from transient watch errors.
type Quality string

const (
	QualityUnknown   Quality = "unknown"
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityLost      Quality = "lost"
)

func qualityFromAccuracy(accuracy float64) Quality {
	switch {
	case accuracy <= 10:
		return QualityExcellent
	case accuracy <= 25:
		return QualityGood
	case accuracy <= 50:
		return QualityFair
	default:
		return QualityPoor
	}
}
