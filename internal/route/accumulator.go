package route

import (
	"ride_tracker/internal/geo"
	"ride_tracker/internal/models"
)

// Stats is the live readout of a recording session, updated on every
// accepted fix.
//
// AvgSpeed is always total distance divided by total duration (floored at
// one second). Per-fix reported speeds feed only CurrentSpeed and
// MaxSpeed; averaging noisy instantaneous readings is not done anywhere.
type Stats struct {
	Duration      int64   `json:"duration"` // seconds
	Distance      float64 `json:"distance"` // meters
	CurrentSpeed  float64 `json:"current_speed"` // m/s
	AvgSpeed      float64 `json:"avg_speed"`     // m/s
	MaxSpeed      float64 `json:"max_speed"`     // m/s
	ElevationGain float64 `json:"elevation_gain"` // meters
	Points        int     `json:"points"`
}

// Accumulator maintains running totals over an append-only sequence of
// accepted coordinates. Every derived value is updated in O(1) per fix;
// the route is never re-scanned.
type Accumulator struct {
	points        []models.Coordinate
	distance      float64
	maxSpeed      float64
	currentSpeed  float64
	elevationGain float64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add appends an accepted coordinate and returns the updated stats.
func (a *Accumulator) Add(c models.Coordinate) Stats {
	if n := len(a.points); n > 0 {
		prev := a.points[n-1]
		seg := geo.Distance(prev.Latitude, prev.Longitude, c.Latitude, c.Longitude)
		a.distance += seg

		// Current speed: prefer the reported reading, fall back to the
		// segment distance over the segment time.
		if c.Speed != nil && *c.Speed >= 0 {
			a.currentSpeed = *c.Speed
		} else if dt := c.Timestamp.Sub(prev.Timestamp).Seconds(); dt > 0 {
			a.currentSpeed = seg / dt
		}

		if c.Altitude != nil && prev.Altitude != nil && *c.Altitude > *prev.Altitude {
			a.elevationGain += *c.Altitude - *prev.Altitude
		}
	} else if c.Speed != nil && *c.Speed >= 0 {
		a.currentSpeed = *c.Speed
	}

	// Max speed is a running maximum over reported speeds; missing
	// readings are ignored.
	if c.Speed != nil && *c.Speed > a.maxSpeed {
		a.maxSpeed = *c.Speed
	}

	c.Seq = len(a.points)
	a.points = append(a.points, c)
	return a.Stats()
}

// Stats returns the current running totals.
func (a *Accumulator) Stats() Stats {
	return Stats{
		Duration:      a.Duration(),
		Distance:      a.distance,
		CurrentSpeed:  a.currentSpeed,
		AvgSpeed:      a.avgSpeed(),
		MaxSpeed:      a.maxSpeed,
		ElevationGain: a.elevationGain,
		Points:        len(a.points),
	}
}

// Duration is the wall-clock seconds between the first and the latest
// accepted fix, truncated toward zero. Zero until two fixes exist.
func (a *Accumulator) Duration() int64 {
	if len(a.points) < 2 {
		return 0
	}
	first := a.points[0].Timestamp
	last := a.points[len(a.points)-1].Timestamp
	return int64(last.Sub(first).Seconds())
}

func (a *Accumulator) avgSpeed() float64 {
	d := a.Duration()
	if d < 1 {
		d = 1
	}
	return a.distance / float64(d)
}

// Points returns the accumulated route in insertion order.
func (a *Accumulator) Points() []models.Coordinate {
	return a.points
}

// Len reports how many coordinates have been accepted.
func (a *Accumulator) Len() int {
	return len(a.points)
}
