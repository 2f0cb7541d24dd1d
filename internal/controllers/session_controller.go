package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ride_tracker/internal/models"
	"ride_tracker/internal/route"
	"ride_tracker/internal/sampler"
	"ride_tracker/internal/store"
	"ride_tracker/internal/syncer"
)

// SessionController owns the single active recording session. One device,
// one rider, one session at a time; a second start is rejected until the
// current one is stopped.
type SessionController struct {
	gateway  *FixGateway
	hub      *LiveHub
	settings *store.SettingsStore
	rec      *syncer.Reconciler
	wake     sampler.WakeLock

	mu      sync.Mutex
	session *sampler.Session
}

func NewSessionController(gateway *FixGateway, hub *LiveHub, settings *store.SettingsStore, rec *syncer.Reconciler, wake sampler.WakeLock) *SessionController {
	return &SessionController{
		gateway:  gateway,
		hub:      hub,
		settings: settings,
		rec:      rec,
		wake:     wake,
	}
}

// samplingOptions maps the persisted GPS accuracy preference onto the
// filter chain thresholds.
func (sc *SessionController) samplingOptions() sampler.Options {
	settings, err := sc.settings.Load()
	if err != nil {
		logrus.WithError(err).Warn("Could not load settings for session; using high accuracy profile.")
	}
	switch settings.GPSAccuracy {
	case "low":
		return sampler.Options{HighAccuracy: false, MinIntervalMs: 10000, MinDistanceMeters: 20, AccuracyThresholdMeters: 150}
	case "balanced":
		return sampler.Options{HighAccuracy: false, MinIntervalMs: 3000, MinDistanceMeters: 5, AccuracyThresholdMeters: 75}
	default:
		return sampler.Options{HighAccuracy: true, MinIntervalMs: 1000, MinDistanceMeters: 2, AccuracyThresholdMeters: 50}
	}
}

// Start begins a new recording session.
func (sc *SessionController) Start(c *gin.Context) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.session != nil {
		switch sc.session.State() {
		case sampler.StateRecording, sampler.StatePaused:
			c.JSON(http.StatusConflict, gin.H{"error": sampler.ErrSessionActive.Error()})
			return
		}
	}

	sess := sampler.NewSession(sc.gateway, sc.samplingOptions(), sc.wake)
	sess.OnUpdate(func(stats route.Stats, coord models.Coordinate) {
		sc.hub.Publish(LiveUpdate{
			Type:             "fix",
			Duration:         sess.DisplaySeconds(),
			Distance:         stats.Distance,
			CurrentSpeed:     stats.CurrentSpeed,
			AvgSpeed:         stats.AvgSpeed,
			MaxSpeed:         stats.MaxSpeed,
			GPSSignalQuality: string(sess.Quality()),
			Point:            &coord,
		})
	})

	// The session outlives this HTTP request; it ends at Stop, not when
	// the request context is canceled.
	if err := sess.Start(context.Background()); err != nil {
		if errors.Is(err, sampler.ErrPermissionDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": "location permission denied"})
			return
		}
		logrus.WithError(err).Error("Failed to start recording session.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start recording"})
		return
	}

	sc.session = sess
	go sc.publishTicks(sess)
	c.JSON(http.StatusCreated, gin.H{"state": sess.State().String()})
}

// publishTicks pushes a stats frame every second so the UI clock keeps
// moving between accepted fixes. Ends when the session stops.
func (sc *SessionController) publishTicks(sess *sampler.Session) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		state := sess.State()
		if state == sampler.StateStopped {
			return
		}
		if state != sampler.StateRecording {
			continue
		}
		stats := sess.Stats()
		sc.hub.Publish(LiveUpdate{
			Type:             "tick",
			Duration:         sess.DisplaySeconds(),
			Distance:         stats.Distance,
			CurrentSpeed:     stats.CurrentSpeed,
			AvgSpeed:         stats.AvgSpeed,
			MaxSpeed:         stats.MaxSpeed,
			GPSSignalQuality: string(sess.Quality()),
		})
	}
}

func (sc *SessionController) active() *sampler.Session {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session
}

// Pause suspends fix delivery without losing the route so far.
func (sc *SessionController) Pause(c *gin.Context) {
	sess := sc.active()
	if sess == nil {
		c.JSON(http.StatusConflict, gin.H{"error": sampler.ErrNotRecording.Error()})
		return
	}
	sess.Pause()
	c.JSON(http.StatusOK, gin.H{"state": sess.State().String()})
}

// Resume re-attaches fix delivery after a pause.
func (sc *SessionController) Resume(c *gin.Context) {
	sess := sc.active()
	if sess == nil {
		c.JSON(http.StatusConflict, gin.H{"error": sampler.ErrNotRecording.Error()})
		return
	}
	if err := sess.Resume(); err != nil {
		if errors.Is(err, sampler.ErrNotRecording) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logrus.WithError(err).Error("Failed to resume recording session.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resume recording"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sess.State().String()})
}

type stopRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Stop ends the session and persists the ride. A session that never
// accepted a fix produces no ride; the UI gets told so instead of an
// empty record.
func (sc *SessionController) Stop(c *gin.Context) {
	sc.mu.Lock()
	sess := sc.session
	sc.mu.Unlock()
	if sess == nil {
		c.JSON(http.StatusConflict, gin.H{"error": sampler.ErrNotRecording.Error()})
		return
	}

	var body stopRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	points, stats, err := sess.Stop()
	if err != nil {
		if errors.Is(err, sampler.ErrNothingRecorded) {
			sc.clearSession(sess)
			c.JSON(http.StatusOK, gin.H{"state": "stopped", "saved": false, "reason": "nothing recorded"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	sc.clearSession(sess)

	ride := buildRide(body, points, stats)
	if err := sc.rec.SaveRide(c.Request.Context(), &ride); err != nil {
		logrus.WithError(err).Error("Recorded ride could not be persisted.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save ride"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"state": "stopped", "saved": true, "ride": toRideResponse(ride, "local")})
}

func (sc *SessionController) clearSession(sess *sampler.Session) {
	sc.mu.Lock()
	if sc.session == sess {
		sc.session = nil
	}
	sc.mu.Unlock()
}

// buildRide assembles the persistent record from the accumulated route.
// The client id is minted here, once per ride, never per upload attempt.
func buildRide(body stopRequest, points []models.Coordinate, stats route.Stats) models.Ride {
	start := points[0].Timestamp
	end := points[len(points)-1].Timestamp

	title := body.Title
	if title == "" {
		title = fmt.Sprintf("Ride %s", start.UTC().Format("2006-01-02 15:04"))
	}

	return models.Ride{
		ClientID:      uuid.NewString(),
		Title:         title,
		Description:   body.Description,
		Distance:      stats.Distance,
		Duration:      stats.Duration,
		StartTime:     start,
		EndTime:       end,
		MaxSpeed:      stats.MaxSpeed,
		AvgSpeed:      stats.AvgSpeed,
		ElevationGain: stats.ElevationGain,
		Route:         points,
	}
}

// Status reports the session lifecycle state and running totals.
func (sc *SessionController) Status(c *gin.Context) {
	sess := sc.active()
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{"state": sampler.StateIdle.String()})
		return
	}

	stats := sess.Stats()
	c.JSON(http.StatusOK, gin.H{
		"state":              sess.State().String(),
		"duration":           sess.DisplaySeconds(),
		"distance":           stats.Distance,
		"current_speed":      stats.CurrentSpeed,
		"avg_speed":          stats.AvgSpeed,
		"max_speed":          stats.MaxSpeed,
		"elevation_gain":     stats.ElevationGain,
		"points":             stats.Points,
		"gps_signal_quality": string(sess.Quality()),
	})
}
