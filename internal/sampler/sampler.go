package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ride_tracker/internal/geo"
	"ride_tracker/internal/models"
	"ride_tracker/internal/route"
)

// State of a recording session. Stop is the only terminal transition.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// UpdateFunc receives the accepted coordinate and the stats after it was
// applied. It runs synchronously on the delivery goroutine and must be
// fast and non-blocking, or subsequent fixes back up.
type UpdateFunc func(stats route.Stats, c models.Coordinate)

// Session samples continuous location updates from a Source, filters and
// throttles raw fixes, and accumulates the surviving coordinates into a
// route. One session records one ride.
//
// Filtering rules, applied per raw fix in order:
//  1. reject if elapsed time since the last accepted fix < MinIntervalMs;
//  2. reject if the reported accuracy radius > AccuracyThresholdMeters;
//  3. reject if the distance from the last accepted fix < MinDistanceMeters.
type Session struct {
	src  Source
	opts Options
	wake WakeLock

	mu          sync.Mutex
	state       State
	acc         *route.Accumulator
	lastAccept  time.Time
	quality     Quality
	onUpdate    UpdateFunc
	parent      context.Context
	cancelWatch context.CancelFunc

	// Display seconds counter: an independent one-second ticker used by
	// the live feed, started at the first accepted fix. Reconciled
	// against the fix-timestamp duration at stop.
	displaySecs int64
	firstFixAt  time.Time
	tickerDone  chan struct{}
}

// NewSession builds a session; Start begins delivery.
func NewSession(src Source, opts Options, wake WakeLock) *Session {
	if wake == nil {
		wake = NewLogWakeLock()
	}
	return &Session{
		src:        src,
		opts:       opts,
		wake:       wake,
		acc:        route.NewAccumulator(),
		quality:    QualityUnknown,
		tickerDone: make(chan struct{}),
	}
}

// OnUpdate registers the live feed callback. Must be set before Start.
func (s *Session) OnUpdate(fn UpdateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// Start begins continuous position delivery. A session can be started
// once; ErrSessionActive if it is already recording or paused.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}

	if err := s.wake.Acquire(); err != nil {
		// Recording without the stay-awake resource still beats not
		// recording; surface it in the log and carry on.
		logrus.WithError(err).Warn("Could not acquire stay-awake lock; continuing without it.")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	fixes, errs, err := s.src.Watch(watchCtx, s.opts)
	if err != nil {
		cancel()
		s.wake.Release()
		s.mu.Unlock()
		return err
	}

	s.parent = ctx
	s.cancelWatch = cancel
	s.state = StateRecording
	s.mu.Unlock()

	go s.run(watchCtx, fixes, errs)
	go s.tick()

	logrus.WithFields(logrus.Fields{
		"min_interval_ms":    s.opts.MinIntervalMs,
		"min_distance_m":     s.opts.MinDistanceMeters,
		"accuracy_threshold": s.opts.AccuracyThresholdMeters,
		"high_accuracy":      s.opts.HighAccuracy,
	}).Info("Recording session started.")
	return nil
}

// Pause detaches the delivery subscription without discarding the
// accumulated route. Idempotent.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return
	}
	if s.cancelWatch != nil {
		s.cancelWatch()
		s.cancelWatch = nil
	}
	s.state = StatePaused
	logrus.WithField("points", s.acc.Len()).Info("Recording session paused.")
}

// Resume re-attaches delivery after a pause. No-op while recording.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRecording:
		return nil
	case StatePaused:
	default:
		return ErrNotRecording
	}

	watchCtx, cancel := context.WithCancel(s.parent)
	fixes, errs, err := s.src.Watch(watchCtx, s.opts)
	if err != nil {
		cancel()
		return err
	}
	s.cancelWatch = cancel
	s.state = StateRecording
	go s.run(watchCtx, fixes, errs)
	logrus.WithField("points", s.acc.Len()).Info("Recording session resumed.")
	return nil
}

// Stop ends delivery and returns the accumulated route and final stats.
// The stay-awake resource is released unconditionally, even when nothing
// was recorded; in that case the error is ErrNothingRecorded and no ride
// should be persisted.
func (s *Session) Stop() ([]models.Coordinate, route.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped || s.state == StateIdle {
		return nil, route.Stats{}, ErrNotRecording
	}

	if s.cancelWatch != nil {
		s.cancelWatch()
		s.cancelWatch = nil
	}
	s.state = StateStopped
	close(s.tickerDone)
	s.wake.Release()

	stats := s.acc.Stats()
	if drift := s.displaySecs - stats.Duration; drift > 1 || drift < -1 {
		logrus.WithFields(logrus.Fields{
			"display_seconds": s.displaySecs,
			"fix_duration":    stats.Duration,
		}).Warn("Display ticker drifted from fix-timestamp duration.")
	}

	if s.acc.Len() == 0 {
		logrus.Info("Recording session stopped with no accepted fixes.")
		return nil, stats, ErrNothingRecorded
	}

	logrus.WithFields(logrus.Fields{
		"points":     stats.Points,
		"distance_m": stats.Distance,
		"duration_s": stats.Duration,
	}).Info("Recording session stopped.")
	return s.acc.Points(), stats, nil
}

// Stats returns the current running totals.
func (s *Session) Stats() route.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.Stats()
}

// Quality returns the displayed GPS signal quality.
func (s *Session) Quality() Quality {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality
}

// State returns the session lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DisplaySeconds returns the one-second display counter.
func (s *Session) DisplaySeconds() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displaySecs
}

func (s *Session) run(ctx context.Context, fixes <-chan Fix, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-fixes:
			if !ok {
				return
			}
			s.handleFix(f)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.handleWatchError(err)
		}
	}
}

// tick drives the display counter once the first fix has been accepted.
func (s *Session) tick() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-s.tickerDone:
			return
		case <-t.C:
			s.mu.Lock()
			if s.state == StateRecording && !s.firstFixAt.IsZero() {
				s.displaySecs++
			}
			s.mu.Unlock()
		}
	}
}

func (s *Session) handleFix(f Fix) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}

	// Rule 1: throttle on elapsed time since the last accepted fix.
	if s.opts.MinIntervalMs > 0 && !s.lastAccept.IsZero() {
		if f.Timestamp.Sub(s.lastAccept) < time.Duration(s.opts.MinIntervalMs)*time.Millisecond {
			s.mu.Unlock()
			logrus.WithField("timestamp", f.Timestamp).Debug("Fix rejected: within throttle interval.")
			return
		}
	}

	// Rule 2: reject noisy readings by accuracy radius.
	if f.Accuracy != nil {
		s.quality = qualityFromAccuracy(*f.Accuracy)
		if s.opts.AccuracyThresholdMeters > 0 && *f.Accuracy > s.opts.AccuracyThresholdMeters {
			s.mu.Unlock()
			logrus.WithField("accuracy_m", *f.Accuracy).Debug("Fix rejected: accuracy above threshold.")
			return
		}
	} else if s.quality == QualityLost || s.quality == QualityUnknown {
		s.quality = QualityGood
	}

	// Rule 3: suppress stationary jitter by distance moved.
	if s.opts.MinDistanceMeters > 0 && s.acc.Len() > 0 {
		pts := s.acc.Points()
		prev := pts[len(pts)-1]
		if geo.Distance(prev.Latitude, prev.Longitude, f.Latitude, f.Longitude) < s.opts.MinDistanceMeters {
			s.mu.Unlock()
			logrus.Debug("Fix rejected: below minimum distance.")
			return
		}
	}

	stats := s.acc.Add(f.Coordinate())
	s.lastAccept = f.Timestamp
	if s.firstFixAt.IsZero() {
		s.firstFixAt = time.Now()
	}
	onUpdate := s.onUpdate
	pts := s.acc.Points()
	accepted := pts[len(pts)-1]
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"latitude":   f.Latitude,
		"longitude":  f.Longitude,
		"distance_m": stats.Distance,
		"points":     stats.Points,
	}).Debug("Fix accepted.")

	if onUpdate != nil {
		onUpdate(stats, accepted)
	}
}

// handleWatchError downgrades the displayed quality on transient signal
// conditions. The session keeps running; the caller decides whether to
// continue.
func (s *Session) handleWatchError(err error) {
	s.mu.Lock()
	s.quality = QualityLost
	s.mu.Unlock()
	logrus.WithError(err).Warn("GPS signal lost or unavailable; session continues.")
}
