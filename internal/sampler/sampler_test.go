package sampler

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"ride_tracker/internal/models"
	"ride_tracker/internal/route"
)

type fakeSource struct {
	mu      sync.Mutex
	denied  bool
	watches int
	fixes   chan Fix
	errs    chan error
}

func (f *fakeSource) Watch(ctx context.Context, opts Options) (<-chan Fix, <-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied {
		return nil, nil, ErrPermissionDenied
	}
	f.watches++
	f.fixes = make(chan Fix, 16)
	f.errs = make(chan error, 4)
	return f.fixes, f.errs, nil
}

func (f *fakeSource) push(fx Fix) {
	f.mu.Lock()
	ch := f.fixes
	f.mu.Unlock()
	ch <- fx
}

func (f *fakeSource) watchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watches
}

type fakeWakeLock struct {
	mu       sync.Mutex
	acquires int
	releases int
}

func (w *fakeWakeLock) Acquire() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.acquires++
	return nil
}

func (w *fakeWakeLock) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.releases++
}

func fix(lat, lng float64, at time.Time, accuracy float64) Fix {
	return Fix{Latitude: lat, Longitude: lng, Timestamp: at, Accuracy: &accuracy}
}

func startedSession(t *testing.T, opts Options) (*Session, *fakeSource, *fakeWakeLock) {
	t.Helper()
	src := &fakeSource{}
	wake := &fakeWakeLock{}
	s := NewSession(src, opts, wake)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s, src, wake
}

func TestTwoPointScenario(t *testing.T) {
	s, _, _ := startedSession(t, Options{})
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	s.handleFix(fix(37.7749, -122.4194, base, 5))
	s.handleFix(fix(37.7750, -122.4195, base.Add(1000*time.Millisecond), 5))

	stats := s.Stats()
	if stats.Points != 2 {
		t.Fatalf("expected 2 points, got %d", stats.Points)
	}
	if math.Abs(stats.Distance-13.9)/13.9 > 0.01 {
		t.Fatalf("expected ~13.9 m, got %v", stats.Distance)
	}
}

func TestThrottleRejectsRegardlessOfDistance(t *testing.T) {
	s, _, _ := startedSession(t, Options{MinIntervalMs: 1000})
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	s.handleFix(fix(0, 0, base, 5))
	// A huge jump, but inside the throttle window: must be rejected.
	s.handleFix(fix(10, 10, base.Add(500*time.Millisecond), 5))
	s.handleFix(fix(0.001, 0, base.Add(1500*time.Millisecond), 5))

	if got := s.Stats().Points; got != 2 {
		t.Fatalf("expected 2 points after throttle, got %d", got)
	}
}

func TestAccuracyThresholdNeverAppends(t *testing.T) {
	for _, threshold := range []float64{5, 20, 100} {
		s, _, _ := startedSession(t, Options{AccuracyThresholdMeters: threshold})
		base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		for i, acc := range []float64{threshold + 0.1, threshold * 2, threshold + 1000} {
			s.handleFix(fix(float64(i)*0.01, 0, base.Add(time.Duration(i)*time.Second), acc))
		}
		if got := s.Stats().Points; got != 0 {
			t.Fatalf("threshold %v: %d noisy fixes appended", threshold, got)
		}
	}
}

func TestMinDistanceSuppressesStationary(t *testing.T) {
	s, _, _ := startedSession(t, Options{MinDistanceMeters: 10})
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	s.handleFix(fix(37.7749, -122.4194, base, 5))
	// ~1 m of jitter.
	s.handleFix(fix(37.77491, -122.41941, base.Add(time.Second), 5))
	if got := s.Stats().Points; got != 1 {
		t.Fatalf("stationary fix appended, points = %d", got)
	}
	// ~14 m away passes.
	s.handleFix(fix(37.7750, -122.4195, base.Add(2*time.Second), 5))
	if got := s.Stats().Points; got != 2 {
		t.Fatalf("moving fix rejected, points = %d", got)
	}
}

func TestPauseResumeLosesNothing(t *testing.T) {
	s, src, _ := startedSession(t, Options{})
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	s.handleFix(fix(37.7749, -122.4194, base, 5))
	s.handleFix(fix(37.7750, -122.4195, base.Add(time.Second), 5))

	s.Pause()
	s.Pause() // idempotent
	if st := s.State(); st != StatePaused {
		t.Fatalf("state after pause = %v", st)
	}
	// Fixes delivered while paused are dropped.
	s.handleFix(fix(37.7760, -122.4200, base.Add(2*time.Second), 5))

	if err := s.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := s.Stats().Points; got != 2 {
		t.Fatalf("pause/resume lost coordinates: %d", got)
	}
	if src.watchCount() != 2 {
		t.Fatalf("expected re-subscription on resume, watches = %d", src.watchCount())
	}

	s.handleFix(fix(37.7751, -122.4196, base.Add(3*time.Second), 5))
	if got := s.Stats().Points; got != 3 {
		t.Fatalf("expected 3 points after resume, got %d", got)
	}
}

func TestStopWithNothingRecorded(t *testing.T) {
	s, _, wake := startedSession(t, Options{})
	pts, _, err := s.Stop()
	if !errors.Is(err, ErrNothingRecorded) {
		t.Fatalf("expected ErrNothingRecorded, got %v", err)
	}
	if pts != nil {
		t.Fatalf("expected no route, got %d points", len(pts))
	}
	if wake.releases != 1 {
		t.Fatalf("stay-awake lock not released: %d", wake.releases)
	}
}

func TestStopReturnsRoute(t *testing.T) {
	s, _, wake := startedSession(t, Options{})
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.handleFix(fix(37.7749, -122.4194, base, 5))
	s.handleFix(fix(37.7750, -122.4195, base.Add(2*time.Second), 5))

	pts, stats, err := s.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(pts) != 2 || stats.Duration != 2 {
		t.Fatalf("unexpected route: %d points, duration %d", len(pts), stats.Duration)
	}
	if wake.acquires != 1 || wake.releases != 1 {
		t.Fatalf("wake lock acquires=%d releases=%d", wake.acquires, wake.releases)
	}

	if _, _, err := s.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStartTwiceRejected(t *testing.T) {
	s, _, _ := startedSession(t, Options{})
	if err := s.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestPermissionDenied(t *testing.T) {
	src := &fakeSource{denied: true}
	wake := &fakeWakeLock{}
	s := NewSession(src, Options{}, wake)
	if err := s.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("session started despite denial")
	}
	if wake.releases != wake.acquires {
		t.Fatalf("wake lock leaked: acquires=%d releases=%d", wake.acquires, wake.releases)
	}
}

func TestSignalLossDowngradesQualityOnly(t *testing.T) {
	s, _, _ := startedSession(t, Options{})
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.handleFix(fix(37.7749, -122.4194, base, 5))

	s.handleWatchError(errors.New("position unavailable"))
	if q := s.Quality(); q != QualityLost {
		t.Fatalf("quality = %v, want lost", q)
	}
	if st := s.State(); st != StateRecording {
		t.Fatalf("signal loss stopped the session: %v", st)
	}

	// A good fix restores the displayed quality.
	s.handleFix(fix(37.7750, -122.4195, base.Add(time.Second), 5))
	if q := s.Quality(); q != QualityExcellent {
		t.Fatalf("quality = %v, want excellent", q)
	}
}

func TestUpdatesDeliveredThroughWatchChannel(t *testing.T) {
	src := &fakeSource{}
	s := NewSession(src, Options{}, &fakeWakeLock{})

	updates := make(chan route.Stats, 16)
	s.OnUpdate(func(stats route.Stats, _ models.Coordinate) {
		updates <- stats
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	src.push(fix(37.7749, -122.4194, base, 5))
	src.push(fix(37.7750, -122.4195, base.Add(time.Second), 5))

	var last route.Stats
	for i := 0; i < 2; i++ {
		select {
		case last = <-updates:
		case <-time.After(2 * time.Second):
			t.Fatalf("update %d never delivered", i+1)
		}
	}
	if last.Points != 2 {
		t.Fatalf("expected 2 points via watch channel, got %d", last.Points)
	}
}

func TestDisplayTickerAgreesWithDuration(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time ticker test")
	}
	s, _, _ := startedSession(t, Options{})

	s.handleFix(fix(37.7749, -122.4194, time.Now(), 5))
	time.Sleep(2100 * time.Millisecond)
	s.handleFix(fix(37.7750, -122.4195, time.Now(), 5))

	display := s.DisplaySeconds()
	_, stats, err := s.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if drift := display - stats.Duration; drift > 1 || drift < -1 {
		t.Fatalf("display ticker %ds disagrees with duration %ds", display, stats.Duration)
	}
}
