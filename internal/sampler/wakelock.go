package sampler

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// WakeLock is the platform stay-awake resource held for the whole of an
// active recording session. Release must be safe to call more than once
// and is always called on stop, whether or not anything was recorded.
type WakeLock interface {
	Acquire() error
	Release()
}

// logWakeLock is the default implementation. The daemon itself has no
// device sleep to inhibit, so it only records the transitions; platforms
// that do can plug in their own.
type logWakeLock struct {
	mu   sync.Mutex
	held bool
}

// NewLogWakeLock returns a wake lock that only logs acquire/release.
func NewLogWakeLock() WakeLock {
	return &logWakeLock{}
}

func (l *logWakeLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil
	}
	l.held = true
	logrus.Info("Stay-awake lock acquired for recording session.")
	return nil
}

func (l *logWakeLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.held = false
	logrus.Info("Stay-awake lock released.")
}
