package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ride_tracker/internal/models"
	"ride_tracker/internal/remote"
)

// LocalStore is what the reconciler needs from the rides collection.
type LocalStore interface {
	Create(ride *models.Ride) error
	Unsynced() ([]models.Ride, error)
	MarkUploaded(id uint, remoteID uint) error
	RecordSyncFailure(id uint, maxAttempts int) error
}

// RemoteStore is what the reconciler needs from the rides API.
type RemoteStore interface {
	Ping(ctx context.Context) error
	Create(ctx context.Context, ride models.Ride) (remote.Ride, error)
}

// Reconciler pushes locally-recorded-but-unsynced rides to the remote
// store. Two states, Offline and Online; the transition to Online
// triggers a sweep. Each pending ride is submitted independently: one
// create request per ride, whole or not at all, and one ride's failure
// never blocks the rest.
type Reconciler struct {
	local       LocalStore
	remote      RemoteStore
	maxAttempts int

	mu     sync.Mutex
	online bool
}

func New(local LocalStore, remoteStore RemoteStore, maxAttempts int) *Reconciler {
	return &Reconciler{
		local:       local,
		remote:      remoteStore,
		maxAttempts: maxAttempts,
	}
}

// Online reports the current connectivity state.
func (r *Reconciler) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// SetOnline records a connectivity transition. Offline→Online sweeps the
// local store for pending rides.
func (r *Reconciler) SetOnline(ctx context.Context, online bool) {
	r.mu.Lock()
	was := r.online
	r.online = online
	r.mu.Unlock()

	if online == was {
		return
	}
	logrus.WithField("online", online).Info("Connectivity changed.")
	if online {
		r.Sweep(ctx)
	}
}

// Sweep submits every unsynced ride to the remote store. Successful
// uploads are marked in the local store; failures are left (with a
// bumped attempt count) for the next reconnect. Returns how many rides
// were uploaded and how many failed.
func (r *Reconciler) Sweep(ctx context.Context) (uploaded, failed int) {
	pending, err := r.local.Unsynced()
	if err != nil {
		logrus.WithError(err).Error("Sweep aborted: could not list unsynced rides.")
		return 0, 0
	}
	if len(pending) == 0 {
		return 0, 0
	}

	logrus.WithField("pending", len(pending)).Info("Sweeping unsynced rides.")
	for _, ride := range pending {
		if err := r.upload(ctx, ride); err != nil {
			failed++
			continue
		}
		uploaded++
	}
	logrus.WithFields(logrus.Fields{
		"uploaded": uploaded,
		"failed":   failed,
	}).Info("Sweep finished.")
	return uploaded, failed
}

// SaveRide persists a freshly recorded ride. The local write always
// happens; when online, an immediate remote write is attempted on top.
// If that fails the ride simply stays unsynced and the next sweep picks
// it up like any offline-created ride.
func (r *Reconciler) SaveRide(ctx context.Context, ride *models.Ride) error {
	if err := r.local.Create(ride); err != nil {
		return err
	}

	if !r.Online() {
		logrus.WithField("ride_id", ride.ID).Info("Offline; ride buffered for next sweep.")
		return nil
	}

	if err := r.upload(ctx, *ride); err != nil {
		logrus.WithError(err).WithField("ride_id", ride.ID).
			Warn("Immediate upload failed; ride left for next sweep.")
		return nil
	}
	ride.IsUploaded = true
	return nil
}

func (r *Reconciler) upload(ctx context.Context, ride models.Ride) error {
	created, err := r.remote.Create(ctx, ride)
	if err != nil {
		if ferr := r.local.RecordSyncFailure(ride.ID, r.maxAttempts); ferr != nil {
			logrus.WithError(ferr).WithField("ride_id", ride.ID).Error("Could not record sync failure.")
		}
		return err
	}
	if err := r.local.MarkUploaded(ride.ID, created.ID); err != nil {
		logrus.WithError(err).WithField("ride_id", ride.ID).
			Error("Uploaded ride could not be marked; will be re-submitted idempotently.")
		return err
	}
	logrus.WithFields(logrus.Fields{
		"ride_id":   ride.ID,
		"remote_id": created.ID,
		"client_id": ride.ClientID,
	}).Info("Ride uploaded.")
	return nil
}

// Watch probes the remote store on an interval and feeds connectivity
// transitions into the state machine until ctx is canceled.
func (r *Reconciler) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.probe(ctx)
		}
	}
}

func (r *Reconciler) probe(ctx context.Context) {
	err := r.remote.Ping(ctx)
	r.SetOnline(ctx, err == nil)
}
