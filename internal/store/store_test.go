package store

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"ride_tracker/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	if err := db.AutoMigrate(&models.Ride{}, &models.Coordinate{}, &models.Settings{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleRide(points int) *models.Ride {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	route := make([]models.Coordinate, 0, points)
	for i := 0; i < points; i++ {
		route = append(route, models.Coordinate{
			Seq:       i,
			Latitude:  37.7749 + float64(i)*0.0001,
			Longitude: -122.4194,
			Timestamp: start.Add(time.Duration(i) * time.Second),
		})
	}
	end := start
	if points > 0 {
		end = route[points-1].Timestamp
	}
	return &models.Ride{
		ClientID:  uuid.NewString(),
		Title:     "Morning ride",
		Distance:  float64(points-1) * 11.1,
		Duration:  int64(points - 1),
		StartTime: start,
		EndTime:   end,
		AvgSpeed:  11.1,
		MaxSpeed:  14.2,
		Route:     route,
	}
}

func TestCreateAndGetPreservesRouteOrder(t *testing.T) {
	rides := NewRideStore(testDB(t))
	ride := sampleRide(5)
	if err := rides.Create(ride); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ride.ID == 0 {
		t.Fatalf("no local id assigned")
	}

	got, err := rides.Get(ride.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Route) != 5 {
		t.Fatalf("route has %d points", len(got.Route))
	}
	for i, c := range got.Route {
		if c.Seq != i {
			t.Fatalf("route out of order at %d: seq %d", i, c.Seq)
		}
	}
	if got.IsUploaded {
		t.Fatalf("fresh ride already marked uploaded")
	}
}

func TestCreateRejectsEmptyRoute(t *testing.T) {
	rides := NewRideStore(testDB(t))
	if err := rides.Create(&models.Ride{ClientID: uuid.NewString()}); err == nil {
		t.Fatalf("empty route accepted")
	}
}

func TestGetMissing(t *testing.T) {
	rides := NewRideStore(testDB(t))
	if _, err := rides.Get(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnsyncedAndMarkUploaded(t *testing.T) {
	rides := NewRideStore(testDB(t))
	a, b := sampleRide(2), sampleRide(2)
	if err := rides.Create(a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := rides.Create(b); err != nil {
		t.Fatalf("create b: %v", err)
	}

	pending, err := rides.Unsynced()
	if err != nil {
		t.Fatalf("unsynced: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 unsynced rides, got %d", len(pending))
	}
	if len(pending[0].Route) == 0 {
		t.Fatalf("unsynced ride missing route; uploads submit the ride whole")
	}

	if err := rides.MarkUploaded(a.ID, 77); err != nil {
		t.Fatalf("mark uploaded: %v", err)
	}
	pending, _ = rides.Unsynced()
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("uploaded ride still swept")
	}

	got, _ := rides.Get(a.ID)
	if !got.IsUploaded || got.RemoteID != 77 {
		t.Fatalf("upload bookkeeping wrong: uploaded=%v remote=%d", got.IsUploaded, got.RemoteID)
	}
}

func TestSyncFailureCapFlagsReview(t *testing.T) {
	rides := NewRideStore(testDB(t))
	ride := sampleRide(2)
	if err := rides.Create(ride); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := rides.RecordSyncFailure(ride.ID, 3); err != nil {
			t.Fatalf("record failure %d: %v", i, err)
		}
	}

	got, _ := rides.Get(ride.ID)
	if got.SyncAttempts != 3 || !got.NeedsReview {
		t.Fatalf("attempts=%d review=%v, want 3/true", got.SyncAttempts, got.NeedsReview)
	}

	pending, _ := rides.Unsynced()
	if len(pending) != 0 {
		t.Fatalf("flagged ride still swept")
	}

	if err := rides.ClearReview(ride.ID); err != nil {
		t.Fatalf("clear review: %v", err)
	}
	pending, _ = rides.Unsynced()
	if len(pending) != 1 {
		t.Fatalf("cleared ride not swept again")
	}
}

func TestUpdateAndDelete(t *testing.T) {
	rides := NewRideStore(testDB(t))
	ride := sampleRide(2)
	if err := rides.Create(ride); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := rides.Update(ride.ID, map[string]interface{}{"title": "Canyon run"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "Canyon run" {
		t.Fatalf("title not updated: %q", got.Title)
	}

	if _, err := rides.Update(9999, map[string]interface{}{"title": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}

	if err := rides.Delete(ride.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := rides.Get(ride.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ride still present after delete")
	}
}

func TestSettingsDefaultsOnFirstLoad(t *testing.T) {
	settings := NewSettingsStore(testDB(t))
	got, err := settings.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := models.DefaultSettings()
	if got.Units != want.Units || got.GPSAccuracy != want.GPSAccuracy || got.MapStyle != want.MapStyle {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestSettingsSavePreservesPairingHash(t *testing.T) {
	settings := NewSettingsStore(testDB(t))
	if _, err := settings.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := settings.SetPairingHash("hash-value"); err != nil {
		t.Fatalf("set hash: %v", err)
	}

	updated := models.DefaultSettings()
	updated.Units = "imperial"
	if err := settings.Save(updated); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _ := settings.Load()
	if got.Units != "imperial" {
		t.Fatalf("units not saved")
	}
	if got.PairingHash != "hash-value" {
		t.Fatalf("pairing hash lost on save")
	}
}
