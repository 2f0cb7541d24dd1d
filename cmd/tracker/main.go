package main

import (
	"context"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"

	"ride_tracker/internal/config"
	"ride_tracker/internal/controllers"
	"ride_tracker/internal/logger"
	"ride_tracker/internal/middleware"
	"ride_tracker/internal/remote"
	"ride_tracker/internal/routes"
	"ride_tracker/internal/sampler"
	"ride_tracker/internal/store"
	"ride_tracker/internal/syncer"
)

func main() {
	// Initialize structured logging to file
	logger.Setup()

	cfg := config.Load()

	// Open the embedded local store
	db, err := config.OpenDB(cfg)
	if err != nil {
		log.Fatalf("local store: %v", err)
	}

	rideStore := store.NewRideStore(db)
	settingsStore := store.NewSettingsStore(db)

	auth := middleware.NewAuth(cfg.JWTSecret)

	remoteClient := remote.New(remote.Config{
		BaseURL: cfg.RemoteBaseURL,
		Token:   cfg.RemoteToken,
		Timeout: cfg.RemoteTimeout,
	})

	// Background connectivity probing and sync sweeps
	rec := syncer.New(rideStore, remoteClient, cfg.MaxSyncAttempts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Watch(ctx, cfg.SyncProbeInterval)

	hub := controllers.NewLiveHub()
	gateway := controllers.NewFixGateway()

	pairing := controllers.NewAuthController(settingsStore, auth)
	if err := pairing.EnsurePIN(cfg.PairingPIN); err != nil {
		logrus.WithError(err).Warn("Could not provision pairing PIN; pairing stays disabled.")
	}

	deps := routes.Deps{
		Auth:     auth,
		Pairing:  pairing,
		Session:  controllers.NewSessionController(gateway, hub, settingsStore, rec, sampler.NewLogWakeLock()),
		Rides:    controllers.NewRideController(rideStore, remoteClient, rec),
		Settings: controllers.NewSettingsController(settingsStore),
		Live:     controllers.NewLiveController(hub, gateway, auth),
	}

	r := routes.SetupRouter(deps)

	// Wrap with CORS
	handler := middleware.EnableCORS(r)

	log.Println("🏍️ Tracker running at", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, handler))
}
