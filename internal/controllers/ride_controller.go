package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	json "github.com/goccy/go-json"

	"ride_tracker/internal/gpx"
	"ride_tracker/internal/models"
	"ride_tracker/internal/remote"
	"ride_tracker/internal/store"
	"ride_tracker/internal/syncer"
)

// RideController serves the ride history. Reads prefer the remote store
// when it is reachable and fall back to the local store, so the history
// keeps working offline.
type RideController struct {
	rides  *store.RideStore
	remote *remote.Client
	rec    *syncer.Reconciler
}

func NewRideController(rides *store.RideStore, remoteClient *remote.Client, rec *syncer.Reconciler) *RideController {
	return &RideController{rides: rides, remote: remoteClient, rec: rec}
}

// RideResponse is the UI-facing shape of a ride, regardless of which
// store answered.
type RideResponse struct {
	ID            uint                `json:"id"`
	ClientID      string              `json:"client_id"`
	Title         string              `json:"title"`
	Description   string              `json:"description,omitempty"`
	Distance      float64             `json:"distance"`
	Duration      int64               `json:"duration"`
	StartTime     time.Time           `json:"start_time"`
	EndTime       time.Time           `json:"end_time"`
	MaxSpeed      float64             `json:"max_speed"`
	AvgSpeed      float64             `json:"avg_speed"`
	ElevationGain float64             `json:"elevation_gain"`
	StartLocation string              `json:"start_location,omitempty"`
	EndLocation   string              `json:"end_location,omitempty"`
	IsUploaded    bool                `json:"is_uploaded"`
	RemoteID      uint                `json:"remote_id,omitempty"`
	SyncAttempts  int                 `json:"sync_attempts"`
	NeedsReview   bool                `json:"needs_review"`
	Source        string              `json:"source"`
	Route         []models.Coordinate `json:"route,omitempty"`
	Geometry      json.RawMessage     `json:"geometry,omitempty"`
}

// routeGeometry renders a route as a GeoJSON LineString for map layers.
func routeGeometry(route []models.Coordinate) json.RawMessage {
	if len(route) < 2 {
		return nil
	}
	coords := make([]geom.Coord, 0, len(route))
	for _, c := range route {
		coords = append(coords, geom.Coord{c.Longitude, c.Latitude})
	}
	line := geom.NewLineString(geom.XY).MustSetCoords(coords)
	raw, err := geojson.Marshal(line)
	if err != nil {
		logrus.WithError(err).Warn("Could not encode route geometry.")
		return nil
	}
	return raw
}

func toRideResponse(ride models.Ride, source string) RideResponse {
	return RideResponse{
		ID:            ride.ID,
		ClientID:      ride.ClientID,
		Title:         ride.Title,
		Description:   ride.Description,
		Distance:      ride.Distance,
		Duration:      ride.Duration,
		StartTime:     ride.StartTime,
		EndTime:       ride.EndTime,
		MaxSpeed:      ride.MaxSpeed,
		AvgSpeed:      ride.AvgSpeed,
		ElevationGain: ride.ElevationGain,
		StartLocation: ride.StartLocation,
		EndLocation:   ride.EndLocation,
		IsUploaded:    ride.IsUploaded,
		RemoteID:      ride.RemoteID,
		SyncAttempts:  ride.SyncAttempts,
		NeedsReview:   ride.NeedsReview,
		Source:        source,
		Route:         ride.Route,
		Geometry:      routeGeometry(ride.Route),
	}
}

func fromRemoteRide(ride remote.Ride) RideResponse {
	return RideResponse{
		ID:            ride.ID,
		ClientID:      ride.ClientID,
		Title:         ride.Title,
		Description:   ride.Description,
		Distance:      ride.Distance,
		Duration:      ride.Duration,
		StartTime:     ride.StartTime,
		EndTime:       ride.EndTime,
		MaxSpeed:      ride.MaxSpeed,
		AvgSpeed:      ride.AvgSpeed,
		ElevationGain: ride.ElevationGain,
		StartLocation: ride.StartLocation,
		EndLocation:   ride.EndLocation,
		IsUploaded:    true,
		RemoteID:      ride.ID,
		Source:        "remote",
		Route:         ride.Route,
		Geometry:      routeGeometry(ride.Route),
	}
}

// List returns the ride history, remote first when online.
func (rc *RideController) List(c *gin.Context) {
	if rc.rec.Online() {
		remoteRides, err := rc.remote.List(c.Request.Context())
		if err == nil {
			out := make([]RideResponse, 0, len(remoteRides))
			for _, r := range remoteRides {
				out = append(out, fromRemoteRide(r))
			}
			c.JSON(http.StatusOK, out)
			return
		}
		logrus.WithError(err).Warn("Remote ride list failed; answering from local store.")
	}

	rides, err := rc.rides.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list rides"})
		return
	}
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, toRideResponse(r, "local"))
	}
	c.JSON(http.StatusOK, out)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ride id"})
		return 0, false
	}
	return uint(id), true
}

// Get returns one ride with its route.
func (rc *RideController) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if rc.rec.Online() {
		remoteRide, err := rc.remote.Get(c.Request.Context(), id)
		if err == nil {
			c.JSON(http.StatusOK, fromRemoteRide(remoteRide))
			return
		}
		if !errors.Is(err, remote.ErrNotFound) {
			logrus.WithError(err).Warn("Remote ride fetch failed; answering from local store.")
		}
	}

	ride, err := rc.rides.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ride not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load ride"})
		return
	}
	c.JSON(http.StatusOK, toRideResponse(ride, "local"))
}

type rideUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Update edits the user-editable fields locally and mirrors the edit to
// the remote store for already-uploaded rides, best effort.
func (rc *RideController) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var body rideUpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := map[string]interface{}{}
	if body.Title != nil {
		fields["title"] = *body.Title
	}
	if body.Description != nil {
		fields["description"] = *body.Description
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	ride, err := rc.rides.Update(id, fields)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ride not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update ride"})
		return
	}

	if ride.IsUploaded && ride.RemoteID != 0 && rc.rec.Online() {
		if _, err := rc.remote.Update(c.Request.Context(), ride.RemoteID, fields); err != nil {
			logrus.WithError(err).WithField("remote_id", ride.RemoteID).
				Warn("Remote ride update failed; local edit kept.")
		}
	}

	c.JSON(http.StatusOK, toRideResponse(ride, "local"))
}

// Delete removes a ride locally and, for uploaded rides, remotely.
func (rc *RideController) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ride, err := rc.rides.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ride not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load ride"})
		return
	}

	if err := rc.rides.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete ride"})
		return
	}

	if ride.IsUploaded && ride.RemoteID != 0 && rc.rec.Online() {
		if err := rc.remote.Delete(c.Request.Context(), ride.RemoteID); err != nil {
			logrus.WithError(err).WithField("remote_id", ride.RemoteID).
				Warn("Remote ride delete failed; local delete kept.")
		}
	}

	c.Status(http.StatusNoContent)
}

// ClearReview re-arms syncing for a ride parked after repeated upload
// failures, then tries an immediate sweep if online.
func (rc *RideController) ClearReview(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := rc.rides.ClearReview(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ride not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear review flag"})
		return
	}

	if rc.rec.Online() {
		uploaded, failed := rc.rec.Sweep(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"cleared": true, "uploaded": uploaded, "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// SyncNow triggers a sweep on demand, for the UI's manual sync button.
func (rc *RideController) SyncNow(c *gin.Context) {
	if !rc.rec.Online() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "remote store unreachable"})
		return
	}
	uploaded, failed := rc.rec.Sweep(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"uploaded": uploaded, "failed": failed})
}

// ExportGPX downloads a ride as a GPX 1.1 track. Always served from the
// local store: that is the full-fidelity record of what was sampled.
func (rc *RideController) ExportGPX(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ride, err := rc.rides.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ride not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load ride"})
		return
	}

	out, err := gpx.Marshal(ride)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("ride-%d.gpx", ride.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/gpx+xml", out)
}
