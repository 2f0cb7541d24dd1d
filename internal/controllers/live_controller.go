package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	json "github.com/goccy/go-json"

	"ride_tracker/internal/middleware"
	"ride_tracker/internal/models"
	"ride_tracker/internal/sampler"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the UI origin varies per install; auth is the token
	},
}

// LiveUpdate is one frame of the live feed: the running stats after an
// accepted fix, or a one-second display tick.
type LiveUpdate struct {
	Type             string             `json:"type"` // "fix" or "tick"
	Duration         int64              `json:"duration"`
	Distance         float64            `json:"distance"`
	CurrentSpeed     float64            `json:"current_speed"`
	AvgSpeed         float64            `json:"avg_speed"`
	MaxSpeed         float64            `json:"max_speed"`
	GPSSignalQuality string             `json:"gps_signal_quality"`
	Point            *models.Coordinate `json:"point,omitempty"`
}

// LiveHub fans live updates out to every connected UI client. Each
// client owns a buffered send channel drained by a single writer
// goroutine; the connection only ever has one writer, which gorilla
// requires.
type LiveHub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]chan LiveUpdate
	broadcast chan LiveUpdate
}

// NewLiveHub creates the hub and starts its broadcasting goroutine.
func NewLiveHub() *LiveHub {
	hub := &LiveHub{
		clients:   make(map[*websocket.Conn]chan LiveUpdate),
		broadcast: make(chan LiveUpdate, 100),
	}
	go hub.run()
	return hub
}

func (h *LiveHub) run() {
	for msg := range h.broadcast {
		h.mu.Lock()
		for conn, send := range h.clients {
			select {
			case send <- msg:
			default:
				// Slow client; dropping a live frame beats blocking the
				// feed for everyone else.
				logrus.WithField("conn_ptr", fmt.Sprintf("%p", conn)).
					Warn("Client send buffer full, dropping live frame.")
			}
		}
		h.mu.Unlock()
	}
}

// Register adds a UI client connection to the hub and starts its writer.
func (h *LiveHub) Register(conn *websocket.Conn) {
	send := make(chan LiveUpdate, 32)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	go h.write(conn, send)
	logrus.WithField("conn_ptr", fmt.Sprintf("%p", conn)).Info("Client registered with LiveHub.")
}

// write drains one client's send channel. Exits when the client is
// unregistered; a write failure unregisters it.
func (h *LiveHub) write(conn *websocket.Conn, send <-chan LiveUpdate) {
	for update := range send {
		if err := conn.WriteJSON(update); err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logrus.WithField("conn_ptr", fmt.Sprintf("%p", conn)).Info("Client closed during broadcast, unregistering.")
			} else {
				logrus.WithError(err).Warn("Failed to send live update to client, unregistering.")
			}
			h.Unregister(conn)
			return
		}
	}
}

// Unregister removes a client and closes its send channel, ending the
// writer. Safe to call more than once for the same connection.
func (h *LiveHub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	send, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
	if ok {
		logrus.WithField("conn_ptr", fmt.Sprintf("%p", conn)).Info("Client unregistered from LiveHub.")
	}
}

// Publish queues an update for broadcast without blocking the caller.
func (h *LiveHub) Publish(update LiveUpdate) {
	select {
	case h.broadcast <- update:
	default:
		logrus.Warn("Live broadcast channel full, dropping update.")
	}
}

// FixGateway feeds fixes pushed by the UI over the WebSocket into the
// sampler. It is the production sampler.Source: Watch attaches a fresh
// delivery channel, canceling the watch context detaches it, and fixes
// pushed while nothing is attached are dropped (the session is paused or
// not running).
type FixGateway struct {
	mu    sync.Mutex
	fixes chan sampler.Fix
	errs  chan error
}

func NewFixGateway() *FixGateway {
	return &FixGateway{}
}

// Watch implements sampler.Source.
func (g *FixGateway) Watch(ctx context.Context, opts sampler.Options) (<-chan sampler.Fix, <-chan error, error) {
	fixes := make(chan sampler.Fix, 64)
	errs := make(chan error, 8)

	g.mu.Lock()
	g.fixes = fixes
	g.errs = errs
	g.mu.Unlock()

	go func() {
		<-ctx.Done()
		g.mu.Lock()
		if g.fixes == fixes {
			g.fixes = nil
			g.errs = nil
		}
		g.mu.Unlock()
	}()

	return fixes, errs, nil
}

// PushFix hands a raw fix to the attached session, if any. Never blocks:
// a full buffer drops the fix, which the filter chain treats like any
// other gap in delivery.
func (g *FixGateway) PushFix(f sampler.Fix) bool {
	g.mu.Lock()
	ch := g.fixes
	g.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case ch <- f:
		return true
	default:
		logrus.Warn("Fix buffer full, dropping raw fix.")
		return false
	}
}

// PushError forwards a transient positioning error (signal lost,
// timeout) to the attached session.
func (g *FixGateway) PushError(err error) bool {
	g.mu.Lock()
	ch := g.errs
	g.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case ch <- err:
		return true
	default:
		return false
	}
}

// fixMessage is the inbound WebSocket payload from the UI's geolocation
// watcher. Timestamps arrive in whatever shape the platform produced.
type fixMessage struct {
	Type             string   `json:"type"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Altitude         *float64 `json:"altitude"`
	Speed            *float64 `json:"speed"`
	Heading          *float64 `json:"heading"`
	Accuracy         *float64 `json:"accuracy"`
	AltitudeAccuracy *float64 `json:"altitude_accuracy"`
	Timestamp        string   `json:"timestamp"`
	Message          string   `json:"message,omitempty"`
}

// fix converts the payload, tolerating timestamps without a timezone
// suffix by assuming UTC.
func (m fixMessage) fix() (sampler.Fix, error) {
	f := sampler.Fix{
		Latitude:         m.Latitude,
		Longitude:        m.Longitude,
		Altitude:         m.Altitude,
		Speed:            m.Speed,
		Heading:          m.Heading,
		Accuracy:         m.Accuracy,
		AltitudeAccuracy: m.AltitudeAccuracy,
	}
	if m.Timestamp == "" {
		f.Timestamp = time.Now().UTC()
		return f, nil
	}

	ts := m.Timestamp
	if len(ts) > 6 && !(strings.HasSuffix(ts, "Z") || strings.ContainsAny(ts[len(ts)-6:], "+-")) {
		ts += "Z"
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return sampler.Fix{}, fmt.Errorf("invalid timestamp %q: %w", m.Timestamp, err)
	}
	f.Timestamp = t
	return f, nil
}

// LiveController serves the live WebSocket: the UI pushes raw fixes up
// and receives stats frames down, on the same connection.
type LiveController struct {
	hub     *LiveHub
	gateway *FixGateway
	auth    *middleware.Auth
}

func NewLiveController(hub *LiveHub, gateway *FixGateway, auth *middleware.Auth) *LiveController {
	return &LiveController{hub: hub, gateway: gateway, auth: auth}
}

// HandleLiveWebSocket upgrades the connection after validating the
// pairing token passed as a query parameter (browsers cannot set headers
// on WebSocket dials).
func (lc *LiveController) HandleLiveWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
		return
	}
	if err := lc.auth.ValidateToken(token); err != nil {
		logrus.WithError(err).Warn("Live WebSocket connection rejected: invalid token.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade live WebSocket connection.")
		return
	}
	defer conn.Close()

	lc.hub.Register(conn)
	defer lc.hub.Unregister(conn)

	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Info("Live WebSocket closed.")
			} else {
				logrus.WithError(err).Error("Error reading live WebSocket message.")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		lc.handleMessage(p)
	}
}

// handleMessage never writes to the connection; the hub's writer
// goroutine is the only writer. Bad frames are logged and dropped.
func (lc *LiveController) handleMessage(p []byte) {
	var msg fixMessage
	if err := json.Unmarshal(p, &msg); err != nil {
		logrus.WithError(err).WithField("payload", string(p)).Error("Error unmarshaling live message.")
		return
	}

	switch msg.Type {
	case "fix":
		f, err := msg.fix()
		if err != nil {
			logrus.WithError(err).Error("Rejecting fix with unparseable timestamp.")
			return
		}
		if !lc.gateway.PushFix(f) {
			logrus.Debug("Fix received with no active session; dropped.")
		}
	case "signal_lost":
		reason := msg.Message
		if reason == "" {
			reason = "position unavailable"
		}
		lc.gateway.PushError(errors.New(reason))
	default:
		logrus.WithField("type", msg.Type).Warn("Unexpected live message type. Ignoring.")
	}
}
