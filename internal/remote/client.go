package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"ride_tracker/internal/models"
)

var (
	// ErrNotFound maps a 404 from the rides API.
	ErrNotFound = errors.New("remote: ride not found")
	// ErrBadRequest maps a 400: malformed id or invalid body.
	ErrBadRequest = errors.New("remote: bad request")
	// ErrUnavailable means the circuit is open or the service did not
	// answer; the caller should operate offline and retry later.
	ErrUnavailable = errors.New("remote: service unavailable")
)

// Ride is the remote store's representation of a ride record.
type Ride struct {
	ID            uint                `json:"id"`
	ClientID      string              `json:"client_id"`
	Title         string              `json:"title"`
	Description   string              `json:"description,omitempty"`
	UserID        uint                `json:"user_id,omitempty"`
	Distance      float64             `json:"distance"`
	Duration      int64               `json:"duration"`
	StartTime     time.Time           `json:"start_time"`
	EndTime       time.Time           `json:"end_time"`
	MaxSpeed      float64             `json:"max_speed"`
	AvgSpeed      float64             `json:"avg_speed"`
	ElevationGain float64             `json:"elevation_gain,omitempty"`
	StartLocation string              `json:"start_location,omitempty"`
	EndLocation   string              `json:"end_location,omitempty"`
	Route         []models.Coordinate `json:"route,omitempty"`
	IsUploaded    bool                `json:"is_uploaded"`
}

// Config for the rides API client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type response struct {
	status int
	body   []byte
}

// Client talks to the remote rides REST service. All calls go through a
// circuit breaker so that a dead or flapping server stops costing a full
// timeout per ride mid-sweep.
type Client struct {
	base  string
	token string
	http  *http.Client
	cb    *gobreaker.CircuitBreaker[response]
}

// New builds a client. Breaker tuning: opens after a 60% failure rate
// over at least 5 requests, waits 30s before probing again.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "rides-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Rides API circuit breaker state changed.")
		},
	})

	return &Client{
		base:  cfg.BaseURL,
		token: cfg.Token,
		http:  &http.Client{Timeout: timeout},
		cb:    cb,
	}
}

// Ping reports whether the rides API is reachable. Any HTTP answer below
// 500 counts as online.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/rides", nil)
	if err != nil && resp.status == 0 {
		return err
	}
	if resp.status >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.status)
	}
	return nil
}

// List fetches all rides.
func (c *Client) List(ctx context.Context) ([]Ride, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/rides", nil)
	if err != nil {
		return nil, err
	}
	if err := statusError(resp.status); err != nil {
		return nil, err
	}
	var rides []Ride
	if err := json.Unmarshal(resp.body, &rides); err != nil {
		return nil, fmt.Errorf("decode rides list: %w", err)
	}
	return rides, nil
}

// Get fetches one ride by remote id.
func (c *Client) Get(ctx context.Context, id uint) (Ride, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/rides/%d", id), nil)
	if err != nil {
		return Ride{}, err
	}
	if err := statusError(resp.status); err != nil {
		return Ride{}, err
	}
	var ride Ride
	if err := json.Unmarshal(resp.body, &ride); err != nil {
		return Ride{}, fmt.Errorf("decode ride: %w", err)
	}
	return ride, nil
}

// Create submits a locally recorded ride, whole. The client id makes the
// call idempotent; the server stamps is_uploaded=true and assigns its
// own id, returned in the response.
func (c *Client) Create(ctx context.Context, ride models.Ride) (Ride, error) {
	payload := Ride{
		ClientID:      ride.ClientID,
		Title:         ride.Title,
		Description:   ride.Description,
		UserID:        ride.UserID,
		Distance:      ride.Distance,
		Duration:      ride.Duration,
		StartTime:     ride.StartTime,
		EndTime:       ride.EndTime,
		MaxSpeed:      ride.MaxSpeed,
		AvgSpeed:      ride.AvgSpeed,
		ElevationGain: ride.ElevationGain,
		StartLocation: ride.StartLocation,
		EndLocation:   ride.EndLocation,
		Route:         ride.Route,
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/rides", payload)
	if err != nil {
		return Ride{}, err
	}
	if resp.status != http.StatusCreated && resp.status != http.StatusOK {
		return Ride{}, statusErrorOr(resp.status)
	}
	var created Ride
	if err := json.Unmarshal(resp.body, &created); err != nil {
		return Ride{}, fmt.Errorf("decode created ride: %w", err)
	}
	return created, nil
}

// Update sends a partial update of a remote ride.
func (c *Client) Update(ctx context.Context, id uint, fields map[string]interface{}) (Ride, error) {
	resp, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/rides/%d", id), fields)
	if err != nil {
		return Ride{}, err
	}
	if err := statusError(resp.status); err != nil {
		return Ride{}, err
	}
	var ride Ride
	if err := json.Unmarshal(resp.body, &ride); err != nil {
		return Ride{}, fmt.Errorf("decode updated ride: %w", err)
	}
	return ride, nil
}

// Delete removes a remote ride. The API answers 204 on success.
func (c *Client) Delete(ctx context.Context, id uint) error {
	resp, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/rides/%d", id), nil)
	if err != nil {
		return err
	}
	if resp.status != http.StatusNoContent {
		return statusErrorOr(resp.status)
	}
	return nil
}

// do executes one request through the circuit breaker. Transport errors
// and 5xx answers count against the breaker; 4xx answers are decisions,
// not failures.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (response, error) {
	resp, err := c.cb.Execute(func() (response, error) {
		var reader io.Reader
		if body != nil {
			encoded, err := json.Marshal(body)
			if err != nil {
				return response{}, fmt.Errorf("encode request body: %w", err)
			}
			reader = bytes.NewReader(encoded)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
		if err != nil {
			return response{}, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		res, err := c.http.Do(req)
		if err != nil {
			return response{}, err
		}
		defer res.Body.Close()

		payload, err := io.ReadAll(res.Body)
		if err != nil {
			return response{}, err
		}
		if res.StatusCode >= 500 {
			return response{status: res.StatusCode, body: payload},
				fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
		}
		return response{status: res.StatusCode, body: payload}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		// 5xx answers carry their status through for Ping.
		if resp.status >= 500 {
			return resp, err
		}
		return response{}, err
	}
	return resp, nil
}

func statusError(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest:
		return ErrBadRequest
	case status >= 400:
		return fmt.Errorf("remote: unexpected status %d", status)
	default:
		return nil
	}
}

func statusErrorOr(status int) error {
	if err := statusError(status); err != nil {
		return err
	}
	return fmt.Errorf("remote: unexpected status %d", status)
}
