// Package nominatim resolves addresses with an OpenStreetMap Nominatim server.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goforj/odm/geo"
)

const (
	// DefaultBaseURL is the public OpenStreetMap instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	// DefaultInterval keeps to the public instance's one request per second.
	DefaultInterval = time.Second
	DefaultTimeout  = 10 * time.Second
)

// Client is a geo.Resolver. Requests are paced so consecutive calls are at
// least Interval apart. It is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	interval  time.Duration

	mu   sync.Mutex
	last time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Nominatim server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithInterval sets the minimum spacing between requests.
func WithInterval(d time.Duration) Option {
	return func(c *Client) { c.interval = d }
}

// New returns a client identifying itself as userAgent, which Nominatim's
// usage policy requires.
func New(userAgent string, opts ...Option) (*Client, error) {
	if userAgent == "" {
		return nil, errors.New("nominatim: user agent is required")
	}
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: userAgent,
		http:      &http.Client{Timeout: DefaultTimeout},
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("nominatim: base url: %w", err)
	}
	return c, nil
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve returns the first match for address. Transport timeouts and
// throttling responses are reported as geo.ErrTimeout.
func (c *Client) Resolve(ctx context.Context, address string) (geo.Point, error) {
	if err := c.pace(ctx); err != nil {
		return geo.Point{}, err
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return geo.Point{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return geo.Point{}, ctx.Err()
		}
		if isTimeout(err) {
			return geo.Point{}, fmt.Errorf("%w: %v", geo.ErrTimeout, err)
		}
		return geo.Point{}, fmt.Errorf("nominatim: search: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return geo.Point{}, fmt.Errorf("%w: status %d", geo.ErrTimeout, resp.StatusCode)
	default:
		return geo.Point{}, fmt.Errorf("nominatim: search: unexpected status %d", resp.StatusCode)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		if isTimeout(err) {
			return geo.Point{}, fmt.Errorf("%w: %v", geo.ErrTimeout, err)
		}
		return geo.Point{}, fmt.Errorf("nominatim: decode: %w", err)
	}
	if len(places) == 0 {
		return geo.Point{}, fmt.Errorf("%w: %q", geo.ErrNotFound, address)
	}
	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("nominatim: latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("nominatim: longitude: %w", err)
	}
	return geo.NewPoint(lat, lon)
}

// pace blocks until interval has passed since the previous request.
func (c *Client) pace(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	next := c.last.Add(c.interval)
	if next.Before(now) {
		next = now
	}
	c.last = next
	c.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
