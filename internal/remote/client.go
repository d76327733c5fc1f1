// Package remote talks to the third-party market data source. The source is
// eventually consistent and occasionally incomplete; this package only adapts
// its wire format and bounds how hard we hit it. Caching lives in market.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"covinance/internal/apperr"
	"covinance/internal/galaxy"
	"covinance/internal/logger"
	"covinance/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Source is the read-only query surface of the market data service.
type Source interface {
	SearchSystems(ctx context.Context, name string) ([]System, error)
	SystemListings(ctx context.Context, system string) ([]Listing, error)
	StationListings(ctx context.Context, stationID int64) ([]Listing, error)
	StationsNear(ctx context.Context, origin galaxy.Coordinate, radiusLy float64, limit int) ([]Station, error)
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration // per attempt
	MaxConcurrency int
	MaxRetries     int // retries after the first attempt; capped at 1
	RetryBackoff   time.Duration
}

// Client is a rate-limited HTTP client for the market source.
type Client struct {
	http *resty.Client
	sem  chan struct{}
	opts Options
}

// NewClient creates a client. MaxConcurrency bounds simultaneous outbound
// requests across every caller sharing this client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries > 1 {
		opts.MaxRetries = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "covinance/1.0"
	}

	hc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		http: hc,
		sem:  make(chan struct{}, opts.MaxConcurrency),
		opts: opts,
	}
}

// HealthCheck pings the source to verify connectivity.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	resp, err := c.http.R().SetContext(ctx).Get("/status")
	if err != nil {
		return false
	}
	return resp.StatusCode() == http.StatusOK
}

// SearchSystems returns systems whose name matches.
func (c *Client) SearchSystems(ctx context.Context, name string) ([]System, error) {
	var ws []wireSystem
	if err := c.getJSON(ctx, "systems_search", "/systems/search", map[string]string{"q": name}, &ws); err != nil {
		return nil, err
	}
	out := make([]System, 0, len(ws))
	for _, w := range ws {
		if w.Name != "" {
			out = append(out, w.toSystem())
		}
	}
	return out, nil
}

// SystemListings returns every commodity listing in the system.
func (c *Client) SystemListings(ctx context.Context, system string) ([]Listing, error) {
	var ws []wireListing
	path := fmt.Sprintf("/systems/%s/listings", url.PathEscape(system))
	if err := c.getJSON(ctx, "system_listings", path, nil, &ws); err != nil {
		return nil, err
	}
	return toListings(ws), nil
}

// StationListings returns the commodity listings of one station.
func (c *Client) StationListings(ctx context.Context, stationID int64) ([]Listing, error) {
	var ws []wireListing
	path := fmt.Sprintf("/stations/%d/listings", stationID)
	if err := c.getJSON(ctx, "station_listings", path, nil, &ws); err != nil {
		return nil, err
	}
	return toListings(ws), nil
}

// StationsNear returns stations within radius of origin.
func (c *Client) StationsNear(ctx context.Context, origin galaxy.Coordinate, radiusLy float64, limit int) ([]Station, error) {
	q := map[string]string{
		"x":      strconv.FormatFloat(origin.X, 'f', -1, 64),
		"y":      strconv.FormatFloat(origin.Y, 'f', -1, 64),
		"z":      strconv.FormatFloat(origin.Z, 'f', -1, 64),
		"radius": strconv.FormatFloat(radiusLy, 'f', -1, 64),
	}
	if limit > 0 {
		q["limit"] = strconv.Itoa(limit)
	}
	var ws []wireStation
	if err := c.getJSON(ctx, "stations_near", "/stations/near", q, &ws); err != nil {
		return nil, err
	}
	out := make([]Station, 0, len(ws))
	for _, w := range ws {
		if w.ID != 0 {
			out = append(out, w.toStation())
		}
	}
	return out, nil
}

// getJSON performs one logical GET: bounded by the semaphore, each attempt by
// the per-call timeout, with at most MaxRetries retries on transient failures.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, query map[string]string, dst interface{}) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.sem }()

	start := time.Now()
	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		req := c.http.R().SetContext(callCtx)
		if len(query) > 0 {
			req.SetQueryParams(query)
		}
		resp, err := req.Get(path)
		if err != nil {
			return fmt.Errorf("%s: %w", endpoint, err)
		}

		code := resp.StatusCode()
		switch {
		case code == http.StatusNotFound:
			return backoff.Permanent(apperr.New(apperr.KindNotFound, "%s: not found", endpoint))
		case code == http.StatusTooManyRequests || code >= 500:
			return fmt.Errorf("%s: remote %d", endpoint, code)
		case code != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("%s: remote %d: %s", endpoint, code, truncate(resp.String(), 200)))
		}
		if err := json.Unmarshal(resp.Body(), dst); err != nil {
			return backoff.Permanent(fmt.Errorf("%s: decode: %w", endpoint, err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		logger.Warn("Remote", "retrying", zap.String("endpoint", endpoint), zap.Duration("wait", wait), zap.Error(err))
	})
	metrics.RemoteLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.RemoteRequests.WithLabelValues(endpoint, "ok").Inc()
	case apperr.KindOf(err) == apperr.KindNotFound:
		metrics.RemoteRequests.WithLabelValues(endpoint, "not_found").Inc()
	default:
		metrics.RemoteRequests.WithLabelValues(endpoint, "error").Inc()
		logger.Warn("Remote", "request failed", zap.String("endpoint", endpoint), zap.Int("attempts", attempt), zap.Error(err))
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
