// Package upstream talks to the weather data provider. It normalizes
// provider payloads into model snapshots and classifies failures so callers
// can tell a bad location from a provider outage.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wxgate/weather-gateway/internal/config"
	"github.com/wxgate/weather-gateway/internal/metrics"
	"github.com/wxgate/weather-gateway/internal/model"
)

var (
	// ErrLocationNotFound means the provider does not know the location.
	ErrLocationNotFound = errors.New("upstream: location not found")
	// ErrUnavailable covers provider outages, 5xx responses, and an open
	// circuit. Retryable.
	ErrUnavailable = errors.New("upstream: provider unavailable")
	// ErrRateLimited means the provider throttled us. Retryable.
	ErrRateLimited = errors.New("upstream: provider rate limited")
	// ErrUnauthorized means the provider rejected our credentials.
	ErrUnauthorized = errors.New("upstream: provider rejected credentials")
)

// Client fetches weather data over HTTP with retries, exponential backoff,
// and a circuit breaker around the provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	backoff    time.Duration
}

func NewClient(cfg config.UpstreamConfig) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather-upstream",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.OpenFor,
	})
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
		maxRetries: cfg.MaxRetries,
		backoff:    backoff,
	}
}

// Current fetches the present conditions for loc.
func (c *Client) Current(ctx context.Context, loc model.Location, units model.Units) (model.WeatherSnapshot, error) {
	q := c.baseQuery(loc, units)
	body, err := c.get(ctx, "current", "/data/2.5/weather", q)
	if err != nil {
		return model.WeatherSnapshot{}, err
	}

	var payload currentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.WeatherSnapshot{}, fmt.Errorf("upstream: decode current: %w", err)
	}
	return payload.snapshot(units), nil
}

// Forecast fetches up to days of forecast entries (3h resolution).
func (c *Client) Forecast(ctx context.Context, loc model.Location, units model.Units, days int) (model.Forecast, error) {
	if days <= 0 {
		days = 5
	}
	q := c.baseQuery(loc, units)
	q.Set("cnt", strconv.Itoa(days*8)) // 8 three-hour steps per day

	body, err := c.get(ctx, "forecast", "/data/2.5/forecast", q)
	if err != nil {
		return nil, err
	}

	var payload listPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("upstream: decode forecast: %w", err)
	}
	return payload.forecast(units), nil
}

// Historical fetches archived readings in [from, to].
func (c *Client) Historical(ctx context.Context, loc model.Location, units model.Units, from, to time.Time) (model.Forecast, error) {
	q := c.baseQuery(loc, units)
	q.Set("type", "hour")
	q.Set("start", strconv.FormatInt(from.Unix(), 10))
	q.Set("end", strconv.FormatInt(to.Unix(), 10))

	body, err := c.get(ctx, "historical", "/data/2.5/history/city", q)
	if err != nil {
		return nil, err
	}

	var payload listPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("upstream: decode historical: %w", err)
	}
	return payload.forecast(units), nil
}

func (c *Client) baseQuery(loc model.Location, units model.Units) url.Values {
	q := url.Values{}
	q.Set("appid", c.apiKey)
	q.Set("units", units.String())
	if loc.HasCoords() {
		q.Set("lat", strconv.FormatFloat(*loc.Lat, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(*loc.Lon, 'f', -1, 64))
	} else {
		place := loc.City
		if loc.Country != "" {
			place = loc.City + "," + loc.Country
		}
		q.Set("q", place)
	}
	return q
}

// get runs one provider call with retries. Retryable failures (net errors,
// 5xx, provider 429) back off exponentially; not-found and credential errors
// return immediately. An open breaker short-circuits without burning retries.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := c.doOnce(ctx, path, q)
		if err == nil {
			metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
			return body, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.UpstreamRequests.WithLabelValues(endpoint, "breaker_open").Inc()
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		if !errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrRateLimited) {
			metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
			return nil, err
		}

		lastErr = err
		if attempt >= c.maxRetries {
			metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
			return nil, lastErr
		}

		delay := c.backoff << attempt
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) doOnce(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, ErrRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			// A bad location is the caller's problem, not a provider
			// fault; report it without tripping the breaker.
			return notFoundMarker{}, nil
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return unauthorizedMarker{}, nil
		default:
			return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
		}
	})
	if err != nil {
		return nil, err
	}

	switch v := result.(type) {
	case []byte:
		return v, nil
	case notFoundMarker:
		return nil, ErrLocationNotFound
	case unauthorizedMarker:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("%w: unexpected breaker result", ErrUnavailable)
	}
}

type notFoundMarker struct{}
type unauthorizedMarker struct{}
