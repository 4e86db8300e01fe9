// Package weather is the read path of the gateway: cache-fronted upstream
// fetches, analytics derivation, and batch fan-out. Fresh current-conditions
// payloads are published to the snapshot topic for webhook evaluation.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/wxgate/weather-gateway/internal/analytics"
	"github.com/wxgate/weather-gateway/internal/batch"
	"github.com/wxgate/weather-gateway/internal/cache"
	"github.com/wxgate/weather-gateway/internal/model"
)

// Fetcher is the upstream capability the service consumes.
type Fetcher interface {
	Current(ctx context.Context, loc model.Location, units model.Units) (model.WeatherSnapshot, error)
	Forecast(ctx context.Context, loc model.Location, units model.Units, days int) (model.Forecast, error)
	Historical(ctx context.Context, loc model.Location, units model.Units, from, to time.Time) (model.Forecast, error)
}

// Publisher sends snapshot events to the snapshot topic.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type Service struct {
	cache    *cache.Cache
	upstream Fetcher
	pub      Publisher // nil disables snapshot events
	logger   *zap.Logger
}

func New(c *cache.Cache, up Fetcher, pub Publisher, logger *zap.Logger) *Service {
	s := &Service{cache: c, upstream: up, pub: pub, logger: logger}
	c.OnPopulate(s.publishSnapshot)
	return s
}

// Current returns present conditions, cached. The bool reports a cache hit.
func (s *Service) Current(ctx context.Context, loc model.Location, units model.Units, ttl time.Duration) (model.WeatherSnapshot, bool, error) {
	q := cache.Query{Endpoint: "current", Location: loc, Units: units}
	res, err := s.cache.GetOrFetch(ctx, q, ttl, func(fctx context.Context) ([]byte, error) {
		snap, err := s.upstream.Current(fctx, loc, units)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snap)
	})
	if err != nil {
		return model.WeatherSnapshot{}, false, err
	}

	var snap model.WeatherSnapshot
	if err := json.Unmarshal(res.Payload, &snap); err != nil {
		return model.WeatherSnapshot{}, false, fmt.Errorf("weather: decode cached snapshot: %w", err)
	}
	return snap, res.Hit, nil
}

// Forecast returns up to days of forecast entries, cached.
func (s *Service) Forecast(ctx context.Context, loc model.Location, units model.Units, days int, ttl time.Duration) (model.Forecast, bool, error) {
	if days <= 0 {
		days = 5
	}
	q := cache.Query{
		Endpoint: "forecast",
		Location: loc,
		Units:    units,
		Params:   map[string]string{"days": strconv.Itoa(days)},
	}
	res, err := s.cache.GetOrFetch(ctx, q, ttl, func(fctx context.Context) ([]byte, error) {
		fc, err := s.upstream.Forecast(fctx, loc, units, days)
		if err != nil {
			return nil, err
		}
		return json.Marshal(fc)
	})
	if err != nil {
		return nil, false, err
	}

	var fc model.Forecast
	if err := json.Unmarshal(res.Payload, &fc); err != nil {
		return nil, false, fmt.Errorf("weather: decode cached forecast: %w", err)
	}
	return fc, res.Hit, nil
}

// Historical returns archived readings for [from, to], cached.
func (s *Service) Historical(ctx context.Context, loc model.Location, units model.Units, from, to time.Time, ttl time.Duration) (model.Forecast, bool, error) {
	q := cache.Query{
		Endpoint: "historical",
		Location: loc,
		Units:    units,
		Params: map[string]string{
			"from": from.UTC().Format(time.RFC3339),
			"to":   to.UTC().Format(time.RFC3339),
		},
	}
	res, err := s.cache.GetOrFetch(ctx, q, ttl, func(fctx context.Context) ([]byte, error) {
		fc, err := s.upstream.Historical(fctx, loc, units, from, to)
		if err != nil {
			return nil, err
		}
		return json.Marshal(fc)
	})
	if err != nil {
		return nil, false, err
	}

	var fc model.Forecast
	if err := json.Unmarshal(res.Payload, &fc); err != nil {
		return nil, false, fmt.Errorf("weather: decode cached historical: %w", err)
	}
	return fc, res.Hit, nil
}

// Analytics derives business insights from current conditions.
func (s *Service) Analytics(ctx context.Context, loc model.Location, units model.Units, ttl time.Duration) (model.WeatherSnapshot, analytics.Result, bool, error) {
	snap, hit, err := s.Current(ctx, loc, units, ttl)
	if err != nil {
		return model.WeatherSnapshot{}, analytics.Result{}, false, err
	}
	return snap, analytics.Derive(snap), hit, nil
}

// Snapshot is the webhook sweep's snapshot source: current conditions in
// metric units through the shared cache.
func (s *Service) Snapshot(ctx context.Context, loc model.Location) (model.WeatherSnapshot, error) {
	snap, _, err := s.Current(ctx, loc, model.UnitsMetric, 0)
	return snap, err
}

// BatchFetch adapts the service into the batch orchestrator's item resolver.
func (s *Service) BatchFetch(ttl time.Duration) batch.FetchFunc {
	return func(ctx context.Context, item batch.Item) (json.RawMessage, error) {
		switch item.Endpoint {
		case "forecast":
			fc, _, err := s.Forecast(ctx, item.Location, item.Units, item.Days, ttl)
			if err != nil {
				return nil, err
			}
			return json.Marshal(fc)
		default:
			snap, _, err := s.Current(ctx, item.Location, item.Units, ttl)
			if err != nil {
				return nil, err
			}
			return json.Marshal(snap)
		}
	}
}

// publishSnapshot feeds the snapshot topic on every fresh current-conditions
// populate. Runs on the cache's fetch goroutine.
func (s *Service) publishSnapshot(q cache.Query, payload []byte, fetchedAt time.Time) {
	if s.pub == nil || q.Endpoint != "current" {
		return
	}
	var snap model.WeatherSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return
	}

	ev := model.SnapshotEvent{Fingerprint: q.Fingerprint(), Snapshot: snap, FetchedAt: fetchedAt}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.pub.Publish(ctx, snap.Location.Key(), raw); err != nil {
		s.logger.Warn("publish snapshot event", zap.String("location", snap.Location.Key()), zap.Error(err))
	}
}
