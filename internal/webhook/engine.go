package webhook

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/wxgate/weather-gateway/internal/metrics"
	"github.com/wxgate/weather-gateway/internal/model"
	"github.com/wxgate/weather-gateway/internal/repository"
)

// Publisher sends one message to the trigger topic.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// SnapshotFunc fetches current conditions for a location, normally through
// the response cache.
type SnapshotFunc func(ctx context.Context, loc model.Location) (model.WeatherSnapshot, error)

// Engine evaluates subscriptions against fresh snapshots. Snapshots arrive
// two ways: pushed via the snapshot topic whenever the cache is populated,
// and pulled by the periodic sweep for locations nobody is querying.
// Claiming the trigger row is what makes evaluation idempotent: overlapping
// evaluations of the same snapshot race on a conditional UPDATE and only one
// wins.
type Engine struct {
	subs     repository.SubscriptionsRepository
	pub      Publisher
	fetch    SnapshotFunc
	renotify time.Duration
	logger   *zap.Logger
}

func NewEngine(subs repository.SubscriptionsRepository, pub Publisher, fetch SnapshotFunc, renotify time.Duration, logger *zap.Logger) *Engine {
	if renotify <= 0 {
		renotify = time.Hour
	}
	return &Engine{subs: subs, pub: pub, fetch: fetch, renotify: renotify, logger: logger}
}

// HandleSnapshot evaluates every active subscription for the snapshot's
// location. A failure on one subscription never blocks the others.
func (e *Engine) HandleSnapshot(ctx context.Context, ev model.SnapshotEvent) error {
	// Snapshots arrive in whichever units the original caller requested;
	// thresholds are metric. Convert before comparing.
	snap := ev.Snapshot.Metric()
	loc := snap.Location
	subs, err := e.subs.ListActiveByLocation(ctx, loc.City, loc.Country)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		metrics.WebhookEvaluations.Inc()
		if !Eval(sub.Cond(), snap) {
			continue
		}

		claimed, err := e.subs.ClaimTrigger(ctx, sub.ID, snap.Timestamp, e.renotify)
		if err != nil {
			e.logger.Error("claim trigger", zap.String("subscription_id", sub.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}

		value, _ := FieldValue(snap, sub.CondField)
		trigger := model.TriggerEvent{
			SubscriptionID: sub.ID,
			APIKeyID:       sub.APIKeyID,
			City:           sub.City,
			Country:        sub.Country,
			Field:          sub.CondField.String(),
			Value:          value,
			Threshold:      sub.CondThreshold,
			CallbackURL:    sub.CallbackURL,
			TriggeredAt:    snap.Timestamp,
		}
		raw, err := json.Marshal(trigger)
		if err != nil {
			e.logger.Error("marshal trigger", zap.String("subscription_id", sub.ID), zap.Error(err))
			continue
		}
		if err := e.pub.Publish(ctx, sub.ID, raw); err != nil {
			e.logger.Error("publish trigger", zap.String("subscription_id", sub.ID), zap.Error(err))
			continue
		}
		e.logger.Info("webhook condition fired",
			zap.String("subscription_id", sub.ID),
			zap.String("field", sub.CondField.String()),
			zap.Float64("value", value),
			zap.Float64("threshold", sub.CondThreshold))
	}
	return nil
}

// Sweep evaluates every location with at least one active subscription.
// Locations with recent request traffic are usually already covered by
// snapshot events; the sweep catches the quiet ones.
func (e *Engine) Sweep(ctx context.Context) {
	locs, err := e.subs.ActiveLocations(ctx)
	if err != nil {
		e.logger.Error("list active locations", zap.Error(err))
		return
	}

	for _, loc := range locs {
		snap, err := e.fetch(ctx, loc)
		if err != nil {
			e.logger.Warn("sweep fetch", zap.String("city", loc.City), zap.Error(err))
			continue
		}
		ev := model.SnapshotEvent{Snapshot: snap, FetchedAt: snap.Timestamp}
		if err := e.HandleSnapshot(ctx, ev); err != nil {
			e.logger.Error("sweep evaluate", zap.String("city", loc.City), zap.Error(err))
		}
	}
}
