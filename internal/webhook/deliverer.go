package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wxgate/weather-gateway/internal/metrics"
	"github.com/wxgate/weather-gateway/internal/model"
)

// Payload is the JSON body POSTed to the subscriber's callback URL.
type Payload struct {
	SubscriptionID string    `json:"subscription_id"`
	City           string    `json:"city"`
	Country        string    `json:"country"`
	Field          string    `json:"field"`
	Value          float64   `json:"value"`
	Threshold      float64   `json:"threshold"`
	TriggeredAt    time.Time `json:"triggered_at"`
}

// Deliverer POSTs trigger notifications with per-attempt timeouts and
// exponential backoff between attempts.
type Deliverer struct {
	client      *http.Client
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewDeliverer(timeout time.Duration, maxAttempts int, backoffBase, backoffCap time.Duration, logger *zap.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if backoffBase <= 0 {
		backoffBase = 30 * time.Second
	}
	if backoffCap <= 0 {
		backoffCap = 30 * time.Minute
	}
	return &Deliverer{
		client:      &http.Client{},
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextBackoff doubles per attempt from the base, capped.
func (d *Deliverer) nextBackoff(attempt int) time.Duration {
	b := d.backoffBase << attempt
	if b > d.backoffCap || b <= 0 {
		return d.backoffCap
	}
	return b
}

// Deliver POSTs the trigger payload, retrying on non-2xx and transport
// errors. A per-attempt timeout bounds each try; the passed context bounds
// the whole sequence. Returns nil on the first 2xx.
func (d *Deliverer) Deliver(ctx context.Context, ev model.TriggerEvent) error {
	body, err := json.Marshal(Payload{
		SubscriptionID: ev.SubscriptionID,
		City:           ev.City,
		Country:        ev.Country,
		Field:          ev.Field,
		Value:          ev.Value,
		Threshold:      ev.Threshold,
		TriggeredAt:    ev.TriggeredAt,
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, d.nextBackoff(attempt-1)); err != nil {
				return err
			}
		}

		lastErr = d.attempt(ctx, ev.CallbackURL, body)
		if lastErr == nil {
			metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
			return nil
		}
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		d.logger.Warn("webhook delivery attempt failed",
			zap.String("subscription_id", ev.SubscriptionID),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	return fmt.Errorf("webhook: delivery failed after %d attempts: %w", d.maxAttempts, lastErr)
}

func (d *Deliverer) attempt(ctx context.Context, url string, body []byte) error {
	actx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
