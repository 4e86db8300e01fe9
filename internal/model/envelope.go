package model

import "time"

// SnapshotEvent is published to Kafka whenever the response cache is
// populated with a fresh current-conditions snapshot. The webhook engine
// consumes it to evaluate subscriptions without polling.
type SnapshotEvent struct {
	Fingerprint string          `json:"fingerprint"`
	Snapshot    WeatherSnapshot `json:"snapshot"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// TriggerEvent is published to Kafka when a subscription's condition fires.
// The notify worker consumes it and delivers the callback. The callback
// payload sent to the user is a trimmed view (see webhook.Payload), not this
// envelope.
type TriggerEvent struct {
	SubscriptionID string    `json:"subscription_id"`
	APIKeyID       int64     `json:"api_key_id"`
	City           string    `json:"city"`
	Country        string    `json:"country"`
	Field          string    `json:"field"`
	Value          float64   `json:"value"`
	Threshold      float64   `json:"threshold"`
	CallbackURL    string    `json:"callback_url"`
	TriggeredAt    time.Time `json:"triggered_at"`
}
