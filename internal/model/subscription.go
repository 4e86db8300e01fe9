package model

import (
	"strings"
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionSuspended SubscriptionStatus = "suspended"
)

func (s SubscriptionStatus) String() string { return string(s) }

func (s SubscriptionStatus) Valid() bool {
	return s == SubscriptionActive || s == SubscriptionSuspended
}

// ConditionField is a snapshot field a webhook condition can target.
type ConditionField string

const (
	FieldTemperature ConditionField = "temperature"
	FieldHumidity    ConditionField = "humidity"
	FieldWindSpeed   ConditionField = "wind_speed"
	FieldPrecipProb  ConditionField = "precipitation_probability"
)

func (f ConditionField) String() string { return string(f) }

// ParseConditionField returns (value, true) for a known field name.
func ParseConditionField(s string) (ConditionField, bool) {
	switch ConditionField(strings.ToLower(strings.TrimSpace(s))) {
	case FieldTemperature:
		return FieldTemperature, true
	case FieldHumidity:
		return FieldHumidity, true
	case FieldWindSpeed:
		return FieldWindSpeed, true
	case FieldPrecipProb:
		return FieldPrecipProb, true
	default:
		return "", false
	}
}

// Comparator is a webhook condition operator.
type Comparator string

const (
	CmpGT Comparator = ">"
	CmpLT Comparator = "<"
	CmpGE Comparator = ">="
	CmpLE Comparator = "<="
	CmpEQ Comparator = "=="
)

func (c Comparator) String() string { return string(c) }

// ParseComparator returns (value, true) for a known operator.
func ParseComparator(s string) (Comparator, bool) {
	switch Comparator(strings.TrimSpace(s)) {
	case CmpGT, CmpLT, CmpGE, CmpLE, CmpEQ:
		return Comparator(strings.TrimSpace(s)), true
	default:
		return "", false
	}
}

// Condition is a tagged (field, comparator, threshold) triple evaluated by a
// small interpreter; never free-form code.
type Condition struct {
	Field      ConditionField `json:"field"`
	Comparator Comparator     `json:"comparator"`
	Threshold  float64        `json:"threshold"`
}

// WebhookSubscription is the DB entity persisted in webhook_subscriptions.
// The condition triple is stored flat (cond_* columns) for sqlx scanning.
type WebhookSubscription struct {
	ID              string             `db:"id" json:"id"`
	APIKeyID        int64              `db:"api_key_id" json:"-"`
	City            string             `db:"city" json:"city"`
	Country         string             `db:"country" json:"country"`
	CondField       ConditionField     `db:"cond_field" json:"field"`
	CondOp          Comparator         `db:"cond_op" json:"comparator"`
	CondThreshold   float64            `db:"cond_threshold" json:"threshold"`
	CallbackURL     string             `db:"callback_url" json:"callback_url"`
	Status          SubscriptionStatus `db:"status" json:"status"`
	LastTriggeredAt *time.Time         `db:"last_triggered_at" json:"last_triggered_at,omitempty"`
	FailureCount    int                `db:"failure_count" json:"failure_count"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"-"`
}

// Cond returns the subscription's condition triple.
func (s WebhookSubscription) Cond() Condition {
	return Condition{Field: s.CondField, Comparator: s.CondOp, Threshold: s.CondThreshold}
}

// LocationKey groups subscriptions by their target location.
func (s WebhookSubscription) LocationKey() string {
	return strings.ToLower(strings.TrimSpace(s.City)) + ":" + strings.ToLower(strings.TrimSpace(s.Country))
}
