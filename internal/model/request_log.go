package model

import "time"

// RequestLog is one admitted request, appended to ClickHouse off the hot path.
type RequestLog struct {
	ID         string    `db:"id" json:"id"`
	APIKeyID   int64     `db:"api_key_id" json:"-"`
	Endpoint   string    `db:"endpoint" json:"endpoint"`
	Status     int       `db:"status" json:"status"`
	CacheHit   bool      `db:"cache_hit" json:"cache_hit"`
	DurationMs int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
