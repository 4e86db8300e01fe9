package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/wxgate/weather-gateway/internal/model"
)

// RequestLogRepository is the ClickHouse-backed request audit log.
// Writes happen in batches off the request path; reads back the usage report.
type RequestLogRepository interface {
	InsertBatch(ctx context.Context, logs []model.RequestLog) error
	ListByKey(ctx context.Context, apiKeyID int64, endpoint string, limit, offset int) ([]model.RequestLog, error)
}

type requestLogRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewRequestLogRepository(ch *sqlx.DB) RequestLogRepository {
	return &requestLogRepository{ch: ch}
}

func (r *requestLogRepository) InsertBatch(ctx context.Context, logs []model.RequestLog) error {
	if len(logs) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(logs)*7)

	sb.WriteString(`INSERT INTO wxgw.request_log (id, api_key_id, endpoint, status, cache_hit, duration_ms, created_at) VALUES `)
	for i, l := range logs {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, l.ID, l.APIKeyID, l.Endpoint, l.Status, l.CacheHit, l.DurationMs, l.CreatedAt)
	}

	_, err := r.ch.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *requestLogRepository) ListByKey(ctx context.Context, apiKeyID int64, endpoint string, limit, offset int) ([]model.RequestLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, api_key_id, endpoint, status, cache_hit, duration_ms, created_at
		FROM wxgw.request_log
		WHERE api_key_id = ?
	`
	args := []any{apiKeyID}

	if endpoint != "" {
		q += " AND endpoint = ?"
		args = append(args, endpoint)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.RequestLog
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
