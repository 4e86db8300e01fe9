package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wxgate/weather-gateway/internal/model"
)

// SubscriptionsRepository persists webhook subscriptions. All delivery-state
// mutations are single UPDATE statements so overlapping evaluation cycles
// cannot race each other.
type SubscriptionsRepository interface {
	Insert(ctx context.Context, s model.WebhookSubscription) error
	ListByKey(ctx context.Context, apiKeyID int64) ([]model.WebhookSubscription, error)
	GetByID(ctx context.Context, id string) (*model.WebhookSubscription, error)
	Delete(ctx context.Context, id string, apiKeyID int64) (bool, error)
	Activate(ctx context.Context, id string, apiKeyID int64) (bool, error)
	CountActiveByKey(ctx context.Context, apiKeyID int64) (int, error)
	ListActiveByLocation(ctx context.Context, city, country string) ([]model.WebhookSubscription, error)
	ActiveLocations(ctx context.Context) ([]model.Location, error)

	// ClaimTrigger marks the subscription as triggered at triggerTS iff it is
	// active, the trigger is newer than the last one, and the re-notify
	// interval has elapsed. Returns true when this caller won the claim;
	// concurrent evaluations of the same snapshot get false.
	ClaimTrigger(ctx context.Context, id string, triggerTS time.Time, renotify time.Duration) (bool, error)
	// MarkDelivered resets the consecutive-failure count after a 2xx callback.
	MarkDelivered(ctx context.Context, id string) error
	// RecordFailure increments the failure count and suspends the
	// subscription once it reaches threshold. Returns the new count.
	RecordFailure(ctx context.Context, id string, threshold int) (int, error)
}

type SubscriptionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewSubscriptionsRepository(db *sqlx.DB) *SubscriptionsRepositoryImpl {
	return &SubscriptionsRepositoryImpl{db: db}
}

var _ SubscriptionsRepository = (*SubscriptionsRepositoryImpl)(nil)

const subscriptionColumns = `
	id, api_key_id, city, country, cond_field, cond_op, cond_threshold,
	callback_url, status, last_triggered_at, failure_count, created_at, updated_at`

func (r *SubscriptionsRepositoryImpl) Insert(ctx context.Context, s model.WebhookSubscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_subscriptions
		    (id, api_key_id, city, country, cond_field, cond_op, cond_threshold,
		     callback_url, status, failure_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'active', 0, NOW(), NOW())
	`, s.ID, s.APIKeyID, s.City, s.Country,
		s.CondField.String(), s.CondOp.String(), s.CondThreshold, s.CallbackURL)
	return err
}

func (r *SubscriptionsRepositoryImpl) ListByKey(ctx context.Context, apiKeyID int64) ([]model.WebhookSubscription, error) {
	var subs []model.WebhookSubscription
	err := r.db.SelectContext(ctx, &subs, `
		SELECT `+subscriptionColumns+`
		  FROM webhook_subscriptions
		 WHERE api_key_id = ?
		 ORDER BY created_at
	`, apiKeyID)
	return subs, err
}

func (r *SubscriptionsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.WebhookSubscription, error) {
	var s model.WebhookSubscription
	err := r.db.GetContext(ctx, &s, `
		SELECT `+subscriptionColumns+`
		  FROM webhook_subscriptions
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionsRepositoryImpl) Delete(ctx context.Context, id string, apiKeyID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM webhook_subscriptions WHERE id = ? AND api_key_id = ?
	`, id, apiKeyID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Activate is the explicit user action that brings a suspended subscription back.
func (r *SubscriptionsRepositoryImpl) Activate(ctx context.Context, id string, apiKeyID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE webhook_subscriptions
		   SET status = 'active', failure_count = 0, updated_at = NOW()
		 WHERE id = ? AND api_key_id = ?
	`, id, apiKeyID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SubscriptionsRepositoryImpl) CountActiveByKey(ctx context.Context, apiKeyID int64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM webhook_subscriptions WHERE api_key_id = ? AND status = 'active'
	`, apiKeyID)
	return n, err
}

func (r *SubscriptionsRepositoryImpl) ListActiveByLocation(ctx context.Context, city, country string) ([]model.WebhookSubscription, error) {
	var subs []model.WebhookSubscription
	err := r.db.SelectContext(ctx, &subs, `
		SELECT `+subscriptionColumns+`
		  FROM webhook_subscriptions
		 WHERE status = 'active' AND LOWER(city) = LOWER(?) AND LOWER(country) = LOWER(?)
	`, city, country)
	return subs, err
}

func (r *SubscriptionsRepositoryImpl) ActiveLocations(ctx context.Context) ([]model.Location, error) {
	var rows []struct {
		City    string `db:"city"`
		Country string `db:"country"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT city, country FROM webhook_subscriptions WHERE status = 'active'
	`)
	if err != nil {
		return nil, err
	}
	locs := make([]model.Location, 0, len(rows))
	for _, row := range rows {
		locs = append(locs, model.Location{City: row.City, Country: row.Country})
	}
	return locs, nil
}

func (r *SubscriptionsRepositoryImpl) ClaimTrigger(ctx context.Context, id string, triggerTS time.Time, renotify time.Duration) (bool, error) {
	cutoff := triggerTS.Add(-renotify)
	res, err := r.db.ExecContext(ctx, `
		UPDATE webhook_subscriptions
		   SET last_triggered_at = ?, updated_at = NOW()
		 WHERE id = ?
		   AND status = 'active'
		   AND (last_triggered_at IS NULL OR (last_triggered_at < ? AND last_triggered_at <= ?))
	`, triggerTS.UTC(), id, triggerTS.UTC(), cutoff.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SubscriptionsRepositoryImpl) MarkDelivered(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhook_subscriptions
		   SET failure_count = 0, updated_at = NOW()
		 WHERE id = ?
	`, id)
	return err
}

func (r *SubscriptionsRepositoryImpl) RecordFailure(ctx context.Context, id string, threshold int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE webhook_subscriptions
		   SET failure_count = failure_count + 1,
		       status = IF(failure_count + 1 >= ?, 'suspended', status),
		       updated_at = NOW()
		 WHERE id = ?
	`, threshold, id); err != nil {
		return 0, err
	}

	var count int
	if err := tx.GetContext(ctx, &count, `
		SELECT failure_count FROM webhook_subscriptions WHERE id = ?
	`, id); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
