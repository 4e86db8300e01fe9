package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/wxgate/weather-gateway/internal/model"
)

// KeysRepository is the API key registry: the leaf dependency every
// request-path component resolves callers through.
type KeysRepository interface {
	// GetByKey returns the key row, or (nil, nil) when unknown.
	GetByKey(ctx context.Context, apiKey string) (*model.APIKey, error)
	Insert(ctx context.Context, k model.APIKey) (int64, error)
	Revoke(ctx context.Context, apiKey string) (bool, error)
	List(ctx context.Context) ([]model.APIKey, error)
}

type KeysRepositoryImpl struct {
	db *sqlx.DB
}

func NewKeysRepository(db *sqlx.DB) *KeysRepositoryImpl {
	return &KeysRepositoryImpl{db: db}
}

var _ KeysRepository = (*KeysRepositoryImpl)(nil)

func (r *KeysRepositoryImpl) GetByKey(ctx context.Context, apiKey string) (*model.APIKey, error) {
	var k model.APIKey
	err := r.db.GetContext(ctx, &k, `
		SELECT id, api_key, name, tier, revoked, created_at, updated_at
		  FROM api_keys
		 WHERE api_key = ? LIMIT 1
	`, apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *KeysRepositoryImpl) Insert(ctx context.Context, k model.APIKey) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (api_key, name, tier, revoked, created_at, updated_at)
		VALUES (?, ?, ?, 0, NOW(), NOW())
	`, k.Key, k.Name, k.Tier.String())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Revoke flips the revoked flag; keys are never deleted.
func (r *KeysRepositoryImpl) Revoke(ctx context.Context, apiKey string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE api_keys SET revoked = 1, updated_at = NOW() WHERE api_key = ? AND revoked = 0
	`, apiKey)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *KeysRepositoryImpl) List(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	err := r.db.SelectContext(ctx, &keys, `
		SELECT id, api_key, name, tier, revoked, created_at, updated_at
		  FROM api_keys
		 ORDER BY id
	`)
	return keys, err
}
