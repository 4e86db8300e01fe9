package model

import (
	"strings"
	"time"
)

type Tier string

const (
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

func (t Tier) String() string { return string(t) }

func (t Tier) Valid() bool {
	return t == TierBasic || t == TierPremium || t == TierEnterprise
}

// ParseTier normalizes input; empty => basic.
// Returns (value, true) if valid; otherwise (basic, false).
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "basic":
		return TierBasic, true
	case "premium":
		return TierPremium, true
	case "enterprise":
		return TierEnterprise, true
	default:
		return TierBasic, false
	}
}

// APIKey is the DB entity persisted in the api_keys table.
// Immutable once issued except for revocation.
type APIKey struct {
	ID        int64     `db:"id"`
	Key       string    `db:"api_key"`
	Name      string    `db:"name"`
	Tier      Tier      `db:"tier"`
	Revoked   bool      `db:"revoked"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Active reports whether the key may be used for requests.
func (k *APIKey) Active() bool { return k != nil && !k.Revoked }
