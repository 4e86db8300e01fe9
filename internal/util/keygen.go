package util

import (
	"crypto/rand"
	"encoding/base64"
)

// NewAPIKey generates a tier-prefixed opaque API key, e.g. "premium_xK3...".
// The prefix is cosmetic; authorization always goes through the registry.
func NewAPIKey(tier string) string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return tier + "_" + base64.RawURLEncoding.EncodeToString(buf)
}
