package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/wxgate/weather-gateway/internal/model"
)

// Query is the semantic identity of an upstream request. Two queries that
// mean the same thing must produce the same fingerprint, so all parts are
// normalized before hashing: locations are case-insensitive, coordinates are
// rounded to two decimals, units are canonical, and extra parameters are
// sorted.
type Query struct {
	Endpoint string // current | forecast | historical
	Location model.Location
	Units    model.Units
	Params   map[string]string // endpoint extras (days, date range)
}

// Fingerprint returns the content-addressed cache key for the query.
// Caching is deliberately not tenant-scoped: the weather in a city does not
// depend on who asks.
func (q Query) Fingerprint() string {
	var sb strings.Builder

	sb.WriteString(strings.ToLower(strings.TrimSpace(q.Endpoint)))
	sb.WriteByte('|')

	if q.Location.HasCoords() {
		// Round to ~1km so jittery client coordinates coalesce.
		fmt.Fprintf(&sb, "@%.2f,%.2f", *q.Location.Lat, *q.Location.Lon)
	} else {
		sb.WriteString(strings.ToLower(strings.TrimSpace(q.Location.City)))
		sb.WriteByte(',')
		sb.WriteString(strings.ToLower(strings.TrimSpace(q.Location.Country)))
	}
	sb.WriteByte('|')

	units := q.Units
	if units == "" {
		units = model.UnitsMetric
	}
	sb.WriteString(units.String())

	if len(q.Params) > 0 {
		keys := make([]string, 0, len(q.Params))
		for k := range q.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteByte('|')
			sb.WriteString(strings.ToLower(k))
			sb.WriteByte('=')
			sb.WriteString(strings.ToLower(strings.TrimSpace(q.Params[k])))
		}
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
