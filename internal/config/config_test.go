package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.HTTP.Addr == "" {
		t.Error("http addr missing from defaults")
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("cache ttl = %s, want 5m", cfg.Cache.TTL)
	}
	for _, name := range []string{"basic", "premium", "enterprise"} {
		if _, ok := cfg.Tiers[name]; !ok {
			t.Errorf("tier %q missing from defaults", name)
		}
	}
}

func TestDefaultUpstreamBaseURLHasNoAPIPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	// The client appends /data/2.5/... itself; a base URL already carrying
	// the path would double it on every request.
	if strings.Contains(cfg.Upstream.BaseURL, "/data/") {
		t.Errorf("upstream base_url %q must not include the API path", cfg.Upstream.BaseURL)
	}
	if strings.HasSuffix(cfg.Upstream.BaseURL, "/") {
		t.Errorf("upstream base_url %q must not end with a slash", cfg.Upstream.BaseURL)
	}
}

func TestTierFallsBackToBasic(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Tier("gold"); got != cfg.Tiers["basic"] {
		t.Errorf("unknown tier policy = %+v, want basic", got)
	}
}
