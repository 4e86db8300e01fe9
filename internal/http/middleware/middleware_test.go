package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"

	"github.com/wxgate/weather-gateway/internal/config"
	"github.com/wxgate/weather-gateway/internal/limiter"
	"github.com/wxgate/weather-gateway/internal/model"
)

type fakeKeysRepo struct {
	keys map[string]*model.APIKey
}

func (r *fakeKeysRepo) GetByKey(_ context.Context, key string) (*model.APIKey, error) {
	return r.keys[key], nil
}

func (r *fakeKeysRepo) Insert(context.Context, model.APIKey) (int64, error) { return 0, nil }
func (r *fakeKeysRepo) Revoke(context.Context, string) (bool, error)       { return false, nil }
func (r *fakeKeysRepo) List(context.Context) ([]model.APIKey, error)       { return nil, nil }

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func doRequest(t *testing.T, mw echo.MiddlewareFunc, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/weather/current", nil)
	if decorate != nil {
		decorate(req)
	}
	rr := httptest.NewRecorder()
	c := e.NewContext(req, rr)
	if err := mw(okHandler)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rr
}

func testRepo() *fakeKeysRepo {
	return &fakeKeysRepo{keys: map[string]*model.APIKey{
		"basic_good":   {ID: 1, Key: "basic_good", Tier: model.TierBasic},
		"basic_burned": {ID: 2, Key: "basic_burned", Tier: model.TierBasic, Revoked: true},
	}}
}

func TestAPIKeyMissing(t *testing.T) {
	rr := doRequest(t, APIKeyMiddleware(testRepo()), nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestAPIKeyUnknown(t *testing.T) {
	rr := doRequest(t, APIKeyMiddleware(testRepo()), func(r *http.Request) {
		r.Header.Set("X-API-Key", "nope")
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestAPIKeyRevoked(t *testing.T) {
	rr := doRequest(t, APIKeyMiddleware(testRepo()), func(r *http.Request) {
		r.Header.Set("X-API-Key", "basic_burned")
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("revoked key admitted: status = %d", rr.Code)
	}
}

func TestAPIKeyHeaderForms(t *testing.T) {
	for name, decorate := range map[string]func(*http.Request){
		"x-api-key": func(r *http.Request) { r.Header.Set("X-API-Key", "basic_good") },
		"bearer":    func(r *http.Request) { r.Header.Set("Authorization", "Bearer basic_good") },
	} {
		rr := doRequest(t, APIKeyMiddleware(testRepo()), decorate)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", name, rr.Code)
		}
	}
}

func limitedConfig(perMinute int) config.Config {
	return config.Config{Tiers: map[string]config.TierConfig{
		"basic": {PerMinute: perMinute, PerDay: 1000, PerMonth: 10000},
	}}
}

func authedContext(e *echo.Echo, rr *httptest.ResponseRecorder) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/v1/weather/current", nil)
	c := e.NewContext(req, rr)
	c.Set("api_key", &model.APIKey{ID: 1, Tier: model.TierBasic})
	return c
}

func TestRateLimitAdmitsThenRejects(t *testing.T) {
	lim := limiter.New(limiter.NewMemoryCounterStore(), "")
	mw := RateLimitMiddleware(lim, limitedConfig(3))
	e := echo.New()

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		if err := mw(okHandler)(authedContext(e, rr)); err != nil {
			t.Fatal(err)
		}
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	if err := mw(okHandler)(authedContext(e, rr)); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if got := rr.Header().Get("X-RateLimit-Window"); got != "minute" {
		t.Errorf("X-RateLimit-Window = %q, want minute", got)
	}
}

func TestRateLimitPerKeyIsolation(t *testing.T) {
	lim := limiter.New(limiter.NewMemoryCounterStore(), "")
	mw := RateLimitMiddleware(lim, limitedConfig(1))
	e := echo.New()

	first := httptest.NewRecorder()
	if err := mw(okHandler)(authedContext(e, first)); err != nil {
		t.Fatal(err)
	}

	// A different key still has headroom.
	req := httptest.NewRequest(http.MethodGet, "/v1/weather/current", nil)
	rr := httptest.NewRecorder()
	c := e.NewContext(req, rr)
	c.Set("api_key", &model.APIKey{ID: 2, Tier: model.TierBasic})
	if err := mw(okHandler)(c); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK {
		t.Errorf("unrelated key limited: status %d", rr.Code)
	}
}
