package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/wxgate/weather-gateway/internal/model"
)

type stubSubsRepo struct {
	active   int
	inserted []model.WebhookSubscription
	deleted  map[string]bool
}

func (r *stubSubsRepo) Insert(_ context.Context, s model.WebhookSubscription) error {
	r.inserted = append(r.inserted, s)
	return nil
}

func (r *stubSubsRepo) ListByKey(context.Context, int64) ([]model.WebhookSubscription, error) {
	return r.inserted, nil
}

func (r *stubSubsRepo) GetByID(context.Context, string) (*model.WebhookSubscription, error) {
	return nil, nil
}

func (r *stubSubsRepo) Delete(_ context.Context, id string, _ int64) (bool, error) {
	return r.deleted[id], nil
}

func (r *stubSubsRepo) Activate(_ context.Context, id string, _ int64) (bool, error) {
	return r.deleted[id], nil
}

func (r *stubSubsRepo) CountActiveByKey(context.Context, int64) (int, error) {
	return r.active, nil
}

func (r *stubSubsRepo) ListActiveByLocation(context.Context, string, string) ([]model.WebhookSubscription, error) {
	return nil, nil
}

func (r *stubSubsRepo) ActiveLocations(context.Context) ([]model.Location, error) {
	return nil, nil
}

func (r *stubSubsRepo) ClaimTrigger(context.Context, string, time.Time, time.Duration) (bool, error) {
	return false, nil
}

func (r *stubSubsRepo) MarkDelivered(context.Context, string) error { return nil }

func (r *stubSubsRepo) RecordFailure(context.Context, string, int) (int, error) { return 0, nil }

const validWebhookBody = `{
	"city": "London",
	"country": "GB",
	"field": "temperature",
	"comparator": ">",
	"threshold": 30,
	"callback_url": "https://example.com/hook"
}`

func TestCreateWebhook(t *testing.T) {
	repo := &stubSubsRepo{}
	h := createWebhookHandler(repo, testConfig())

	c, rr := newContext(t, http.MethodPost, "/v1/webhooks", validWebhookBody, model.TierBasic)
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["id"] == "" {
		t.Error("response missing subscription id")
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("%d rows inserted", len(repo.inserted))
	}
	sub := repo.inserted[0]
	if sub.CondField != model.FieldTemperature || sub.CondOp != model.CmpGT || sub.CondThreshold != 30 {
		t.Errorf("condition = %+v", sub.Cond())
	}
	if sub.APIKeyID != 1 {
		t.Errorf("api key id = %d", sub.APIKeyID)
	}
}

func TestCreateWebhookRejectsBadField(t *testing.T) {
	h := createWebhookHandler(&stubSubsRepo{}, testConfig())
	body := `{"city":"London","country":"GB","field":"pressure","comparator":">","threshold":1000,"callback_url":"https://example.com/hook"}`
	c, rr := newContext(t, http.MethodPost, "/v1/webhooks", body, model.TierBasic)
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestCreateWebhookRejectsBadComparator(t *testing.T) {
	h := createWebhookHandler(&stubSubsRepo{}, testConfig())
	body := `{"city":"London","country":"GB","field":"temperature","comparator":"!=","threshold":30,"callback_url":"https://example.com/hook"}`
	c, rr := newContext(t, http.MethodPost, "/v1/webhooks", body, model.TierBasic)
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestCreateWebhookRejectsBadCallbackURL(t *testing.T) {
	h := createWebhookHandler(&stubSubsRepo{}, testConfig())
	body := `{"city":"London","country":"GB","field":"temperature","comparator":">","threshold":30,"callback_url":"not-a-url"}`
	c, rr := newContext(t, http.MethodPost, "/v1/webhooks", body, model.TierBasic)
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestCreateWebhookTierLimit(t *testing.T) {
	// Basic allows 3 active webhooks; the repo already reports 3.
	repo := &stubSubsRepo{active: 3}
	h := createWebhookHandler(repo, testConfig())

	c, rr := newContext(t, http.MethodPost, "/v1/webhooks", validWebhookBody, model.TierBasic)
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
	if len(repo.inserted) != 0 {
		t.Error("over-limit create must not insert")
	}

	// The same count is fine on premium.
	c2, rr2 := newContext(t, http.MethodPost, "/v1/webhooks", validWebhookBody, model.TierPremium)
	if err := h(c2); err != nil {
		t.Fatal(err)
	}
	if rr2.Code != http.StatusCreated {
		t.Errorf("premium status = %d, want 201", rr2.Code)
	}
}

func TestDeleteWebhookNotFound(t *testing.T) {
	h := deleteWebhookHandler(&stubSubsRepo{deleted: map[string]bool{}})
	c, rr := newContext(t, http.MethodDelete, "/v1/webhooks/unknown", "", model.TierBasic)
	c.SetParamNames("id")
	c.SetParamValues("unknown")
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestActivateWebhook(t *testing.T) {
	h := activateWebhookHandler(&stubSubsRepo{deleted: map[string]bool{"sub-1": true}})
	c, rr := newContext(t, http.MethodPost, "/v1/webhooks/sub-1/activate", "", model.TierBasic)
	c.SetParamNames("id")
	c.SetParamValues("sub-1")
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}
