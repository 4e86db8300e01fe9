package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wxgate/weather-gateway/internal/config"
)

func testPolicy() config.TierConfig {
	return config.TierConfig{PerMinute: 3, PerDay: 5, PerMonth: 10}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAdmitUpToMinuteCeiling(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 10, 0, time.UTC)
	l := New(NewMemoryCounterStore(), "").WithClock(fixedClock(now))
	pol := testPolicy()

	ctx := context.Background()
	for i := 0; i < pol.PerMinute; i++ {
		if err := l.Admit(ctx, 1, pol); err != nil {
			t.Fatalf("request %d unexpectedly rejected: %v", i+1, err)
		}
	}

	err := l.Admit(ctx, 1, pol)
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.Window != WindowMinute {
		t.Errorf("expected minute window breach, got %s", rle.Window)
	}
	if rle.RetryAfter <= 0 || rle.RetryAfter > time.Minute {
		t.Errorf("retry-after out of range: %s", rle.RetryAfter)
	}
	// 12:30:10 -> next minute boundary is 50s away
	if got := rle.RetryAfterSeconds(); got != 50 {
		t.Errorf("expected retry-after 50s, got %d", got)
	}
}

func TestRejectionDoesNotConsumeQuota(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	store := NewMemoryCounterStore()
	l := New(store, "").WithClock(fixedClock(now))
	pol := testPolicy()

	ctx := context.Background()
	for i := 0; i < pol.PerMinute; i++ {
		if err := l.Admit(ctx, 7, pol); err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
	}
	// Rejected attempts must not inflate any window counter.
	for i := 0; i < 4; i++ {
		if err := l.Admit(ctx, 7, pol); err == nil {
			t.Fatal("expected rejection")
		}
	}

	dayKey := l.bucketKey(7, WindowDay, now)
	counts, err := store.Counts(ctx, []string{dayKey})
	if err != nil {
		t.Fatal(err)
	}
	if counts[0] != int64(pol.PerMinute) {
		t.Errorf("day counter = %d, want %d", counts[0], pol.PerMinute)
	}
}

func TestMinuteWindowResetsAtBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 59, 0, time.UTC)
	clock := now
	l := New(NewMemoryCounterStore(), "").WithClock(func() time.Time { return clock })
	pol := testPolicy()
	pol.PerDay = 100
	pol.PerMonth = 100

	ctx := context.Background()
	for i := 0; i < pol.PerMinute; i++ {
		if err := l.Admit(ctx, 1, pol); err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
	}
	if err := l.Admit(ctx, 1, pol); err == nil {
		t.Fatal("expected minute breach before boundary")
	}

	// Cross the top of the minute: a fresh bucket applies.
	clock = now.Add(2 * time.Second)
	if err := l.Admit(ctx, 1, pol); err != nil {
		t.Fatalf("expected admission after boundary, got %v", err)
	}
}

func TestDayCeilingBreachNamesDayWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 30, 0, time.UTC)
	clock := now
	l := New(NewMemoryCounterStore(), "").WithClock(func() time.Time { return clock })
	pol := config.TierConfig{PerMinute: 100, PerDay: 3, PerMonth: 100}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Admit(ctx, 1, pol); err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
	}

	err := l.Admit(ctx, 1, pol)
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.Window != WindowDay {
		t.Errorf("expected day window, got %s", rle.Window)
	}
	wantReset := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if got := now.Add(rle.RetryAfter); !got.Equal(wantReset) {
		t.Errorf("reset at %s, want %s", got, wantReset)
	}
}

func TestKeysDoNotShareCounters(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(NewMemoryCounterStore(), "").WithClock(fixedClock(now))
	pol := testPolicy()

	ctx := context.Background()
	for i := 0; i < pol.PerMinute; i++ {
		if err := l.Admit(ctx, 1, pol); err != nil {
			t.Fatalf("key 1 admit %d: %v", i, err)
		}
	}
	if err := l.Admit(ctx, 1, pol); err == nil {
		t.Fatal("key 1 should be limited")
	}
	if err := l.Admit(ctx, 2, pol); err != nil {
		t.Fatalf("key 2 should be unaffected, got %v", err)
	}
}

func TestNextResetBoundaries(t *testing.T) {
	at := time.Date(2025, 12, 31, 23, 59, 30, 0, time.UTC)

	cases := []struct {
		w    Window
		want time.Time
	}{
		{WindowMinute, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{WindowDay, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{WindowMonth, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := NextReset(c.w, at); !got.Equal(c.want) {
			t.Errorf("NextReset(%s): got %s, want %s", c.w, got, c.want)
		}
	}
}
