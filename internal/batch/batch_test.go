package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wxgate/weather-gateway/internal/model"
)

func items(n int) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{
			Location: model.Location{City: fmt.Sprintf("city-%d", i), Country: "XX"},
			Endpoint: "current",
			Units:    model.UnitsMetric,
		}
	}
	return out
}

func TestExecutePreservesOrder(t *testing.T) {
	o := NewOrchestrator(50, 4, func(_ context.Context, it Item) (json.RawMessage, error) {
		// Vary completion order.
		time.Sleep(time.Duration(len(it.Location.City)%3) * time.Millisecond)
		return json.RawMessage(`"` + it.Location.City + `"`), nil
	})

	in := items(12)
	out, err := o.Execute(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d results, want %d", len(out), len(in))
	}
	for i, r := range out {
		if r.Location.City != in[i].Location.City {
			t.Errorf("slot %d holds %s, want %s", i, r.Location.City, in[i].Location.City)
		}
	}
}

func TestExecutePartialFailure(t *testing.T) {
	o := NewOrchestrator(50, 4, func(_ context.Context, it Item) (json.RawMessage, error) {
		if it.Location.City == "city-3" {
			return nil, errors.New("location not found")
		}
		return json.RawMessage(`{}`), nil
	})

	out, err := o.Execute(context.Background(), items(6))
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range out {
		if i == 3 {
			if r.Error == "" {
				t.Error("slot 3 should carry an error")
			}
			if r.Data != nil {
				t.Error("failed slot must not carry data")
			}
			continue
		}
		if r.Error != "" {
			t.Errorf("slot %d unexpectedly failed: %s", i, r.Error)
		}
	}
}

func TestExecuteEmptyBatch(t *testing.T) {
	o := NewOrchestrator(50, 4, nil)
	if _, err := o.Execute(context.Background(), nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestExecuteTooLarge(t *testing.T) {
	o := NewOrchestrator(50, 4, nil)
	_, err := o.Execute(context.Background(), items(51))
	var tle *TooLargeError
	if !errors.As(err, &tle) {
		t.Fatalf("expected TooLargeError, got %v", err)
	}
	if tle.Count != 51 || tle.Max != 50 {
		t.Errorf("error carries %d/%d, want 51/50", tle.Count, tle.Max)
	}
}

func TestExecuteHonorsConcurrencyCap(t *testing.T) {
	const limit = 3
	var inFlight, peak atomic.Int64
	var mu sync.Mutex

	o := NewOrchestrator(50, limit, func(context.Context, Item) (json.RawMessage, error) {
		n := inFlight.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return json.RawMessage(`{}`), nil
	})

	if _, err := o.Execute(context.Background(), items(20)); err != nil {
		t.Fatal(err)
	}
	if p := peak.Load(); p > limit {
		t.Errorf("peak concurrency %d exceeds cap %d", p, limit)
	}
}
