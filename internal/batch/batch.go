// Package batch fans one request out over many locations. Items resolve
// independently and concurrently under a bounded cap; a failed item marks
// only its own slot.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/wxgate/weather-gateway/internal/model"
)

var ErrEmptyBatch = errors.New("batch: no locations given")

// TooLargeError reports a batch above the configured ceiling.
type TooLargeError struct {
	Count, Max int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("batch: %d locations exceeds maximum of %d", e.Count, e.Max)
}

// Item is one (location, endpoint) query inside a batch.
type Item struct {
	Location model.Location
	Endpoint string // current | forecast
	Units    model.Units
	Days     int // forecast only
}

// ItemResult is one slot of the batch response. Exactly one of Data and
// Error is set.
type ItemResult struct {
	Location model.Location  `json:"location"`
	Endpoint string          `json:"endpoint"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// FetchFunc resolves a single item, typically through the response cache.
type FetchFunc func(ctx context.Context, item Item) (json.RawMessage, error)

// Orchestrator runs batches with a fixed concurrency cap.
type Orchestrator struct {
	maxItems    int
	concurrency int
	fetch       FetchFunc
}

func NewOrchestrator(maxItems, concurrency int, fetch FetchFunc) *Orchestrator {
	if maxItems <= 0 {
		maxItems = 50
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Orchestrator{maxItems: maxItems, concurrency: concurrency, fetch: fetch}
}

// Execute resolves every item and returns results in input order. It fails
// as a whole only when the batch itself is malformed; per-item failures are
// recorded in their slot and never abort the rest.
func (o *Orchestrator) Execute(ctx context.Context, items []Item) ([]ItemResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(items) > o.maxItems {
		return nil, &TooLargeError{Count: len(items), Max: o.maxItems}
	}

	results := make([]ItemResult, len(items))
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(i int, item Item) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := ItemResult{Location: item.Location, Endpoint: item.Endpoint}
			data, err := o.fetch(ctx, item)
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Data = data
			}
			results[i] = res
		}(i, item)
	}
	wg.Wait()

	return results, nil
}
