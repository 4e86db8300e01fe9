package recorder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wxgate/weather-gateway/internal/model"
)

type captureRepo struct {
	mu      sync.Mutex
	batches [][]model.RequestLog
}

func (r *captureRepo) InsertBatch(_ context.Context, logs []model.RequestLog) error {
	cp := append([]model.RequestLog(nil), logs...)
	r.mu.Lock()
	r.batches = append(r.batches, cp)
	r.mu.Unlock()
	return nil
}

func (r *captureRepo) ListByKey(context.Context, int64, string, int, int) ([]model.RequestLog, error) {
	return nil, nil
}

func (r *captureRepo) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func row(i int) model.RequestLog {
	return model.RequestLog{
		ID:       fmt.Sprintf("req-%d", i),
		APIKeyID: 1,
		Endpoint: "current",
		Status:   200,
	}
}

func TestFlushOnBatchSize(t *testing.T) {
	repo := &captureRepo{}
	rec := New(repo, 5, time.Hour, 100, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		rec.Record(row(i))
	}

	deadline := time.After(time.Second)
	for repo.total() < 5 {
		select {
		case <-deadline:
			t.Fatalf("only %d rows flushed", repo.total())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.batches) != 1 || len(repo.batches[0]) != 5 {
		t.Errorf("expected one batch of 5, got %d batches, total %d", len(repo.batches), repo.total())
	}
}

func TestFlushOnInterval(t *testing.T) {
	repo := &captureRepo{}
	rec := New(repo, 100, 10*time.Millisecond, 100, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Record(row(0))
	rec.Record(row(1))

	deadline := time.After(time.Second)
	for repo.total() < 2 {
		select {
		case <-deadline:
			t.Fatalf("interval flush never happened, %d rows", repo.total())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDrainOnShutdown(t *testing.T) {
	repo := &captureRepo{}
	rec := New(repo, 100, time.Hour, 100, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	for i := 0; i < 7; i++ {
		rec.Record(row(i))
	}
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	if repo.total() != 7 {
		t.Errorf("drained %d rows, want 7", repo.total())
	}
}

func TestRecordDropsWhenFull(t *testing.T) {
	repo := &captureRepo{}
	// Never run the loop; buffer of 3 fills immediately.
	rec := New(repo, 100, time.Hour, 3, zap.NewNop())

	for i := 0; i < 10; i++ {
		rec.Record(row(i))
	}
	if len(rec.in) != 3 {
		t.Errorf("buffer holds %d rows, want 3", len(rec.in))
	}
}
