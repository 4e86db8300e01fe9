// Package recorder streams per-request usage rows into ClickHouse with
// size/time batched flushes. Recording is fire-and-forget: the request path
// never blocks on analytics storage.
package recorder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wxgate/weather-gateway/internal/model"
	"github.com/wxgate/weather-gateway/internal/repository"
)

type Recorder struct {
	repo          repository.RequestLogRepository
	in            chan model.RequestLog
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
}

func New(repo repository.RequestLogRepository, batchSize int, flushInterval time.Duration, bufferSize int, logger *zap.Logger) *Recorder {
	if batchSize <= 0 {
		batchSize = 200
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if bufferSize <= 0 {
		bufferSize = batchSize * 4
	}
	return &Recorder{
		repo:          repo,
		in:            make(chan model.RequestLog, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
	}
}

// Record enqueues one usage row. When the buffer is full the row is dropped;
// usage analytics tolerate loss, request latency does not.
func (r *Recorder) Record(row model.RequestLog) {
	select {
	case r.in <- row:
	default:
		r.logger.Warn("usage recorder buffer full, dropping row")
	}
}

// Run flushes batches on size or interval until ctx is canceled, then drains
// what is buffered.
func (r *Recorder) Run(ctx context.Context) {
	tick := time.NewTicker(r.flushInterval)
	defer tick.Stop()

	batch := make([]model.RequestLog, 0, r.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Detached context so a shutdown flush still lands.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.repo.InsertBatch(fctx, batch); err != nil {
			r.logger.Error("flush request log batch", zap.Int("rows", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// Drain remaining buffered rows before the final flush.
			for {
				select {
				case row := <-r.in:
					batch = append(batch, row)
					if len(batch) >= r.batchSize {
						flush()
					}
					continue
				default:
				}
				break
			}
			flush()
			return

		case row := <-r.in:
			batch = append(batch, row)
			if len(batch) >= r.batchSize {
				flush()
			}

		case <-tick.C:
			flush()
		}
	}
}
