package events

import (
	"context"
	"log/slog"
	"time"
)

// Flusher drains pending outbox rows to the event bus.
type Flusher interface {
	FlushOutbox(ctx context.Context) error
}

// OutboxWorker periodically flushes the outbox. The API handlers already
// flush inline after each mutation; the worker sweeps up rows left behind by
// crashes or bus outages.
type OutboxWorker struct {
	flusher  Flusher
	interval time.Duration
	logger   *slog.Logger
}

func NewOutboxWorker(flusher Flusher, interval time.Duration, logger *slog.Logger) *OutboxWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxWorker{flusher: flusher, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.flusher.FlushOutbox(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "outbox flush failed",
					"module", "events",
					"layer", "adapter",
					"operation", "flush_outbox",
					"outcome", "error",
					"error", err,
				)
			}
		}
	}
}
