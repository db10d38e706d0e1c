package refetch

import (
	"context"
	"log/slog"
	"time"
)

// WorkerConfig holds configuration for the refetch worker.
type WorkerConfig struct {
	LockTTL    time.Duration // Refresh lock TTL (default: 60s)
	EmptySleep time.Duration // Sleep when queue empty (default: 5s)
}

// DefaultConfig returns default worker configuration.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		LockTTL:    60 * time.Second,
		EmptySleep: 5 * time.Second,
	}
}

// Queue is where manual refresh requests come from.
type Queue interface {
	PopRefresh(ctx context.Context) (string, bool, error)
	AcquireRefreshLock(ctx context.Context, source string, ttl time.Duration) (bool, error)
	ReleaseRefreshLock(ctx context.Context, source string) error
}

// Retrier triggers an immediate fetch for one source and reports whether
// it produced items.
type Retrier interface {
	ForceRetrySource(ctx context.Context, source string) bool
}

// Worker drains manual refresh requests from the queue. A request that
// produces nothing is not re-queued; the retry coordinator already owns
// the backoff for failing sources.
type Worker struct {
	cfg     WorkerConfig
	queue   Queue
	retrier Retrier
	log     *slog.Logger
}

// NewWorker creates a new refetch worker.
func NewWorker(cfg WorkerConfig, queue Queue, retrier Retrier) *Worker {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultConfig().LockTTL
	}
	if cfg.EmptySleep <= 0 {
		cfg.EmptySleep = DefaultConfig().EmptySleep
	}
	return &Worker{
		cfg:     cfg,
		queue:   queue,
		retrier: retrier,
		log:     slog.Default().With("component", "refetch"),
	}
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting refetch worker")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Refetch worker stopped")
			return nil
		default:
		}

		source, found, err := w.queue.PopRefresh(ctx)
		if err != nil {
			w.log.Error("Failed to pop refresh request", "error", err)
			w.sleep(ctx)
			continue
		}
		if !found {
			w.sleep(ctx)
			continue
		}

		w.process(ctx, source)
	}
}

// process runs one refresh request under the per-source lock.
func (w *Worker) process(ctx context.Context, source string) {
	locked, err := w.queue.AcquireRefreshLock(ctx, source, w.cfg.LockTTL)
	if err != nil {
		w.log.Error("Failed to acquire refresh lock", "source", source, "error", err)
		return
	}
	if !locked {
		w.log.Debug("Source already being refreshed by another worker", "source", source)
		return
	}
	defer func() {
		if err := w.queue.ReleaseRefreshLock(ctx, source); err != nil {
			w.log.Warn("Failed to release refresh lock", "source", source, "error", err)
		}
	}()

	w.log.Info("Processing refresh request", "source", source)
	if ok := w.retrier.ForceRetrySource(ctx, source); !ok {
		w.log.Warn("Refresh request produced no items", "source", source)
	}
}

// sleep waits the empty-queue backoff, aborting early on shutdown.
func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.cfg.EmptySleep):
	}
}
