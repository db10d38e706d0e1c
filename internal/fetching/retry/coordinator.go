package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"trending-service/internal/core/domain"
	"trending-service/internal/infra/source"
	"trending-service/internal/infra/storage"
	"trending-service/internal/metrics"
)

// ErrNotRegistered is returned when a fetch is requested for a source that
// has no collector bound.
var ErrNotRegistered = errors.New("source not registered")

// Coordinator is the per-source retry state machine and the single place
// registered collectors are actually invoked. It keeps the latest result
// and the outstanding retry task per source in memory and mirrors failures
// into the ledger so retry state survives a restart.
type Coordinator struct {
	backoff *Backoff
	ledger  storage.FailureRepository
	items   storage.ItemRepository
	log     *slog.Logger

	mu         sync.Mutex
	collectors map[string]source.Collector
	results    map[string]*domain.FetchResult
	queue      map[string]*domain.RetryTask
}

// NewCoordinator creates a coordinator. The ledger and item repository may
// be nil in tests; production wiring always provides both.
func NewCoordinator(backoff *Backoff, ledger storage.FailureRepository, items storage.ItemRepository) *Coordinator {
	if backoff == nil {
		backoff = DefaultBackoff()
	}
	return &Coordinator{
		backoff:    backoff,
		ledger:     ledger,
		items:      items,
		log:        slog.Default().With("component", "retry"),
		collectors: make(map[string]source.Collector),
		results:    make(map[string]*domain.FetchResult),
		queue:      make(map[string]*domain.RetryTask),
	}
}

// Register binds a collector to a source name. Registering an existing name
// replaces the previous collector.
func (c *Coordinator) Register(name string, collector source.Collector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collectors[name] = collector
}

// Sources returns the registered source names in stable order.
func (c *Coordinator) Sources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.collectors))
	for name := range c.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QueueSize returns the number of sources waiting for a retry.
func (c *Coordinator) QueueSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Snapshot returns a copy of the latest in-memory result per source.
func (c *Coordinator) Snapshot() map[string]*domain.FetchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*domain.FetchResult, len(c.results))
	for name, result := range c.results {
		cp := *result
		out[name] = &cp
	}
	return out
}

// RecordResult stores the latest result for a source and reconciles the
// retry queue: a retryable failure schedules (or reschedules) a retry task,
// anything else clears the outstanding task. The ledger write happens on
// every call; a ledger error is logged and never blocks retry progress.
func (c *Coordinator) RecordResult(ctx context.Context, result *domain.FetchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := *result
	c.results[result.Source] = &stored

	if !result.Success && c.backoff.ShouldRetry(result.RetryCount) {
		now := time.Now()
		delay := c.backoff.Delay(result.RetryCount)
		c.queue[result.Source] = &domain.RetryTask{
			Source:       result.Source,
			RetryCount:   result.RetryCount,
			NextRetryAt:  now.Add(delay),
			ErrorMessage: result.ErrorMessage,
			CreatedAt:    now,
		}
		c.log.Info("Retry scheduled",
			"source", result.Source,
			"retry_count", result.RetryCount,
			"delay", delay)
	} else {
		delete(c.queue, result.Source)
		if !result.Success {
			c.log.Warn("Retries exhausted",
				"source", result.Source,
				"retry_count", result.RetryCount,
				"error", result.ErrorMessage)
		}
	}
	metrics.RetryQueueSize.Set(float64(len(c.queue)))

	c.persistLocked(ctx, result)
}

// persistLocked mirrors a result into the failure ledger. Callers hold mu.
func (c *Coordinator) persistLocked(ctx context.Context, result *domain.FetchResult) {
	if c.ledger == nil {
		return
	}
	var err error
	switch {
	case result.Success:
		err = c.ledger.MarkSuccess(ctx, result.Source)
	case c.backoff.ShouldRetry(result.RetryCount):
		next := time.Now().Add(c.backoff.Delay(result.RetryCount))
		err = c.ledger.SaveFailure(ctx, result.Source, result.ErrorMessage, result.RetryCount, &next)
	default:
		// Exhausted: record the final error, then close the row.
		err = c.ledger.SaveFailure(ctx, result.Source, result.ErrorMessage, result.RetryCount, nil)
		if err == nil {
			err = c.ledger.MarkFailed(ctx, result.Source)
		}
	}
	if err != nil {
		c.log.Warn("Failure ledger write failed", "source", result.Source, "error", err)
	}
}

// Fetch runs a fresh attempt for a source, resetting its retry streak.
// The daily cycle uses this path.
func (c *Coordinator) Fetch(ctx context.Context, name string) (*domain.FetchResult, error) {
	return c.attempt(ctx, name, 0, 0)
}

// ForceRetry fetches a source immediately, bypassing any scheduled backoff.
// An outstanding retry task continues its streak; otherwise the streak
// starts fresh, which is how an exhausted source re-enters the cycle.
func (c *Coordinator) ForceRetry(ctx context.Context, name string) (*domain.FetchResult, error) {
	c.mu.Lock()
	task := c.queue[name]
	c.mu.Unlock()

	rcSuccess, rcFail := 0, 0
	if task != nil {
		rcSuccess, rcFail = task.RetryCount, task.RetryCount+1
	}
	return c.attempt(ctx, name, rcSuccess, rcFail)
}

// ProcessDueRetries pops every task whose retry time has arrived and runs
// the attempts sequentially, oldest first. Each outcome flows back through
// RecordResult, so a failing retry reschedules itself with a longer delay
// until the policy gives up. The results are returned for downstream
// decisions such as report regeneration.
func (c *Coordinator) ProcessDueRetries(ctx context.Context) []*domain.FetchResult {
	now := time.Now()
	c.mu.Lock()
	var due []*domain.RetryTask
	for name, task := range c.queue {
		if !task.NextRetryAt.After(now) {
			due = append(due, task)
			delete(c.queue, name)
		}
	}
	c.mu.Unlock()

	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextRetryAt.Equal(due[j].NextRetryAt) {
			return due[i].Source < due[j].Source
		}
		return due[i].NextRetryAt.Before(due[j].NextRetryAt)
	})

	results := make([]*domain.FetchResult, 0, len(due))
	for _, task := range due {
		c.log.Info("Retrying source", "source", task.Source, "retry_count", task.RetryCount+1)
		result, err := c.attempt(ctx, task.Source, task.RetryCount, task.RetryCount+1)
		if err != nil {
			c.log.Warn("Dropping retry for unregistered source", "source", task.Source)
			continue
		}
		results = append(results, result)
	}
	return results
}

// Requeue rebuilds the in-memory retry queue from the ledger's pending
// rows so backoff state survives a restart. Rows for sources that are no
// longer registered are left alone.
func (c *Coordinator) Requeue(ctx context.Context) error {
	if c.ledger == nil {
		return nil
	}
	pending, err := c.ledger.GetPendingFailures(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending failures: %w", err)
	}

	now := time.Now()
	c.mu.Lock()
	requeued := 0
	for _, failure := range pending {
		if _, ok := c.collectors[failure.Source]; !ok {
			continue
		}
		next := now
		if failure.NextRetryAt != nil {
			next = *failure.NextRetryAt
		}
		c.queue[failure.Source] = &domain.RetryTask{
			Source:       failure.Source,
			RetryCount:   failure.RetryCount,
			NextRetryAt:  next,
			ErrorMessage: failure.ErrorMessage,
			CreatedAt:    failure.CreatedAt,
		}
		requeued++
	}
	metrics.RetryQueueSize.Set(float64(len(c.queue)))
	c.mu.Unlock()

	if requeued > 0 {
		c.log.Info("Requeued pending failures", "count", requeued)
	}
	return nil
}

// attempt runs one fetch for a source and records the outcome. The retry
// count assigned to the result depends on the path: rcOnSuccess keeps the
// streak that was needed, rcOnFail extends it. The collector call happens
// outside the lock so a slow source never blocks status reads.
func (c *Coordinator) attempt(ctx context.Context, name string, rcOnSuccess, rcOnFail int) (*domain.FetchResult, error) {
	c.mu.Lock()
	collector, ok := c.collectors[name]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	delete(c.queue, name)
	if prev := c.results[name]; prev != nil {
		prev.Status = domain.FetchStatusRetrying
	}
	c.mu.Unlock()

	start := time.Now()
	items, err := collector.Fetch(ctx)
	metrics.FetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	result := &domain.FetchResult{Source: name, Timestamp: time.Now()}
	if err == nil {
		err = c.refresh(ctx, name, items)
	}
	if err != nil {
		metrics.FetchAttempts.WithLabelValues(name, "failure").Inc()
		result.ErrorMessage = err.Error()
		result.RetryCount = rcOnFail
		if c.backoff.ShouldRetry(rcOnFail) {
			result.Status = domain.FetchStatusPending
		} else {
			result.Status = domain.FetchStatusFailed
		}
		c.RecordResult(ctx, result)
		return result, nil
	}

	metrics.FetchAttempts.WithLabelValues(name, "success").Inc()
	result.Success = true
	result.ItemCount = len(items)
	result.RetryCount = rcOnSuccess
	result.Status = domain.FetchStatusSuccess
	c.RecordResult(ctx, result)
	return result, nil
}

// refresh replaces today's snapshot for a source with the fetched batch.
// An empty batch leaves the previous snapshot in place. A batch that cannot
// be stored fails the attempt so the retry machinery repairs durability.
func (c *Coordinator) refresh(ctx context.Context, name string, items []*domain.TrendingItem) error {
	if c.items == nil || len(items) == 0 {
		return nil
	}
	inserted, err := c.items.RefreshItems(ctx, name, items, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store items: %w", err)
	}
	metrics.ItemsStored.WithLabelValues(name).Add(float64(inserted))
	c.log.Debug("Snapshot refreshed", "source", name, "items", inserted)
	return nil
}
