package fetching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trending-service/internal/core/domain"
	"trending-service/internal/fetching/retry"
	"trending-service/internal/fetching/schedule"
	"trending-service/internal/infra/storage"
	"trending-service/internal/metrics"
)

// Task names registered with the scheduler.
const (
	TaskFetchTrending = "fetch_trending"
	TaskCleanup       = "cleanup_old_data"
)

// Config holds fetch orchestration settings.
type Config struct {
	FetchHour     int
	FetchMinute   int
	CleanupHour   int
	CleanupMinute int
	RetentionDays int
	PollInterval  time.Duration
}

// ReportGenerator regenerates downstream report artifacts after new data
// lands. Regeneration is best-effort; a failure never fails the cycle.
type ReportGenerator interface {
	Regenerate(ctx context.Context) (string, error)
}

// Notifier publishes lifecycle events and owns notification retention.
type Notifier interface {
	CycleCompleted(ctx context.Context, cycleID string, stats map[string]int) error
	RetriesExhausted(ctx context.Context, source, errorMessage string) error
	PruneOld(ctx context.Context, days int) (int64, error)
}

// Service owns the collection lifecycle: the daily cycle, the retry sweep,
// the manual refresh surface, and data retention.
type Service struct {
	cfg      Config
	sched    *schedule.Scheduler
	coord    *retry.Coordinator
	ledger   storage.FailureRepository
	items    storage.ItemRepository
	reports  ReportGenerator
	notifier Notifier
	log      *slog.Logger
}

// NewService wires the scheduler tasks around the coordinator. reports and
// notifier may be nil, which disables those side effects.
func NewService(
	cfg Config,
	coord *retry.Coordinator,
	ledger storage.FailureRepository,
	items storage.ItemRepository,
	reports ReportGenerator,
	notifier Notifier,
) *Service {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	s := &Service{
		cfg:      cfg,
		coord:    coord,
		ledger:   ledger,
		items:    items,
		reports:  reports,
		notifier: notifier,
		log:      slog.Default().With("component", "fetching"),
	}
	s.sched = schedule.NewScheduler(cfg.PollInterval, s.retrySweep)
	s.sched.AddTask(TaskFetchTrending, schedule.DailyAt(cfg.FetchHour, cfg.FetchMinute), s.runCycle, true)
	s.sched.AddTask(TaskCleanup, schedule.DailyAt(cfg.CleanupHour, cfg.CleanupMinute), s.cleanupOldData, true)
	return s
}

// Start restores persisted retry state and runs the scheduler loop. It
// blocks until Stop is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if err := s.coord.Requeue(ctx); err != nil {
		s.log.Warn("Failed to requeue pending failures", "error", err)
	}
	return s.sched.Start(ctx)
}

// Stop shuts down the scheduler loop.
func (s *Service) Stop(ctx context.Context) error {
	return s.sched.Stop(ctx)
}

// Sources returns the registered source names.
func (s *Service) Sources() []string {
	return s.coord.Sources()
}

// RetryQueueSize returns the number of sources waiting for a retry.
func (s *Service) RetryQueueSize() int {
	return s.coord.QueueSize()
}

// runCycle fetches every registered source sequentially. One failing
// source never aborts the cycle; its retry is scheduled by the
// coordinator and the loop moves on.
func (s *Service) runCycle(ctx context.Context) error {
	cycleID := uuid.New().String()
	log := s.log.With("cycle", cycleID)
	start := time.Now()

	sources := s.coord.Sources()
	log.Info("Starting collection cycle", "sources", len(sources))

	succeeded := 0
	for _, name := range sources {
		result, err := s.coord.Fetch(ctx, name)
		if err != nil {
			log.Error("Fetch dispatch failed", "source", name, "error", err)
			continue
		}
		if result.Success {
			succeeded++
			log.Info("Source fetched", "source", name, "items", result.ItemCount)
		} else {
			log.Warn("Source failed", "source", name, "error", result.ErrorMessage)
		}
	}

	s.regenerateReport(ctx)
	s.announceCycle(ctx, cycleID)

	duration := time.Since(start)
	metrics.CycleDuration.Observe(duration.Seconds())
	log.Info("Collection cycle finished",
		"succeeded", succeeded,
		"failed", len(sources)-succeeded,
		"duration", duration)
	return nil
}

// retrySweep runs due retries once per scheduler tick. A recovery with new
// items regenerates the report; a terminal failure raises a notification.
func (s *Service) retrySweep(ctx context.Context) {
	results := s.coord.ProcessDueRetries(ctx)
	if len(results) == 0 {
		return
	}

	recovered := false
	for _, result := range results {
		if result.Success && result.ItemCount > 0 {
			recovered = true
		}
		if result.Status == domain.FetchStatusFailed && s.notifier != nil {
			if err := s.notifier.RetriesExhausted(ctx, result.Source, result.ErrorMessage); err != nil {
				s.log.Warn("Exhaustion notification failed", "source", result.Source, "error", err)
			}
		}
	}
	if recovered {
		s.regenerateReport(ctx)
	}
}

// FetchStatus returns per-source status, merging in-memory results with
// pending ledger rows for sources that have not been fetched since the
// last restart.
func (s *Service) FetchStatus(ctx context.Context) map[string]domain.SourceStatus {
	statuses := make(map[string]domain.SourceStatus)
	for name, result := range s.coord.Snapshot() {
		statuses[name] = domain.SourceStatus{
			Success:      result.Success,
			ItemCount:    result.ItemCount,
			LastUpdate:   result.Timestamp,
			ErrorMessage: result.ErrorMessage,
			RetryCount:   result.RetryCount,
			Status:       result.Status,
		}
	}

	pending, err := s.ledger.GetPendingFailures(ctx)
	if err != nil {
		s.log.Warn("Failed to read failure ledger", "error", err)
		return statuses
	}
	for _, failure := range pending {
		if _, ok := statuses[failure.Source]; ok {
			continue
		}
		statuses[failure.Source] = domain.SourceStatus{
			Success:      false,
			LastUpdate:   failure.LastTryAt,
			ErrorMessage: failure.ErrorMessage,
			RetryCount:   failure.RetryCount,
			Status:       domain.FetchStatusPending,
		}
	}
	return statuses
}

// ForceRetrySource fetches a source immediately, bypassing any scheduled
// backoff. It reports whether the attempt produced items.
func (s *Service) ForceRetrySource(ctx context.Context, name string) bool {
	result, err := s.coord.ForceRetry(ctx, name)
	if err != nil {
		s.log.Warn("Force retry failed", "source", name, "error", err)
		return false
	}
	if result.Success && result.ItemCount > 0 {
		s.regenerateReport(ctx)
		return true
	}
	return false
}

// RefreshAll triggers a full collection cycle in the background and
// returns immediately.
func (s *Service) RefreshAll() {
	go func() {
		if err := s.sched.RunTaskNow(context.Background(), TaskFetchTrending); err != nil {
			s.log.Error("Manual refresh failed", "error", err)
		}
	}()
}

// cleanupOldData purges items, ledger rows and notifications older than
// the retention window.
func (s *Service) cleanupOldData(ctx context.Context) error {
	days := s.cfg.RetentionDays

	deletedItems, err := s.items.DeleteOldItems(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to delete old items: %w", err)
	}
	deletedFailures, err := s.ledger.DeleteOldFailures(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to delete old failures: %w", err)
	}
	var deletedNotifications int64
	if s.notifier != nil {
		deletedNotifications, err = s.notifier.PruneOld(ctx, days)
		if err != nil {
			return fmt.Errorf("failed to delete old notifications: %w", err)
		}
	}

	s.log.Info("Old data cleaned up",
		"retention_days", days,
		"items", deletedItems,
		"failures", deletedFailures,
		"notifications", deletedNotifications)
	return nil
}

// regenerateReport is best-effort; the report is a derived artifact.
func (s *Service) regenerateReport(ctx context.Context) {
	if s.reports == nil {
		return
	}
	path, err := s.reports.Regenerate(ctx)
	if err != nil {
		s.log.Warn("Report regeneration failed", "error", err)
		return
	}
	s.log.Info("Report regenerated", "path", path)
}

// announceCycle publishes the cycle-completed event with today's counts.
func (s *Service) announceCycle(ctx context.Context, cycleID string) {
	if s.notifier == nil {
		return
	}
	stats, err := s.items.GetDailyStats(ctx, time.Now())
	if err != nil {
		s.log.Warn("Failed to read daily stats", "error", err)
		stats = map[string]int{}
	}
	if err := s.notifier.CycleCompleted(ctx, cycleID, stats); err != nil {
		s.log.Warn("Cycle notification failed", "error", err)
	}
}
