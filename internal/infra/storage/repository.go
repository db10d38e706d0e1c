package storage

import (
	"context"
	"time"

	"trending-service/internal/core/domain"
)

// ItemRepository handles trending item storage operations
type ItemRepository interface {
	// RefreshItems replaces the (source, day) snapshot: deletes all previously
	// stored items for that source and day, then bulk-inserts items.
	// Returns the number of items inserted.
	RefreshItems(ctx context.Context, source string, items []*domain.TrendingItem, day time.Time) (int, error)

	// GetItems retrieves items for a source and day, ordered by hot score descending
	GetItems(ctx context.Context, source string, day time.Time, limit int) ([]*domain.TrendingItem, error)

	// GetDailyStats returns per-source item counts for a day
	GetDailyStats(ctx context.Context, day time.Time) (map[string]int, error)

	// DeleteOldItems purges items older than the retention window
	DeleteOldItems(ctx context.Context, days int) (int64, error)
}

// FailureRepository is the durable failure ledger. It keeps at most one
// pending row per source; the invariant is enforced procedurally
// (check-then-update), not by a database constraint.
type FailureRepository interface {
	// SaveFailure updates the pending row for source in place, or inserts a
	// new pending row if none exists
	SaveFailure(ctx context.Context, source, errorMessage string, retryCount int, nextRetryAt *time.Time) error

	// MarkSuccess flips the current pending row for source to success
	MarkSuccess(ctx context.Context, source string) error

	// MarkFailed flips the current pending row for source to failed (retries exhausted)
	MarkFailed(ctx context.Context, source string) error

	// GetPendingFailures returns all pending rows, for cold-start requeueing
	GetPendingFailures(ctx context.Context) ([]*domain.FetchFailure, error)

	// GetReadyToRetry returns pending rows whose next_retry_at has passed
	// (or is unset), ordered by next_retry_at ascending
	GetReadyToRetry(ctx context.Context, limit int) ([]*domain.FetchFailure, error)

	// DeleteOldFailures purges rows of any status older than the retention window
	DeleteOldFailures(ctx context.Context, days int) (int64, error)
}

// NotificationRepository handles notification storage
type NotificationRepository interface {
	// Save inserts a notification
	Save(ctx context.Context, n *domain.Notification) error

	// MarkSent marks a notification as sent
	MarkSent(ctx context.Context, id string) error

	// MarkFailed marks a notification as failed with an error message
	MarkFailed(ctx context.Context, id string, errorMsg string) error

	// GetPending retrieves pending notifications
	GetPending(ctx context.Context, limit int) ([]*domain.Notification, error)

	// DeleteOld purges notifications older than the retention window
	DeleteOld(ctx context.Context, days int) (int64, error)
}
