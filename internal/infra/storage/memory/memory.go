package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trending-service/internal/core/domain"
)

type MemoryStorage struct {
	items         []*domain.TrendingItem
	failures      []*domain.FetchFailure
	notifications []*domain.Notification
	nextItemID    int64
	mu            sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		nextItemID: 1,
	}
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// -----------------------------------------------------------------------------
// Item Repository
// -----------------------------------------------------------------------------

type ItemRepo struct {
	store *MemoryStorage
}

func NewItemRepo(store *MemoryStorage) *ItemRepo {
	return &ItemRepo{store: store}
}

func (r *ItemRepo) RefreshItems(ctx context.Context, source string, items []*domain.TrendingItem, day time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.items[:0]
	for _, item := range r.store.items {
		if item.Source == source && sameDay(item.FetchedAt, day) {
			continue
		}
		kept = append(kept, item)
	}
	r.store.items = kept

	for _, item := range items {
		stored := *item
		stored.ID = r.store.nextItemID
		r.store.nextItemID++
		if stored.FetchedAt.IsZero() {
			stored.FetchedAt = day
		}
		r.store.items = append(r.store.items, &stored)
	}
	return len(items), nil
}

func (r *ItemRepo) GetItems(ctx context.Context, source string, day time.Time, limit int) ([]*domain.TrendingItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var items []*domain.TrendingItem
	for _, item := range r.store.items {
		if item.Source == source && sameDay(item.FetchedAt, day) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].HotScore != items[j].HotScore {
			return items[i].HotScore > items[j].HotScore
		}
		return items[i].ID < items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *ItemRepo) GetDailyStats(ctx context.Context, day time.Time) (map[string]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stats := make(map[string]int)
	for _, item := range r.store.items {
		if sameDay(item.FetchedAt, day) {
			stats[item.Source]++
		}
	}
	return stats, nil
}

func (r *ItemRepo) DeleteOldItems(ctx context.Context, days int) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	var deleted int64
	kept := r.store.items[:0]
	for _, item := range r.store.items {
		if item.FetchedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, item)
	}
	r.store.items = kept
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Failure Repository
// -----------------------------------------------------------------------------

type FailureRepo struct {
	store *MemoryStorage
}

func NewFailureRepo(store *MemoryStorage) *FailureRepo {
	return &FailureRepo{store: store}
}

func (r *FailureRepo) findPending(source string) *domain.FetchFailure {
	for _, f := range r.store.failures {
		if f.Source == source && f.Status == domain.FailureStatusPending {
			return f
		}
	}
	return nil
}

func (r *FailureRepo) SaveFailure(ctx context.Context, source, errorMessage string, retryCount int, nextRetryAt *time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now()
	if f := r.findPending(source); f != nil {
		f.ErrorMessage = errorMessage
		f.RetryCount = retryCount
		f.LastTryAt = now
		f.NextRetryAt = nextRetryAt
		f.UpdatedAt = now
		return nil
	}

	r.store.failures = append(r.store.failures, &domain.FetchFailure{
		ID:           uuid.New().String(),
		Source:       source,
		ErrorMessage: errorMessage,
		RetryCount:   retryCount,
		LastTryAt:    now,
		NextRetryAt:  nextRetryAt,
		Status:       domain.FailureStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return nil
}

func (r *FailureRepo) MarkSuccess(ctx context.Context, source string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if f := r.findPending(source); f != nil {
		f.Status = domain.FailureStatusSuccess
		f.UpdatedAt = time.Now()
	}
	return nil
}

func (r *FailureRepo) MarkFailed(ctx context.Context, source string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if f := r.findPending(source); f != nil {
		f.Status = domain.FailureStatusFailed
		f.UpdatedAt = time.Now()
	}
	return nil
}

func (r *FailureRepo) GetPendingFailures(ctx context.Context) ([]*domain.FetchFailure, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var pending []*domain.FetchFailure
	for _, f := range r.store.failures {
		if f.Status == domain.FailureStatusPending {
			pending = append(pending, f)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].LastTryAt.Before(pending[j].LastTryAt)
	})
	return pending, nil
}

func (r *FailureRepo) GetReadyToRetry(ctx context.Context, limit int) ([]*domain.FetchFailure, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	now := time.Now()
	var ready []*domain.FetchFailure
	for _, f := range r.store.failures {
		if f.Status != domain.FailureStatusPending {
			continue
		}
		if f.NextRetryAt == nil || !f.NextRetryAt.After(now) {
			ready = append(ready, f)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		// Unset retry times sort first
		if ready[i].NextRetryAt == nil {
			return true
		}
		if ready[j].NextRetryAt == nil {
			return false
		}
		return ready[i].NextRetryAt.Before(*ready[j].NextRetryAt)
	})
	if limit > 0 && len(ready) > limit {
		ready = ready[:limit]
	}
	return ready, nil
}

func (r *FailureRepo) DeleteOldFailures(ctx context.Context, days int) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	var deleted int64
	kept := r.store.failures[:0]
	for _, f := range r.store.failures {
		if f.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, f)
	}
	r.store.failures = kept
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Notification Repository
// -----------------------------------------------------------------------------

type NotificationRepo struct {
	store *MemoryStorage
}

func NewNotificationRepo(store *MemoryStorage) *NotificationRepo {
	return &NotificationRepo{store: store}
}

func (r *NotificationRepo) Save(ctx context.Context, n *domain.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored := *n
	if stored.Status == "" {
		stored.Status = domain.NotificationStatusPending
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.store.notifications = append(r.store.notifications, &stored)
	return nil
}

func (r *NotificationRepo) MarkSent(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, n := range r.store.notifications {
		if n.ID == id {
			now := time.Now()
			n.Status = domain.NotificationStatusSent
			n.SentAt = &now
		}
	}
	return nil
}

func (r *NotificationRepo) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, n := range r.store.notifications {
		if n.ID == id {
			n.Status = domain.NotificationStatusFailed
			n.ErrorMsg = errorMsg
		}
	}
	return nil
}

func (r *NotificationRepo) GetPending(ctx context.Context, limit int) ([]*domain.Notification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var pending []*domain.Notification
	for _, n := range r.store.notifications {
		if n.Status == domain.NotificationStatusPending {
			pending = append(pending, n)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *NotificationRepo) DeleteOld(ctx context.Context, days int) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	var deleted int64
	kept := r.store.notifications[:0]
	for _, n := range r.store.notifications {
		if n.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	r.store.notifications = kept
	return deleted, nil
}
