package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trending-service/internal/core/domain"
)

// FailureRepo implements storage.FailureRepository using PostgreSQL.
type FailureRepo struct {
	db *DB
}

// NewFailureRepo creates a new PostgreSQL failure ledger repository.
func NewFailureRepo(db *DB) *FailureRepo {
	return &FailureRepo{db: db}
}

// SaveFailure updates the pending row for source in place, or inserts a new
// pending row if none exists. Check-then-update keeps the single-pending
// invariant without a unique constraint.
func (r *FailureRepo) SaveFailure(
	ctx context.Context,
	source, errorMessage string,
	retryCount int,
	nextRetryAt *time.Time,
) error {
	var id string
	err := r.db.GetContext(ctx, &id,
		`SELECT id FROM fetch_failures WHERE source = $1 AND status = 'pending'`, source)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to look up pending failure: %w", err)
	}

	if err == sql.ErrNoRows {
		query := `
			INSERT INTO fetch_failures (id, source, error_message, retry_count, last_try_at, next_retry_at, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), $5, 'pending', NOW(), NOW())
		`
		if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), source, errorMessage, retryCount, nextRetryAt); err != nil {
			return fmt.Errorf("failed to insert failure: %w", err)
		}
		return nil
	}

	query := `
		UPDATE fetch_failures
		SET error_message = $2, retry_count = $3, last_try_at = NOW(), next_retry_at = $4, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, errorMessage, retryCount, nextRetryAt); err != nil {
		return fmt.Errorf("failed to update failure: %w", err)
	}
	return nil
}

// MarkSuccess flips the current pending row for source to success.
func (r *FailureRepo) MarkSuccess(ctx context.Context, source string) error {
	query := `
		UPDATE fetch_failures
		SET status = 'success', updated_at = NOW()
		WHERE source = $1 AND status = 'pending'
	`
	if _, err := r.db.ExecContext(ctx, query, source); err != nil {
		return fmt.Errorf("failed to mark failure success: %w", err)
	}
	return nil
}

// MarkFailed flips the current pending row for source to failed.
func (r *FailureRepo) MarkFailed(ctx context.Context, source string) error {
	query := `
		UPDATE fetch_failures
		SET status = 'failed', updated_at = NOW()
		WHERE source = $1 AND status = 'pending'
	`
	if _, err := r.db.ExecContext(ctx, query, source); err != nil {
		return fmt.Errorf("failed to mark failure failed: %w", err)
	}
	return nil
}

// GetPendingFailures returns all pending rows.
func (r *FailureRepo) GetPendingFailures(ctx context.Context) ([]*domain.FetchFailure, error) {
	query := `
		SELECT id, source, error_message, retry_count, last_try_at, next_retry_at, status, created_at, updated_at
		FROM fetch_failures
		WHERE status = 'pending'
		ORDER BY last_try_at ASC
	`
	return r.selectFailures(ctx, query)
}

// GetReadyToRetry returns pending rows whose next_retry_at has passed or is unset.
func (r *FailureRepo) GetReadyToRetry(ctx context.Context, limit int) ([]*domain.FetchFailure, error) {
	query := `
		SELECT id, source, error_message, retry_count, last_try_at, next_retry_at, status, created_at, updated_at
		FROM fetch_failures
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY next_retry_at ASC
		LIMIT $1
	`
	return r.selectFailures(ctx, query, limit)
}

// DeleteOldFailures purges rows of any status older than the retention window.
func (r *FailureRepo) DeleteOldFailures(ctx context.Context, days int) (int64, error) {
	query := `DELETE FROM fetch_failures WHERE created_at < NOW() - ($1 * INTERVAL '1 day')`
	res, err := r.db.ExecContext(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old failures: %w", err)
	}
	return res.RowsAffected()
}

func (r *FailureRepo) selectFailures(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.FetchFailure, error) {
	var rows []struct {
		ID           string     `db:"id"`
		Source       string     `db:"source"`
		ErrorMessage string     `db:"error_message"`
		RetryCount   int        `db:"retry_count"`
		LastTryAt    time.Time  `db:"last_try_at"`
		NextRetryAt  *time.Time `db:"next_retry_at"`
		Status       string     `db:"status"`
		CreatedAt    time.Time  `db:"created_at"`
		UpdatedAt    time.Time  `db:"updated_at"`
	}

	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select failures: %w", err)
	}

	failures := make([]*domain.FetchFailure, 0, len(rows))
	for _, row := range rows {
		failures = append(failures, &domain.FetchFailure{
			ID:           row.ID,
			Source:       row.Source,
			ErrorMessage: row.ErrorMessage,
			RetryCount:   row.RetryCount,
			LastTryAt:    row.LastTryAt,
			NextRetryAt:  row.NextRetryAt,
			Status:       domain.FailureStatus(row.Status),
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return failures, nil
}
