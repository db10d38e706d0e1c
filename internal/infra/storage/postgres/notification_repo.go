package postgres

import (
	"context"
	"fmt"
	"time"

	"trending-service/internal/core/domain"
)

// NotificationRepo implements storage.NotificationRepository using PostgreSQL.
type NotificationRepo struct {
	db *DB
}

// NewNotificationRepo creates a new PostgreSQL notification repository.
func NewNotificationRepo(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Save inserts a notification.
func (r *NotificationRepo) Save(ctx context.Context, n *domain.Notification) error {
	status := string(n.Status)
	if status == "" {
		status = "pending"
	}

	query := `
		INSERT INTO notifications (id, type, status, content, created_at, sent_at, error_msg)
		VALUES ($1, $2, $3, $4, NOW(), $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, n.ID, n.Type, status, n.Content, n.SentAt, n.ErrorMsg); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// MarkSent marks a notification as sent.
func (r *NotificationRepo) MarkSent(ctx context.Context, id string) error {
	query := `UPDATE notifications SET status = 'sent', sent_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed marks a notification as failed.
func (r *NotificationRepo) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	query := `UPDATE notifications SET status = 'failed', error_msg = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, errorMsg); err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// GetPending retrieves pending notifications, oldest first.
func (r *NotificationRepo) GetPending(ctx context.Context, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT id, type, status, content, created_at, sent_at, error_msg
		FROM notifications
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`

	var rows []struct {
		ID        string     `db:"id"`
		Type      string     `db:"type"`
		Status    string     `db:"status"`
		Content   string     `db:"content"`
		CreatedAt time.Time  `db:"created_at"`
		SentAt    *time.Time `db:"sent_at"`
		ErrorMsg  string     `db:"error_msg"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to select pending notifications: %w", err)
	}

	notifications := make([]*domain.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, &domain.Notification{
			ID:        row.ID,
			Type:      row.Type,
			Status:    domain.NotificationStatus(row.Status),
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
			SentAt:    row.SentAt,
			ErrorMsg:  row.ErrorMsg,
		})
	}
	return notifications, nil
}

// DeleteOld purges notifications older than the retention window.
func (r *NotificationRepo) DeleteOld(ctx context.Context, days int) (int64, error) {
	query := `DELETE FROM notifications WHERE created_at < NOW() - ($1 * INTERVAL '1 day')`
	res, err := r.db.ExecContext(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	return res.RowsAffected()
}
