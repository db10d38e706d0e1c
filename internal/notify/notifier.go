package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trending-service/internal/core/domain"
	"trending-service/internal/infra/storage"
	"trending-service/internal/metrics"
)

// Config holds NATS publishing settings.
type Config struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Publisher is the transport notifications go out on. *nats.Conn
// satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the versioned envelope published for each notification.
type Message struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
}

// Notifier records lifecycle events durably and publishes them. With a
// nil publisher it degrades to record-only mode, so the rest of the
// service never has to care whether NATS is configured.
type Notifier struct {
	pub     Publisher
	repo    storage.NotificationRepository
	subject string
	log     *slog.Logger
}

func NewNotifier(pub Publisher, repo storage.NotificationRepository, subject string) *Notifier {
	if subject == "" {
		subject = "trending.events"
	}
	return &Notifier{
		pub:     pub,
		repo:    repo,
		subject: subject,
		log:     slog.Default().With("component", "notify"),
	}
}

// CycleCompleted announces a finished collection cycle with per-source
// counts.
func (n *Notifier) CycleCompleted(ctx context.Context, cycleID string, stats map[string]int) error {
	return n.send(ctx, domain.NotificationTypeCycleCompleted, map[string]any{
		"cycle_id": cycleID,
		"stats":    stats,
	})
}

// RetriesExhausted announces that a source ran out of automatic retries
// and needs operator attention.
func (n *Notifier) RetriesExhausted(ctx context.Context, source, errorMessage string) error {
	return n.send(ctx, domain.NotificationTypeRetriesExhausted, map[string]any{
		"source": source,
		"error":  errorMessage,
	})
}

// PruneOld removes notification rows outside the retention window.
func (n *Notifier) PruneOld(ctx context.Context, days int) (int64, error) {
	return n.repo.DeleteOld(ctx, days)
}

func (n *Notifier) send(ctx context.Context, typ string, payload map[string]any) error {
	content, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	notification := &domain.Notification{
		ID:        uuid.New().String(),
		Type:      typ,
		Status:    domain.NotificationStatusPending,
		Content:   string(content),
		CreatedAt: time.Now(),
	}
	// The row is the durable record; losing it is logged but the publish
	// still goes out.
	if err := n.repo.Save(ctx, notification); err != nil {
		n.log.Warn("Failed to save notification", "type", typ, "error", err)
	}

	if n.pub == nil {
		n.log.Debug("Publisher disabled, notification recorded only", "type", typ)
		return nil
	}

	data, err := json.Marshal(Message{
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now(),
		Service:   "trending-service",
		Version:   "1.0",
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if err := n.pub.Publish(n.subject, data); err != nil {
		metrics.NotificationsPublished.WithLabelValues(typ, "failure").Inc()
		if markErr := n.repo.MarkFailed(ctx, notification.ID, err.Error()); markErr != nil {
			n.log.Warn("Failed to mark notification failed", "id", notification.ID, "error", markErr)
		}
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	metrics.NotificationsPublished.WithLabelValues(typ, "success").Inc()
	if err := n.repo.MarkSent(ctx, notification.ID); err != nil {
		n.log.Warn("Failed to mark notification sent", "id", notification.ID, "error", err)
	}
	n.log.Info("Notification published", "type", typ, "subject", n.subject)
	return nil
}
