package domain

import "time"

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

const (
	NotificationTypeCycleCompleted   = "cycle_completed"
	NotificationTypeRetriesExhausted = "retries_exhausted"
)

// Notification records an outbound event (cycle finished, source gave up)
// and whether publishing it succeeded.
type Notification struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Status    NotificationStatus `json:"status"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
	SentAt    *time.Time         `json:"sent_at,omitempty"`
	ErrorMsg  string             `json:"error_msg,omitempty"`
}
