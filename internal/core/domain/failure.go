package domain

import "time"

type FailureStatus string

const (
	FailureStatusPending FailureStatus = "pending"
	FailureStatusSuccess FailureStatus = "success"
	FailureStatusFailed  FailureStatus = "failed"
)

// FetchFailure is the durable ledger row tracking a source's current
// failure/retry state. At most one pending row exists per source;
// repeat failures update that row in place.
type FetchFailure struct {
	ID           string        `json:"id"`
	Source       string        `json:"source"`
	ErrorMessage string        `json:"error_message"`
	RetryCount   int           `json:"retry_count"`
	LastTryAt    time.Time     `json:"last_try_at"`
	NextRetryAt  *time.Time    `json:"next_retry_at,omitempty"`
	Status       FailureStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
