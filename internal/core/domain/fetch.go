package domain

import "time"

type FetchStatus string

const (
	FetchStatusPending  FetchStatus = "pending"
	FetchStatusRetrying FetchStatus = "retrying"
	FetchStatusSuccess  FetchStatus = "success"
	FetchStatusFailed   FetchStatus = "failed"
)

// FetchResult is the outcome of one fetch attempt for a source.
// The latest result per source overwrites any prior one; history lives
// only in the failure ledger.
type FetchResult struct {
	Source       string      `json:"source"`
	Success      bool        `json:"success"`
	ItemCount    int         `json:"item_count"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	RetryCount   int         `json:"retry_count"`
	Status       FetchStatus `json:"status"`
}

// RetryTask is an in-memory scheduled future retry for a failing source.
// At most one exists per source; it is removed the moment its retry runs.
type RetryTask struct {
	Source       string    `json:"source"`
	RetryCount   int       `json:"retry_count"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SourceStatus is the per-source view served by the status surface,
// merged from in-memory results with the ledger as fallback.
type SourceStatus struct {
	Success      bool        `json:"success"`
	ItemCount    int         `json:"item_count"`
	LastUpdate   time.Time   `json:"last_update"`
	ErrorMessage string      `json:"error_message,omitempty"`
	RetryCount   int         `json:"retry_count"`
	Status       FetchStatus `json:"status"`
}
