package domain

import "time"

// TrendingItem represents one collected item from an external source.
// Identity for storage purposes is (source, url, calendar date of FetchedAt).
type TrendingItem struct {
	ID          int64          `json:"id,omitempty"`
	Source      string         `json:"source"`
	Category    string         `json:"category,omitempty"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Author      string         `json:"author,omitempty"`
	Description string         `json:"description,omitempty"`
	HotScore    float64        `json:"hot_score,omitempty"`
	Keywords    []string       `json:"keywords,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
	FetchedAt   time.Time      `json:"fetched_at"`
}
