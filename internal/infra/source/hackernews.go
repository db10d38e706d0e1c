package source

import (
	"context"
	"fmt"
	"time"

	"trending-service/internal/core/domain"
)

const hackerNewsAPIBase = "https://hacker-news.firebaseio.com/v0"

// HackerNews collects top stories from the Hacker News Firebase API.
type HackerNews struct {
	client  *client
	cfg     Config
	apiBase string
}

func NewHackerNews(cfg Config, httpCfg HTTPConfig, limiter *MultiLimiter) *HackerNews {
	return &HackerNews{
		client:  newClient(cfg.Name, httpCfg, limiter),
		cfg:     cfg,
		apiBase: hackerNewsAPIBase,
	}
}

func (h *HackerNews) Fetch(ctx context.Context) ([]*domain.TrendingItem, error) {
	var ids []int64
	if err := h.client.getJSON(ctx, h.apiBase+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("failed to fetch top stories: %w", err)
	}

	limit := h.cfg.Limit
	if limit <= 0 {
		limit = 30
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	category := h.cfg.Category
	if category == "" {
		category = "tech"
	}

	now := time.Now()
	items := make([]*domain.TrendingItem, 0, len(ids))
	for _, id := range ids {
		var story struct {
			ID          int64   `json:"id"`
			Title       string  `json:"title"`
			URL         string  `json:"url"`
			By          string  `json:"by"`
			Score       float64 `json:"score"`
			Descendants int     `json:"descendants"`
			Type        string  `json:"type"`
		}
		if err := h.client.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.apiBase, id), &story); err != nil {
			// One dead story does not fail the batch.
			h.client.log.Warn("Failed to fetch story", "id", id, "error", err)
			continue
		}
		if story.Title == "" {
			continue
		}

		url := story.URL
		if url == "" {
			// Ask HN and job posts have no external link.
			url = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID)
		}
		items = append(items, &domain.TrendingItem{
			Source:      h.cfg.Name,
			Category:    category,
			Title:       story.Title,
			URL:         url,
			Author:      story.By,
			HotScore:    story.Score,
			Extra:       map[string]any{"hn_id": story.ID, "descendants": story.Descendants, "type": story.Type},
			FetchedAt:   now,
		})
	}
	if len(ids) > 0 && len(items) == 0 {
		return nil, fmt.Errorf("fetched 0 of %d stories", len(ids))
	}
	return items, nil
}
