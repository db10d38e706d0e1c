package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"trending-service/internal/core/domain"
)

const douyinBillboardURL = "https://www.iesdouyin.com/web/api/v2/hotsearch/billboard/word/"

// Douyin collects the Douyin hot search billboard.
type Douyin struct {
	client *client
	cfg    Config
	url    string
}

func NewDouyin(cfg Config, httpCfg HTTPConfig, limiter *MultiLimiter) *Douyin {
	return &Douyin{
		client: newClient(cfg.Name, httpCfg, limiter),
		cfg:    cfg,
		url:    douyinBillboardURL,
	}
}

func (d *Douyin) Fetch(ctx context.Context) ([]*domain.TrendingItem, error) {
	var payload struct {
		StatusCode int `json:"status_code"`
		WordList   []struct {
			Word     string  `json:"word"`
			HotValue float64 `json:"hot_value"`
		} `json:"word_list"`
	}
	if err := d.client.getJSON(ctx, d.url, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch billboard: %w", err)
	}
	if payload.StatusCode != 0 {
		return nil, fmt.Errorf("billboard returned status_code %d", payload.StatusCode)
	}

	limit := d.cfg.Limit
	if limit <= 0 {
		limit = 50
	}
	category := d.cfg.Category
	if category == "" {
		category = "video"
	}

	now := time.Now()
	items := make([]*domain.TrendingItem, 0, len(payload.WordList))
	for i, entry := range payload.WordList {
		if i >= limit || entry.Word == "" {
			continue
		}
		items = append(items, &domain.TrendingItem{
			Source:    d.cfg.Name,
			Category:  category,
			Title:     entry.Word,
			URL:       "https://www.douyin.com/search/" + url.PathEscape(entry.Word),
			HotScore:  entry.HotValue,
			Keywords:  []string{entry.Word},
			FetchedAt: now,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("billboard is empty")
	}
	return items, nil
}
