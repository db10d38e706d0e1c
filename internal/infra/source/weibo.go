package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"trending-service/internal/core/domain"
)

const weiboHotSearchURL = "https://weibo.com/ajax/side/hotSearch"

// Weibo collects the Weibo realtime hot search board.
type Weibo struct {
	client *client
	cfg    Config
	url    string
}

func NewWeibo(cfg Config, httpCfg HTTPConfig, limiter *MultiLimiter) *Weibo {
	return &Weibo{
		client: newClient(cfg.Name, httpCfg, limiter),
		cfg:    cfg,
		url:    weiboHotSearchURL,
	}
}

func (w *Weibo) Fetch(ctx context.Context) ([]*domain.TrendingItem, error) {
	var payload struct {
		OK   int `json:"ok"`
		Data struct {
			Realtime []struct {
				Word string  `json:"word"`
				Note string  `json:"note"`
				Num  float64 `json:"num"`
			} `json:"realtime"`
		} `json:"data"`
	}
	if err := w.client.getJSON(ctx, w.url, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch hot search: %w", err)
	}
	if payload.OK != 1 {
		return nil, fmt.Errorf("hot search returned ok=%d", payload.OK)
	}

	limit := w.cfg.Limit
	if limit <= 0 {
		limit = 50
	}
	category := w.cfg.Category
	if category == "" {
		category = "social"
	}

	now := time.Now()
	items := make([]*domain.TrendingItem, 0, len(payload.Data.Realtime))
	for i, entry := range payload.Data.Realtime {
		if i >= limit || entry.Word == "" {
			continue
		}
		query := url.QueryEscape("#" + entry.Word + "#")
		items = append(items, &domain.TrendingItem{
			Source:      w.cfg.Name,
			Category:    category,
			Title:       entry.Word,
			URL:         "https://s.weibo.com/weibo?q=" + query,
			Description: entry.Note,
			HotScore:    entry.Num,
			Keywords:    []string{entry.Word},
			FetchedAt:   now,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("hot search board is empty")
	}
	return items, nil
}
