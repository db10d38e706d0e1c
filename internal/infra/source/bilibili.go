package source

import (
	"context"
	"fmt"
	"time"

	"trending-service/internal/core/domain"
)

const bilibiliPopularURL = "https://api.bilibili.com/x/web-interface/popular"

// Bilibili collects the Bilibili popular video ranking.
type Bilibili struct {
	client *client
	cfg    Config
	url    string
}

func NewBilibili(cfg Config, httpCfg HTTPConfig, limiter *MultiLimiter) *Bilibili {
	return &Bilibili{
		client: newClient(cfg.Name, httpCfg, limiter),
		cfg:    cfg,
		url:    bilibiliPopularURL,
	}
}

func (b *Bilibili) Fetch(ctx context.Context) ([]*domain.TrendingItem, error) {
	limit := b.cfg.Limit
	if limit <= 0 {
		limit = 50
	}

	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			List []struct {
				BVID  string `json:"bvid"`
				Title string `json:"title"`
				Desc  string `json:"desc"`
				Owner struct {
					Name string `json:"name"`
				} `json:"owner"`
				Stat struct {
					View int64 `json:"view"`
					Like int64 `json:"like"`
				} `json:"stat"`
			} `json:"list"`
		} `json:"data"`
	}
	url := fmt.Sprintf("%s?ps=%d&pn=1", b.url, limit)
	if err := b.client.getJSON(ctx, url, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch popular list: %w", err)
	}
	if payload.Code != 0 {
		return nil, fmt.Errorf("popular list returned code %d: %s", payload.Code, payload.Message)
	}

	category := b.cfg.Category
	if category == "" {
		category = "video"
	}

	now := time.Now()
	items := make([]*domain.TrendingItem, 0, len(payload.Data.List))
	for _, video := range payload.Data.List {
		if video.BVID == "" || video.Title == "" {
			continue
		}
		items = append(items, &domain.TrendingItem{
			Source:      b.cfg.Name,
			Category:    category,
			Title:       video.Title,
			URL:         "https://www.bilibili.com/video/" + video.BVID,
			Author:      video.Owner.Name,
			Description: video.Desc,
			HotScore:    float64(video.Stat.View),
			Extra:       map[string]any{"bvid": video.BVID, "views": video.Stat.View, "likes": video.Stat.Like},
			FetchedAt:   now,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("popular list is empty")
	}
	return items, nil
}
