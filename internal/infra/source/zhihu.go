package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trending-service/internal/core/domain"
)

const zhihuHotURL = "https://www.zhihu.com/api/v3/feed/topstory/hot-lists/total"

// Zhihu collects the Zhihu hot list.
type Zhihu struct {
	client *client
	cfg    Config
	url    string
}

func NewZhihu(cfg Config, httpCfg HTTPConfig, limiter *MultiLimiter) *Zhihu {
	return &Zhihu{
		client: newClient(cfg.Name, httpCfg, limiter),
		cfg:    cfg,
		url:    zhihuHotURL,
	}
}

func (z *Zhihu) Fetch(ctx context.Context) ([]*domain.TrendingItem, error) {
	limit := z.cfg.Limit
	if limit <= 0 {
		limit = 50
	}

	var payload struct {
		Data []struct {
			Target struct {
				ID      int64  `json:"id"`
				Title   string `json:"title"`
				Excerpt string `json:"excerpt"`
				Author  struct {
					Name string `json:"name"`
				} `json:"author"`
			} `json:"target"`
			DetailText string `json:"detail_text"`
		} `json:"data"`
	}
	url := fmt.Sprintf("%s?limit=%d", z.url, limit)
	if err := z.client.getJSON(ctx, url, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch hot list: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("hot list is empty")
	}

	category := z.cfg.Category
	if category == "" {
		category = "social"
	}

	now := time.Now()
	items := make([]*domain.TrendingItem, 0, len(payload.Data))
	for _, entry := range payload.Data {
		if entry.Target.Title == "" {
			continue
		}
		items = append(items, &domain.TrendingItem{
			Source:      z.cfg.Name,
			Category:    category,
			Title:       entry.Target.Title,
			URL:         fmt.Sprintf("https://www.zhihu.com/question/%d", entry.Target.ID),
			Author:      entry.Target.Author.Name,
			Description: entry.Target.Excerpt,
			HotScore:    parseZhihuHeat(entry.DetailText),
			Extra:       map[string]any{"detail_text": entry.DetailText},
			FetchedAt:   now,
		})
	}
	return items, nil
}

// parseZhihuHeat parses heat strings such as "1234 万热度" into a score.
func parseZhihuHeat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	if strings.Contains(s, "万") {
		n *= 10000
	}
	return n
}
