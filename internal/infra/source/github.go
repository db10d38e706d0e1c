package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"trending-service/internal/core/domain"
)

const githubTrendingURL = "https://github.com/trending"

// GitHub scrapes the GitHub trending page. There is no official API for
// trending, so this parses the HTML and fails loudly when the layout no
// longer matches.
type GitHub struct {
	client *client
	cfg    Config
	url    string
	since  string
}

func NewGitHub(cfg Config, httpCfg HTTPConfig, limiter *MultiLimiter) *GitHub {
	return &GitHub{
		client: newClient(cfg.Name, httpCfg, limiter),
		cfg:    cfg,
		url:    githubTrendingURL,
		since:  "weekly",
	}
}

func (g *GitHub) Fetch(ctx context.Context) ([]*domain.TrendingItem, error) {
	resp, err := g.client.get(ctx, g.url+"?since="+g.since, "text/html")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trending page: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trending page: %w", err)
	}

	items := g.parse(doc)
	if len(items) == 0 {
		return nil, fmt.Errorf("no repositories parsed, page layout may have changed")
	}
	return items, nil
}

func (g *GitHub) parse(doc *goquery.Document) []*domain.TrendingItem {
	limit := g.cfg.Limit
	if limit <= 0 {
		limit = 25
	}
	category := g.cfg.Category
	if category == "" {
		category = "tech"
	}

	now := time.Now()
	var items []*domain.TrendingItem
	doc.Find("article.Box-row").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if len(items) >= limit {
			return false
		}
		href, ok := row.Find("h2 a").Attr("href")
		if !ok {
			return true
		}
		fullName := strings.TrimPrefix(strings.TrimSpace(href), "/")
		description := strings.TrimSpace(row.Find("p").First().Text())
		language := strings.TrimSpace(row.Find(`span[itemprop="programmingLanguage"]`).Text())
		stars := parseCount(row.Find(`a[href$="/stargazers"]`).First().Text())
		forks := parseCount(row.Find(`a[href$="/forks"]`).First().Text())

		items = append(items, &domain.TrendingItem{
			Source:      g.cfg.Name,
			Category:    category,
			Title:       fullName,
			URL:         "https://github.com/" + fullName,
			Description: description,
			HotScore:    float64(stars),
			Extra:       map[string]any{"language": language, "stars": stars, "forks": forks},
			FetchedAt:   now,
		})
		return true
	})
	return items
}

// parseCount parses GitHub-style counts such as "12,345" or "1.2k".
func parseCount(s string) int {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if s == "" {
		return 0
	}
	multiplier := 1.0
	if strings.HasSuffix(s, "k") {
		multiplier = 1000
		s = strings.TrimSuffix(s, "k")
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(n * multiplier)
}
