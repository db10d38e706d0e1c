package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"trending-service/internal/core/domain"
)

const arxivAPIBase = "http://export.arxiv.org/api/query"

// Arxiv collects recently updated papers from the arXiv Atom API for the
// configured categories.
type Arxiv struct {
	client  *client
	cfg     Config
	parser  *gofeed.Parser
	apiBase string
}

func NewArxiv(cfg Config, httpCfg HTTPConfig, limiter *MultiLimiter) *Arxiv {
	return &Arxiv{
		client:  newClient(cfg.Name, httpCfg, limiter),
		cfg:     cfg,
		parser:  gofeed.NewParser(),
		apiBase: arxivAPIBase,
	}
}

func (a *Arxiv) Fetch(ctx context.Context) ([]*domain.TrendingItem, error) {
	categories := a.cfg.Categories
	if len(categories) == 0 {
		categories = []string{"cs.AI", "cs.LG"}
	}
	limit := a.cfg.Limit
	if limit <= 0 {
		limit = 30
	}

	terms := make([]string, 0, len(categories))
	for _, cat := range categories {
		terms = append(terms, "cat:"+cat)
	}
	params := url.Values{
		"search_query": {strings.Join(terms, " OR ")},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(limit)},
		"sortBy":       {"lastUpdatedDate"},
		"sortOrder":    {"descending"},
	}

	resp, err := a.client.get(ctx, a.apiBase+"?"+params.Encode(), "application/atom+xml")
	if err != nil {
		return nil, fmt.Errorf("failed to query arxiv: %w", err)
	}
	defer resp.Body.Close()

	feed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse arxiv feed: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("arxiv feed is empty")
	}

	category := a.cfg.Category
	if category == "" {
		category = "paper"
	}

	now := time.Now()
	items := make([]*domain.TrendingItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		title := collapseWhitespace(entry.Title)
		if title == "" {
			continue
		}
		link := entry.Link
		if link == "" {
			link = entry.GUID
		}
		item := &domain.TrendingItem{
			Source:      a.cfg.Name,
			Category:    category,
			Title:       title,
			URL:         link,
			Author:      joinAuthors(entry.Authors, 3),
			Description: collapseWhitespace(entry.Description),
			Keywords:    entry.Categories,
			Extra:       map[string]any{"published": entry.Published, "updated": entry.Updated},
			FetchedAt:   now,
		}
		items = append(items, item)
	}
	return items, nil
}

// joinAuthors joins up to max author names, the arXiv convention for long
// author lists.
func joinAuthors(authors []*gofeed.Person, max int) string {
	names := make([]string, 0, max)
	for _, author := range authors {
		if author == nil || author.Name == "" {
			continue
		}
		names = append(names, author.Name)
		if len(names) == max {
			if len(authors) > max {
				names = append(names, "et al.")
			}
			break
		}
	}
	return strings.Join(names, ", ")
}

// collapseWhitespace folds the newlines and indentation arXiv embeds in
// titles and abstracts into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
