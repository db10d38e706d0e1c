package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"trending-service/internal/core/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Collector performs one fetch attempt against an external trending source.
// Implementations return the full batch or an error, never a partial commit.
type Collector interface {
	Fetch(ctx context.Context) ([]*domain.TrendingItem, error)
}

// Config describes one configured source.
type Config struct {
	Name       string   `yaml:"name"`
	Category   string   `yaml:"category"`
	Limit      int      `yaml:"limit"`
	Enabled    bool     `yaml:"enabled"`
	Rate       float64  `yaml:"rate"`
	Burst      int      `yaml:"burst"`
	Categories []string `yaml:"categories"`
}

// HTTPConfig holds the HTTP client settings shared by all collectors.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// client is the shared HTTP layer for collectors: one pooled http.Client,
// a common user agent, and a per-source politeness limiter.
type client struct {
	name      string
	http      *http.Client
	userAgent string
	limiter   *MultiLimiter
	log       *slog.Logger
}

func newClient(name string, cfg HTTPConfig, limiter *MultiLimiter) *client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &client{
		name:      name,
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
		limiter:   limiter,
		log:       slog.Default().With("component", "source", "source", name),
	}
}

// get issues a rate-limited GET and returns the response on HTTP 200.
// The caller owns the body.
func (c *client) get(ctx context.Context, url, accept string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.name); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return resp, nil
}

// getJSON issues a GET and decodes the JSON body into dest.
func (c *client) getJSON(ctx context.Context, url string, dest any) error {
	resp, err := c.get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// BuildRegistry constructs a collector for every enabled source in cfg.
// Unknown source names are skipped with a warning so a config typo never
// takes the whole service down.
func BuildRegistry(sources []Config, httpCfg HTTPConfig) map[string]Collector {
	limiter := NewMultiLimiter()
	registry := make(map[string]Collector)
	for _, cfg := range sources {
		if !cfg.Enabled {
			continue
		}
		rate := cfg.Rate
		if rate <= 0 {
			rate = 1
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = 3
		}
		limiter.AddLimiter(cfg.Name, rate, burst)

		var collector Collector
		switch cfg.Name {
		case "hackernews":
			collector = NewHackerNews(cfg, httpCfg, limiter)
		case "github":
			collector = NewGitHub(cfg, httpCfg, limiter)
		case "zhihu":
			collector = NewZhihu(cfg, httpCfg, limiter)
		case "weibo":
			collector = NewWeibo(cfg, httpCfg, limiter)
		case "bilibili":
			collector = NewBilibili(cfg, httpCfg, limiter)
		case "douyin":
			collector = NewDouyin(cfg, httpCfg, limiter)
		case "arxiv":
			collector = NewArxiv(cfg, httpCfg, limiter)
		default:
			slog.Warn("Unknown source in config, skipping", "source", cfg.Name)
			continue
		}
		registry[cfg.Name] = collector
	}
	return registry
}
