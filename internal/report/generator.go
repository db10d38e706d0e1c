package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"trending-service/internal/core/domain"
	"trending-service/internal/infra/storage"
)

// Config holds report output settings.
type Config struct {
	Dir string `yaml:"dir"`
}

const topPerSource = 20

// Digest is the daily report payload written for downstream consumers.
type Digest struct {
	Date        string                            `json:"date"`
	GeneratedAt time.Time                         `json:"generated_at"`
	TotalItems  int                               `json:"total_items"`
	Counts      map[string]int                    `json:"counts"`
	Sources     map[string][]*domain.TrendingItem `json:"sources"`
}

// Generator renders the daily digest from the stored snapshots.
type Generator struct {
	dir   string
	items storage.ItemRepository
	log   *slog.Logger
}

func NewGenerator(cfg Config, items storage.ItemRepository) *Generator {
	dir := cfg.Dir
	if dir == "" {
		dir = "reports"
	}
	return &Generator{
		dir:   dir,
		items: items,
		log:   slog.Default().With("component", "report"),
	}
}

// Regenerate writes today's digest and returns its path. The digest is
// derived entirely from storage, so regenerating after every data change
// is safe.
func (g *Generator) Regenerate(ctx context.Context) (string, error) {
	day := time.Now()

	counts, err := g.items.GetDailyStats(ctx, day)
	if err != nil {
		return "", fmt.Errorf("failed to read daily stats: %w", err)
	}

	digest := Digest{
		Date:        day.Format("2006-01-02"),
		GeneratedAt: time.Now(),
		Counts:      counts,
		Sources:     make(map[string][]*domain.TrendingItem, len(counts)),
	}
	for source, count := range counts {
		items, err := g.items.GetItems(ctx, source, day, topPerSource)
		if err != nil {
			return "", fmt.Errorf("failed to read items for %s: %w", source, err)
		}
		digest.Sources[source] = items
		digest.TotalItems += count
	}

	data, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode digest: %w", err)
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	path := filepath.Join(g.dir, fmt.Sprintf("trending-%s.json", digest.Date))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	// latest.json always points at the newest digest.
	if err := os.WriteFile(filepath.Join(g.dir, "latest.json"), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write latest report: %w", err)
	}

	g.log.Debug("Digest written", "path", path, "items", digest.TotalItems)
	return path, nil
}
