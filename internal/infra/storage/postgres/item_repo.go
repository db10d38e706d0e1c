package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trending-service/internal/core/domain"
)

// ItemRepo implements storage.ItemRepository using PostgreSQL.
type ItemRepo struct {
	db *DB
}

// NewItemRepo creates a new PostgreSQL trending item repository.
func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// RefreshItems replaces the (source, day) snapshot inside one transaction:
// delete everything previously stored for that source and day, then insert
// the new batch. Other sources and other days are untouched.
func (r *ItemRepo) RefreshItems(
	ctx context.Context,
	source string,
	items []*domain.TrendingItem,
	day time.Time,
) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin refresh tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	deleteQuery := `DELETE FROM trending_items WHERE source = $1 AND fetched_at::date = $2::date`
	if _, err := tx.ExecContext(ctx, deleteQuery, source, day); err != nil {
		return 0, fmt.Errorf("failed to delete old snapshot: %w", err)
	}

	insertQuery := `
		INSERT INTO trending_items (source, category, title, url, author, description, hot_score, keywords, extra, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	inserted := 0
	for _, item := range items {
		keywords, err := json.Marshal(item.Keywords)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal keywords: %w", err)
		}
		extra, err := json.Marshal(item.Extra)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal extra: %w", err)
		}

		fetchedAt := item.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = day
		}

		if _, err := tx.ExecContext(ctx, insertQuery,
			item.Source,
			item.Category,
			item.Title,
			item.URL,
			item.Author,
			item.Description,
			item.HotScore,
			keywords,
			extra,
			fetchedAt,
		); err != nil {
			return 0, fmt.Errorf("failed to insert item %q: %w", item.URL, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit refresh: %w", err)
	}
	return inserted, nil
}

// GetItems retrieves items for a source and day, hottest first.
func (r *ItemRepo) GetItems(
	ctx context.Context,
	source string,
	day time.Time,
	limit int,
) ([]*domain.TrendingItem, error) {
	query := `
		SELECT id, source, category, title, url, author, description, hot_score, keywords, extra, fetched_at
		FROM trending_items
		WHERE source = $1 AND fetched_at::date = $2::date
		ORDER BY hot_score DESC, id ASC
		LIMIT $3
	`

	var rows []struct {
		ID          int64     `db:"id"`
		Source      string    `db:"source"`
		Category    string    `db:"category"`
		Title       string    `db:"title"`
		URL         string    `db:"url"`
		Author      string    `db:"author"`
		Description string    `db:"description"`
		HotScore    float64   `db:"hot_score"`
		Keywords    []byte    `db:"keywords"`
		Extra       []byte    `db:"extra"`
		FetchedAt   time.Time `db:"fetched_at"`
	}

	if err := r.db.SelectContext(ctx, &rows, query, source, day, limit); err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}

	items := make([]*domain.TrendingItem, 0, len(rows))
	for _, row := range rows {
		item := &domain.TrendingItem{
			ID:          row.ID,
			Source:      row.Source,
			Category:    row.Category,
			Title:       row.Title,
			URL:         row.URL,
			Author:      row.Author,
			Description: row.Description,
			HotScore:    row.HotScore,
			FetchedAt:   row.FetchedAt,
		}
		if len(row.Keywords) > 0 {
			if err := json.Unmarshal(row.Keywords, &item.Keywords); err != nil {
				return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
			}
		}
		if len(row.Extra) > 0 {
			if err := json.Unmarshal(row.Extra, &item.Extra); err != nil {
				return nil, fmt.Errorf("failed to unmarshal extra: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// GetDailyStats returns per-source item counts for a day.
func (r *ItemRepo) GetDailyStats(ctx context.Context, day time.Time) (map[string]int, error) {
	query := `
		SELECT source, COUNT(*) AS count
		FROM trending_items
		WHERE fetched_at::date = $1::date
		GROUP BY source
	`

	var rows []struct {
		Source string `db:"source"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, day); err != nil {
		return nil, fmt.Errorf("failed to select daily stats: %w", err)
	}

	stats := make(map[string]int, len(rows))
	for _, row := range rows {
		stats[row.Source] = row.Count
	}
	return stats, nil
}

// DeleteOldItems purges items older than the retention window.
func (r *ItemRepo) DeleteOldItems(ctx context.Context, days int) (int64, error) {
	query := `DELETE FROM trending_items WHERE fetched_at < NOW() - ($1 * INTERVAL '1 day')`
	res, err := r.db.ExecContext(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old items: %w", err)
	}
	return res.RowsAffected()
}
