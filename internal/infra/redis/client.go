package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the manual refresh queue.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the connection.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func refreshQueueKey() string {
	return "trending:refresh_requests"
}

func refreshLockKey(source string) string {
	return fmt.Sprintf("trending:refreshing:%s", source)
}

// PushRefresh queues a manual refresh request for a source. The queue is a
// sorted set scored by request time, so repeated requests for the same
// source collapse into one entry.
func (c *Client) PushRefresh(ctx context.Context, source string) error {
	score := float64(time.Now().Unix())
	if err := c.rdb.ZAdd(ctx, refreshQueueKey(), redis.Z{Score: score, Member: source}).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// PopRefresh pops the oldest refresh request from the queue.
func (c *Client) PopRefresh(ctx context.Context) (string, bool, error) {
	key := refreshQueueKey()

	// Get the first element (lowest score = oldest request)
	results, err := c.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("zrange failed: %w", err)
	}
	if len(results) == 0 {
		return "", false, nil
	}

	source, ok := results[0].Member.(string)
	if !ok {
		return "", false, fmt.Errorf("unexpected member type %T", results[0].Member)
	}
	if err := c.rdb.ZRem(ctx, key, source).Err(); err != nil {
		return "", false, fmt.Errorf("zrem failed: %w", err)
	}
	return source, true, nil
}

// PendingRefreshes returns the queued sources without removing them,
// oldest first.
func (c *Client) PendingRefreshes(ctx context.Context) ([]string, error) {
	return c.rdb.ZRange(ctx, refreshQueueKey(), 0, -1).Result()
}

// AcquireRefreshLock marks a source as being refreshed so concurrent
// workers do not hit the same site twice. The lock expires on its own if
// the holder dies.
func (c *Client) AcquireRefreshLock(ctx context.Context, source string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, refreshLockKey(source), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseRefreshLock releases a refresh lock.
func (c *Client) ReleaseRefreshLock(ctx context.Context, source string) error {
	return c.rdb.Del(ctx, refreshLockKey(source)).Err()
}
