// Package feed provides the recent-activity feed written on every status
// mutation and polled by dashboards.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one recent status change as shown on the workshop dashboard.
type Entry struct {
	ID         string    `json:"id"`
	JobID      int64     `json:"jobId"`
	JobNumber  string    `json:"jobNumber"`
	Status     string    `json:"status"`
	Label      string    `json:"label"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// RedisFeed keeps a capped list of recent entries in Redis. Writes are
// best-effort mirrors of the audit trail: a failed publish is logged by the
// caller and never affects the mutation that produced it.
type RedisFeed struct {
	client *redis.Client
	key    string
	maxLen int64
}

const defaultMaxLen = 200

// NewRedisFeed connects to Redis at the given URL.
func NewRedisFeed(redisURL string) (*RedisFeed, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisFeedWithClient(client), nil
}

// NewRedisFeedWithClient creates a feed from an existing Redis client.
func NewRedisFeedWithClient(client *redis.Client) *RedisFeed {
	return &RedisFeed{
		client: client,
		key:    "activity:recent",
		maxLen: defaultMaxLen,
	}
}

// Publish pushes an entry onto the front of the feed and trims it to the cap.
func (f *RedisFeed) Publish(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal feed entry: %w", err)
	}
	if err := f.client.LPush(ctx, f.key, payload).Err(); err != nil {
		return fmt.Errorf("push feed entry: %w", err)
	}
	if err := f.client.LTrim(ctx, f.key, 0, f.maxLen-1).Err(); err != nil {
		return fmt.Errorf("trim feed: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (f *RedisFeed) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || int64(limit) > f.maxLen {
		limit = int(f.maxLen)
	}
	raw, err := f.client.LRange(ctx, f.key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal feed entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Ping checks if Redis is reachable.
func (f *RedisFeed) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (f *RedisFeed) Close() error {
	return f.client.Close()
}
