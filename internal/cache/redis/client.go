package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/metrics"
	"github.com/rainfeed/backend/pkg/logger"
)

// Client caches fetched article markdown and generated chunk context so
// repeat saves and re-reads skip the slow upstreams.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetDocument(ctx context.Context, urlHash, markdown string, ttl time.Duration) error {
	err := c.client.Set(ctx, fmt.Sprintf("doc:%s", urlHash), markdown, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set document cache: %w", err)
	}

	logger.Debug("Document cached", zap.String("url_hash", urlHash), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetDocument(ctx context.Context, urlHash string) (string, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("doc:%s", urlHash)).Result()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("document").Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get document cache: %w", err)
	}

	metrics.CacheHits.WithLabelValues("document").Inc()
	logger.Debug("Document cache hit", zap.String("url_hash", urlHash))
	return data, true, nil
}

func (c *Client) SetContext(ctx context.Context, chunkID, contextText string, ttl time.Duration) error {
	err := c.client.Set(ctx, fmt.Sprintf("context:%s", chunkID), contextText, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set context cache: %w", err)
	}
	return nil
}

func (c *Client) GetContext(ctx context.Context, chunkID string) (string, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("context:%s", chunkID)).Result()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("context").Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get context cache: %w", err)
	}

	metrics.CacheHits.WithLabelValues("context").Inc()
	return data, true, nil
}

// InvalidateDocuments drops every cached document, for when the reader
// upstream starts returning different content.
func (c *Client) InvalidateDocuments(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "doc:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Document cache invalidated")
	return nil
}
