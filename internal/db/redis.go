package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wuwenbin0122/finbot/internal/utils"
)

const summaryKeyPrefix = "finbot:summary:"

func NewRedisClient(ctx context.Context, cfg utils.RedisConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// SummaryCache keeps encoded financial summaries per user.
type SummaryCache struct {
	client *redis.Client
}

func NewSummaryCache(client *redis.Client) *SummaryCache {
	return &SummaryCache{client: client}
}

// GetSummary returns nil without error on a cache miss.
func (c *SummaryCache) GetSummary(ctx context.Context, userID string) ([]byte, error) {
	payload, err := c.client.Get(ctx, summaryKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get summary: %w", err)
	}
	return payload, nil
}

func (c *SummaryCache) SetSummary(ctx context.Context, userID string, payload []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, summaryKeyPrefix+userID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set summary: %w", err)
	}
	return nil
}

func (c *SummaryCache) InvalidateSummary(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, summaryKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis: invalidate summary: %w", err)
	}
	return nil
}
