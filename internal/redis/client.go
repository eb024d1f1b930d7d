package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// StateReplayKey is the key under which a consumed OAuth state signature is
// recorded for the remainder of its validity window.
func StateReplayKey(signature string) string {
	return fmt.Sprintf("oauthstate:%s", signature)
}

// MarkUsed records a consumed OAuth state signature. Returns false when the
// signature was already recorded, i.e. the callback is a replay.
func (c *Client) MarkUsed(ctx context.Context, signature string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, StateReplayKey(signature), "1", ttl).Result()
}
