package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown allows one action per key per window. It guards watermark-free
// exports, which are the expensive ones.
type Cooldown struct {
	client redis.Cmdable
	prefix string
	window time.Duration
}

// NewCooldown returns a Cooldown with the given window.
func NewCooldown(client redis.Cmdable, window time.Duration) *Cooldown {
	return &Cooldown{client: client, prefix: "appshots:cooldown:advanced-export:", window: window}
}

// Acquire starts the window for key. When a window is already running it
// reports how long until the next attempt may succeed.
func (c *Cooldown) Acquire(ctx context.Context, key string) (bool, time.Duration, error) {
	if c.window <= 0 {
		return true, 0, nil
	}
	k := c.prefix + key
	ok, err := c.client.SetNX(ctx, k, time.Now().UnixMilli(), c.window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown acquire: %w", err)
	}
	if ok {
		return true, 0, nil
	}
	ttl, err := c.client.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown ttl: %w", err)
	}
	if ttl < 0 {
		ttl = c.window
	}
	return false, ttl, nil
}

// Release clears the window, used when the guarded action never started.
func (c *Cooldown) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("cooldown release: %w", err)
	}
	return nil
}
