package cache

import (
	"context"
	"time"
)

// Counter counts hits per key in fixed windows. The window starts with the
// first hit and the key expires with it.
type Counter struct {
	client Client
}

func NewCounter(client Client) *Counter {
	return &Counter{client: client}
}

// Hit records one hit and returns the count so far in the current window and
// the time left until it resets.
func (c *Counter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	key = "rate_limit:" + key
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return count, window, err
		}
		return count, window, nil
	}
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// A key left without expiry would block forever; restart its window.
		_ = c.client.Expire(ctx, key, window).Err()
		ttl = window
	}
	return count, ttl, nil
}
