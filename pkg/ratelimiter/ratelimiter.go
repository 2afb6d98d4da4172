package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"anoa.com/runclub/pkg/apperror"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitError is returned when an action is still cooling down.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) Unwrap() error {
	return apperror.ErrRateLimitExceeded
}

// Cooldown enforces one action per user per window using SETNX keys.
// A nil redis client disables limiting.
type Cooldown struct {
	rdb *redis.Client
}

func NewCooldown(rdb *redis.Client) *Cooldown {
	return &Cooldown{rdb: rdb}
}

func key(userID uuid.UUID, action string) string {
	return fmt.Sprintf("rate_limit:user:%s:%s", userID.String(), action)
}

// Check claims the window for userID/action or returns a *RateLimitError.
func (c *Cooldown) Check(ctx context.Context, userID uuid.UUID, action string, window time.Duration) error {
	if c == nil || c.rdb == nil || window <= 0 {
		return nil
	}

	wasSet, err := c.rdb.SetNX(ctx, key(userID, action), "locked", window).Result()
	if err != nil {
		return fmt.Errorf("failed to check rate limit in redis: %w", err)
	}
	if wasSet {
		return nil
	}

	ttl, err := c.rdb.TTL(ctx, key(userID, action)).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}

	return &RateLimitError{
		Message:    fmt.Sprintf("please wait %.0f seconds before trying again", ttl.Seconds()),
		RetryAfter: ttl,
	}
}

// Clear releases the window, used when the guarded action failed.
func (c *Cooldown) Clear(ctx context.Context, userID uuid.UUID, action string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, key(userID, action)).Err()
}
