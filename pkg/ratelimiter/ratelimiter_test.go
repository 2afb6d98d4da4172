package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/runclub/pkg/apperror"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCooldown(t *testing.T) (*Cooldown, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCooldown(rdb), mr
}

func TestCooldownBlocksSecondAttempt(t *testing.T) {
	c, mr := newCooldown(t)
	ctx := context.Background()
	user := uuid.New()

	require.NoError(t, c.Check(ctx, user, "create_post", time.Minute))

	err := c.Check(ctx, user, "create_post", time.Minute)
	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)
	assert.Greater(t, rlErr.RetryAfter, time.Duration(0))

	// Different action is independent.
	require.NoError(t, c.Check(ctx, user, "create_comment", time.Minute))

	mr.FastForward(time.Minute + time.Second)
	require.NoError(t, c.Check(ctx, user, "create_post", time.Minute))
}

func TestCooldownClear(t *testing.T) {
	c, _ := newCooldown(t)
	ctx := context.Background()
	user := uuid.New()

	require.NoError(t, c.Check(ctx, user, "create_post", time.Minute))
	require.NoError(t, c.Clear(ctx, user, "create_post"))
	require.NoError(t, c.Check(ctx, user, "create_post", time.Minute))
}

func TestNilCooldownAllows(t *testing.T) {
	var c *Cooldown
	assert.NoError(t, c.Check(context.Background(), uuid.New(), "x", time.Minute))
	assert.NoError(t, NewCooldown(nil).Check(context.Background(), uuid.New(), "x", time.Minute))
}
