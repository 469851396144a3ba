package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablescout/tablescout/internal/common"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLoginLimiter_BlocksAfterMax(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewLoginLimiter(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Check(ctx, "a@b.c"))
		require.NoError(t, l.Fail(ctx, "a@b.c"))
	}

	require.ErrorIs(t, l.Check(ctx, "a@b.c"), common.ErrTooManyAttempts)
	require.ErrorIs(t, l.Check(ctx, " A@B.C "), common.ErrTooManyAttempts, "keys are normalised")
	require.NoError(t, l.Check(ctx, "other@b.c"))
}

func TestLoginLimiter_WindowExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewLoginLimiter(client, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "a@b.c"))
	require.ErrorIs(t, l.Check(ctx, "a@b.c"), common.ErrTooManyAttempts)
	assert.Equal(t, time.Minute, mr.TTL(key("a@b.c")))

	mr.FastForward(time.Minute + time.Second)
	require.NoError(t, l.Check(ctx, "a@b.c"))
}

func TestLoginLimiter_Reset(t *testing.T) {
	_, client := newTestRedis(t)
	l := NewLoginLimiter(client, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "a@b.c"))
	require.NoError(t, l.Reset(ctx, "a@b.c"))
	require.NoError(t, l.Check(ctx, "a@b.c"))
}

func TestLoginLimiter_RedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewLoginLimiter(client, 1, time.Minute)
	mr.Close()

	ctx := context.Background()
	require.ErrorIs(t, l.Check(ctx, "a@b.c"), ErrUnavailable)
	require.ErrorIs(t, l.Fail(ctx, "a@b.c"), ErrUnavailable)
	require.ErrorIs(t, l.Reset(ctx, "a@b.c"), ErrUnavailable)
}
