// Package ratelimit throttles failed logins per email with fixed-window
// counters in Redis (INCR, plus EXPIRE on the first hit of a window).
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tablescout/tablescout/internal/common"
)

// ErrUnavailable wraps Redis failures.
var ErrUnavailable = errors.New("rate limiter unavailable")

const keyPrefix = "tablescout:login:fail:"

type LoginLimiter struct {
	redis    redis.UniversalClient
	max      int
	cooldown time.Duration
}

func NewLoginLimiter(client redis.UniversalClient, maxAttempts int, cooldown time.Duration) *LoginLimiter {
	return &LoginLimiter{redis: client, max: maxAttempts, cooldown: cooldown}
}

func key(email string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Check returns common.ErrTooManyAttempts once email has used up its budget
// of failed attempts in the current window.
func (l *LoginLimiter) Check(ctx context.Context, email string) error {
	count, err := l.redis.Get(ctx, key(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= int64(l.max) {
		return common.ErrTooManyAttempts
	}
	return nil
}

// Fail records a failed attempt for email.
func (l *LoginLimiter) Fail(ctx context.Context, email string) error {
	k := key(email)
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
