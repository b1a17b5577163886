// Package ratelimit throttles message sends per participant with a Redis sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiting configuration.
type Config struct {
	// Limit is the maximum number of requests allowed in the window.
	Limit int
	// Window is the duration of the sliding window.
	Window time.Duration
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// slidingWindowScript trims entries older than the window, then records the
// request if the window still has room. Both keys expire with the window.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < limit then
		local seq = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. seq)
		redis.call('PEXPIRE', key, window_ms)
		redis.call('PEXPIRE', counter_key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_after = 0
	if #oldest >= 2 then
		retry_after = tonumber(oldest[2]) + window_ms - now
	end
	return {0, 0, retry_after}
`)

// SlidingWindowLimiter implements a sliding window rate limiter on a Redis sorted set.
type SlidingWindowLimiter struct {
	client *redis.Client
	config Config
	prefix string
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(client *redis.Client, config Config, prefix string) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		config: config,
		prefix: prefix,
		now:    time.Now,
	}
}

// Allow records a request for key and reports whether it fits in the window.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := l.now()
	redisKey := l.prefix + key

	values, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey, redisKey + ":seq"},
		now.UnixMilli(),
		now.Add(-l.config.Window).UnixMilli(),
		l.config.Limit,
		l.config.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(values) < 3 {
		return nil, fmt.Errorf("unexpected result length: %d", len(values))
	}

	res := &Result{
		Allowed:   values[0] == 1,
		Remaining: int(values[1]),
		ResetAt:   now.Add(l.config.Window),
	}
	if !res.Allowed && values[2] > 0 {
		res.RetryAfter = time.Duration(values[2]) * time.Millisecond
	}
	return res, nil
}

// Config returns the limiter's configuration.
func (l *SlidingWindowLimiter) Config() Config {
	return l.config
}
