package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, config Config) (*SlidingWindowLimiter, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := time.UnixMilli(1_700_000_000_000)
	l := NewSlidingWindowLimiter(client, config, "test:")
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Limit: 5, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Allow(ctx, "tok")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 5-i-1, res.Remaining)
	}

	res, err := l.Allow(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, time.Minute, res.RetryAfter)
}

func TestSlidingWindowLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	res, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestSlidingWindowLimiter_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(t, Config{Limit: 2, Window: 10 * time.Second})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "tok")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	*clock = clock.Add(4 * time.Second)
	res, err := l.Allow(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 6*time.Second, res.RetryAfter)

	*clock = clock.Add(7 * time.Second)
	res, err = l.Allow(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestHandler(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Limit: 1, Window: time.Minute})

	app := fiber.New()
	app.Post("/send", l.Handler(func(c *fiber.Ctx) string { return c.Get("X-Key") }), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(key string) *httptestResponse {
		req := httptest.NewRequest("POST", "/send", nil)
		if key != "" {
			req.Header.Set("X-Key", key)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return &httptestResponse{status: resp.StatusCode, retryAfter: resp.Header.Get("Retry-After"), remaining: resp.Header.Get("X-RateLimit-Remaining")}
	}

	first := send("tok")
	assert.Equal(t, fiber.StatusCreated, first.status)
	assert.Equal(t, "0", first.remaining)

	second := send("tok")
	assert.Equal(t, fiber.StatusTooManyRequests, second.status)
	assert.Equal(t, "60", second.retryAfter)

	// no key, no limiting
	assert.Equal(t, fiber.StatusCreated, send("").status)
	assert.Equal(t, fiber.StatusCreated, send("").status)
}

type httptestResponse struct {
	status     int
	retryAfter string
	remaining  string
}
