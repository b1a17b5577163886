package ratelimit

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// KeyFunc extracts the rate limit key from a request. An empty key skips limiting.
type KeyFunc func(c *fiber.Ctx) string

// Handler returns Fiber middleware that limits requests per key. Limiter
// errors let the request through.
func (l *SlidingWindowLimiter) Handler(keyFn KeyFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := keyFn(c)
		if key == "" {
			return c.Next()
		}

		result, err := l.Allow(c.UserContext(), key)
		if err != nil {
			c.Set("X-RateLimit-Error", "unavailable")
			return c.Next()
		}

		setRateLimitHeaders(c, result, l.config.Limit)

		if !result.Allowed {
			return sendRateLimitExceeded(c, result)
		}
		return c.Next()
	}
}

func setRateLimitHeaders(c *fiber.Ctx, result *Result, limit int) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func sendRateLimitExceeded(c *fiber.Ctx, result *Result) error {
	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	c.Set("Retry-After", strconv.Itoa(retryAfter))

	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":       "rate-limited",
		"message":     fmt.Sprintf("Too many messages. Retry after %d seconds.", retryAfter),
		"retry_after": retryAfter,
	})
}
