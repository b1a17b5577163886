package ratelimit

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

const sendKeyPrefix = "ratelimit:send:"

// Module provides the message send limiter.
type Module struct {
	client  *redis.Client
	limiter *SlidingWindowLimiter
	logger  types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the rate limit module on a shared Redis client.
func NewModule(client *redis.Client, config Config, logger types.Logger) *Module {
	return &Module{
		client:  client,
		limiter: NewSlidingWindowLimiter(client, config, sendKeyPrefix),
		logger:  logger.WithModule("ratelimit"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ratelimit"
}

// Start logs the active limits.
func (m *Module) Start(_ context.Context) error {
	cfg := m.limiter.Config()
	m.logger.Info("Send rate limit active", "limit", cfg.Limit, "window", cfg.Window)
	return nil
}

// Stop is a no-op; the Redis client belongs to the store module.
func (m *Module) Stop(_ context.Context) error {
	return nil
}

// Health reports whether the limiter backend is reachable.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}
	cfg := m.limiter.Config()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"limit":  cfg.Limit,
			"window": cfg.Window.String(),
		},
	}
}

// Limiter returns the send limiter.
func (m *Module) Limiter() *SlidingWindowLimiter {
	return m.limiter
}
