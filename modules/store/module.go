package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Module owns the Redis client shared by the room store and the rate limiter.
type Module struct {
	client *redis.Client
	store  *RedisStore
	config Config
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the store module. The client connects lazily; Start verifies it.
func NewModule(config Config, logger types.Logger) *Module {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	return &Module{
		client: client,
		store:  NewRedisStore(client),
		config: config,
		logger: logger.WithModule("store"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start verifies the Redis connection.
func (m *Module) Start(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	m.logger.Info("Connected to Redis", "addr", m.config.Addr, "db", m.config.DB)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if err := m.client.Close(); err != nil {
		m.logger.Error("Error closing Redis connection", "error", err)
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	m.logger.Info("Redis connection closed")
	return nil
}

// Health reports Redis reachability.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":  m.config.Addr,
			"stats": m.store.GetStats(),
		},
	}
}

// Store returns the room store.
func (m *Module) Store() *RedisStore {
	return m.store
}

// Client returns the shared Redis client.
func (m *Module) Client() *redis.Client {
	return m.client
}
