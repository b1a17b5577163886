// Package analytics keeps content-free usage counters of the chat service.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/private-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module consumes room events and serves the stats summary.
type Module struct {
	db      *gorm.DB
	service *Service
	dbPath  string
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new analytics module backed by the SQLite file at dbPath.
func NewModule(dbPath string, logger types.Logger) *Module {
	return &Module{
		dbPath: dbPath,
		logger: logger.WithModule("analytics"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "analytics"
}

// Start opens the database and migrates the schema.
func (m *Module) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&DailyStats{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.db = db
	m.service = NewService(NewRepository(db))
	m.logger.Info("Analytics module started", "database", m.dbPath)
	return nil
}

// Stop closes the database.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Analytics module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get database connection: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"database": m.dbPath},
	}
}

// RegisterEventConsumers registers the room event consumer.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomEventV1, m.handleRoomEvent, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomEvent consumer: %w", err)
	}
	m.logger.Info("Registered event consumers", "events", []string{"RoomEvent.v1"})
	return nil
}

// RegisterServices registers the get-stats service.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "get-stats", json.Unmarshal, json.Marshal, m.handleGetStats,
	); err != nil {
		return fmt.Errorf("failed to register get-stats service: %w", err)
	}
	m.logger.Info("Registered services", "services", []string{"get-stats"})
	return nil
}

func (m *Module) handleRoomEvent(ctx context.Context, event events.RoomEvent, _ *mono.Msg) error {
	if m.service == nil {
		return nil
	}
	if err := m.service.Record(ctx, event); err != nil {
		// Counters are advisory; a failed write is not retried.
		m.logger.Warn("Failed to record room event", "event", event.Name, "error", err)
	}
	return nil
}

func (m *Module) handleGetStats(ctx context.Context, _ StatsRequest, _ *mono.Msg) (Summary, error) {
	if m.service == nil {
		return Summary{}, fmt.Errorf("analytics not started")
	}
	summary, err := m.service.Summary(ctx)
	if err != nil {
		m.logger.Error("Failed to read stats", "error", err)
		return Summary{}, err
	}
	return *summary, nil
}
