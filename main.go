package main

import (
	"context"
	"log"
	"os"

	"github.com/example/private-chat/config"
	"github.com/example/private-chat/modules/analytics"
	"github.com/example/private-chat/modules/api"
	"github.com/example/private-chat/modules/broadcast"
	"github.com/example/private-chat/modules/ratelimit"
	"github.com/example/private-chat/modules/room"
	"github.com/example/private-chat/modules/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := mono.LogLevelInfo
	if cfg.LogLevel == "error" {
		logLevel = mono.LogLevelError
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(logLevel),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	logger := app.Logger()

	// Create modules
	storeModule := store.NewModule(store.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)

	var watcher room.ExpiryWatcher
	if cfg.ExpiryNotify {
		watcher = storeModule.Store()
	}

	roomModule, err := room.NewModule(storeModule.Store(), watcher, room.Config{
		TTL:             cfg.RoomTTL,
		Capacity:        cfg.RoomCapacity,
		MaxSenderLength: cfg.MaxSenderLength,
		MaxTextLength:   cfg.MaxTextLength,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create room module: %v", err)
	}

	broadcastModule := broadcast.NewModule(logger)
	analyticsModule := analytics.NewModule(cfg.AnalyticsDBPath, logger)
	rateLimitModule := ratelimit.NewModule(storeModule.Client(), ratelimit.Config{
		Limit:  cfg.SendRateLimit,
		Window: cfg.SendRateWindow,
	}, logger)

	apiModule := api.NewModule(api.Config{
		Addr:           cfg.ListenAddr(),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		CookieTTL:      cfg.RoomTTL,
		CookieSecure:   cfg.CookieSecure,
	}, broadcastModule.Hub(), rateLimitModule.Limiter().Handler(api.SendLimitKey), logger)

	// Register modules
	app.Register(storeModule)
	app.Register(roomModule)
	app.Register(broadcastModule)
	app.Register(analyticsModule)
	app.Register(rateLimitModule)
	app.Register(apiModule)

	// Start application
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Setup graceful shutdown using gelmium/graceful-shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *config.Config) {
	log.Println("=== Private Chat ===")
	log.Printf("Redis: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	log.Printf("Room TTL: %s, capacity: %d", cfg.RoomTTL, cfg.RoomCapacity)
	log.Printf("Send limit: %d per %s", cfg.SendRateLimit, cfg.SendRateWindow)
	log.Printf("Expiry notifications: %t", cfg.ExpiryNotify)
	log.Printf("Analytics DB: %s", cfg.AnalyticsDBPath)
	log.Printf("API available at http://localhost:%d", cfg.HTTPPort)
	log.Println("Endpoints:")
	log.Println("  GET    /health                  - Health check")
	log.Println("  POST   /api/rooms               - Create room")
	log.Println("  POST   /api/rooms/join?roomId=  - Join room (sets token cookie)")
	log.Println("  GET    /api/rooms/ttl?roomId=   - Remaining lifetime")
	log.Println("  GET    /api/rooms/info?roomId=  - Room info")
	log.Println("  DELETE /api/rooms?roomId=       - Destroy room")
	log.Println("  GET    /api/messages?roomId=    - Message history")
	log.Println("  POST   /api/messages?roomId=    - Send message")
	log.Println("  GET    /api/realtime?roomId=    - WebSocket event stream")
	log.Println("  GET    /api/stats               - Aggregate statistics")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")
}
