package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"

	"chat-gateway/bus"
	"chat-gateway/gateway"
	"chat-gateway/infrastructure/cache"
	"chat-gateway/internal"
	"chat-gateway/repositories"
	"chat-gateway/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the gateway lifecycle, and
// centralizes error reporting, so that deferred cleanups always execute
// before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Redis (optional; an empty address disables relay and dedupe)
	var client *redis.Client
	if config.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		defer func() { _ = client.Close() }()
	} else {
		log.Warn("REDIS_ADDR not set, running without cross-process event relay")
	}

	// 4. Event bus over the shared channel
	transport := bus.NewRedisTransport(client, log)
	defer func() { _ = transport.Close() }()
	eventBus := bus.NewRelay(transport, log)

	// 5. Use cases
	repository := repositories.NewMessageRepository(db, log)
	chatService := services.NewChatService(log, repository, eventBus,
		cache.NewIdempotency(client, log), cache.NewRedis(client, log),
		config.IdempotencyTTL)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Gateway
	gw := gateway.New(log, gateway.Options{
		ListenPort:       config.ListenPort,
		MaxConnections:   config.MaxConnections,
		RateLimitWindow:  config.RateLimitWindow,
		RateLimitMax:     config.RateLimitMax,
		MaxInFlight:      config.MaxInFlight,
		MaxBufferedBytes: config.MaxBufferedBytes,
		SendQueueLength:  config.SendQueueLength,
	}, chatService, eventBus)
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("gateway failed to start: %w", err)
	}
	log.Info("Chat gateway started", "port", config.ListenPort, "at", time.Now().UTC())

	// 8. Wait for Stop, then final cleanup
	<-ctx.Done()
	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error("Gateway shutdown failed", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}
