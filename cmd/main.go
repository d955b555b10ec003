package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"dm-lab/ratelimiter"
	"dm-lab/repositories"
	"dm-lab/runtime"
	"dm-lab/runtime/workers"
	"dm-lab/server"
	"dm-lab/services"
	"dm-lab/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories
	users, err := repositories.NewUserRepository(db)
	if err != nil {
		return fmt.Errorf("user repository: %w", err)
	}
	defer func() { _ = users.Close() }()

	messages, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return fmt.Errorf("message repository: %w", err)
	}
	defer func() { _ = messages.Close() }()

	contacts, err := repositories.NewContactRepository(db)
	if err != nil {
		return fmt.Errorf("contact repository: %w", err)
	}
	defer func() { _ = contacts.Close() }()

	// 4. Core runtime: event bus, session registry, fan-out worker
	bus := runtime.NewBus(log, config.BufferSize)
	registry := runtime.NewRegistry(log)

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewFanout(log, bus.Events(), registry))

	// 5. Services
	authService := services.NewAuthService(users, config.TokenDuration)
	chatService := services.NewChatService(log, users, contacts, messages, bus)
	contactService := services.NewContactService(log, users, contacts, bus)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 7. HTTP + socket surface
	limiter := ratelimiter.New(config.SendRatePerSecond, config.SendRateBurst, config.SendRateIdleTTL)
	socket := ws.NewHandler(log, registry, users, chatService, limiter, config.ConnectionBufferSize)
	handlers := server.NewHandlers(log, authService, chatService, contactService)
	srv := server.NewServer(log, config.Host, config.Port, handlers, socket)

	if err := srv.Run(ctx); err != nil {
		return err
	}

	sup.Stop()
	<-supDone

	log.Info("Program stopped cleanly")
	return nil
}
