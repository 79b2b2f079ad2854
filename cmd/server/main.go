package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/RACOAI-Official/ems-realtime/gateway"
	"github.com/RACOAI-Official/ems-realtime/internal"
	"github.com/RACOAI-Official/ems-realtime/moderation"
	"github.com/RACOAI-Official/ems-realtime/observability"
	"github.com/RACOAI-Official/ems-realtime/repositories"
	"github.com/RACOAI-Official/ems-realtime/runtime"
	"github.com/RACOAI-Official/ems-realtime/runtime/workers"
	"github.com/RACOAI-Official/ems-realtime/services"
	"github.com/RACOAI-Official/ems-realtime/storage"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern ensures all 'defer' statements (like database cleanup) execute before the
// program exits, and keeps the initialization logic testable apart from main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Databases (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) && config.DebugDBPort != nil {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", *config.DebugDBPort, endpoint))
		database.StartDebugServer(db, *config.DebugDBPort, endpoint, MessageMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Stores & realtime core
	messageRepository := repositories.NewMessageRepository(db, blugeWriter, logger)
	notificationRepository := repositories.NewNotificationRepository(db, logger)
	directory := repositories.NewUserDirectory(db)

	fileStore, err := storage.NewDiskFileStore(logger, config.AttachmentRoot)
	if err != nil {
		return exitRuntime, err
	}

	registry := runtime.NewRegistry()
	monitoring := observability.NewMonitoringManager(logger, registry)
	broadcaster := runtime.NewBroadcaster(logger, registry, directory, monitoring)
	presence := runtime.NewPresenceTracker(logger, registry, directory, broadcaster, monitoring)

	var filter *moderation.Filter
	if config.EnableModeration {
		filter, err = moderation.NewDefaultFilter(charReplacement)
		if err != nil {
			return exitRuntime, fmt.Errorf("loading moderation word lists: %w", err)
		}
	}

	// 4. Supervised workers
	pushWorker := workers.NewPushWorker(logger, broadcaster, monitoring, config.PushQueueSize)
	heartbeat := workers.NewHeartbeatWorker(logger, monitoring, pushWorker, config.HeartbeatInterval)
	sup := workers.NewSupervisor(logger)
	sup.Add(pushWorker, heartbeat)

	chatService := services.NewChatService(logger, messageRepository, notificationRepository,
		directory, fileStore, pushWorker, filter, monitoring, config.SearchLimit)
	notificationService := services.NewNotificationService(logger, notificationRepository)

	// 5. HTTP surface: the WebSocket gateway plus the JSON request layer.
	wsHandler := gateway.NewHandler(logger, presence, broadcaster, directory, config.ConnectionBufferSize)
	mux := newAPIMux(logger, chatService, notificationService, fileStore, wsHandler)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	go func() {
		logger.Info("Starting workers...")
		sup.Run(ctx)
	}()

	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
