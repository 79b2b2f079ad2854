package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RACOAI-Official/ems-realtime/domain/event"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:8080/ws"`
	UserID    string `envconfig:"CHAT_USER_ID" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO"`
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run joins the realtime gateway as one user and prints every frame
// pushed to it. Useful as a smoke check against a running server.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Dial the gateway and join.
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(dialCtx, config.ServerURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to gateway at %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = ws.CloseNow()
	}()

	if err := wsjson.Write(ctx, ws, map[string]any{
		"event": event.NameJoin,
		"data":  map[string]string{"userId": config.UserID},
	}); err != nil {
		return exitRuntime, fmt.Errorf("failed to join: %w", err)
	}

	log.Info("Connected, listening for events (Ctrl+C to quit)",
		"server", config.ServerURL, "user", config.UserID)

	// 4. Frame reception loop until the context is canceled or the
	// server closes the connection.
	for {
		var f frame
		if err := wsjson.Read(ctx, ws, &f); err != nil {
			// Normal exit if the user triggered a shutdown.
			if ctx.Err() != nil {
				log.Info("Stopping client...")
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("read error: %w", err)
		}
		log.Info(fmt.Sprintf("[%s] %s: %s",
			time.Now().Format(time.TimeOnly),
			f.Event,
			string(f.Data),
		))
	}
}
