package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classboard/internal/api"
	"classboard/internal/auth"
	"classboard/internal/config"
	"classboard/internal/database"
	"classboard/internal/hub"
	"classboard/internal/state"
	"classboard/internal/websocket"
)

// Application wires the components in dependency order: credential
// store, gate, state store, registry, coordinator, WebSocket handler,
// HTTP surface.
type Application struct {
	config      *config.Config
	credentials *database.CredentialStore
	coordinator *hub.Coordinator
	httpServer  *http.Server
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var credentials *database.CredentialStore
	if cfg.Auth.Mode == config.AuthModeStore {
		store, err := database.Open(cfg.Auth.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		credentials = store
	}

	gate, err := auth.NewGate(cfg.Auth, credentials)
	if err != nil {
		if credentials != nil {
			_ = credentials.Close()
		}
		return nil, fmt.Errorf("failed to build auth gate: %w", err)
	}

	store := state.NewStore(state.SystemClock{})
	registry := websocket.NewRegistry()
	coordinator := hub.NewCoordinator(store, registry, cfg.Limits.MessagesPerMinute)
	wsHandler := websocket.NewHandler(coordinator, gate, cfg.WebSocket)
	apiServer := api.NewServer(gate, store, wsHandler, cfg.HTTP)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		credentials: credentials,
		coordinator: coordinator,
		httpServer:  httpServer,
	}, nil
}

// Start launches the coordinator and then the HTTP server. The
// coordinator must be running before the first connection arrives.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("starting classboard on %s", app.httpServer.Addr)

	if err := app.coordinator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start coordinator: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.coordinator.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("classboard started")
		return nil
	case <-ctx.Done():
		_ = app.coordinator.Stop()
		return ctx.Err()
	}
}

// Stop shuts components down in reverse order: HTTP server first so no
// new connections arrive, then the coordinator, then storage.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("shutting down classboard")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.coordinator.Stop(); err != nil {
		log.Printf("coordinator shutdown error: %v", err)
	}

	if app.credentials != nil {
		if err := app.credentials.Close(); err != nil {
			log.Printf("credential store shutdown error: %v", err)
		}
	}

	log.Printf("classboard shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := os.Getenv("CLASSBOARD_CONFIG_FILE")
	cfg := config.LoadConfigWithPrecedence(configPath)

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	appErrCh := make(chan error, 1)
	go func() {
		if err := app.Start(ctx); err != nil {
			appErrCh <- err
		}
	}()

	select {
	case err := <-appErrCh:
		return fmt.Errorf("application error: %w", err)
	case sig := <-signalCh:
		log.Printf("received signal %v, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := app.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	}
}
