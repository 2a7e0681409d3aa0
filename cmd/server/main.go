package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-chat-server/internal/config"
	"pdf-chat-server/internal/handler"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wiring
	container, err := config.NewContainer(ctx)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer container.Close()
	cfg := container.Config

	// Handlers
	handlers := handler.Handlers{
		Auth:     handler.NewAuthHandler(container.UserRepository, container.UsageService, container.Logger),
		Document: handler.NewDocumentHandler(container.DocumentService, container.Logger, cfg.GetMaxFileSize()),
		Chat:     handler.NewChatHandler(container.ChatService, container.Logger),
		Billing: handler.NewBillingHandler(
			container.BillingService,
			container.BillingParser,
			container.Reconciler,
			container.Logger,
		),
		Admin: handler.NewAdminHandler(cfg.AdminSecret, container.Reconciler, container.Logger),
	}

	authMiddleware := handler.NewAuthMiddleware(
		container.AuthService,
		container.Logger,
	)

	// Router
	router := handler.NewRouter(
		handlers,
		authMiddleware.Middleware,
		container.Metrics,
		cfg.AllowedOrigins,
	)

	server := &http.Server{
		Addr:              ":" + cfg.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server
	serverErr := make(chan error, 1)
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			container.Logger.Error("Server failed", err)
			container.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	container.Logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Graceful shutdown failed", err)
		_ = server.Close()
	}

	container.Logger.Info("Server exited")
}
