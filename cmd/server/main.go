package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plan-gate-server/internal/config"
	"plan-gate-server/internal/handler"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// Wiring
	container, err := config.NewContainer(context.Background())
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}
	defer container.Close()

	cfg := container.Config
	upgradeURL := cfg.GetAppURL() + "/pricing"

	// Handlers
	billingHandler := handler.NewBillingHandler(
		container.PlanResolver,
		container.CheckoutService,
		container.PortalService,
		upgradeURL,
		container.Logger,
	)

	webhookHandler := handler.NewWebhookHandler(
		container.EventVerifier,
		container.Reconciler,
		container.Logger,
	)

	featureHandler := handler.NewFeatureHandler(
		container.FeatureGate,
		container.CooldownGate,
		container.ContentService,
		upgradeURL,
		container.Logger,
	)

	authMiddleware := handler.NewAuthMiddleware(
		container.AuthService,
		container.Logger,
	)

	// Router
	router := handler.NewRouter(
		billingHandler,
		webhookHandler,
		featureHandler,
		authMiddleware.Middleware,
		cfg.GetCORSAllowedOrigins(),
		container.Logger,
	)

	// start server
	server := &http.Server{
		Addr:              ":" + cfg.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Error("Server failed to start", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		container.Logger.Error("Graceful shutdown failed", err)
		_ = server.Close()
	}

	container.Logger.Info("Server exited")
}
