package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/greatlakes/greenhouse-tickets/internal/api/http"
	"github.com/greatlakes/greenhouse-tickets/internal/api/http/handlers"
	"github.com/greatlakes/greenhouse-tickets/internal/app"
	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/config"
	"github.com/greatlakes/greenhouse-tickets/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, closeServices, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire services", zap.Error(err))
	}
	defer closeServices()

	if cfg.Inbound.WebhookSecretHash == "" {
		logger.Warn("INBOUND_WEBHOOK_SECRET_HASH not set, inbound webhook will reject every call")
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, 0)
	authMiddleware := auth.NewAuthMiddleware(tokens, services.Sessions)

	server := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(server, logger, services.Metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": services.Postgres,
			"redis":    services.Redis,
		}),
		Tickets:        handlers.NewTicketsHandler(services.Tickets, services.Assignments),
		Comments:       handlers.NewCommentsHandler(services.Comments),
		Public:         handlers.NewPublicHandler(services.Tickets, services.Comments),
		Directory:      handlers.NewDirectoryHandler(services.Profiles),
		EmailQueue:     handlers.NewEmailQueueHandler(services.EmailQueue),
		Webhook:        handlers.NewWebhookHandler(services.Correlator, cfg.Inbound.WebhookSecretHash, services.Metrics, logger.Named("webhook")),
		AuthMiddleware: authMiddleware,
		Metrics:        services.Metrics,
	})

	go func() {
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = server.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
