package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greatlakes/greenhouse-tickets/internal/api/http/handlers"
	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
	Public         *handlers.PublicHandler
	Directory      *handlers.DirectoryHandler
	EmailQueue     *handlers.EmailQueueHandler
	Webhook        *handlers.WebhookHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	app.Post("/webhooks/email", cfg.Webhook.ReceiveEmail)

	public := app.Group("/public", cfg.AuthMiddleware.HandleIdentity)
	public.Post("/tickets", cfg.Public.CreateTicket)
	public.Get("/tickets/:number", cfg.Public.GetTicket)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireProfile())

	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Post("/tickets", cfg.Tickets.CreateTicket)
	api.Get("/tickets/number/:number", cfg.Tickets.GetTicketByNumber)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Put("/tickets/:id", cfg.Tickets.UpdateTicket)
	api.Patch("/tickets/:id/status", cfg.Tickets.MoveTicket)
	api.Patch("/tickets/:id/assignee", cfg.Tickets.AssignTicket)
	api.Delete("/tickets/:id", cfg.Tickets.DeleteTicket)
	api.Post("/tickets/:id/request-info", cfg.Tickets.RequestInfo)
	api.Get("/tickets/:id/history", cfg.Tickets.ListHistory)

	api.Get("/tickets/:id/comments", cfg.Comments.ListComments)
	api.Post("/tickets/:id/comments", cfg.Comments.AddComment)
	api.Delete("/comments/:id", cfg.Comments.DeleteComment)

	api.Get("/departments", cfg.Directory.ListDepartments)
	api.Get("/profiles", cfg.Directory.ListProfiles)

	api.Patch("/profiles/:id/role", auth.RequireAnyAdmin(), cfg.Directory.UpdateRole)
	api.Delete("/profiles/:id", auth.RequireAnyAdmin(), cfg.Directory.DeleteProfile)

	api.Post("/email-queue/:id/retry", auth.RequireGlobalAdmin(), cfg.EmailQueue.Retry)
}
