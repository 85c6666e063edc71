// Package app wires repositories and services for the api and jobs binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/config"
	"github.com/greatlakes/greenhouse-tickets/internal/events"
	"github.com/greatlakes/greenhouse-tickets/internal/mail"
	"github.com/greatlakes/greenhouse-tickets/internal/observability"
	"github.com/greatlakes/greenhouse-tickets/internal/persistence"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	"github.com/greatlakes/greenhouse-tickets/internal/service"
	"github.com/greatlakes/greenhouse-tickets/internal/worker"
)

// Services is the wired service graph.
type Services struct {
	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	Metrics  *observability.Metrics

	Sessions      *service.SessionService
	Tickets       *service.TicketService
	Comments      *service.CommentService
	Assignments   *service.AssignmentService
	Profiles      *service.ProfileService
	EmailQueue    *service.EmailQueueService
	Notifications *service.NotificationService
	Correlator    *service.Correlator
	Poller        *service.MailboxPoller
}

// Build connects storage and wires every service. The returned close func
// releases connections.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, func(), error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	redis := persistence.NewRedis(cfg.Redis, logger)
	closeAll := func() {
		redis.Close()
		pg.Close()
	}

	var graph *mail.GraphClient
	if mail.GraphConfigured(cfg.Mail.Graph) {
		graph = mail.NewGraphClient(cfg.Mail.Graph, cfg.Mail.HTTPTimeout)
	}
	sender, err := mail.NewSender(cfg.Mail, graph, logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	departmentRepo := repository.NewDepartmentRepository(pool)
	profileRepo := repository.NewCachedProfileRepository(
		repository.NewProfileRepository(pool), redis.Client, cfg.Auth.ProfileCacheTTL(), logger)
	queueRepo := repository.NewEmailQueueRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	s := &Services{Postgres: pg, Redis: redis, Metrics: metrics}
	s.EmailQueue = service.NewEmailQueueService(service.EmailQueueDependencies{
		QueueRepo: queueRepo,
		Sender:    sender,
		Metrics:   metrics,
		Logger:    logger.Named("email_queue"),
		From:      cfg.Mail.From,
		ReplyTo:   cfg.Mail.ReplyTo,
	})
	s.Notifications = service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:     dispatcher,
		Queue:          s.EmailQueue,
		DepartmentRepo: departmentRepo,
		ProfileRepo:    profileRepo,
		Logger:         logger.Named("notifications"),
	})
	worker.StartNotificationWorker(s.Notifications, logger)

	s.Sessions = service.NewSessionService(profileRepo, cfg.Auth.SessionTimeout(), logger.Named("session"))
	s.Assignments = service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		ProfileRepo: profileRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
		Logger:      logger.Named("assignments"),
	})
	s.Tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		CommentRepo:    commentRepo,
		DepartmentRepo: departmentRepo,
		HistoryRepo:    historyRepo,
		Assignments:    s.Assignments,
		Dispatcher:     dispatcher,
		Logger:         logger.Named("tickets"),
	})
	s.Comments = service.NewCommentService(service.CommentDependencies{
		TicketRepo:  ticketRepo,
		CommentRepo: commentRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
		Logger:      logger.Named("comments"),
	})
	s.Profiles = service.NewProfileService(profileRepo, departmentRepo, logger.Named("profiles"))
	s.Correlator = service.NewCorrelator(service.CorrelatorDependencies{
		TicketRepo:     ticketRepo,
		CommentRepo:    commentRepo,
		DepartmentRepo: departmentRepo,
		HistoryRepo:    historyRepo,
		Dispatcher:     dispatcher,
		Logger:         logger.Named("correlator"),
	})
	s.Poller = service.NewMailboxPoller(service.MailboxPollerDependencies{
		SettingsRepo: settingsRepo,
		Fetchers:     mail.NewFactoryFromConfig(graph, logger.Named("mailbox")),
		Correlator:   s.Correlator,
		Accounts:     cfg.Inbound.Mailboxes,
		Lookback:     cfg.Inbound.Lookback(),
		Metrics:      metrics,
		Logger:       logger.Named("mailbox_poller"),
	})
	return s, closeAll, nil
}
