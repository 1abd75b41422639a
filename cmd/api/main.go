package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/aggregate"
	httptransport "github.com/spec-kit/ticketdesk/internal/api/http"
	"github.com/spec-kit/ticketdesk/internal/api/http/handlers"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/cache"
	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/persistence"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/internal/sla"
	"github.com/spec-kit/ticketdesk/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	priorityRepo := repository.NewPriorityRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	eventRepo := repository.NewTicketEventRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	var statusCache *cache.SLAStatusCache
	if cfg.SLA.CacheEnabled {
		statusCache = cache.NewSLAStatusCache(redis.Client, cfg.SLA.CacheTTL())
	}

	aggregator := aggregate.New(aggregate.Dependencies{
		TicketStore:     ticketRepo,
		MessageStore:    messageRepo,
		AttachmentStore: attachmentRepo,
		HistoryStore:    eventRepo,
		FetchTimeout:    cfg.Aggregate.FetchTimeout(),
		Logger:          logger,
	})

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:      ticketRepo,
		PriorityRepo:    priorityRepo,
		MessageRepo:     messageRepo,
		AttachmentRepo:  attachmentRepo,
		TicketEventRepo: eventRepo,
		Aggregator:      aggregator,
		Resolver:        sla.NewResolver(cfg.SLA.DefaultResponseMinutes, cfg.SLA.DefaultResolutionMinutes),
		Evaluator:       sla.NewEvaluator(cfg.SLA.AtRiskWindowMinutes),
		Capability:      auth.NewCapabilityPolicy(),
		Dispatcher:      dispatcher,
		StatusCache:     statusCache,
		Metrics:         metrics,
		Logger:          logger,
	})
	assignmentService := service.NewAssignmentService(ticketRepo, ticketService, logger)
	priorityService := service.NewPriorityService(priorityRepo)

	notificationService := service.NewNotificationService(dispatcher, redis.Client, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	slaMonitor := worker.NewSLAMonitor(ticketService, dispatcher, logger, cfg.Worker)
	slaMonitor.RegisterHandlers()
	go slaMonitor.Start(ctx)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewMiddleware(tokenManager)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		Priorities:     handlers.NewPrioritiesHandler(priorityService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
