package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stroyteh/kanban-service/docs"
	"github.com/stroyteh/kanban-service/internal/auth"
	"github.com/stroyteh/kanban-service/internal/config"
	"github.com/stroyteh/kanban-service/internal/database"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/erpdirectory"
	"github.com/stroyteh/kanban-service/internal/http/handler"
	"github.com/stroyteh/kanban-service/internal/http/middleware"
	"github.com/stroyteh/kanban-service/internal/http/router"
	"github.com/stroyteh/kanban-service/internal/jobs"
	"github.com/stroyteh/kanban-service/internal/logger"
	"github.com/stroyteh/kanban-service/internal/notifier"
	"github.com/stroyteh/kanban-service/internal/outbox"
	"github.com/stroyteh/kanban-service/internal/queue"
	"github.com/stroyteh/kanban-service/internal/repository"
	"github.com/stroyteh/kanban-service/internal/service"
	"github.com/stroyteh/kanban-service/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// @title Kanban Service API
// @version 1.0
// @description Kanban boards, cards, automation rules and stock ledger for supply and warehouse operations

// @BasePath /kanban-api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ServiceToken
// @in header
// @name X-Service-Token
// @description Shared token for service-to-service calls
// @Security BearerAuth
// @Security ServiceToken

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	docs.SwaggerInfo.BasePath = basicCfg.Kanban.BasePath + "/v1"
	if basicCfg.App.Environment == "development" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// In staging/production SECRET_KEY and friends come from Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to auto-migrate: %w", err)
		}
		log.Warn("Schema auto-migrated; use goose migrations outside development")
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// The ERP directory is optional; label refresh answers 409 without it
	directory, err := erpdirectory.NewClient(ctx, &cfg.ERPDirectory, log)
	if err != nil {
		log.Warn("ERP directory connection failed, continuing without it", zap.Error(err))
		directory = nil
	}

	// Repositories
	boardRepo := repository.NewBoardRepository(db)
	cardRepo := repository.NewCardRepository(db)
	eventRepo := repository.NewEventRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	supplyRepo := repository.NewSupplyRepository(db)
	warehouseRepo := repository.NewWarehouseRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	supplyCaseRepo := repository.NewOverlayRepository[domain.SupplyCase](db)
	commercialCaseRepo := repository.NewOverlayRepository[domain.CommercialCase](db)
	objectTaskRepo := repository.NewOverlayRepository[domain.ObjectTask](db)
	warehouseLineRepo := repository.NewOverlayRepository[domain.WarehouseLine](db)

	// Task queue and the outbox dispatcher that feeds it. Every card event is
	// published to the dispatcher after its transaction commits.
	taskQueue, err := queue.NewQueue(ctx, &cfg.Worker, log)
	if err != nil {
		return fmt.Errorf("failed to initialize task queue: %w", err)
	}
	dispatcher := outbox.NewDispatcher(eventRepo, taskQueue, nil, outbox.Config{
		PollInterval: cfg.Outbox.PollIntervalDuration(),
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxDispatchAttempts,
	}, log)

	// Services
	boardService := service.NewBoardService(db, boardRepo, log)
	cardService := service.NewCardService(db, cardRepo, boardRepo, eventRepo, dispatcher, log)
	supplyCaseService := service.NewOverlayService[domain.SupplyCase](supplyCaseRepo, cardRepo, log)
	commercialCaseService := service.NewOverlayService[domain.CommercialCase](commercialCaseRepo, cardRepo, log)
	objectTaskService := service.NewOverlayService[domain.ObjectTask](objectTaskRepo, cardRepo, log)
	warehouseLineService := service.NewOverlayService[domain.WarehouseLine](warehouseLineRepo, cardRepo, log)
	cardService.RegisterOverlays(supplyCaseService, commercialCaseService, objectTaskService, warehouseLineService)

	supplyService := service.NewSupplyService(supplyRepo, supplyCaseRepo, log)
	warehouseService := service.NewWarehouseService(db, warehouseRepo, log)
	attachmentService := service.NewAttachmentService(db, attachmentRepo, cardRepo, eventRepo, dispatcher, fileStorage, log)
	labelService := service.NewLabelService(cardRepo, supplyCaseRepo, commercialCaseRepo, objectTaskRepo, warehouseLineRepo, directory, log)
	ruleService := service.NewRuleService(ruleRepo, boardRepo, log)
	overdueService := service.NewOverdueService(db, cardRepo, eventRepo, dispatcher, cfg.Jobs.Location(), log)

	erpNotifier := notifier.NewClient(&cfg.ERP, log)
	if !erpNotifier.Enabled() {
		log.Warn("ERP notifications disabled: ERP_API_BASE_URL or ERP_SERVICE_TOKEN is empty")
	}
	engine := service.NewRuleEngine(eventRepo, ruleRepo, cardService, erpNotifier, log)
	dispatcher.SetProcessor(engine)

	pool := queue.NewPool(taskQueue, dispatcher.Handle, dispatcher.GiveUp, queue.PoolConfig{
		Size:     cfg.Worker.PoolSize,
		Attempts: cfg.Worker.TaskAttempts,
		Backoff:  cfg.Worker.TaskBackoffDuration(),
	}, log)

	// Middleware
	tokens := auth.NewTokenManager(cfg.Kanban.SecretKey, cfg.Kanban.TokenTTLDuration())
	authMiddleware := auth.NewMiddleware(tokens, cfg.Kanban.ServiceToken, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	handlers := router.Handlers{
		Auth:       handler.NewAuthHandler(tokens, log),
		Board:      handler.NewBoardHandler(boardService, log),
		Card:       handler.NewCardHandler(cardService, labelService, log),
		Attachment: handler.NewAttachmentHandler(attachmentService, cfg.Storage.MaxUploadSizeMB, log),
		Rule:       handler.NewRuleHandler(ruleService, log),
		Supply:     handler.NewSupplyHandler(supplyService, log),
		Warehouse:  handler.NewWarehouseHandler(warehouseService, log),
		ObjectTask: handler.NewObjectTaskHandler(overdueService, log),
		SupplyCases: handler.NewOverlayHandler[domain.SupplyCase, *domain.SupplyCase,
			domain.CreateSupplyCaseRequest, domain.UpdateSupplyCaseRequest](supplyCaseService, "supply case", log),
		CommercialCases: handler.NewOverlayHandler[domain.CommercialCase, *domain.CommercialCase,
			domain.CreateCommercialCaseRequest, domain.UpdateCommercialCaseRequest](commercialCaseService, "commercial case", log),
		ObjectTasks: handler.NewOverlayHandler[domain.ObjectTask, *domain.ObjectTask,
			domain.CreateObjectTaskRequest, domain.UpdateObjectTaskRequest](objectTaskService, "object task", log),
		WarehouseLines: handler.NewOverlayHandler[domain.WarehouseLine, *domain.WarehouseLine,
			domain.CreateWarehouseLineRequest, domain.UpdateWarehouseLineRequest](warehouseLineService, "warehouse line", log),
	}
	rt := router.NewRouter(cfg, log, db, authMiddleware, rateLimiter, handlers)

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(cfg.Jobs.Location(), log)
		if err := jobs.RegisterOverdueJob(scheduler, overdueService, log,
			cfg.Jobs.OverdueCron, cfg.Jobs.TimeoutDuration(), false); err != nil {
			return fmt.Errorf("failed to register overdue job: %w", err)
		}
		if err := jobs.RegisterOutboxSweepJob(scheduler, dispatcher, log,
			cfg.Jobs.OutboxSweepCron, cfg.Jobs.TimeoutDuration()); err != nil {
			return fmt.Errorf("failed to register outbox sweep job: %w", err)
		}
		scheduler.Start()
		log.Info("Scheduler started",
			zap.String("overdue_cron", cfg.Jobs.OverdueCron),
			zap.String("outbox_sweep_cron", cfg.Jobs.OutboxSweepCron),
		)
	} else {
		log.Info("Scheduled jobs disabled")
	}

	// Background workers run until shutdown cancels workCtx
	workCtx, stopWork := context.WithCancel(ctx)
	defer stopWork()
	workers, workCtx := errgroup.WithContext(workCtx)
	workers.Go(func() error { return dispatcher.Run(workCtx) })
	workers.Go(func() error { return pool.Run(workCtx) })

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("base_path", cfg.Kanban.BasePath))
		serverErrors <- srv.ListenAndServe()
	}()

	workerErrors := make(chan error, 1)
	go func() { workerErrors <- workers.Wait() }()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverErrors:
		runErr = fmt.Errorf("server error: %w", err)
	case err := <-workerErrors:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("worker error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	if scheduler != nil {
		<-scheduler.Stop().Done()
		log.Info("Scheduler stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown gracefully", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	// Pending events stay in the outbox and are picked up on the next start
	stopWork()
	if err := taskQueue.Close(); err != nil {
		log.Warn("Error closing task queue", zap.Error(err))
	}
	if err := directory.Close(); err != nil {
		log.Warn("Error closing ERP directory connection", zap.Error(err))
	}

	log.Info("Server stopped")
	return runErr
}
