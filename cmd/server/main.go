package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/stagelink/gig-backend/internal/config"
	"github.com/stagelink/gig-backend/internal/db"
	httpHandlers "github.com/stagelink/gig-backend/internal/http/handlers"
	httpRouter "github.com/stagelink/gig-backend/internal/http/router"
	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/payment"
	"github.com/stagelink/gig-backend/internal/repository"
	"github.com/stagelink/gig-backend/internal/scheduler"
	"github.com/stagelink/gig-backend/internal/service"
	"github.com/stagelink/gig-backend/internal/storage"
	"github.com/stagelink/gig-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret)

	evidenceStorage, err := storage.NewEvidenceStorage(cfg.EvidenceStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	gateway := payment.NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayTimeout)
	payoutProvider := payment.NewPayoutClient(cfg.PayoutBaseURL, cfg.PayoutAPIKey, cfg.PayoutTimeout)

	// Репозитории.
	gigRepo := repository.NewGigRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	ratingRepo := repository.NewRatingRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	payoutRepo := repository.NewPayoutRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	notificationService := service.NewNotificationService(notificationRepo, hub)
	feeCalc := service.NewFeeCalculator(cfg.PlatformFeeRate)
	escrowService := service.NewEscrowService(gigRepo, walletRepo, payoutRepo, gateway, payoutProvider, notificationService, cfg.GatewayTimeout)
	lifecycleService := service.NewLifecycleService(gigRepo, projectRepo, escrowService, feeCalc, notificationService)
	disputeService := service.NewDisputeService(disputeRepo, projectRepo, gigRepo, escrowService, notificationService)
	ratingService := service.NewRatingService(ratingRepo, projectRepo, disputeRepo, notificationService)

	// Планировщик.
	jobs, err := scheduler.NewManager()
	if err != nil {
		log.Fatalf("main: не удалось создать планировщик: %v", err)
	}
	registerJobs(jobs, cfg, gigRepo, projectRepo, ratingRepo, lifecycleService, escrowService, payoutRepo, notificationService)
	jobs.Start()
	defer jobs.Stop()

	// HTTP хэндлеры.
	gigHandler := httpHandlers.NewGigHandler(lifecycleService)
	projectHandler := httpHandlers.NewProjectHandler(lifecycleService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService, evidenceStorage)
	ratingHandler := httpHandlers.NewRatingHandler(ratingService)
	walletHandler := httpHandlers.NewWalletHandler(walletRepo)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	adminHandler := httpHandlers.NewAdminHandler(jobs, lifecycleService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, gigHandler, projectHandler, disputeHandler, ratingHandler, walletHandler, notificationHandler, adminHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: сервер запускается")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: ошибка http сервера: %v", err)
	}
	logger.Log.Info("main: сервер остановлен")
}

func registerJobs(
	jobs *scheduler.Manager,
	cfg *config.Config,
	gigRepo *repository.GigRepository,
	projectRepo *repository.ProjectRepository,
	ratingRepo *repository.RatingRepository,
	lifecycleService *service.LifecycleService,
	escrowService *service.EscrowService,
	payoutRepo *repository.PayoutRepository,
	notificationService *service.NotificationService,
) {
	interval := cfg.SchedulerInterval

	register := func(job scheduler.Job) {
		if err := jobs.Register(job); err != nil {
			log.Fatalf("main: не удалось зарегистрировать задачу: %v", err)
		}
	}

	register(scheduler.NewExpiryJob(gigRepo, lifecycleService, interval))
	register(scheduler.NewPreStartReminderJob(gigRepo, notificationService, interval))
	register(scheduler.NewDeliveryReminderJob(projectRepo, notificationService, 10*interval))
	register(scheduler.NewRatingPromptJob(projectRepo, ratingRepo, notificationService, 10*interval))
	register(scheduler.NewPayoutRetryJob(payoutRepo, escrowService, 5*interval))
	register(scheduler.NewRefundRetryJob(projectRepo, lifecycleService, 5*interval))
}

func safeClose(c io.Closer) {
	if err := c.Close(); err != nil {
		log.Printf("main: ошибка при закрытии ресурса: %v", err)
	}
}
