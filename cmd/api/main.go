package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/IsaiasGutierrezTeran/back-smart-condominium/api/swagger"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/handler"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/repository"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/router"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/service"
	rediscache "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/cache"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/config"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/database"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/jobs"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/logger"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/storage"
)

// @title Smart Condominium API
// @version 1.0.0
// @description Backend for condominium administration
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = rediscache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	userRepo := repository.NewUserRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	areaRepo := repository.NewAreaRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	maintenanceRepo := repository.NewMaintenanceRepository(db)
	securityRepo := repository.NewSecurityRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.AvailabilityTTL, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Cache.AvailabilityTTL, logr, false)
	}

	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "smart-condominium",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	unitSvc := service.NewUnitService(unitRepo, validate, logr)
	areaSvc := service.NewAreaService(areaRepo, validate, logr)
	reservationSvc := service.NewReservationService(reservationRepo, areaRepo, unitRepo, cacheSvc, validate, logr, service.ReservationConfig{
		CancellationBuffer: time.Duration(cfg.Security.CancellationBufferMins) * time.Minute,
		AvailabilityTTL:    cfg.Cache.AvailabilityTTL,
	})

	var senders []service.ChannelSender
	if cfg.Notifications.PushEnabled {
		senders = append(senders, service.NewPushSender(logr))
	}
	if cfg.Notifications.SMTPHost != "" {
		senders = append(senders, service.NewEmailSender(service.SMTPConfig{
			Host:     cfg.Notifications.SMTPHost,
			Port:     cfg.Notifications.SMTPPort,
			User:     cfg.Notifications.SMTPUser,
			Password: cfg.Notifications.SMTPPassword,
			From:     cfg.Notifications.SMTPFrom,
		}))
	}
	if cfg.Notifications.SMSEnabled {
		senders = append(senders, service.NewSMSSender(logr))
	}

	// The queue handler needs the notification service, and the service
	// needs the queue to schedule future sends.
	var notificationSvc *service.NotificationService
	dispatchQueue := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		if job.Type != "notification.dispatch" {
			return nil
		}
		id, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		_, err := notificationSvc.Dispatch(ctx, id)
		return err
	}, jobs.QueueConfig{
		Workers:    cfg.Notifications.SchedulerWorkers,
		MaxRetries: cfg.Notifications.SchedulerRetries,
		Logger:     logr,
	})
	notificationSvc = service.NewNotificationService(notificationRepo, userRepo, dispatchQueue, senders, metricsSvc, validate, logr)

	billingSvc := service.NewBillingService(billingRepo, unitRepo, cacheSvc, reportStore, signer, validate, logr, service.BillingConfig{
		LateInterestMonthlyRate: cfg.Billing.LateInterestMonthlyRate,
		DueDay:                  cfg.Billing.DueDay,
		Currency:                cfg.Billing.Currency,
		SummaryTTL:              cfg.Cache.DelinquencyTTL,
	})
	maintenanceSvc := service.NewMaintenanceService(maintenanceRepo, userRepo, unitRepo, notificationSvc, validate, logr)
	securitySvc := service.NewSecurityService(
		securityRepo,
		userRepo,
		billingRepo,
		unitRepo,
		service.NewSimulatedFaceMatcher(cfg.Security.FaceMatchThreshold),
		service.NewSimulatedPlateReader(),
		service.NewSimulatedAnomalyDetector(cfg.Security.AnomalySensitivity),
		notificationSvc,
		validate,
		logr,
		service.SecurityConfig{
			FaceMatchThreshold:    cfg.Security.FaceMatchThreshold,
			AutoIncidentThreshold: cfg.Security.AutoIncidentThreshold,
		},
	)

	engine := router.New(router.Options{
		Config:   cfg,
		Logger:   logr,
		DB:       db,
		Auth:     authSvc,
		Metrics:  metricsSvc,
		AuditLog: userRepo,
		Handlers: router.Handlers{
			Auth:          handler.NewAuthHandler(authSvc),
			Users:         handler.NewUserHandler(userSvc),
			Units:         handler.NewUnitHandler(unitSvc),
			Areas:         handler.NewAreaHandler(areaSvc),
			Reservations:  handler.NewReservationHandler(reservationSvc),
			Notifications: handler.NewNotificationHandler(notificationSvc),
			Billing:       handler.NewBillingHandler(billingSvc),
			Maintenance:   handler.NewMaintenanceHandler(maintenanceSvc),
			Security:      handler.NewSecurityHandler(securitySvc),
			Metrics:       handler.NewMetricsHandler(metricsSvc),
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchQueue.Start(ctx)
	defer dispatchQueue.Stop()

	go runScheduledSweeps(ctx, cfg, logr, notificationSvc, billingSvc, reportStore)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// runScheduledSweeps periodically flushes due scheduled notifications, marks
// past-due charges overdue and prunes expired report exports.
func runScheduledSweeps(ctx context.Context, cfg *config.Config, logr *zap.Logger, notifications *service.NotificationService, billing *service.BillingService, store *storage.LocalStorage) {
	interval := cfg.Notifications.SchedulerInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cleanupEvery := cfg.Reports.CleanupInterval
	if cleanupEvery <= 0 {
		cleanupEvery = time.Hour
	}
	lastCleanup := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := notifications.DispatchDue(ctx); err != nil {
				logr.Sugar().Warnw("scheduled dispatch sweep failed", "error", err)
			}
			if _, err := billing.MarkOverdue(ctx); err != nil {
				logr.Sugar().Warnw("overdue sweep failed", "error", err)
			}
			if time.Since(lastCleanup) >= cleanupEvery {
				lastCleanup = time.Now()
				if removed, err := store.CleanupOlderThan(cfg.Reports.SignedURLTTL); err != nil {
					logr.Sugar().Warnw("report cleanup failed", "error", err)
				} else if len(removed) > 0 {
					logr.Sugar().Infow("expired reports removed", "count", len(removed))
				}
			}
		}
	}
}
