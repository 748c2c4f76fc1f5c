package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/Noah-Truong/Senpai-Career-sub002/api/swagger"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/handler"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/middleware"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/repository"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/service"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/cache"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/config"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/database"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/jobs"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/logger"
	corsmiddleware "github.com/Noah-Truong/Senpai-Career-sub002/pkg/middleware/cors"
	reqidmiddleware "github.com/Noah-Truong/Senpai-Career-sub002/pkg/middleware/requestid"
)

// @title Senpai Career API
// @version 1.0.0
// @description Mentor booking, meeting lifecycle, messaging and moderation API
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	validate := service.NewValidator()

	users := repository.NewUserRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	notifications := service.NewNotificationService(notificationRepo, threadRepo, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	notifications.Start(ctx)
	defer notifications.Stop()

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Availability.CacheTTL, logr, cfg.Availability.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, users, cacheSvc, cfg.Availability.CacheTTL, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, availabilityRepo, users, notifications, users, metrics, validate, logr, service.BookingConfig{
		DefaultDurationMinutes: cfg.Booking.DefaultDurationMinutes,
		StaleAfter:             cfg.Booking.StaleAfter,
	})
	meetingSvc := service.NewMeetingService(meetingRepo, threadRepo, users, notifications, metrics, logr)
	threadSvc := service.NewThreadService(threadRepo, users, notifications, validate, logr)
	reviewSvc := service.NewReviewService(reviewRepo, users, validate, logr)
	moderationSvc := service.NewModerationService(users, cfg.Moderation.BanThreshold, logr)
	userSvc := service.NewUserService(users, reviewRepo, logr)
	exportSvc := service.NewExportService(meetingRepo, users, validate, logr, nil, nil)

	var scheduler *jobs.Scheduler
	if cfg.Booking.StaleSweepEnabled {
		scheduler = jobs.NewScheduler(logr, 10*time.Minute)
		err := scheduler.Register("stale_booking_sweep", cfg.Booking.StaleSweepSchedule, func(ctx context.Context) error {
			_, err := bookingSvc.SweepStale(ctx)
			return err
		})
		if err != nil {
			logr.Sugar().Fatalw("failed to schedule stale booking sweep", "error", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.HealthCheck{
		"postgres": db.PingContext,
		"redis":    cacheRepo.Ping,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metrics != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Auth:          handler.NewAuthHandler(authSvc),
		Availability:  handler.NewAvailabilityHandler(availabilitySvc),
		Bookings:      handler.NewBookingHandler(bookingSvc),
		Meetings:      handler.NewMeetingHandler(meetingSvc),
		Threads:       handler.NewThreadHandler(threadSvc),
		Notifications: handler.NewNotificationHandler(notifications),
		Reviews:       handler.NewReviewHandler(reviewSvc),
		Moderation:    handler.NewModerationHandler(moderationSvc, exportSvc),
		Users:         handler.NewUserHandler(userSvc),
		Tokens:        authSvc,
		Audit:         users,
		Logger:        logr,
		ExportEnabled: cfg.Exports.Enabled,
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
