package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/lektorek-app/lektorek-api/api/swagger"
	"github.com/lektorek-app/lektorek-api/internal/handler"
	"github.com/lektorek-app/lektorek-api/internal/middleware"
	"github.com/lektorek-app/lektorek-api/internal/repository"
	"github.com/lektorek-app/lektorek-api/internal/service"
	"github.com/lektorek-app/lektorek-api/pkg/cache"
	"github.com/lektorek-app/lektorek-api/pkg/config"
	"github.com/lektorek-app/lektorek-api/pkg/database"
	"github.com/lektorek-app/lektorek-api/pkg/jobs"
	"github.com/lektorek-app/lektorek-api/pkg/logger"
	corsmiddleware "github.com/lektorek-app/lektorek-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lektorek-app/lektorek-api/pkg/middleware/requestid"
	"github.com/lektorek-app/lektorek-api/pkg/storage"
)

// @title Lektorek API
// @version 1.0.0
// @description Tutor availability and booking engine
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logr.Sugar().Fatalw("migrations failed", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API serves without Redis, just without the availability cache.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("export storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	pricingRepo := repository.NewPricingRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	notificationSvc := service.NewNotificationService(notificationRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)
	metricsSvc.RegisterQueueDepth(notificationSvc.QueueDepth)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
	})
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, overrideRepo, userRepo, bookingRepo, cacheRepo, cfg.Booking.AvailabilityCacheTTL, metricsSvc, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, availabilityRepo, overrideRepo, pricingRepo, notificationSvc, service.BookingConfig{
		CommissionRate:       cfg.Booking.CommissionRate,
		RequirePrepay:        cfg.Booking.RequirePrepay,
		DefaultPriceOnline:   cfg.Booking.DefaultPriceOnline,
		DefaultPriceInPerson: cfg.Booking.DefaultPriceInPerson,
	}, validate, logr)
	billingSvc := service.NewBillingService(balanceRepo, validate, logr)
	pricingSvc := service.NewPricingService(pricingRepo, service.PricingConfig{
		DefaultPriceOnline:   cfg.Booking.DefaultPriceOnline,
		DefaultPriceInPerson: cfg.Booking.DefaultPriceInPerson,
	}, validate, logr)
	userSvc := service.NewUserService(userRepo, logr)
	exportSvc := service.NewExportService(bookingRepo, files, signer, service.ExportConfig{
		DownloadPath: cfg.APIPrefix + "/exports/download",
		ResultTTL:    cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)

	authHandler := handler.NewAuthHandler(authSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc, metricsSvc)
	balanceHandler := handler.NewBalanceHandler(billingSvc)
	pricingHandler := handler.NewPricingHandler(pricingSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	userHandler := handler.NewUserHandler(userSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/teachers/:id/availability", availabilityHandler.GetTeacherAvailability)
	api.GET("/exports/download", exportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.POST("/bookings", bookingHandler.Create)
		authed.GET("/bookings", bookingHandler.List)
		authed.POST("/bookings/:id/cancel", bookingHandler.Cancel)
		authed.PATCH("/bookings/:id/status", bookingHandler.UpdateStatus)
		authed.PATCH("/bookings/:id/notes", bookingHandler.UpdateNotes)

		authed.GET("/balance", balanceHandler.Get)
		authed.POST("/balance/deposit", balanceHandler.Deposit)
		authed.POST("/balance/withdraw", balanceHandler.Withdraw)

		authed.GET("/notifications", notificationHandler.List)
		authed.POST("/notifications/:id/read", notificationHandler.MarkRead)

		authed.DELETE("/users/:id", userHandler.Delete)
	}

	crm := authed.Group("/crm")
	crm.Use(middleware.RequireTeacher())
	{
		crm.GET("/availability", availabilityHandler.ListWeek)
		crm.PUT("/availability", availabilityHandler.SetWeek)
		crm.DELETE("/availability/:id", availabilityHandler.DeleteBlock)
		crm.POST("/day-override", availabilityHandler.SetDayOverride)
		crm.GET("/overrides", availabilityHandler.ListOverrides)
		crm.GET("/pricing", pricingHandler.Get)
		crm.PUT("/pricing", pricingHandler.Set)
		crm.GET("/bookings", bookingHandler.WeekView)
		crm.GET("/stats", bookingHandler.Stats)
		crm.GET("/export/bookings", exportHandler.BookingsCSV)
		crm.GET("/export/schedule", exportHandler.SchedulePDF)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				exportSvc.CleanupExpired()
			}
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
