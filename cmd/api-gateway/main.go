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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/transcript-api/api/swagger"
	"github.com/noah-isme/transcript-api/internal/handler"
	"github.com/noah-isme/transcript-api/internal/middleware"
	"github.com/noah-isme/transcript-api/internal/repository"
	"github.com/noah-isme/transcript-api/internal/service"
	"github.com/noah-isme/transcript-api/pkg/cache"
	"github.com/noah-isme/transcript-api/pkg/config"
	"github.com/noah-isme/transcript-api/pkg/database"
	"github.com/noah-isme/transcript-api/pkg/events"
	"github.com/noah-isme/transcript-api/pkg/jobs"
	"github.com/noah-isme/transcript-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/transcript-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/transcript-api/pkg/middleware/requestid"
	"github.com/noah-isme/transcript-api/pkg/paystack"
)

// @title Transcript Request API
// @version 1.0.0
// @description Student transcript requests, Paystack payments and records-office processing
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect transcript database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	directoryDB, err := database.NewPostgres(ctx, cfg.Directory.Database)
	if err != nil {
		logr.Fatal("failed to connect student directory", zap.Error(err))
	}
	defer directoryDB.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, directory cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	publisher, err := events.New(cfg.Events.Brokers, cfg.Events.Topic, logr)
	if err != nil {
		logr.Fatal("failed to init status event publisher", zap.Error(err))
	}
	defer publisher.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	studentRepo := repository.NewStudentRepository(db)
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	destinationRepo := repository.NewDestinationRepository(db)
	statusEventRepo := repository.NewStatusEventRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	gatewayEventRepo := repository.NewGatewayEventRepository(db)
	directoryRepo, err := repository.NewDirectoryRepository(directoryDB, cfg.Directory.View)
	if err != nil {
		logr.Fatal("invalid directory view", zap.Error(err))
	}

	checks := map[string]handler.PingFunc{"database": db.PingContext, "directory": directoryRepo.Ping}

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		redisRepo := repository.NewCacheRepository(redisClient, "transcript:")
		checks["cache"] = redisRepo.Ping
		cacheRepo = redisRepo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Directory.CacheTTL, logr, redisClient != nil)

	gateway := paystack.NewClient(paystack.Config{
		SecretKey: cfg.Paystack.SecretKey,
		BaseURL:   cfg.Paystack.BaseURL,
		Timeout:   cfg.Paystack.Timeout,
	}, nil)

	fees := service.FeeSchedule{
		WithinNigeriaNGN:  cfg.Fees.WithinNigeriaNGN,
		OutsideNigeriaNGN: cfg.Fees.OutsideNigeriaNGN,
		Currency:          cfg.Fees.Currency,
	}

	directorySvc := service.NewDirectoryService(directoryRepo, cacheSvc, cfg.Directory.CacheTTL, logr)
	registrationSvc := service.NewRegistrationService(studentRepo, directorySvc, db, validate, logr)
	authSvc := service.NewAuthService(studentRepo, userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	lifecycle := service.NewLifecycle(requestRepo, statusEventRepo, paymentRepo, publisher, metricsSvc, logr)
	requestSvc := service.NewRequestService(studentRepo, requestRepo, destinationRepo, statusEventRepo, lifecycle, fees, db, validate, logr)
	paymentSvc := service.NewPaymentService(studentRepo, requestRepo, paymentRepo, gatewayEventRepo, gateway, lifecycle, db, metricsSvc, validate, logr, service.PaymentConfig{
		CallbackURL: cfg.Paystack.CallbackURL,
	})
	staffSvc := service.NewStaffService(requestRepo, lifecycle, db, validate, logr)
	exportSvc := service.NewExportService(staffSvc, logr, nil, nil)

	if cfg.Webhooks.Async {
		webhookQueue := jobs.NewQueue("webhooks", paymentSvc.ProcessWebhookJob, jobs.QueueConfig{
			Workers:    cfg.Webhooks.Workers,
			BufferSize: cfg.Webhooks.BufferSize,
			MaxRetries: cfg.Webhooks.MaxRetries,
			RetryDelay: cfg.Webhooks.RetryDelay,
			Logger:     logr,
		})
		webhookQueue.Start(ctx)
		defer webhookQueue.Stop()
		paymentSvc.SetDispatcher(webhookQueue)
	}

	registrationHandler := handler.NewRegistrationHandler(directorySvc, registrationSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	staffHandler := handler.NewStaffHandler(staffSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/register/lookup", registrationHandler.Lookup)
		api.POST("/register", registrationHandler.Register)
		api.POST("/auth/login", authHandler.StudentLogin)
		api.POST("/auth/staff/login", authHandler.StaffLogin)
		api.POST("/payments/webhook", paymentHandler.Webhook)
	}

	student := api.Group("")
	student.Use(middleware.JWT(authSvc), middleware.RequireStudent())
	{
		student.GET("/me/profile", registrationHandler.Profile)
		student.GET("/me/requests", requestHandler.ListMine)
		student.GET("/me/payments", paymentHandler.ListMine)

		student.POST("/requests", requestHandler.Create)
		student.GET("/requests/:id", requestHandler.Get)
		student.GET("/requests/:id/events", requestHandler.Events)
		student.GET("/requests/:id/destination", requestHandler.LatestDestination)
		student.POST("/requests/:id/destination", requestHandler.SubmitDestination)

		student.POST("/payments/init", paymentHandler.Initiate)
		student.GET("/payments/verify", paymentHandler.Verify)
	}

	staff := api.Group("/staff")
	staff.Use(middleware.JWT(authSvc), middleware.RequireStaff())
	{
		staff.GET("/requests", staffHandler.List)
		staff.GET("/requests/export", staffHandler.Export)
		staff.POST("/requests/:id/transition", staffHandler.Transition)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
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
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
