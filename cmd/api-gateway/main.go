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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/event-registration-api/api/swagger"
	"github.com/noah-isme/event-registration-api/internal/handler"
	"github.com/noah-isme/event-registration-api/internal/middleware"
	"github.com/noah-isme/event-registration-api/internal/repository"
	"github.com/noah-isme/event-registration-api/internal/service"
	"github.com/noah-isme/event-registration-api/pkg/broker"
	"github.com/noah-isme/event-registration-api/pkg/cache"
	"github.com/noah-isme/event-registration-api/pkg/config"
	"github.com/noah-isme/event-registration-api/pkg/jobs"
	"github.com/noah-isme/event-registration-api/pkg/logger"
	"github.com/noah-isme/event-registration-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/event-registration-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/event-registration-api/pkg/middleware/requestid"
)

// @title Event Registration API
// @version 1.0.0
// @description Registration, verification and administration for the Silver Jubilee event
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api-gateway")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open registration store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and rate limiting disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, cacheRepo.Enabled())
	validate := validator.New()

	publisher, stopNotifications, err := buildPublisher(ctx, cfg, metrics, logr)
	if err != nil {
		logr.Fatal("failed to start notification dispatch", zap.String("driver", cfg.Notify.Driver), zap.Error(err))
	}
	notifier := service.NewNotificationService(publisher, cfg.Admin.Email, metrics, logr)

	codes := service.NewCodeGenerator(store, cfg.Registration.CodeMaxAttempts, metrics, logr)
	registrationSvc := service.NewRegistrationService(store, codes, notifier, cacheSvc, metrics, validate, logr)
	verificationSvc := service.NewVerificationService(store, codes, notifier, cacheSvc, metrics, logr)
	adminSvc := service.NewAdminService(store, cacheSvc, metrics, validate, logr, cfg.Stats.CacheTTL)
	exportSvc := service.NewExportService(store, service.ExportConfig{
		FilenamePrefix: cfg.Export.FilenamePrefix,
		Title:          cfg.Event.Title + " - Registrations",
	}, logr, nil, nil, nil)
	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		AdminUsername:     cfg.Admin.Username,
		AdminPasswordHash: cfg.Admin.PasswordHash,
	})

	checks := map[string]handler.Pinger{"store": store}
	if cacheRepo.Enabled() {
		checks["cache"] = cacheRepo
	}

	var limiter gin.HandlerFunc
	if cfg.RateLimit.Enabled && cacheRepo.Enabled() {
		limiter = middleware.RateLimit(cacheRepo, middleware.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		}, metrics, logr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.Routes{
		Prefix:       cfg.APIPrefix,
		Registration: handler.NewRegistrationHandler(registrationSvc, verificationSvc),
		Admin:        handler.NewAdminHandler(adminSvc, exportSvc, registrationSvc),
		Auth:         handler.NewAuthHandler(authSvc),
		Metrics:      handler.NewMetricsHandler(metrics, checks),
		AuthService:  authSvc,
		MetricsSvc:   metrics,
		RateLimiter:  limiter,
		AuditLogger:  logr.Named("audit"),
	}.Register(r)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.StoreDriver, "notify", cfg.Notify.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	stopNotifications(shutdownCtx)
	logr.Info("server stopped")
}

// buildPublisher wires the configured notification driver. The returned func drains it on shutdown.
func buildPublisher(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (service.NotificationPublisher, func(context.Context), error) {
	switch cfg.Notify.Driver {
	case config.NotifyDriverKafka:
		producer, err := broker.NewProducer(cfg.Kafka, logr)
		if err != nil {
			return nil, nil, err
		}
		return service.NewKafkaPublisher(producer), func(context.Context) {
			if err := producer.Close(); err != nil {
				logr.Warn("kafka producer close failed", zap.Error(err))
			}
		}, nil

	case config.NotifyDriverLog:
		return service.NewLogPublisher(logr), func(context.Context) {}, nil

	case config.NotifyDriverQueue, "":
		delivery, err := newMailDelivery(cfg, metrics, logr)
		if err != nil {
			return nil, nil, err
		}
		queue := jobs.NewQueue("notifications", delivery.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Notify.Workers,
			BufferSize: cfg.Notify.BufferSize,
			MaxRetries: cfg.Notify.MaxRetries,
			RetryDelay: cfg.Notify.RetryDelay,
			Logger:     logr,
		})
		queue.Start(ctx)
		return service.NewQueuePublisher(queue), queue.Stop, nil

	default:
		return nil, nil, fmt.Errorf("unknown notify driver %q", cfg.Notify.Driver)
	}
}

func newMailDelivery(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.MailDeliveryService, error) {
	renderer, err := mail.NewRenderer()
	if err != nil {
		return nil, err
	}
	return service.NewMailDeliveryService(renderer, mail.NewSender(cfg.Mail, logr), mail.EventFromConfig(cfg.Event), metrics, logr), nil
}
