package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/elite42/reservation-notifier/internal/adapter"
	"github.com/elite42/reservation-notifier/internal/config"
	"github.com/elite42/reservation-notifier/internal/dispatch"
	"github.com/elite42/reservation-notifier/internal/domain"
	"github.com/elite42/reservation-notifier/internal/handler"
	"github.com/elite42/reservation-notifier/internal/infra/postgresql"
	"github.com/elite42/reservation-notifier/internal/infra/postgresql/migrations"
	infraredis "github.com/elite42/reservation-notifier/internal/infra/redis"
	"github.com/elite42/reservation-notifier/internal/observability"
	"github.com/elite42/reservation-notifier/internal/ratelimit"
	"github.com/elite42/reservation-notifier/internal/repository"
	"github.com/elite42/reservation-notifier/internal/service"
	"github.com/elite42/reservation-notifier/internal/transport"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.Connect(postgresql.Config{DSN: cfg.DatabaseDSN})
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	var rdb *goredis.Client
	var limiter ratelimit.RateLimiter = ratelimit.Noop{}
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		limiter, err = infraredis.NewSendLimiter(rdb, int64(cfg.RateLimitPerSec))
		if err != nil {
			logger.Fatal("rate limiter initialization failed", zap.Error(err))
		}
	} else {
		logger.Warn("REDIS_URL not set, send rate limiting disabled")
	}

	notificationRepo := repository.NewGormNotificationRepo(db)
	queueRepo := repository.NewGormQueueRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	registry := buildRegistry(cfg, logger)
	metrics := observability.NewMetrics()

	processor, err := service.NewProcessor(
		queueRepo,
		notificationRepo,
		attemptRepo,
		registry,
		logger,
		service.WithBatchSize(cfg.DrainBatchSize),
		service.WithConcurrency(cfg.SendConcurrency),
		service.WithSendTimeout(cfg.SendTimeout),
		service.WithRateLimiter(limiter),
		service.WithMetrics(metrics),
	)
	if err != nil {
		logger.Fatal("processor initialization failed", zap.Error(err))
	}

	scheduler, err := service.NewScheduler(processor, logger, service.WithDrainSpec(cfg.DrainSchedule))
	if err != nil {
		logger.Fatal("scheduler initialization failed", zap.Error(err))
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal("scheduler start failed", zap.Error(err))
	}

	notificationService, err := service.NewNotificationService(notificationRepo, queueRepo, attemptRepo, logger)
	if err != nil {
		logger.Fatal("notification service initialization failed", zap.Error(err))
	}

	templateService, err := service.NewTemplateService(repository.NewGormTemplateRepo(db))
	if err != nil {
		logger.Fatal("template service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			c.SetUserContext(observability.WithRequestID(c.UserContext(), rid))
		}
		return c.Next()
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterNotificationRoutes(app, notificationService); err != nil {
		logger.Fatal("notification routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterQueueRoutes(app, scheduler, queueRepo); err != nil {
		logger.Fatal("queue routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterTemplateRoutes(app, templateService); err != nil {
		logger.Fatal("template routes registration failed", zap.Error(err))
	}

	go func() {
		addr := ":" + strconv.Itoa(cfg.APIPort)
		logger.Info("reservation-notifier api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	// Stop the cron loop first; its context settles once a running drain
	// cycle has finished.
	drainDone := scheduler.Stop()
	select {
	case <-drainDone.Done():
	case <-time.After(shutdownTimeout):
		logger.Warn("drain cycle did not finish before shutdown deadline")
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func buildRegistry(cfg *config.Config, logger *zap.Logger) *dispatch.Registry {
	opts := []dispatch.Option{
		dispatch.WithAdapter(domain.ChannelEmail, adapter.NewEmailAdapter(adapter.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})),
		dispatch.WithAdapter(domain.ChannelSMS, adapter.NewSMSAdapter()),
		dispatch.WithAdapter(domain.ChannelTelegram, adapter.NewTelegramAdapter(cfg.TelegramBotToken)),
		dispatch.WithAdapter(domain.ChannelLine, adapter.NewLineAdapter(cfg.LineChannelAccessToken)),
		dispatch.WithAdapter(domain.ChannelWhatsApp, adapter.NewWhatsAppAdapter(cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken)),
		dispatch.WithAdapter(domain.ChannelZalo, adapter.NewZaloAdapter(cfg.ZaloAccessToken)),
	}

	// Push is always registered; without a gateway its sends fail as
	// retryable not-configured errors rather than permanent unknown-channel
	// failures.
	push, err := adapter.NewPushAdapter(cfg.PushGatewayURL)
	if err != nil {
		logger.Warn("push gateway endpoint invalid, channel registered unconfigured", zap.Error(err))
		push, _ = adapter.NewPushAdapter("")
	}
	opts = append(opts, dispatch.WithAdapter(domain.ChannelPush, push))

	return dispatch.NewRegistry(opts...)
}
