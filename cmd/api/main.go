package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gardenplots/internal/api"
	"gardenplots/internal/config"
	"gardenplots/internal/database"
	"gardenplots/internal/domain"
	"gardenplots/internal/events"
	"gardenplots/internal/kafka"
	"gardenplots/internal/logging"
	"gardenplots/internal/metrics"
	"gardenplots/internal/notify"
	"gardenplots/internal/repository"
	"gardenplots/internal/service"
	"gardenplots/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database, &logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	defer func() { _ = repository.Close(redisClient) }()
	cache, broker := initListingCacheAndBroker(redisClient, &logger)

	eventBus := events.NewEventBus()
	eventBus.OnError(func(eventType string, err error) {
		logger.Warn().Err(err).Str("event_type", eventType).Msg("event handler failed")
	})

	outbox, producer := initOutbox(ctx, cfg, db, &logger)
	if producer != nil {
		defer producer.Close()
	}

	clock := domain.SystemClock{}
	validator := service.NewPaymentValidator(cfg.Booking.MinExpiryYear, cfg.Booking.MaxDurationMonths, clock)
	gardenService := service.NewGardenService(db, cache, cfg.Cache.TTL, eventBus, outbox, logging.Component(&logger, "gardens"))
	bookingService := service.NewBookingService(db, validator, eventBus, outbox, clock, logging.Component(&logger, "bookings"))
	userService := service.NewUserService(db, logging.Component(&logger, "users"))
	chatService := service.NewChatService(db, broker, eventBus, clock, logging.Component(&logger, "chat"))

	gardenService.Register(eventBus)

	initTelegram(cfg, eventBus, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup"))
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Gardens:  gardenService,
		Bookings: bookingService,
		Users:    userService,
		Chat:     chatService,
		Ready:    db.Ping,
	}, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, gardenService, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// Without redis both the cache and the chat broker stay in process.
func initListingCacheAndBroker(client *redis.Client, logger *zerolog.Logger) (domain.ListingCache, domain.Broker) {
	memoryCache := repository.NewMemoryListingCache()
	if client == nil {
		return memoryCache, repository.NewMemoryBroker()
	}
	cache := repository.NewFailoverListingCache(repository.NewRedisListingCache(client), memoryCache, logger)
	return cache, repository.NewRedisBroker(client, logger)
}

func initOutbox(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	logger *zerolog.Logger,
) (domain.OutboxNotifier, *kafka.Producer) {
	if !cfg.Kafka.Enabled {
		logger.Info().Msg("kafka disabled, domain events stay in process")
		return nil, nil
	}

	producer := kafka.NewProducer(cfg.Kafka)
	outboxWorker := worker.NewOutboxWorker(db, producer, cfg.Outbox, logging.Component(logger, "outbox"))
	go outboxWorker.Start(ctx)

	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("outbox relay started")
	return outboxWorker, producer
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.AdminChatID == 0 {
		return
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram bot init failed, notifications disabled")
		return
	}
	bot.Debug = cfg.Telegram.Debug

	notify.NewTelegramNotifier(bot, cfg.Telegram.AdminChatID, logging.Component(logger, "telegram")).Register(bus)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	grpcDone := make(chan struct{})
	go func() {
		defer close(grpcDone)
		if grpcServer == nil {
			return
		}
		if err := grpcServer.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	<-grpcDone

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
