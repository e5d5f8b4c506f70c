/**
 * @description
 * This is the main entry point for the bankcards-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the card encryption codec, message broker, repository, the core
 * application services, the card expiry scheduler, and the HTTP server. It
 * wires everything together and starts the service.
 *
 * @dependencies
 * - log/slog, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for rate limiting.
 * - internal/api, internal/app, internal/cardcrypto, internal/config, internal/store: Internal packages.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/bankcards/bankcards-service/internal/api"
	"github.com/bankcards/bankcards-service/internal/app"
	"github.com/bankcards/bankcards-service/internal/cardcrypto"
	"github.com/bankcards/bankcards-service/internal/config"
	"github.com/bankcards/bankcards-service/internal/store"
	"github.com/bankcards/bankcards-service/pkg/rabbitmq"
)

func main() {
	// Load the optional .env file before viper reads the environment.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		logger.Error("jwt secret must be configured", "env", "JWT_SECRET")
		os.Exit(1)
	}

	logger.Info("starting bankcards-service", "port", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("database url parse failed", "error", err)
		os.Exit(1)
	}

	// Configure connection pool for high-traffic scenarios
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connected")

	// The encryption codec is load-bearing; refuse to boot without a key.
	codec, err := cardcrypto.New(cfg.CardEncryptionKey, logger)
	if err != nil {
		logger.Error("card encryption codec init failed", "error", err)
		os.Exit(1)
	}

	// Initialize the RabbitMQ producer to publish events. The broker being
	// down degrades to a no-op publisher rather than blocking startup.
	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback", "error", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		logger.Info("rabbitmq producer connected")
	}

	// Redis backs transfer rate limiting; absent Redis disables the limiter.
	var limiter app.RateLimiter
	if cfg.TransferRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			logger.Warn("redis url missing; transfer rate limiting disabled", "env", "REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				logger.Warn("redis url parse failed; transfer rate limiting disabled", "error", parseErr)
			} else {
				redisClient := redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					logger.Warn("redis ping failed; transfer rate limiting disabled", "error", pingErr)
					redisClient.Close()
				} else {
					defer redisClient.Close()
					limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
					logger.Info("redis connected")
				}
				cancelPing()
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the application services with their dependencies.
	authService := app.NewAuthService(repository, cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute, logger)
	accountService := app.NewAccountService(repository, logger)
	cardService := app.NewCardService(repository, codec, logger)
	transferService := app.NewTransferService(
		repository,
		codec,
		producer,
		limiter,
		cfg.TransferRateLimitPerMinute,
		cfg.TransferEventExchange,
		logger,
	)

	// Start the card expiry sweep.
	scheduler := app.NewScheduler(repository, cfg.CardExpirySweepSchedule, logger)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize the API handlers and router.
	handlers := api.NewHandlers(authService, accountService, cardService, transferService, logger)
	router := api.NewRouter(handlers, cfg.JWTSecret)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	logger.Info("server listening", "addr", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
}
