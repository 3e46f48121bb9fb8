/**
 * @description
 * This is the main entry point for the operations-service. It loads configuration,
 * connects PostgreSQL, Redis, RabbitMQ and S3, builds the batch executor and the bill
 * payment workflow, then serves HTTP, consumes review decisions and runs the expiry
 * job until it receives a shutdown signal.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Invoice sessions, threshold cache and rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq, pkg/extractclient, pkg/corebankingclient: Messaging and service clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
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
	"github.com/whytehoux-projecty/Bank-sub001/internal/api"
	"github.com/whytehoux-projecty/Bank-sub001/internal/app"
	"github.com/whytehoux-projecty/Bank-sub001/internal/config"
	"github.com/whytehoux-projecty/Bank-sub001/internal/store"
	"github.com/whytehoux-projecty/Bank-sub001/pkg/corebankingclient"
	"github.com/whytehoux-projecty/Bank-sub001/pkg/extractclient"
	"github.com/whytehoux-projecty/Bank-sub001/pkg/rabbitmq"
)

const jwksCacheTTL = 15 * time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWKSURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwks url must be configured\" env=JWKS_URL")
	}
	if strings.TrimSpace(cfg.DocumentBucket) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"document bucket must be configured\" env=DOCUMENT_BUCKET")
	}
	log.Printf("level=info component=bootstrap msg=\"starting operations-service\" port=%s", cfg.ServerPort)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind a pooler.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Invoice sessions live only in Redis, so the service cannot run without it.
	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"redis url parse failed\" env=REDIS_URL err=%v", err)
	}
	redisClient := redis.NewClient(redisOptions)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatalf("level=fatal component=bootstrap msg=\"redis ping failed\" err=%v", err)
	}
	cancelPing()
	defer redisClient.Close()
	log.Println("level=info component=bootstrap msg=\"redis connected\"")

	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	defer producer.Close()

	documents, err := store.NewS3DocumentStore(context.Background(), store.S3DocumentStoreConfig{
		Bucket:   cfg.DocumentBucket,
		Region:   cfg.DocumentRegion,
		Endpoint: cfg.DocumentEndpoint,
		Prefix:   cfg.DocumentPrefix,
	})
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"document store init failed\" err=%v", err)
	}

	repository := store.NewPostgresRepository(dbpool)
	sessions := store.NewRedisInvoiceSessionStore(redisClient, cfg.RedisKeyPrefix, time.Duration(cfg.InvoiceSessionTTLMinutes)*time.Minute)
	thresholds := app.NewThresholdProvider(
		repository,
		redisClient,
		cfg.RedisKeyPrefix,
		time.Duration(cfg.PaymentThresholdCacheSeconds)*time.Second,
		cfg.PaymentThresholdDefault,
	)
	limiter := app.NewRedisRateLimiter(redisClient, cfg.RedisKeyPrefix)
	gateway := corebankingclient.NewClient(cfg.CoreBankingBaseURL, cfg.CoreBankingAPIKey)

	workflow := app.NewPaymentWorkflow(
		repository,
		sessions,
		documents,
		extractclient.NewClient(cfg.ExtractionServiceURL, cfg.ExtractionAPIKey),
		gateway,
		thresholds,
		limiter,
		producer,
		app.PaymentWorkflowConfig{
			Exchange:                 cfg.EventsExchange,
			InvoiceMaxBytes:          cfg.InvoiceMaxBytes,
			DocumentMaxBytes:         cfg.VerificationDocMaxBytes,
			UploadRateLimitPerMinute: cfg.InvoiceUploadRateLimitPerMinute,
			PINMaxAttempts:           cfg.TransactionPINMaxAttempts,
			PINLockoutSeconds:        cfg.TransactionPINLockoutSeconds,
		},
	)
	batchService := app.NewBatchOperationsService(repository, repository, producer, cfg.EventsExchange)

	decisionConsumer := app.NewVerificationDecisionConsumer(repository, gateway, producer, cfg.EventsExchange)
	rabbitConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, 1)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
	}
	defer rabbitConsumer.Close()
	if err := rabbitConsumer.ConsumeWithBindings(cfg.EventsExchange, cfg.VerificationDecisionQueue, decisionConsumer.Bindings()); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"verification decision consumer start failed\" err=%v", err)
	}
	log.Printf("level=info component=bootstrap msg=\"verification decision consumer started\" queue=%s", cfg.VerificationDecisionQueue)

	jobs := app.NewJobs(repository, producer, cfg.EventsExchange, time.Duration(cfg.VerificationExpiryHours)*time.Hour, logger)
	scheduler := app.NewScheduler(jobs, logger, cfg.VerificationExpirySchedule)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"scheduler start failed\" err=%v", err)
	}
	logger.Info("scheduler started")

	handlers := api.NewHandlers(batchService, workflow, cfg.InvoiceMaxBytes, cfg.VerificationDocMaxBytes)
	router := api.NewRouter(handlers, api.RouterConfig{
		Keys:           api.NewJWKSCache(cfg.JWKSURL, jwksCacheTTL),
		Audience:       cfg.JWTAudience,
		Issuer:         cfg.JWTIssuer,
		AdminRole:      cfg.AdminRole,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-rabbitConsumer.Done():
		log.Println("level=error component=bootstrap msg=\"verification decision consumer stopped\"")
	}
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	logger.Info("stopping scheduler")
	<-scheduler.Stop().Done()

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
