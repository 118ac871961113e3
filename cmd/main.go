package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RishiKendai/paperlit/internal/api"
	"github.com/RishiKendai/paperlit/internal/config"
	"github.com/RishiKendai/paperlit/internal/configs/env"
	"github.com/RishiKendai/paperlit/internal/infra/mongo"
	redisInfra "github.com/RishiKendai/paperlit/internal/infra/redis"
	"github.com/RishiKendai/paperlit/internal/ingest"
	"github.com/RishiKendai/paperlit/internal/logger"
	"github.com/RishiKendai/paperlit/internal/metrics"
	"github.com/RishiKendai/paperlit/internal/plagiarism"
	"github.com/RishiKendai/paperlit/internal/repository"
	"github.com/RishiKendai/paperlit/internal/storage"
	"github.com/RishiKendai/paperlit/internal/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := env.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file, continuing with system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	logger.InitWithFormat(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("Starting Paperlit server")

	metrics.InitPrometheus()
	metricsServer := api.StartMetricsServer(cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openDocumentStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open document store")
	}
	defer closeStore()

	redisClient, err := redisInfra.NewClient(ctx, cfg.RedisHost, cfg.RedisPassword, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis client")
	}
	defer redisClient.Close()

	files, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("type", cfg.Storage.Type).Msg("Failed to initialize file storage")
	}

	workerPool := plagiarism.NewWorkerPool(ctx, cfg.WorkerPoolSize)
	defer workerPool.Close()

	provider := plagiarism.NewExternalSimilarityProvider(cfg.Similarity)
	aggregator := plagiarism.NewAggregator(provider, workerPool)
	statusTracker := plagiarism.NewStatusTracker(redisClient.Client)

	docService := ingest.NewService(store, files, aggregator, statusTracker)

	producer := stream.NewProducer(redisClient.Client, cfg.RedisStreamKey)
	retryHandler := stream.NewRetryHandler(redisClient.Client, cfg.RedisDeadLetterKey)

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	consumerName := fmt.Sprintf("consumer-%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
	consumer := stream.NewConsumer(
		redisClient.Client,
		cfg.RedisStreamKey,
		cfg.RedisConsumerGroup,
		consumerName,
		docService,
		retryHandler,
		cfg.StreamRetentionDuration,
	)
	log.Info().Str("consumer_name", consumerName).Msg("Redis stream consumer initialized")

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Redis consumer error")
		}
	}()

	router := api.SetupRoutes(cfg, docService, producer)
	srv := api.StartServer(router, cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down gracefully...")

	if err := api.ShutdownServer(srv, 30*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down API server")
	}

	consumerCancel()
	select {
	case <-consumerDone:
	case <-time.After(cfg.ComputationTimeout):
		log.Warn().Msg("Redis consumer did not stop in time")
	}

	if err := api.ShutdownServer(metricsServer, 5*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down metrics server")
	}

	log.Info().Msg("Shutdown complete")
}

func openDocumentStore(ctx context.Context, cfg *config.Config) (repository.DocumentStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		store, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("Using SQLite document store")
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close SQLite store")
			}
		}, nil

	case config.StoreMongo:
		client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewMongoDocumentStore(repository.NewMongoRepository(client))
		if err := store.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to ensure document indexes")
		}
		return store, func() { client.Close(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
	}
}
