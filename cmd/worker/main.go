package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mythweaver/api/internal/cache"
	"mythweaver/api/internal/config"
	"mythweaver/api/internal/database"
	"mythweaver/api/internal/generation"
	"mythweaver/api/internal/jobs"
	"mythweaver/api/internal/log"
	"mythweaver/api/internal/metrics"
	"mythweaver/api/internal/notify"
	"mythweaver/api/internal/queue"
	"mythweaver/api/internal/repository"
	"mythweaver/api/internal/service"
	"mythweaver/api/internal/storage"
	"mythweaver/api/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, "mythweaver-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	blobStore, err := storage.NewBlobStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init blob store")
	}
	if objectStore, ok := blobStore.(*storage.ObjectStore); ok {
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure bucket failed")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(registry)

	notifier := notify.NewRedisPublisher(redisClient, cfg.Notify.Channel, logger)

	client, err := generation.NewClient(cfg.Generation, notifier, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init generation client")
	}

	images := service.NewImageService(
		client,
		blobStore,
		repository.NewImageRepository(dbPool),
		notifier,
		collector,
		cfg.Generation.TryBudget,
		logger,
	)

	processor := tasks.NewProcessor(images, logger)
	consumer := queue.NewConsumer(redisClient, cfg.Queue, logger, processor)

	scheduler := jobs.NewScheduler(redisClient, cfg.Queue.Stream, cfg.Queue.MaxLen, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}
	defer scheduler.Stop()

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		// returns once the job in flight at shutdown has finished
		if err := consumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server starting")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
	}
}
