package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mythweaver/api/internal/cache"
	"mythweaver/api/internal/config"
	"mythweaver/api/internal/database"
	"mythweaver/api/internal/handlers"
	"mythweaver/api/internal/log"
	"mythweaver/api/internal/metrics"
	"mythweaver/api/internal/notify"
	"mythweaver/api/internal/queue"
	"mythweaver/api/internal/repository"
	"mythweaver/api/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, "mythweaver-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(registry)

	hub := notify.NewHub(cfg.Notify.WriteTimeout, logger)
	relay := notify.NewRelay(redisClient, cfg.Notify.Channel, hub, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Dependencies{
		DB:      dbPool,
		Cache:   redisClient,
		Jobs:    queue.NewProducer(redisClient, cfg.Queue.Stream, cfg.Queue.MaxLen),
		Images:  repository.NewImageRepository(dbPool),
		Sockets: hub,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, registry, collector)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(httpServer.Start)
	group.Go(func() error {
		if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received")
		return shutdown(logger, httpServer)
	})

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("api stopped with error")
	}
	closeClients(logger, dbPool, redisClient)
	logger.Info().Msg("server exited cleanly")
}

func shutdown(logger zerolog.Logger, srv *server.HTTPServer) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}

func closeClients(logger zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client) {
	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}
}
