package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/smartlearn/internal/api"
	"github.com/dunamismax/smartlearn/internal/auth"
	"github.com/dunamismax/smartlearn/internal/config"
	"github.com/dunamismax/smartlearn/internal/imaging"
	"github.com/dunamismax/smartlearn/internal/learning"
	"github.com/dunamismax/smartlearn/internal/queue"
	"github.com/dunamismax/smartlearn/internal/ratelimit"
	"github.com/dunamismax/smartlearn/internal/storage"
	"github.com/dunamismax/smartlearn/internal/store"
	"github.com/dunamismax/smartlearn/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.ServiceAPI, cfg.Tracing, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	if err := imaging.Startup(); err != nil {
		logger.Fatalf("image backend startup failed: %v", err)
	}
	defer imaging.Shutdown()

	metrics := api.NewMetrics()
	normalizer, err := imaging.NewNormalizer(logger, imaging.Options{
		MaxWidth:       cfg.Normalizer.MaxSide,
		MaxHeight:      cfg.Normalizer.MaxSide,
		MaxBytes:       cfg.Normalizer.MaxBytes,
		InitialQuality: cfg.Normalizer.InitialQuality,
		FloorQuality:   cfg.Normalizer.FloorQuality,
		MaxPixels:      cfg.Normalizer.MaxPixels,
	}, metrics)
	if err != nil {
		logger.Fatalf("image normalizer init failed: %v", err)
	}
	logger.Printf("image normalizer ready backend=%s", imaging.BackendName())

	dataStore, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("store init failed: %v", err)
	}
	defer func() {
		if err := dataStore.Close(); err != nil {
			logger.Printf("store close error: %v", err)
		}
	}()

	objects, err := storage.NewClient(storage.ConfigFrom(cfg.Storage))
	if err != nil {
		logger.Fatalf("storage client init failed: %v", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Printf("bucket check failed bucket=%s err=%v", objects.Bucket(), err)
	}

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	deps := learning.Deps{
		Logger:     logger,
		Store:      dataStore,
		Normalizer: normalizer,
		Objects:    objects,
		URLExpiry:  cfg.Storage.URLExpiry,
	}
	// The worker can only see progress state through a shared database.
	if cfg.Database.DSN != "" {
		deps.Progress = metrics.CountEnqueues(queueClient)
	} else {
		logger.Printf("in-memory store selected; progress recalculation runs inline")
	}
	service, err := learning.NewService(deps)
	if err != nil {
		logger.Fatalf("service init failed: %v", err)
	}

	issuer, err := auth.NewIssuer(cfg.Auth)
	if err != nil {
		logger.Fatalf("token issuer init failed: %v", err)
	}

	opts := api.Options{
		Logger:        logger,
		Service:       service,
		Tokens:        issuer,
		Metrics:       metrics,
		MaxUploadSize: cfg.API.MaxUploadSize,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Printf("redis client close error: %v", err)
		}
	}()
	limiter, err := ratelimit.FromConfig(redisClient, cfg.RateLimit)
	if err != nil {
		logger.Fatalf("rate limiter init failed: %v", err)
	}
	if limiter != nil {
		opts.RateLimiter = limiter
		logger.Printf("rate limiting enabled capacity=%d window=%s", cfg.RateLimit.Capacity, cfg.RateLimit.Window)
	}

	app, err := api.NewServer(opts)
	if err != nil {
		logger.Fatalf("api init failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
