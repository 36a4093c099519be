package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/smartlearn/internal/config"
	"github.com/dunamismax/smartlearn/internal/imaging"
	"github.com/dunamismax/smartlearn/internal/learning"
	"github.com/dunamismax/smartlearn/internal/store"
	"github.com/dunamismax/smartlearn/internal/telemetry"
	"github.com/dunamismax/smartlearn/internal/webhook"
	"github.com/dunamismax/smartlearn/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)
	ctx := context.Background()

	if cfg.Database.DSN == "" {
		logger.Fatalf("POSTGRES_DSN is required: the worker shares progress state with the API through the database")
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.ServiceWorker, cfg.Tracing, logger)
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

	normalizer, err := imaging.NewNormalizer(logger, imaging.DefaultOptions(), nil)
	if err != nil {
		logger.Fatalf("image normalizer init failed: %v", err)
	}

	dataStore, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("store init failed: %v", err)
	}
	defer func() {
		if err := dataStore.Close(); err != nil {
			logger.Printf("store close error: %v", err)
		}
	}()

	service, err := learning.NewService(learning.Deps{
		Logger:     logger,
		Store:      dataStore,
		Normalizer: normalizer,
	})
	if err != nil {
		logger.Fatalf("service init failed: %v", err)
	}

	var webhookClient *webhook.Client
	if cfg.Webhook.URL != "" {
		webhookClient = webhook.NewClient(webhook.ConfigFrom(cfg.Webhook))
	}

	logger.Printf(
		"starting worker concurrency=%d queue=%s redis=%s webhook=%t",
		cfg.Worker.Concurrency,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
		webhookClient != nil,
	)

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, service, webhookClient, cfg.Webhook.URL)
	if err != nil {
		logger.Fatalf("worker init failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", srv.MetricsHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	// Run blocks until SIGINT or SIGTERM.
	if err := srv.Run(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("metrics server shutdown failed: %v", err)
	}
}
