// Package main provides the entrypoint for the UrbanIndex heatmap worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/urbanindex/urbanindex/internal/city"
	"github.com/urbanindex/urbanindex/internal/database"
	"github.com/urbanindex/urbanindex/internal/heatmap"
	"github.com/urbanindex/urbanindex/internal/job"
	"github.com/urbanindex/urbanindex/internal/poi"
	"github.com/urbanindex/urbanindex/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "urbanindex-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting UrbanIndex worker")

	// Worker also exposes health and metrics endpoints for Cloud Run.
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	jobRepo := job.NewPostgresRepository(pool)
	cellRepo := heatmap.NewPostgresRepository(pool)
	poiSource := poi.NewPostgresSource(pool)

	// Prometheus registry for job pipeline metrics
	registry := prometheus.NewRegistry()
	metrics := worker.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	// Worker loop claims pending jobs and computes heatmap cells
	workerConfig := worker.ConfigFromEnv()
	loop := worker.NewLoop(workerConfig, jobRepo, cellRepo, poiSource, metrics, log)

	go loop.Run(ctx)
	log.Info().
		Int("max_concurrent_jobs", workerConfig.MaxConcurrentJobs).
		Dur("poll_interval", workerConfig.PollInterval).
		Msg("worker loop started")

	// Optional Pub/Sub trigger: upstream pipelines publish compute requests
	// instead of calling the HTTP API.
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
		if subscription == "" {
			subscription = "heatmap-compute"
		}

		cityRegistry := city.NewPostgresRegistry(pool)
		scheduler := job.NewScheduler(jobRepo, cityRegistry, poiSource, cellRepo, job.SchedulerConfig{}, log)

		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Scheduler:        scheduler,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
		log.Info().
			Str("subscription", subscription).
			Msg("pubsub trigger enabled")
	}

	// HTTP server for health checks and metrics scraping
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
