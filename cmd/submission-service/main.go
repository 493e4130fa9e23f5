package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pechabench/platform/pkg/challenge"
	"github.com/pechabench/platform/pkg/common/config"
	"github.com/pechabench/platform/pkg/common/database"
	"github.com/pechabench/platform/pkg/common/kafka"
	"github.com/pechabench/platform/pkg/common/logger"
	"github.com/pechabench/platform/pkg/common/middleware"
	"github.com/pechabench/platform/pkg/evaluation"
	"github.com/pechabench/platform/pkg/observability/metrics"
	"github.com/pechabench/platform/pkg/submission"
	"github.com/pechabench/platform/pkg/upload"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	challengeRepo := challenge.NewRepository(db)
	if err := challengeRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate challenge tables")
	}
	submissionRepo := submission.NewRepository(db)
	if err := submissionRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate submission tables")
	}

	catalog, err := challenge.LoadCatalog(cfg.ChallengeCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("challenge catalog load failed, using defaults")
	}
	if err := catalog.Seed(context.Background(), challengeRepo); err != nil {
		logger.Log.WithError(err).Fatal("failed to seed challenges")
	}

	store, err := upload.NewObjectStore(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to object storage")
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		logger.Log.WithError(err).Fatal("failed to prepare submission bucket")
	}
	uploader := upload.NewService(store, cfg.MaxUploadBytes)

	fetcher := evaluation.NewFetcher(database.GetRedis(), cfg.GroundTruthTimeout, cfg.GroundTruthCacheTTL)
	engine := evaluation.NewEngine().WithNormalizer(evaluation.NormalizerFor(cfg.NormalizerScheme))

	producer := kafka.NewProducer(cfg.SubmissionEventsTopic)
	defer producer.Close()

	queue := submission.NewTaskQueue(cfg.QueueCapacity)
	cache := submission.NewProgressCache()
	pool := submission.NewPool(queue, cache, submissionRepo, uploader, fetcher, engine, producer, submission.PoolConfig{
		Workers:        cfg.SubmissionWorkers,
		DequeueTimeout: cfg.DequeueTimeout,
		TaskDeadline:   cfg.TaskDeadline,
	})
	pool.Start()

	stopJanitor := cache.StartJanitor(cfg.CacheCleanupInterval, cfg.CacheRetention)

	svc := submission.NewService(submissionRepo, challengeRepo, cache, queue, pool)
	handler := submission.NewHTTPHandler(svc, cfg.MaxUploadBytes)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(
		middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		middleware.BodyLimit(cfg.MaxUploadBytes+1024),
	)
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Submission Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				qs := svc.QueueStats()
				cs := svc.CacheStats()
				metrics.ObserveQueue(qs.TotalQueued, qs.TotalProcessed, int64(qs.QueueSize), int64(qs.ActiveWorkers))
				metrics.ObserveCache(int64(cs.Total), int64(cs.Active))
			case <-ctx.Done():
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Submission Service...")
	cancel()
	stopJanitor()
	pool.Stop(30 * time.Second)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()

	logger.Log.Info("Submission Service stopped")
}
