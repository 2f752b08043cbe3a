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
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/synaptica-ai/clinical-insights/pkg/api"
	"github.com/synaptica-ai/clinical-insights/pkg/common/config"
	"github.com/synaptica-ai/clinical-insights/pkg/common/database"
	"github.com/synaptica-ai/clinical-insights/pkg/common/kafka"
	"github.com/synaptica-ai/clinical-insights/pkg/common/logger"
	"github.com/synaptica-ai/clinical-insights/pkg/dlp"
	"github.com/synaptica-ai/clinical-insights/pkg/gateway/middleware"
	"github.com/synaptica-ai/clinical-insights/pkg/insights"
	"github.com/synaptica-ai/clinical-insights/pkg/nlp"
	"github.com/synaptica-ai/clinical-insights/pkg/records"
	"github.com/synaptica-ai/clinical-insights/pkg/serving"
	"github.com/synaptica-ai/clinical-insights/pkg/storage"
	"github.com/synaptica-ai/clinical-insights/pkg/training"
)

func main() {
	logger.Init("clinical-service")
	cfg := config.Load()

	deps := api.Deps{TargetColumn: cfg.TargetColumn}

	// Postgres is optional: without it the patient routes answer 503 and
	// training runs are not recorded.
	var (
		runStore training.RunStore
		db       *gorm.DB
		cache    records.FeatureCache
		rdb      *redis.Client
		err      error
	)
	if cfg.RecordsEnabled {
		startCtx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeout)
		db, err = database.OpenPostgres(startCtx, cfg)
		cancel()
		if err != nil {
			logger.Log.WithError(err).Warn("PostgreSQL unavailable, running without patient records")
		}
	}
	if db != nil {
		recordsRepo := records.NewRepository(db)
		runsRepo := training.NewRepository(db)
		logsRepo := serving.NewRepository(db, cfg.ModelName)
		for name, migrate := range map[string]func() error{
			"records":     recordsRepo.AutoMigrate,
			"training":    runsRepo.AutoMigrate,
			"predictions": logsRepo.AutoMigrate,
		} {
			if err := migrate(); err != nil {
				logger.Log.WithError(err).WithField("schema", name).Fatal("Failed to migrate schema")
			}
		}

		if cfg.FeatureCacheEnabled {
			startCtx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeout)
			rdb, err = database.OpenRedis(startCtx, cfg)
			cancel()
			if err != nil {
				logger.Log.WithError(err).Warn("Redis unavailable, feature snapshots read from PostgreSQL")
			} else {
				cache = storage.NewFeatureStore(rdb, cfg.FeatureCacheTTL)
			}
		}
		deps.Patients = records.NewService(recordsRepo, cache, records.NewValidator(nil, nil))
		deps.Logs = logsRepo
		runStore = runsRepo
	}

	var events *kafka.Async
	var publisher training.Publisher
	if cfg.EventsEnabled {
		events = kafka.NewAsync(kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaEventsTopic), cfg.EventTimeout)
		publisher = events
		deps.Publisher = events
	}

	rules := dlp.DefaultRules()
	if cfg.DLPRulesPath != "" {
		if rules, err = dlp.LoadRules(cfg.DLPRulesPath); err != nil {
			logger.Log.WithError(err).Fatal("Failed to load DLP rules")
		}
	}
	if deps.Scrubber, err = dlp.NewDetector(rules); err != nil {
		logger.Log.WithError(err).Fatal("Failed to compile DLP rules")
	}

	fetcher, err := nlp.NewFetcher(cfg.LexiconSource, nlp.FetcherOptions{
		Timeout:      cfg.LexiconFetchTimeout,
		TokenURL:     cfg.LexiconTokenURL,
		ClientID:     cfg.LexiconClientID,
		ClientSecret: cfg.LexiconClientSecret,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid lexicon source")
	}
	loader := nlp.NewLoader(cfg.LexiconPath, fetcher)
	analyzer, err := nlp.NewAnalyzer(loader, cfg.NoteCacheSize)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to create note analyzer")
	}
	deps.Analyzer = analyzer

	// Warm the lexicon so the first request does not pay for the download.
	warmCtx, warmCancel := context.WithTimeout(context.Background(), cfg.LexiconFetchTimeout)
	if _, err := loader.EnsureReady(warmCtx); err != nil {
		logger.Log.WithError(err).Warn("Clinical lexicon not loaded, will retry on first analysis")
	}
	warmCancel()

	agent := insights.NewAgent(insights.DefaultOptions())
	trainer, err := training.NewService(agent, runStore, publisher, cfg.ArtifactDir, cfg.ModelName)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to prepare artifact directory")
	}
	if restored, err := trainer.RestoreLatest(); err != nil {
		logger.Log.WithError(err).Warn("Failed to restore model artifact, starting untrained")
	} else if !restored {
		logger.Log.Info("No model artifact found, starting untrained")
	}
	deps.Agent = agent
	deps.Trainer = trainer

	handler := api.NewHandler(deps)

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	handler.RegisterOps(router, loader.Ready)
	handler.Register(router.PathPrefix("/api/v1").Subrouter())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Clinical insights service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down clinical insights service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	if events != nil {
		if err := events.Close(); err != nil {
			logger.Log.WithError(err).Warn("Failed to close event producer")
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Log.WithError(err).Warn("Failed to close Redis")
		}
	}
	if err := database.ClosePostgres(db); err != nil {
		logger.Log.WithError(err).Warn("Failed to close PostgreSQL")
	}

	logger.Log.Info("Clinical insights service stopped")
}
