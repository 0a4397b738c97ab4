// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bizmatch-workers/internal/cache"
	"bizmatch-workers/internal/common/aws"
	"bizmatch-workers/internal/common/camunda"
	"bizmatch-workers/internal/common/config"
	"bizmatch-workers/internal/common/database"
	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/common/observability"
	"bizmatch-workers/internal/extraction"
	"bizmatch-workers/internal/notify"
	"bizmatch-workers/internal/search"
	"bizmatch-workers/internal/store"

	cm "bizmatch-workers/internal/workers/matching/compute-matches"
	ek "bizmatch-workers/internal/workers/matching/extract-keywords"
	pm "bizmatch-workers/internal/workers/matching/present-matches"
	re "bizmatch-workers/internal/workers/matching/record-engagement"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}
	_ = bootLog.Sync()

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	tracing := observability.TracingOptions{
		SampleRatio: cfg.Tracing.SampleRatio,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	}
	if cfg.Tracing.Enabled {
		tracing.Endpoint = cfg.Tracing.JaegerEndpoint
	}
	obs := observability.New(cfg.App.Name, tracing)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig: &camunda.RetryConfig{
			MaxRetries: 10,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	checks := map[string]readinessCheck{
		"zeebe":    zeebe.HealthCheck,
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	// --- Elasticsearch (optional) ---
	var index cm.MatchIndex
	if cfg.Database.Elasticsearch.Disabled {
		zapLog.Info("Elasticsearch disabled, match indexing skipped")
	} else {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		index = search.NewMatchIndexer(esClient.Client, cfg.Database.Elasticsearch.MatchIndex, log)
		checks["elasticsearch"] = esClient.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Notification channels ---
	var publisher notify.TopicPublisher
	if cfg.Notifications.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		publisher = sns
	}
	var sender notify.EmailSender
	if cfg.Notifications.SES.Enabled {
		ses, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.SES.FromEmail)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		sender = ses
	}
	notifier := notify.NewNotifier(publisher, sender, notify.Config{
		SNSEnabled: cfg.Notifications.SNS.Enabled,
		TopicARN:   cfg.Notifications.SNS.TopicARN,
		SESEnabled: cfg.Notifications.SES.Enabled,
		Recipients: cfg.Notifications.SES.Recipients,
	}, log)

	// --- Domain services ---
	records := store.NewPostgresStore(pg.DB, log)
	runs := cache.NewRunCache(rdb.Client, time.Duration(cfg.Matching.RunCacheTTL)*time.Second)
	engagement := cache.NewEngagement(rdb.Client)
	extractor := extraction.NewClient(extraction.ClientConfig{
		BaseURL:    cfg.Extraction.BaseURL,
		APIKey:     cfg.Extraction.APIKey,
		Timeout:    config.GetDuration(cfg.Extraction.Timeout),
		MaxRetries: cfg.Extraction.MaxRetries,
	}, log)
	annotator := extraction.NewAnnotator(extractor, records, config.GetDuration(cfg.Extraction.Delay), log)

	// --- Workers ---
	registry := camunda.NewRegistry(zeebe.GetClient(), zapLog)

	computeHandler := cm.NewHandler(cm.LoadConfig(cfg), cm.Dependencies{
		Records:       records,
		Annotator:     annotator,
		Runs:          runs,
		Index:         index,
		Notifier:      notifier,
		Observability: obs,
	}, log)
	registry.Register(cm.TaskType, config.GetWorkerConfig(cfg, cm.TaskType), computeHandler.Handle)

	extractHandler := ek.NewHandler(ek.LoadConfig(cfg), records, annotator, notifier, log)
	registry.Register(ek.TaskType, config.GetWorkerConfig(cfg, ek.TaskType), extractHandler.Handle)

	presentHandler := pm.NewHandler(pm.LoadConfig(cfg), runs, engagement, log)
	registry.Register(pm.TaskType, config.GetWorkerConfig(cfg, pm.TaskType), presentHandler.Handle)

	engagementHandler := re.NewHandler(re.LoadConfig(cfg), engagement, log)
	registry.Register(re.TaskType, config.GetWorkerConfig(cfg, re.TaskType), engagementHandler.Handle)

	zapLog.Info("Workers registered", zap.Strings("taskTypes", registry.TaskTypes()))

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newHealthMux(checks, zapLog),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Health/Metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}
