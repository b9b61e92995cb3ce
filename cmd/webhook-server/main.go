// cmd/webhook-server/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclient "agent-demo-webhooks/internal/common/aws"
	"agent-demo-webhooks/internal/common/config"
	"agent-demo-webhooks/internal/common/database"
	"agent-demo-webhooks/internal/common/logger"
	"agent-demo-webhooks/internal/common/observability"
	"agent-demo-webhooks/internal/common/storage"
	"agent-demo-webhooks/internal/dispatch"
	"agent-demo-webhooks/internal/realtime"
	"agent-demo-webhooks/internal/toolcall"
	"agent-demo-webhooks/internal/webhook"
)

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
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting webhook server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)
	if cfg.Tavus.WebhookSecret == "" {
		zapLog.Warn("TAVUS_WEBHOOK_SECRET is not set; every delivery will be rejected")
	}

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.TracingEnabled, log)
	defer obs.Shutdown()

	ctx := context.Background()

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

	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	var objects *storage.Client
	err = retryWithBackoff(func() error {
		var err error
		objects, err = storage.NewMinIO(cfg.Storage)
		if err != nil {
			return err
		}
		return objects.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Object storage connection")

	if err != nil {
		zapLog.Fatal("object storage failed after retries", zap.Error(err))
	}
	zapLog.Info("Object storage connected successfully", zap.String("bucket", cfg.Storage.Bucket))

	deps := dispatch.Dependencies{
		Store:       dispatch.NewPostgresStore(pg),
		Signer:      objects,
		Broadcaster: dispatch.NewRedisBroadcaster(redis),
		Cache:       dispatch.NewRedisDemoCache(redis, time.Duration(cfg.Database.Redis.DemoCacheTTL)*time.Second),
	}

	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Warn("Elasticsearch unavailable, event indexing disabled", zap.Error(err))
		} else {
			deps.Indexer = dispatch.NewElasticIndexer(esClient, cfg.Database.Elasticsearch.Index)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Warn("SNS client init failed, lead alerts disabled", zap.Error(err))
		} else {
			deps.Notifier = dispatch.NewSNSLeadNotifier(snsClient, cfg.Integrations.AWS.SNS.TopicARN)
			zapLog.Info("SNS lead alerts enabled")
		}
	}

	parser := toolcall.NewParser(toolcall.ParserConfig{
		TextFallbackEnabled: cfg.Tavus.ToolcallTextFallback,
		E2ETestMode:         cfg.Tavus.E2ETestMode,
		Environment:         cfg.App.Environment,
	}, log)

	dispatcher := dispatch.New(&dispatch.Config{
		SignedURLTTL:  cfg.Tavus.SignedURLDuration(),
		ChannelPrefix: cfg.Realtime.ChannelPrefix,
	}, deps, log)

	mux := http.NewServeMux()

	webhook.NewHandler(&webhook.Config{
		Secret:       cfg.Tavus.WebhookSecret,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, parser, dispatcher, obs, log).Register(mux)

	realtime.NewHub(realtime.Config{
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		ChannelPrefix:  cfg.Realtime.ChannelPrefix,
	}, redis, log).Register(mux)

	// --- Health & Metrics ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pg.Ping(checkCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "postgres unavailable")
			return
		}
		if err := redis.Ping(checkCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Webhook server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("Webhook server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Webhook server stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
