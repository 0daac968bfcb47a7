// cmd/notifier/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-engine/internal/audit"
	"notification-engine/internal/common/auth"
	"notification-engine/internal/common/aws"
	"notification-engine/internal/common/camunda"
	"notification-engine/internal/common/config"
	"notification-engine/internal/common/database"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/observability"
	"notification-engine/internal/engine"
	"notification-engine/internal/engine/dispatch"
	"notification-engine/internal/engine/personalize"
	"notification-engine/internal/engine/preference"
	"notification-engine/internal/engine/router"
	"notification-engine/internal/engine/scheduler"
	"notification-engine/internal/gateway/httpapi"
	"notification-engine/internal/realtime"
	"notification-engine/internal/store"
	"notification-engine/internal/transport"
	notificationdispatch "notification-engine/internal/workers/notification-dispatch"
	preferenceupdate "notification-engine/internal/workers/preference-update"
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
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification engine...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
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

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional, audit only) ---
	var auditor engine.Auditor
	if cfg.Database.Elasticsearch.Enabled && cfg.Audit.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		auditor = audit.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.AuditIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Stores ---
	notifications := store.NewNotifications(pg.GetDB())
	preferences := store.NewPreferences(pg.GetDB())
	resolver := preference.NewResolver(preferences)

	// --- Realtime registry and websocket endpoint ---
	registry := realtime.NewRegistry(log)

	var tokenResolver realtime.TokenResolver
	if cfg.Auth.Enabled {
		tokenResolver = auth.NewTokenClient(cfg.Auth.BaseURL, cfg.Auth.Realm)
	} else {
		zapLog.Warn("auth disabled, realtime tokens are taken as recipient IDs")
		tokenResolver = auth.StaticResolver{}
	}
	wsServer := realtime.NewServer(registry, tokenResolver, cfg.Realtime, log)

	// --- Channel transports ---
	senders := []dispatch.Sender{
		transport.NewInAppSender(registry, log),
	}
	if cfg.Transports.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Transports.AWS.Region)
		if err != nil {
			zapLog.Fatal("SES client initialization failed", zap.Error(err))
		}
		senders = append(senders, transport.NewEmailSender(sesClient, cfg.Transports.Email.FromEmail, log))
	}
	if cfg.Transports.SMS.Enabled || cfg.Transports.Push.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Transports.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client initialization failed", zap.Error(err))
		}
		if cfg.Transports.SMS.Enabled {
			senders = append(senders, transport.NewSMSSender(snsClient, cfg.Transports.SMS.SenderID, log))
		}
		if cfg.Transports.Push.Enabled {
			senders = append(senders, transport.NewPushSender(snsClient, log))
		}
	}

	dispatcher := dispatch.New(notifications, preferences, senders, cfg.Dispatch.ChannelTimeoutDuration(), log)

	// --- Personalization ---
	var enricher personalize.Enricher = personalize.NoOp{}
	if cfg.Personalization.Enabled {
		enricher = personalize.NewClient(&personalize.Config{
			BaseURL:    cfg.Personalization.BaseURL,
			APIKey:     cfg.Personalization.APIKey,
			Timeout:    time.Duration(cfg.Personalization.Timeout) * time.Millisecond,
			MaxRetries: 1,
		}, log)
	}

	// --- Scheduler ---
	clock := scheduler.SystemClock{}
	queue := scheduler.NewQueue(redisClient.GetClient(), log)
	sched := scheduler.New(queue, notifications, preferences, resolver, dispatcher, clock, cfg.Scheduler, log)
	go sched.Run(ctx)

	// --- Engine facade ---
	eng := engine.New(
		notifications,
		preferences,
		resolver,
		enricher,
		router.New(cfg.Dispatch.MaxChannels, log),
		dispatcher,
		queue,
		auditor,
		clock,
		log,
	)

	// --- Workflow worker (optional) ---
	if cfg.Workflow.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Workflow.BrokerAddress)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()

		dispatchHandler := notificationdispatch.NewHandler(
			&notificationdispatch.Config{
				MaxJobsActive: cfg.Workflow.MaxJobsActive,
				Timeout:       time.Duration(cfg.Workflow.Timeout) * time.Millisecond,
			},
			eng, log,
		)
		dispatchWorker := camunda.NewWorker(zeebe.GetClient(), notificationdispatch.TaskType, cfg.Workflow.MaxJobsActive, dispatchHandler, log)
		defer dispatchWorker.Stop(ctx)

		prefHandler := preferenceupdate.NewHandler(preferenceupdate.LoadConfig(), eng, log)
		prefWorker := camunda.NewWorker(zeebe.GetClient(), preferenceupdate.TaskType, cfg.Workflow.MaxJobsActive, prefHandler, log)
		defer prefWorker.Stop(ctx)
	}

	// --- Health/Metrics server ---
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})
		mux.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := http.ListenAndServe(cfg.Server.MetricsAddress, mux); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- HTTP gateway ---
	api := httpapi.NewServer(eng, wsServer, log)
	go func() {
		if err := api.Listen(ctx, cfg.Server); err != nil {
			zapLog.Error("HTTP gateway failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	cancel()
	time.Sleep(time.Second)
	zapLog.Info("Notification engine stopped")
}
