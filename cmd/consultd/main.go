// cmd/consultd/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Joe-rq/MedCrowd-sub000/internal/agents"
	"github.com/Joe-rq/MedCrowd-sub000/internal/archive"
	commonaws "github.com/Joe-rq/MedCrowd-sub000/internal/common/aws"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/camunda"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/config"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/database"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/observability"
	"github.com/Joe-rq/MedCrowd-sub000/internal/consultation"
	"github.com/Joe-rq/MedCrowd-sub000/internal/consultation/events"
	"github.com/Joe-rq/MedCrowd-sub000/internal/consultation/report"
	"github.com/Joe-rq/MedCrowd-sub000/internal/notify"
	"github.com/Joe-rq/MedCrowd-sub000/internal/store"
	"github.com/Joe-rq/MedCrowd-sub000/internal/triage"
	runconsultation "github.com/Joe-rq/MedCrowd-sub000/internal/workers/consultation/run-consultation"
	"github.com/Joe-rq/MedCrowd-sub000/pkg/roster"
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

	zapLog.Info("Starting consultd...")

	obs := observability.New("consultd")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Backing store ---
	var backing store.Store
	var redisClient *database.RedisClient
	if cfg.Storage.Backend == "redis" {
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
		backing = store.NewRedisStore(redisClient)
		zapLog.Info("Redis store connected")
	} else {
		backing = store.NewMemoryStore()
		zapLog.Info("In-memory store selected")
	}

	// --- Archival backends (optional) ---
	var pg *database.PostgresClient
	if cfg.Archive.PostgresEnabled {
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
		zapLog.Info("PostgreSQL connected")
	}

	var esClient *database.ElasticsearchClient
	if cfg.Archive.ElasticsearchEnabled {
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
		zapLog.Info("Elasticsearch connected")
	}

	// --- Agent directory, seeded from the roster file ---
	directory := agents.NewDirectory(backing)
	if cfg.Roster.Path != "" {
		r, err := roster.Load(cfg.Roster.Path)
		if err != nil {
			zapLog.Fatal("roster load failed", zap.Error(err))
		}
		for _, record := range r.Records() {
			if err := directory.Put(ctx, record); err != nil {
				zapLog.Fatal("roster seed failed", zap.Error(err), zap.String("agentId", record.AgentID))
			}
		}
		zapLog.Info("Roster loaded", zap.Int("agents", len(r.Agents)))
	}

	// --- Consultation pipeline ---
	refresher := agents.NewRefresher(agents.RefresherConfig{
		RefreshURL:    cfg.Endpoints.Refresh.URL,
		Grace:         config.GetDuration(cfg.Consultation.CredentialGrace),
		LockTTL:       config.GetDuration(cfg.Consultation.RefreshLockTTL),
		WaiterBackoff: config.GetDuration(cfg.Consultation.RefreshWait),
		Timeout:       config.GetDuration(cfg.Endpoints.Refresh.Timeout),
	}, directory, backing, log)

	chat := agents.NewChatClient(agents.ChatClientConfig{
		BaseURL: cfg.Endpoints.Chat.BaseURL,
		Timeout: config.GetDuration(cfg.Consultation.ConsultTimeout),
	})

	var sink events.Sink
	if redisClient != nil {
		sink = events.NewRedisSink(redisClient)
	} else {
		sink = events.NewLogSink(log)
	}
	publisher := events.NewPublisher(sink, log)

	cooldown := time.Duration(cfg.Consultation.CooldownMinutes) * time.Minute
	runner := consultation.NewQueryRunner(refresher, chat, directory, cooldown, publisher, log)
	responses := consultation.NewResponseStore(backing, log)

	var triageClient *triage.Client
	if cfg.Endpoints.Triage.BaseURL != "" {
		triageClient = triage.NewClient(cfg.Endpoints.Triage.BaseURL,
			config.GetDuration(cfg.Endpoints.Triage.Timeout), log)
	}

	var summarizer *report.Summarizer
	if cfg.Consultation.GenerativeEnabled && cfg.Endpoints.Generative.BaseURL != "" {
		summarizer, err = report.NewSummarizer(cfg.Endpoints.Generative.BaseURL,
			config.GetDuration(cfg.Endpoints.Generative.Timeout), log)
		if err != nil {
			zapLog.Fatal("summarizer init failed", zap.Error(err))
		}
	}

	orchestrator := consultation.NewOrchestrator(
		consultation.Config{
			FanOutCap:       cfg.Consultation.FanOutCap,
			RoundTimeout:    config.GetDuration(cfg.Consultation.ConsultTimeout),
			ReactionEnabled: cfg.Consultation.ReactionEnabled,
		},
		directory, runner,
		consultation.NewValidator(cfg.Consultation.DuplicateThreshold),
		responses,
		report.NewBuilder(report.Config{
			ConsensusThreshold: cfg.Consultation.ConsensusThreshold,
			CostCeiling:        cfg.Consultation.CostCeiling,
		}),
		summarizer, triageClient, publisher, log,
	)

	// --- Optional archival and notification ---
	var archiver runconsultation.Archiver
	if pg != nil || esClient != nil {
		archiver = archive.NewArchiver(pg, esClient, cfg.Archive.IndexName, log)
	}

	var notifier runconsultation.Notifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		var sesClient notify.SESService
		var snsClient notify.SNSService
		if cfg.Notifications.Email.Enabled {
			sesClient, err = commonaws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("ses client init failed", zap.Error(err))
			}
		}
		if cfg.Notifications.SMS.Enabled {
			snsClient, err = commonaws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("sns client init failed", zap.Error(err))
			}
		}
		notifier = notify.NewNotifier(cfg.Notifications, sesClient, snsClient, log)
	}

	// --- Zeebe worker ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected")

	var jobWorker *camunda.Worker
	workerCfg := cfg.Workers[runconsultation.TaskType]
	if workerCfg.Enabled {
		handlerCfg := runconsultation.LoadConfig()
		if workerCfg.Timeout > 0 {
			handlerCfg.Timeout = config.GetDuration(workerCfg.Timeout)
		}
		if workerCfg.MaxJobsActive > 0 {
			handlerCfg.MaxJobsActive = workerCfg.MaxJobsActive
		}

		handler := runconsultation.NewHandler(handlerCfg, orchestrator, archiver, notifier, log)
		jobWorker = camunda.NewWorker(
			camundaClient.GetClient(),
			runconsultation.TaskType,
			handlerCfg.MaxJobsActive,
			handlerCfg.Timeout,
			handler.Handle,
			zapLog,
		)
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", runconsultation.TaskType))
	}

	// --- Health & Metrics Server ---
	listen := cfg.Metrics.Listen
	if listen == "" {
		listen = ":8080"
	}
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			status := "ready"
			code := http.StatusOK
			if redisClient != nil {
				if err := redisClient.Ping(r.Context()); err != nil {
					status = "store unavailable"
					code = http.StatusServiceUnavailable
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("addr", listen))
		if err := http.ListenAndServe(listen, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	if jobWorker != nil {
		jobWorker.Stop()
	}
	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	zapLog.Info("consultd stopped gracefully")
}
