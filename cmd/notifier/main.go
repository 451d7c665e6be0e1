// cmd/notifier/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"job-notifier/internal/batch"
	awsclient "job-notifier/internal/common/aws"
	"job-notifier/internal/common/camunda"
	"job-notifier/internal/common/config"
	"job-notifier/internal/common/database"
	apperrors "job-notifier/internal/common/errors"
	"job-notifier/internal/common/logger"
	"job-notifier/internal/common/observability"
	"job-notifier/internal/dispatch"
	"job-notifier/internal/kvstore"
	"job-notifier/internal/matching"
	"job-notifier/internal/scheduler"
	"job-notifier/internal/store"

	sel "job-notifier/internal/workers/notification/select-job-digest"
	snd "job-notifier/internal/workers/notification/send-job-digest"
)

const batchJobName = "job-digest"

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

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func main() {
	configPath := flag.String("config", "", "path to a config file (defaults to ./configs/config.yaml)")
	once := flag.Bool("once", false, "run a single batch pass and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting job notifier...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(ctx, cfg.Database.Postgres)
		return err
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *redis.Client
	if cfg.Store.Backend == config.StoreBackendRedis {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(ctx, cfg.Database.Redis)
			return err
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		rdb = rc.Client
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Warn("using in-process store, run locks are not shared between instances")
	}

	kv := kvstore.New(cfg.Store, rdb)

	channels, err := buildChannels(ctx, cfg.Dispatch)
	if err != nil {
		zapLog.Fatal("failed to initialise delivery channels", zap.Error(err))
	}
	if len(channels) == 0 {
		zapLog.Warn("no delivery channel enabled, every contact will be unreachable")
	}

	contacts := store.NewContactRepository(pg.DB)
	jobs := store.NewJobRepository(pg.DB)
	attempts := kvstore.NewAttemptCounter(kv, cfg.Dispatch.MaxAttempts, config.GetDuration(cfg.Dispatch.AttemptWindow))

	dispatcher := dispatch.NewDispatcher(
		dispatch.Config{Timeout: config.GetDuration(cfg.Dispatch.Timeout)},
		channels, jobs, attempts, log,
	)
	matchingOpts := matching.Options{
		DigestLimit:          cfg.Matching.DigestLimit,
		MinBranchTokenLength: cfg.Matching.MinBranchTokenLength,
	}

	runner := batch.NewRunner(
		batch.Config{
			Concurrency: cfg.Scheduler.Concurrency,
			RunTimeout:  config.GetDuration(cfg.Scheduler.RunTimeout),
			LockTTL:     config.GetDuration(cfg.Scheduler.LockTTL),
		},
		contacts, jobs, matching.NewSelector(matchingOpts), dispatcher,
		kvstore.NewLocker(kv), obs, log,
	)
	zapLog.Info("dispatcher ready", zap.Strings("channels", dispatcher.Channels()))

	if *once {
		report, err := runner.Run(ctx)
		if err != nil {
			zapLog.Fatal("batch run failed", zap.Error(err))
		}
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return
	}

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(ctx, cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		var workers []worker.JobWorker
		selectHandler := sel.NewHandler(&sel.Config{
			Timeout:  config.GetDuration(config.GetWorkerConfig(cfg, sel.TaskType).Timeout),
			Matching: matchingOpts,
		}, pg.DB, log)
		if jw := camunda.StartWorker(zeebe.GetClient(), sel.TaskType, config.GetWorkerConfig(cfg, sel.TaskType), selectHandler.Handle, log); jw != nil {
			workers = append(workers, jw)
		}

		sendHandler := snd.NewHandler(&snd.Config{
			Timeout:  config.GetDuration(config.GetWorkerConfig(cfg, snd.TaskType).Timeout),
			Matching: matchingOpts,
		}, pg.DB, dispatcher, log)
		if jw := camunda.StartWorker(zeebe.GetClient(), snd.TaskType, config.GetWorkerConfig(cfg, snd.TaskType), sendHandler.Handle, log); jw != nil {
			workers = append(workers, jw)
		}

		defer func() {
			for _, jw := range workers {
				jw.Close()
			}
			if err := zeebe.Close(); err != nil {
				zapLog.Error("Error closing Zeebe client", zap.Error(err))
			}
		}()
	}

	// --- Scheduler ---
	sched := scheduler.New(log, config.GetDuration(cfg.Scheduler.RunTimeout))
	if cfg.Scheduler.Enabled {
		err = sched.Add(cfg.Scheduler.CronSpec, scheduler.JobFunc(batchJobName, func(ctx context.Context) error {
			_, err := runner.Run(ctx)
			if apperrors.HasCode(err, apperrors.ErrCodeBatchAlreadyRunning) {
				log.Info("batch run skipped, lock held elsewhere", nil)
				return nil
			}
			return err
		}))
		if err != nil {
			zapLog.Fatal("invalid scheduler configuration", zap.Error(err))
		}
		sched.Start()
		if next, ok := sched.Next(batchJobName); ok {
			zapLog.Info("scheduler started",
				zap.String("cron", cfg.Scheduler.CronSpec),
				zap.Time("nextRun", next),
			)
		}
	}

	srv := &http.Server{
		Addr:    cfg.Metrics.Address,
		Handler: healthMux(pg, rdb),
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		zapLog.Warn("scheduler did not stop in time", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Job notifier stopped gracefully")
}

// buildChannels wires every enabled delivery channel in a fixed order.
func buildChannels(ctx context.Context, cfg config.DispatchConfig) ([]dispatch.Channel, error) {
	var channels []dispatch.Channel

	if cfg.Email.Enabled || cfg.SMS.Enabled {
		awsCfg, err := awsclient.LoadConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		if cfg.Email.Enabled {
			channels = append(channels, dispatch.NewEmailChannel(awsclient.NewSESClient(awsCfg), cfg.Email.FromEmail))
		}
		if cfg.SMS.Enabled {
			channels = append(channels, dispatch.NewSMSChannel(awsclient.NewSNSClient(awsCfg), cfg.SMS.SenderID))
		}
	}

	if cfg.Telegram.Enabled {
		bot, err := dispatch.NewTelegramBot(cfg.Telegram.BotToken, config.GetDuration(cfg.Timeout))
		if err != nil {
			return nil, err
		}
		channels = append(channels, dispatch.NewTelegramChannel(bot))
	}

	return channels, nil
}

func healthMux(pg *database.PostgresClient, rdb *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"postgres": "ok"}
		status := http.StatusOK
		if err := pg.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if status == http.StatusOK {
			writeStatus(w, status, "ready", checks)
			return
		}
		writeStatus(w, status, "not ready", checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}
