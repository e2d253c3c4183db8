// cmd/query-studio/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"es-query-studio/internal/api"
	"es-query-studio/internal/common/camunda"
	"es-query-studio/internal/common/config"
	"es-query-studio/internal/common/database"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/common/observability"
	"es-query-studio/internal/gateway"
	"es-query-studio/internal/store"
	loadoracledata "es-query-studio/internal/workers/datasource/load-oracle-data"
	testconnection "es-query-studio/internal/workers/datasource/test-connection"
	applymapping "es-query-studio/internal/workers/mapping/apply-mapping"
	generatemapping "es-query-studio/internal/workers/mapping/generate-mapping"
	validatemapping "es-query-studio/internal/workers/mapping/validate-mapping"
	compilequery "es-query-studio/internal/workers/query/compile-query"
	executesearch "es-query-studio/internal/workers/query/execute-search"
	"es-query-studio/pkg/registry"
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

// readiness runs the checks in order and reports the first failure.
func readiness(checks []func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func main() {
	configPath := pflag.StringP("config", "c", os.Getenv("CONFIG_PATH"), "path to a config.yaml; default searches ./configs")
	pflag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync() //nolint:errcheck
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting query studio...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Config store with retry ---
	var db *database.SQLClient
	err = retryWithBackoff(func() error {
		var err error
		db, err = database.NewSQLStore(cfg.Database.Store)
		if err != nil {
			return err
		}
		return db.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Config store connection")
	if err != nil {
		zapLog.Fatal("config store failed after retries", zap.Error(err))
	}
	defer db.Close()

	sqlStore := store.NewSQLStore(db.DB, db.Driver)
	if err := sqlStore.Migrate(ctx); err != nil {
		zapLog.Fatal("config store migration failed", zap.Error(err))
	}
	zapLog.Info("Config store ready", zap.String("driver", db.Driver))

	var configStore store.ConfigStore = sqlStore

	// --- Redis cache, optional ---
	if cfg.Database.Redis.Address != "" {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unavailable, config cache disabled", zap.Error(err))
		} else {
			defer redis.Close()
			configStore = store.NewCachedConfigStore(sqlStore, redis.Client, redis.TTL, log)
			zapLog.Info("Redis config cache enabled")
		}
	}

	gateways := gateway.NewProvider(configStore, cfg.Database.Elasticsearch, cfg.Database.Oracle, log)
	defer gateways.Close()

	reg := registry.Default()
	if cfg.Registry.Path != "" {
		reg, err = registry.LoadRegistry(cfg.Registry.Path)
		if err != nil {
			zapLog.Fatal("activity registry load failed", zap.Error(err), zap.String("path", cfg.Registry.Path))
		}
	}

	// --- Handlers, shared by the workers and the API ---
	workerCfg := func(taskType string) config.WorkerConfig {
		return config.GetWorkerConfig(cfg, taskType)
	}
	compiler := compilequery.NewHandler(compilequery.ConfigFrom(workerCfg(compilequery.TaskType), cfg.Query), configStore, log)
	searcher := executesearch.NewHandler(executesearch.ConfigFrom(workerCfg(executesearch.TaskType)), compiler, gateways, nil, log)
	generator := generatemapping.NewHandler(generatemapping.ConfigFrom(workerCfg(generatemapping.TaskType)), gateways, configStore, log)
	applier := applymapping.NewHandler(applymapping.ConfigFrom(workerCfg(applymapping.TaskType)), gateways, configStore, log)
	validator := validatemapping.NewHandler(validatemapping.ConfigFrom(workerCfg(validatemapping.TaskType)), gateways, log)
	connections := testconnection.NewHandler(testconnection.ConfigFrom(workerCfg(testconnection.TaskType)), gateways, log)
	loader := loadoracledata.NewHandler(loadoracledata.ConfigFrom(workerCfg(loadoracledata.TaskType), cfg.Database.Oracle), gateways, log)

	ready := []func(context.Context) error{db.Ping}

	// --- Zeebe workers, optional ---
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()

		workers := camunda.NewWorkerManager(zeebe.GetClient(), reg, obs, log)
		defer workers.Close()

		workers.Register(compilequery.TaskType, workerCfg(compilequery.TaskType), compiler)
		workers.Register(executesearch.TaskType, workerCfg(executesearch.TaskType), searcher)
		workers.Register(generatemapping.TaskType, workerCfg(generatemapping.TaskType), generator)
		workers.Register(applymapping.TaskType, workerCfg(applymapping.TaskType), applier)
		workers.Register(validatemapping.TaskType, workerCfg(validatemapping.TaskType), validator)
		workers.Register(testconnection.TaskType, workerCfg(testconnection.TaskType), connections)
		workers.Register(loadoracledata.TaskType, workerCfg(loadoracledata.TaskType), loader)

		ready = append(ready, zeebe.HealthCheck)
		zapLog.Info("Zeebe workers registered", zap.Strings("taskTypes", workers.Workers()))
	} else {
		zapLog.Info("Camunda disabled, serving the HTTP API only")
	}

	// --- HTTP API ---
	router := api.New(api.Deps{
		Store:              configStore,
		Registry:           reg,
		Compile:            compiler,
		Search:             searcher,
		Generate:           generator,
		Apply:              applier,
		Validate:           validator,
		Connection:         connections,
		Load:               loader,
		Ready:              readiness(ready),
		EnvironmentDeleted: gateways.Forget,
	}, cfg.App, log).Router(cfg.Server)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP API listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Query studio stopped")
}
