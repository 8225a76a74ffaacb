package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/assemble"
	"github.com/pagerelay/pagerelay/internal/config"
	"github.com/pagerelay/pagerelay/internal/httpapi"
	"github.com/pagerelay/pagerelay/internal/imagejob"
	"github.com/pagerelay/pagerelay/internal/llm"
	"github.com/pagerelay/pagerelay/internal/materialize"
	"github.com/pagerelay/pagerelay/internal/pipeline"
	"github.com/pagerelay/pagerelay/internal/status"
	"github.com/pagerelay/pagerelay/internal/syscontext"
	"github.com/pagerelay/pagerelay/internal/task"
	"github.com/pagerelay/pagerelay/internal/workspace"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Redis backs rate limiting and idempotency; both degrade to local
	// fallbacks when it is absent.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to parse Redis URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := redisClient.Ping(pingCtx).Result(); err != nil {
			logger.Warn("Redis unreachable, falling back to local rate limiting", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	// Workspace API client
	ws := workspace.NewHTTPClient(cfg.Workspace, logger)

	// Pipeline stages
	resolver := task.NewResolver(ws, cfg.AgentID, logger)
	assembler := assemble.New(ws, logger)
	llmClient := llm.NewClient(cfg.LLM, logger)
	invoker := llm.NewInvoker(llmClient, logger)
	jobs := imagejob.NewHTTPClient(cfg.ImageJob, logger)
	poller := imagejob.NewPoller(jobs, cfg.Defaults.PollInterval, cfg.Defaults.PollMaxAttempts, logger)
	writer := materialize.NewWriter(ws, cfg.Defaults.BatchCeiling, cfg.Defaults.BlockCharLimit, logger)
	propagator := status.NewPropagator(ws, cfg.Defaults.ErrorCap, logger)

	var sysctx syscontext.Source = syscontext.Empty{}
	if cfg.SystemContext.PageID != "" {
		sysctx = syscontext.NewCache(ws, cfg.SystemContext.PageID, cfg.SystemContext.TTL, logger)
	}

	pipe := pipeline.New(pipeline.Deps{
		Workspace:  ws,
		Resolver:   resolver,
		Assembler:  assembler,
		Invoker:    invoker,
		Jobs:       jobs,
		Poller:     poller,
		Writer:     writer,
		Propagator: propagator,
		SysContext: sysctx,
		Logger:     logger,
	})

	// Handlers
	webhookHandler := httpapi.NewWebhookHandler(pipe, cfg, logger)
	analyzeHandler := httpapi.NewAnalyzeHandler(ws, assembler, invoker, cfg, logger)

	// Middlewares
	rateLimiter := httpapi.NewRateLimiter(redisClient, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, logger).Middleware
	idempotency := httpapi.NewIdempotencyMiddleware(redisClient, logger).Middleware
	requestLogger := httpapi.RequestLogger(logger)

	// Setup HTTP mux
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", httpapi.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	apiMux := http.NewServeMux()
	webhookHandler.RegisterRoutes(apiMux)
	analyzeHandler.RegisterRoutes(apiMux)
	mux.Handle("/", requestLogger(rateLimiter(idempotency(apiMux))))

	// Hot-reload entry points and secrets on config file changes.
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		watcher, err := config.NewWatcher(path, func(next *config.Config) {
			webhookHandler.Reload(next)
			logger.Info("Configuration reloaded")
		}, logger)
		if err == nil {
			err = watcher.Start()
		}
		if err != nil {
			logger.Warn("Config watcher unavailable", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Server.ImageRequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Relay starting", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Relay shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Relay forced to shutdown", zap.Error(err))
	}

	logger.Info("Relay stopped")
}
