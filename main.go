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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/xiaot623/gogo/convo/internal/adapter/analytics"
	"github.com/xiaot623/gogo/convo/internal/adapter/llm"
	"github.com/xiaot623/gogo/convo/internal/adapter/quota"
	"github.com/xiaot623/gogo/convo/internal/adapter/search"
	"github.com/xiaot623/gogo/convo/internal/config"
	"github.com/xiaot623/gogo/convo/internal/logger"
	"github.com/xiaot623/gogo/convo/internal/policy"
	"github.com/xiaot623/gogo/convo/internal/repository"
	"github.com/xiaot623/gogo/convo/internal/semcache"
	"github.com/xiaot623/gogo/convo/internal/service"
	"github.com/xiaot623/gogo/convo/internal/transport/http/internalapi"
	v1 "github.com/xiaot623/gogo/convo/internal/transport/http/v1"
	"github.com/xiaot623/gogo/convo/internal/transport/http/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting convo",
		"http_port", cfg.HTTPPort,
		"internal_port", cfg.InternalPort,
		"database", cfg.DatabaseURL,
		"mode", cfg.Mode,
		"llm_base_url", cfg.LLMBaseURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to initialize store", "error", err)
	}
	defer db.Close()

	// Initialize plan policy
	policyEngine, err := policy.Load(ctx, cfg.PolicyFile)
	if err != nil {
		log.Fatal("failed to initialize policy engine", "policy_file", cfg.PolicyFile, "error", err)
	}

	// Initialize quota ledger
	var ledger quota.Ledger
	if cfg.RedisAddr != "" {
		rdb, err := quota.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		}
		defer rdb.Close()
		ledger = quota.NewRedisLedger(rdb, nil)
		log.Info("using redis quota ledger", "addr", cfg.RedisAddr)
	} else {
		ledger = quota.NewMemoryLedger(nil)
		log.Warn("REDIS_ADDR not set, quota usage is kept in memory")
	}

	// Initialize model client
	invCfg := llm.DefaultInvokerConfig()
	invCfg.Attempts = cfg.ModelAttempts
	invCfg.BaseDelay = cfg.RetryBaseDelay
	invoker := llm.NewInvoker(llm.NewLLMClient(cfg.Mode, cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout, log), invCfg, log)

	// Initialize analytics
	sink := analytics.Multi{
		analytics.NewPrometheusSink(prometheus.DefaultRegisterer),
		analytics.NewEventLog(db),
	}

	svc := service.New(service.Deps{
		Store:     db,
		Policy:    policyEngine,
		Ledger:    ledger,
		Model:     invoker,
		Search:    search.New(cfg.SearchURL, cfg.SearchTimeout),
		Cache:     semcache.New(semcache.Options{MaxEntries: cfg.CacheMaxEntries, Logger: log}),
		Analytics: sink,
		Config:    cfg,
		Logger:    log,
	})
	go svc.RunCacheSweeper(ctx)

	// Create public Echo server
	publicServer := newEcho(log)
	publicServer.Use(middleware.CORS())
	v1.NewHandler(svc, prometheus.DefaultGatherer, log).RegisterRoutes(publicServer)
	ws.NewServer(svc, log).RegisterRoutes(publicServer)

	// Create internal Echo server
	internalServer := newEcho(log)
	internalapi.NewHandler(svc, log).RegisterRoutes(internalServer)

	go serve(publicServer, cfg.HTTPPort, "public", log)
	go serve(internalServer, cfg.InternalPort, "internal", log)

	<-ctx.Done()
	log.Info("shutting down convo")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publicServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("failed to shut down public server gracefully", "error", err)
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("failed to shut down internal server gracefully", "error", err)
	}

	// Let pending analytics land before the store closes.
	svc.Wait()
	log.Info("convo stopped")
}

func newEcho(log *logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			)
			return nil
		},
	}))
	return e
}

func serve(e *echo.Echo, port int, name string, log *logger.Logger) {
	addr := fmt.Sprintf(":%d", port)
	log.Info("server listening", "server", name, "addr", addr)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", "server", name, "error", err)
	}
}
