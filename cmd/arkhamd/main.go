package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"log/slog"

	"github.com/KiwifruitDev/arkham-revived/internal/config"
	"github.com/KiwifruitDev/arkham-revived/internal/handlers"
	"github.com/KiwifruitDev/arkham-revived/internal/identity"
	"github.com/KiwifruitDev/arkham-revived/internal/leaderboard"
	"github.com/KiwifruitDev/arkham-revived/internal/savedata"
	"github.com/KiwifruitDev/arkham-revived/internal/scheduler"
	"github.com/KiwifruitDev/arkham-revived/internal/social"
	"github.com/KiwifruitDev/arkham-revived/internal/storage"
	"github.com/KiwifruitDev/arkham-revived/internal/wbid"
	"github.com/KiwifruitDev/arkham-revived/internal/workflow"
	"github.com/KiwifruitDev/arkham-revived/libs/health"
	"github.com/KiwifruitDev/arkham-revived/libs/httpmiddleware"
	"github.com/KiwifruitDev/arkham-revived/libs/kafka"
	"github.com/KiwifruitDev/arkham-revived/libs/logging"
	"github.com/KiwifruitDev/arkham-revived/libs/metrics"
	"github.com/KiwifruitDev/arkham-revived/libs/trace"
)

func main() {
	cfg, err := config.Load(os.Getenv("ARKHAM_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)
	shutdownTracer, err := trace.InitTracer(cfg.App.ServiceName, cfg.App.Env)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	schedMetrics := scheduler.NewMetrics()
	schedMetrics.Register(registry)
	workflowMetrics := workflow.NewMetrics()
	workflowMetrics.Register(registry)

	ready := health.NewManager(false)

	pool, err := connectDB(cfg)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	users := storage.New(pool)
	boards := storage.NewBoardStore(pool)
	if err := ensureSchemas(users, boards); err != nil {
		logger.Error("schema setup failed", "error", err)
		os.Exit(1)
	}

	var publisher kafka.Publisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, logger, kafka.NewProducerMetrics(registry))
		if err != nil {
			logger.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = producer
	}

	overlay, err := savedata.LoadOverlay(cfg.Migration.OverlayPath)
	if err != nil {
		logger.Error("migration overlay load failed", "error", err)
		os.Exit(1)
	}
	if len(overlay) == 0 {
		logger.Warn("migration overlay empty", "path", cfg.Migration.OverlayPath)
	}

	engine := leaderboard.NewEngine(boards, leaderboard.Event{
		Name:     cfg.Event.Name,
		StartsAt: cfg.Event.StartsAt,
		EndsAt:   cfg.Event.EndsAt,
	}, logger)

	var unlinker social.Unlinker = social.NoopUnlinker{}
	if cfg.Social.UnlinkURL != "" {
		unlinker = social.NewHTTPUnlinker(cfg.Social.UnlinkURL, cfg.Social.Timeout)
	}

	queue := scheduler.NewQueue()
	service := workflow.NewService(workflow.Deps{
		Users:        users,
		Boards:       engine,
		Queue:        queue,
		Legacy:       wbid.NewClient(cfg.Legacy.BaseURL, cfg.Legacy.Timeout),
		Unlinker:     unlinker,
		Publisher:    publisher,
		Overlay:      overlay,
		Topic:        cfg.Kafka.LifecycleTopic,
		MigrateDelay: cfg.Scheduler.MigrateDelay,
		DeleteDelay:  cfg.Scheduler.DeleteDelay,
		CancelWindow: cfg.Scheduler.DeleteCancelWindow,
		Logger:       logger,
		Metrics:      workflowMetrics,
	})

	sched := scheduler.New(queue, service, cfg.Scheduler.TickInterval, logger, schedMetrics)
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	go sched.Run(schedCtx)

	deriver, err := identity.NewDeriver(cfg.Identity.UUIDKey)
	if err != nil {
		logger.Error("identity setup failed", "error", err)
		os.Exit(1)
	}
	resolver := identity.NewResolver(deriver, users, cfg.Identity.LocalhostOverride)
	api := handlers.New(resolver, users, engine, service, logger)

	httpServer := buildHTTPServer(cfg, ready, registry, api, logger)
	ready.SetReady(true)

	go func() {
		logger.Info("arkhamd http starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	waitForShutdown(httpServer, service, ready, schedCancel, logger)
}

func connectDB(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func ensureSchemas(users *storage.Store, boards *storage.BoardStore) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := users.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("users schema: %w", err)
	}
	if err := boards.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("leaderboard schema: %w", err)
	}
	return nil
}

func buildHTTPServer(cfg *config.Config, ready *health.Manager, registry *prometheus.Registry, api *handlers.Handler, logger *slog.Logger) *http.Server {
	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))
	router.Use(trace.Middleware(cfg.App.ServiceName))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))
	api.Register(router)

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	return &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}
}

func waitForShutdown(httpServer *http.Server, service *workflow.Service, ready *health.Manager, cancel context.CancelFunc, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown started")
	ready.SetReady(false)
	cancel()

	service.Wait()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelTimeout()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
