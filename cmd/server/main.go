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

	"github.com/oguzk/shortkit/config"
	appmodel "github.com/oguzk/shortkit/internal/app/model"
	apprepository "github.com/oguzk/shortkit/internal/app/repository"
	appserver "github.com/oguzk/shortkit/internal/app/server"
	appservice "github.com/oguzk/shortkit/internal/app/service"
	"github.com/oguzk/shortkit/internal/infra/logger"
	infraNATS "github.com/oguzk/shortkit/internal/infra/nats"
	infraPostgres "github.com/oguzk/shortkit/internal/infra/postgres"
	infraPrometheus "github.com/oguzk/shortkit/internal/infra/prometheus"
	infraRedis "github.com/oguzk/shortkit/internal/infra/redis"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.Int("code_length", cfg.Shortener.CodeLength),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.ShortURL{}, &appmodel.ClickEvent{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		// Fan-out is best-effort; local click recording works without it.
		log.Warn("Failed to connect to NATS, click fan-out disabled", zap.Error(err))
		js = nil
	} else {
		defer natsConn.Drain()
		log.Info("Connected to NATS successfully")
	}

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	urlRepo := apprepository.NewURLRepository(gormDB)
	clickRepo := apprepository.NewClickEventRepository(pool)

	gen := appservice.NewCodeGenerator(cfg.Shortener.CodeLength, cfg.Shortener.ReservedCodes)
	if codes, err := urlRepo.AllCodes(ctx); err != nil {
		log.Warn("Failed to warm code filter", zap.Error(err))
	} else {
		gen.Warm(codes)
		log.Info("Warmed code filter", zap.Int("codes", len(codes)))
	}

	store := infraRedis.NewStore(redisClient)

	cache := appservice.NewURLCache(store, urlRepo, appservice.URLCacheConfig{
		TTL:         config.Duration(cfg.Shortener.CacheTTL, time.Hour),
		NegativeTTL: config.Duration(cfg.Shortener.NegativeCacheTTL, time.Minute),
	}, log)

	limiter := appservice.NewRateLimiter(store, classLimits(cfg.RateLimit), log)

	fanout := js
	if !cfg.Clicks.PublishStream {
		fanout = nil
	}
	recorder := appservice.NewClickRecorder(clickRepo, urlRepo, appservice.ClickRecorderConfig{
		QueueSize:       cfg.Clicks.QueueSize,
		BatchSize:       cfg.Clicks.BatchSize,
		BatchInterval:   config.Duration(cfg.Clicks.BatchInterval, 2*time.Second),
		DropPolicy:      appservice.DropPolicy(cfg.Clicks.DropPolicy),
		DrainOnShutdown: cfg.Clicks.DrainOnShutdown,
	}, fanout, nil, log)
	recorder.Start()

	reconciler := appservice.NewClickReconciler(log, urlRepo,
		config.Duration(cfg.Clicks.ReconcileInterval, 5*time.Minute))
	reconciler.Start()
	defer reconciler.Stop()

	sweeper := appservice.NewExpirySweeper(log, urlRepo, cache,
		config.Duration(cfg.Shortener.SweepInterval, 10*time.Minute))
	sweeper.Start()
	defer sweeper.Stop()

	urlService := appservice.NewURLService(urlRepo, clickRepo, gen, cache, limiter, recorder,
		appservice.URLServiceConfig{
			MaxURLLength:      cfg.Shortener.MaxURLLength,
			DefaultExpiryDays: cfg.Shortener.DefaultExpiryDays,
			MaxAttempts:       cfg.Shortener.MaxAttempts,
		}, log)

	server := appserver.New(appserver.Dependencies{
		Logger:  log,
		URLs:    urlService,
		Limiter: limiter,
		BaseURL: cfg.App.BaseURL,
	})

	go func() {
		if err := server.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			log.Fatal("Fiber server exited", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shut down HTTP server", zap.Error(err))
	}
	if err := recorder.Shutdown(shutdownCtx); err != nil {
		log.Warn("Click recorder did not finish draining", zap.Error(err))
	}
}

func classLimits(cfg config.RateLimitConfig) map[appservice.EndpointClass]appservice.ClassLimit {
	return map[appservice.EndpointClass]appservice.ClassLimit{
		appservice.ClassShorten: {
			Limit:  cfg.Shorten.Limit,
			Window: config.Duration(cfg.Shorten.Window, time.Minute),
		},
		appservice.ClassRedirect: {
			Limit:  cfg.Redirect.Limit,
			Window: config.Duration(cfg.Redirect.Window, time.Minute),
		},
		appservice.ClassAnalytics: {
			Limit:  cfg.Analytics.Limit,
			Window: config.Duration(cfg.Analytics.Window, time.Minute),
		},
		appservice.ClassAdmin: {
			Limit:  cfg.Admin.Limit,
			Window: config.Duration(cfg.Admin.Window, time.Minute),
		},
	}
}
