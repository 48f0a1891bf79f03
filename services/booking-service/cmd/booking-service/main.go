package main

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/queueline/libs/config"
	"github.com/md-rashed-zaman/queueline/libs/db"
	"github.com/md-rashed-zaman/queueline/libs/grpcx"
	"github.com/md-rashed-zaman/queueline/libs/httpx"
	"github.com/md-rashed-zaman/queueline/libs/kafkax"
	otelx "github.com/md-rashed-zaman/queueline/libs/otel"
	"github.com/md-rashed-zaman/queueline/libs/runtime"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/settings"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/storage"
)

type backend interface {
	booking.Store
	handlers.CatalogStore
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("dotenv load failed", "err", err)
	}
	cfg, err := settings.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := runtime.ShutdownContext(ctx, 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		store  backend
		checks []runtime.ReadyCheck
	)
	switch cfg.StorageDriver {
	case settings.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		store = storage.NewMemory()
	default:
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{
			ApplicationName: cfg.ServiceName,
			MaxConns:        int32(cfg.DBMaxConns),
			MinConns:        int32(cfg.DBMinConns),
		})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository()
		store = storage.NewPostgres(pool, outboxRepo)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			PollEvery: cfg.OutboxPollEvery,
			BatchSize: cfg.OutboxBatchSize,
		})
		go publisher.Run(ctx)
		if cfg.KafkaBrokers != "" {
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
		}
	}

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	serviceCfg := booking.Config{
		GranularityMinutes: cfg.SlotGranularityMinutes,
		OverlapMode:        cfg.SlotOverlapMode,
		BufferMinutes:      cfg.QueueBufferMinutes,
		Metrics:            bookingMetrics,
	}

	rateLimit := httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).Middleware()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		serviceCfg.Cache = cache.NewQueueCache(rdb, cfg.QueueCacheTTL)
		rateLimit = httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, httpx.DefaultRateLimitPrefix).
			Middleware(logger, cfg.RateLimitFailOpen)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(rdb)})
	}

	svc := booking.NewService(store, logger, serviceCfg)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", promhttp.Handler())
	handlers.NewBookingHandler(svc, logger).Register(mux)
	handlers.NewSetupHandler(store, logger).Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Idempotency-Key", httpx.RequestIDHeader},
			ExposedHeaders: []string{"Retry-After", "X-RateLimit-Remaining", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	health.Shutdown()
	shutdownCtx, cancel := runtime.ShutdownContext(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("servers stopped")
}
