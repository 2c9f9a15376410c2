// Command caseprocessor runs the census case-processing service: it consumes
// business events from Redis streams, applies them transactionally to the
// Postgres case store, and publishes derived case/uac events downstream.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // database/sql driver for POSTGRES_DRIVER=pq
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/censusrm/caseprocessor/internal/config"
	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/handler"
	"github.com/censusrm/caseprocessor/internal/ident"
	"github.com/censusrm/caseprocessor/internal/messaging"
	"github.com/censusrm/caseprocessor/internal/metrics"
	"github.com/censusrm/caseprocessor/internal/poison"
	"github.com/censusrm/caseprocessor/internal/store"
	"github.com/censusrm/caseprocessor/internal/store/pgstore"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}

	logger.Info("service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	caseRefs, err := ident.NewCaseRefGenerator([]byte(cfg.CaseRefKey), []byte(cfg.CaseRefTweak))
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	m := metrics.New()
	publisher := messaging.NewPublisher(redisClient, logger)

	router := handler.NewRouter(st, publisher, logger, m, cfg.ServiceName)
	handler.RegisterAll(router, caseRefs, logger)

	streams := make([]string, 0, len(cfg.InboundStreams))

	for _, binding := range cfg.InboundStreams {
		if binding.Kind != "" {
			router.ExpectOn(binding.Stream, domain.EventType(binding.Kind))
		}

		streams = append(streams, binding.Stream)
	}

	exceptionManager := poison.NewClient(cfg.ExceptionManagerURL, cfg.ExceptionManagerTimeout)
	wrapper := poison.NewWrapper(router, exceptionManager, logger, m, cfg.ServiceName)

	metricsServer := serveMetrics(cfg.MetricsAddr, m, logger)
	defer shutdownMetrics(metricsServer, logger)

	logger.Info("service started",
		zap.Strings("streams", streams),
		zap.Int("workers_per_stream", cfg.WorkersPerStream))

	var wg sync.WaitGroup

	for _, stream := range streams {
		consumer := messaging.NewConsumer(
			redisClient, wrapper, logger,
			stream, cfg.ConsumerGroup, cfg.ConsumerName, cfg.WorkersPerStream,
		)

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := consumer.Start(ctx); err != nil {
				logger.Error("consumer stopped with error", zap.Error(err))
			}
		}()
	}

	wg.Wait()

	return nil
}

// openStore builds the case store on either the native pgx pool (the default)
// or database/sql via sqlx with the pq driver, selected by POSTGRES_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.PostgresDriver == "pgx" {
		poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}

		poolCfg.MaxConns = int32(cfg.PostgresMaxConns)

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, err
		}

		st, err := pgstore.NewStoreFromPGXPool(pool, pgstore.WithLogger(logger))
		if err != nil {
			pool.Close()

			return nil, nil, err
		}

		return st, pool.Close, nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}

	db.SetMaxOpenConns(cfg.PostgresMaxConns)

	st, err := pgstore.NewStoreFromSQLX(db, pgstore.WithLogger(logger))
	if err != nil {
		_ = db.Close()

		return nil, nil, err
	}

	return st, func() { _ = db.Close() }, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build(zap.Fields(zap.String("service_name", cfg.ServiceName)))
	if err != nil {
		panic(err)
	}

	return logger
}

func serveMetrics(addr string, m *metrics.Metrics, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return server
}

func shutdownMetrics(server *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", zap.Error(err))
	}
}
