package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/bizease/internal/adapter/handler"
	"github.com/rl1809/bizease/internal/adapter/storage"
	"github.com/rl1809/bizease/internal/config"
	"github.com/rl1809/bizease/internal/core/service"
	"github.com/rl1809/bizease/internal/observability"
	"github.com/rl1809/bizease/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	traceShutdown, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		log.Printf("failed to setup OpenTelemetry tracing: %v", err)
	}
	logShutdown, err := observability.SetupLogging(ctx, cfg)
	if err != nil {
		log.Printf("failed to setup OpenTelemetry logging: %v", err)
	}
	otelShutdown := observability.JoinShutdown(traceShutdown, logShutdown)

	newLogger := observability.NewLogger
	if cfg.OtelEndpoint != "" {
		newLogger = observability.WithOTelBridge
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := otelShutdown(shutdownCtx); err != nil {
		logger.Error("failed to flush telemetry", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, closeDB, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	var cache port.CacheRepository
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer rdb.Close()
		cache = storage.NewRedisAdapter(rdb, cfg.IdempotencyTTL)
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Warn("REDIS_ADDR not set, idempotency keys disabled")
	}

	orderService := service.NewOrderService(db, cache, logger, service.WithPageSize(cfg.DefaultPageSize))
	inventoryService := service.NewInventoryService(db, logger)
	statsService := service.NewStatsService(db)

	// gRPC
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.LoggingInterceptor(logger),
		handler.OwnerInterceptor,
	))
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, statsService))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	// HTTP
	httpHandler := handler.NewHTTPHandler(orderService, inventoryService, statsService, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Routes(),
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case runErr = <-errCh:
	}

	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	return runErr
}

// openStore picks the persistence backend named by DB_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.DatabaseRepository, func(), error) {
	if cfg.DBDriver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return storage.NewMemoryAdapter(), func() {}, nil
	}

	dialect, err := storage.DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, nil, err
	}
	dsn, err := dialect.DataSource(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect %s: %w", dialect.Name, err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping %s: %w", dialect.Name, err)
	}

	adapter := storage.NewSQLAdapter(db, dialect)
	if err := adapter.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate %s: %w", dialect.Name, err)
	}
	logger.Info("connected to database", zap.String("driver", dialect.Name))

	return adapter, func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}, nil
}
