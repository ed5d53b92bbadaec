package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"catalog-analytics-service/internal/api"
	"catalog-analytics-service/internal/cache"
	"catalog-analytics-service/internal/catalog"
	"catalog-analytics-service/internal/config"
	"catalog-analytics-service/internal/store"
)

const defaultAppName = "CatalogAnalyticsService"

// checkFunc reports the health of one dependency.
type checkFunc func(ctx context.Context) error

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.Info("Starting service...")

	// --- Configuration Loading ---
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}
	configureLogger(logger, cfg)
	logger.WithFields(logrus.Fields{
		"app_env":   cfg.AppEnv,
		"log_level": cfg.LogLevel,
		"db_driver": cfg.Database.Driver,
	}).Info("Configuration loaded")

	// --- Catalog Store ---
	catalogStore, dbCheck, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize catalog store")
	}

	// --- Analytics Cache ---
	// a nil interface, not a nil *AnalyticsCache, when Redis is off
	var snapshots catalog.SnapshotCache
	redisClient := newRedisClient(context.Background(), cfg, logger)
	if redisClient != nil {
		snapshots = cache.NewAnalyticsCache(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.CacheTTL)
	}

	svc := catalog.NewService(catalogStore, snapshots, logger)

	// --- Initialize API Handlers ---
	httpAPIHandler := api.NewHTTPHandler(svc, logger)
	grpcAPIHandler := api.NewGRPCHandler(svc, logger)

	// --- Setup & Start HTTP Server ---
	checks := map[string]checkFunc{"database": dbCheck}
	if redisClient != nil {
		checks["cache"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, logger)
	registerHealthCheck(httpRouter, logger, checks)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		logger.WithField("port", cfg.HttpServer.Port).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server ListenAndServe error")
		}
		logger.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(logger, grpcAPIHandler)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		logger.WithError(err).WithField("port", cfg.GrpcServer.Port).Fatal("Failed to listen for gRPC")
	}

	go func() {
		logger.WithField("port", cfg.GrpcServer.Port).Info("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.WithError(err).Fatal("gRPC server Serve error")
		}
		logger.Info("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(logger, httpServer, grpcServer, catalogStore, redisClient, shutdownComplete)

	<-shutdownComplete
	logger.Info("Service shutdown sequence finished")
}

func configureLogger(logger *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.AddHook(appNameHook{})
}

// appNameHook stamps every entry with the service name.
type appNameHook struct{}

func (appNameHook) Levels() []logrus.Level { return logrus.AllLevels }

func (appNameHook) Fire(e *logrus.Entry) error {
	e.Data["service"] = defaultAppName
	return nil
}

// openStore builds the configured catalog store and a health check for it.
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (store.Store, checkFunc, error) {
	var dsn string
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("Using the in-memory catalog store; data is lost on restart")
		return store.NewMemoryStore(), func(context.Context) error { return nil }, nil
	case config.DriverPostgres:
		dsn = cfg.Postgres.DSN()
	case config.DriverMySQL:
		dsn = cfg.MySQL.DSN()
	}

	dialect, err := store.DialectFor(cfg.Database.Driver)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	sqlStore := store.NewSQLStore(db, dialect)
	if cfg.Database.AutoMigrate {
		if err := sqlStore.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("Database schema is up to date")
	}
	logger.WithField("driver", dialect.Name).Info("Database connection established and configured successfully")
	return sqlStore, db.PingContext, nil
}

// newRedisClient returns nil when Redis is not configured or unreachable;
// analytics are then computed on every request.
func newRedisClient(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		logger.Info("REDIS_ADDR not set, analytics cache disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("Redis unreachable, analytics cache disabled")
		client.Close()
		return nil
	}
	logger.WithFields(logrus.Fields{"addr": cfg.Redis.Addr, "ttl": cfg.Redis.CacheTTL}).Info("Analytics cache enabled")
	return client
}

func setupBaseMiddleware(router *chi.Mux, logger *logrus.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	logger.Debug("Base HTTP middleware registered")
}

func registerHealthCheck(router *chi.Mux, logger *logrus.Logger, checks map[string]checkFunc) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		payload := map[string]interface{}{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}
		for name, check := range checks {
			state := "healthy"
			if err := check(ctx); err != nil {
				state = "unhealthy"
				logger.WithError(err).WithField("dependency", name).Warn("Health check failed")
			}
			payload[name] = state
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK) // Always 200, the payload carries dependency state
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.WithError(err).Error("failed to encode health response")
		}
	})
	logger.WithField("path", healthPath).Debug("HTTP health check registered")
}

func loggingInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := logger.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Warn("gRPC call failed")
		} else {
			entry.Info("gRPC call served")
		}
		return resp, err
	}
}

func setupGRPCServer(logger *logrus.Logger, grpcAPIHandler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))

	api.RegisterInventoryServiceServer(s, grpcAPIHandler)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(api.InventoryServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s, healthServer)

	reflection.Register(s)
	logger.WithField("service", api.InventoryServiceName).Info("gRPC services registered")
	return s
}

func waitForShutdown(
	logger *logrus.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	catalogStore store.Store,
	redisClient *redis.Client,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	logger.WithField("signal", receivedSignal.String()).Info("Starting graceful shutdown")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server graceful shutdown failed")
	} else {
		logger.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.WithError(shutdownCtx.Err()).Warn("gRPC server graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}

	if err := catalogStore.Close(); err != nil {
		logger.WithError(err).Warn("Error closing catalog store")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Warn("Error closing Redis client")
		}
	}
	logger.Info("Graceful shutdown sequence completed")
}
