// cmd/hazard-server/main.go
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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hazard-service/internal/common/access"
	"hazard-service/internal/common/config"
	"hazard-service/internal/common/database"
	commonhttp "hazard-service/internal/common/http"
	"hazard-service/internal/common/logger"
	"hazard-service/internal/common/modelcache"
	"hazard-service/internal/common/objectstore"
	"hazard-service/internal/common/observability"
	"hazard-service/internal/common/workerpool"
	"hazard-service/internal/hazard"
	"hazard-service/internal/models"
	hazardcurve "hazard-service/internal/services/hazard-curve"
	"hazard-service/pkg/registry"
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting hazard server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	obs := observability.New(cfg.App.Name, log)
	shutdownTracing, err := observability.InitTracing(ctx, cfg.App.Name, cfg.Tracing, os.Stdout, log)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}

	// --- Object store (optional) ---
	var fetcher hazard.ArchiveFetcher
	if cfg.ObjectStore.Endpoint != "" {
		store, err := objectstore.New(cfg.ObjectStore, log)
		if err != nil {
			zapLog.Fatal("object store init failed", zap.Error(err))
		}
		fetcher = store
		zapLog.Info("Object store configured", zap.String("endpoint", cfg.ObjectStore.Endpoint))
	}

	// --- Models ---
	reg, err := registry.LoadRegistry(cfg.Models.RegistryPath)
	if err != nil {
		zapLog.Fatal("model registry load failed", zap.String("path", cfg.Models.RegistryPath), zap.Error(err))
	}
	loader, err := hazard.NewLoader(reg, cfg.Models.BaseDir, fetcher, log)
	if err != nil {
		zapLog.Fatal("model loader init failed", zap.Error(err))
	}

	installed := loader.Installed(ctx)
	if len(installed) == 0 {
		zapLog.Warn("no installed models, every computation will be rejected")
	}
	cache := modelcache.New(loader, installed, log,
		modelcache.WithLoadTimeout(config.GetDuration(cfg.Models.LoadTimeout)))

	preload, err := preloadIDs(cfg.Models.Preload, reg)
	if err != nil {
		zapLog.Fatal("invalid models.preload", zap.Error(err))
	}
	if err := cache.Preload(ctx, preload); err != nil {
		zapLog.Fatal("model preload failed", zap.Error(err))
	}
	zapLog.Info("Models ready",
		zap.Int("installed", len(installed)),
		zap.Int("preloaded", len(cache.Loaded())),
	)

	// --- Worker pools ---
	calcPool := workerpool.New("calc", cfg.Pool.Size, cfg.Pool.QueueSize, log)
	lane := workerpool.New("bookkeeping", 1, cfg.Pool.LaneQueueSize, log)

	// --- Access guard and its mirror store ---
	var (
		checks []readinessCheck
		closer []func() error
		store  access.Store
	)
	switch cfg.Access.Store {
	case "redis":
		rc := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		zapLog.Info("Redis connected successfully")
		store = access.NewRedisStore(rc.Client, cfg.Access.KeyPrefix, config.GetDuration(cfg.Access.TTL))
		checks = append(checks, rc)
		closer = append(closer, rc.Close)

	case "postgres":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		zapLog.Info("PostgreSQL connected successfully")
		ps := access.NewPostgresStore(pg.DB)
		if err := ps.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("request count schema failed", zap.Error(err))
		}
		store = ps
		checks = append(checks, pg)
		closer = append(closer, pg.Close)
	}

	guard := access.NewGuard(access.NewCounter(), access.GuardOptions{
		Enabled:   cfg.Access.Enabled,
		Blocklist: cfg.Access.Blocklist,
		Store:     store,
		Lane:      lane,
		Log:       log,
	})

	// --- Hazard-curve service ---
	usage, err := hazardcurve.BuildUsage(hazardcurve.BasePath, installed, loader.DisplayName)
	if err != nil {
		zapLog.Fatal("usage document failed", zap.Error(err))
	}
	engine := hazard.NewGridEngine(cfg.Models.MaxDistance)
	service := hazardcurve.NewService(hazardcurve.LoadConfig(cfg), cache, engine, calcPool, usage, obs, log)

	// --- HTTP server ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(commonhttp.RequestID(), commonhttp.AccessLog(log), commonhttp.Recovery(log))
	hazardcurve.NewHandler(service, guard, log).RegisterRoutes(router)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/readyz", readyHandler(cache, checks))
	router.GET(cfg.Server.MetricsPath, gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := calcPool.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Calc pool did not drain", zap.Error(err))
	}
	if err := lane.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Bookkeeping lane did not drain", zap.Error(err))
	}
	for _, closeFn := range closer {
		if err := closeFn(); err != nil {
			zapLog.Error("Error closing store", zap.Error(err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLog.Error("Error flushing traces", zap.Error(err))
	}
	obs.Shutdown(shutdownCtx)

	zapLog.Info("Hazard server stopped gracefully")
}

// preloadIDs prefers the configured list over the registry's preload flags.
func preloadIDs(configured []string, reg *registry.ModelRegistry) ([]models.ModelID, error) {
	if len(configured) == 0 {
		return reg.PreloadIDs(), nil
	}
	ids := make([]models.ModelID, 0, len(configured))
	for _, s := range configured {
		id, err := models.ParseModelID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
